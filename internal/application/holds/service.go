package holds

import (
	"context"
	"encoding/json"
	"errors"

	"cleanup-backend/internal/application/requests"
	"cleanup-backend/internal/domain"
	"cleanup-backend/internal/payments"
	"cleanup-backend/internal/pkg/pagination"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MinimumAmountMinorUnits is the smallest hold the processor accepts.
const MinimumAmountMinorUnits int64 = 50

// RequestLookup is the read side of the request-lifecycle collaborator.
type RequestLookup interface {
	GetRequest(ctx context.Context, id uuid.UUID) (requests.Summary, error)
}

// ContributionLedger keeps a request's running contributed total.
type ContributionLedger interface {
	IncrementContributed(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error
	DecrementContributed(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error
}

type Service struct {
	DB        *gorm.DB
	Processor payments.Processor
	Requests  RequestLookup
	// LedgerFor binds the contribution ledger to tx so the donation insert and
	// the total update commit together.
	LedgerFor func(tx *gorm.DB) ContributionLedger
	Currency  string
}

type CreateHoldInput struct {
	PayerUserID      uuid.UUID
	RequestID        uuid.UUID
	AmountMinorUnits int64
	Kind             domain.HoldKind
}

type CreateHoldResult struct {
	HoldID       uuid.UUID `json:"holdId"`
	ClientHandle string    `json:"clientHandle"`
}

func (s *Service) currency() string {
	if s.Currency == "" {
		return "usd"
	}
	return s.Currency
}

// CreateHold opens a manual-capture authorization and records its local mirror.
// Donations also get a Donation row and bump the request's contributed total.
func (s *Service) CreateHold(ctx context.Context, caller payments.Caller, in CreateHoldInput) (CreateHoldResult, error) {
	if !in.Kind.Valid() {
		return CreateHoldResult{}, payments.ErrInvalidInput.WithMessage("kind must be donation or request_cost")
	}
	if in.RequestID == uuid.Nil {
		return CreateHoldResult{}, payments.ErrInvalidInput.WithMessage("requestId is required")
	}
	if in.AmountMinorUnits < 0 {
		return CreateHoldResult{}, payments.ErrAmountTooSmall
	}
	payer := in.PayerUserID
	if payer == uuid.Nil {
		payer = caller.UserID
	}
	if !caller.CanActFor(payer) {
		return CreateHoldResult{}, payments.ErrForbidden
	}

	req, err := s.Requests.GetRequest(ctx, in.RequestID)
	if err != nil {
		return CreateHoldResult{}, err
	}

	amount := in.AmountMinorUnits
	if amount == 0 && in.Kind == domain.HoldKindRequestCost {
		amount = req.Cost.Shift(2).Round(0).IntPart()
	}
	if amount < MinimumAmountMinorUnits {
		return CreateHoldResult{}, payments.ErrAmountTooSmall
	}

	holdID := uuid.New()
	meta := map[string]string{
		payments.MetaRequestID:   in.RequestID.String(),
		payments.MetaPayerUserID: payer.String(),
		payments.MetaHoldKind:    string(in.Kind),
		payments.MetaHoldID:      holdID.String(),
	}
	handle, err := s.Processor.CreateHold(ctx, payments.HoldRequest{
		AmountMinorUnits: amount,
		Currency:         s.currency(),
		Metadata:         meta,
		IdempotencyKey:   "hold-" + holdID.String(),
	})
	if err != nil {
		return CreateHoldResult{}, err
	}

	rawMeta, _ := json.Marshal(meta)
	hold := domain.Hold{
		ID:               holdID,
		ExternalID:       handle.ExternalID,
		PayerUserID:      payer,
		RequestID:        in.RequestID,
		AmountMinorUnits: amount,
		Currency:         s.currency(),
		Kind:             in.Kind,
		Status:           domain.HoldStatusCreated,
		Metadata:         datatypes.JSON(rawMeta),
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&hold).Error; err != nil {
			return err
		}
		if in.Kind != domain.HoldKindDonation {
			return nil
		}
		donation := domain.Donation{
			RequestID:        in.RequestID,
			DonorUserID:      payer,
			AmountMajorUnits: domain.MajorUnits(amount),
			HoldID:           &hold.ID,
		}
		if err := tx.Create(&donation).Error; err != nil {
			return err
		}
		return s.LedgerFor(tx).IncrementContributed(ctx, in.RequestID, donation.AmountMajorUnits)
	})
	if err != nil {
		log.Error().Err(err).Str("external_id", handle.ExternalID).Str("request_id", in.RequestID.String()).
			Msg("hold persisted at processor but local write failed, canceling authorization")
		if cerr := s.Processor.CancelHold(context.WithoutCancel(ctx), handle.ExternalID); cerr != nil {
			log.Error().Err(cerr).Str("external_id", handle.ExternalID).Msg("failed to cancel orphaned authorization")
		}
		return CreateHoldResult{}, err
	}

	log.Info().Str("hold_id", hold.ID.String()).Str("external_id", hold.ExternalID).
		Str("request_id", hold.RequestID.String()).Int64("amount", amount).Str("kind", string(hold.Kind)).
		Msg("hold created")
	return CreateHoldResult{HoldID: hold.ID, ClientHandle: handle.ClientHandle}, nil
}

// Transition moves the hold identified by externalID to `to` when its current
// status is a legal predecessor. It reports whether this call changed the row.
// Re-applying the current status and backward moves are not errors. A missing
// hold yields ErrHoldNotFound.
func Transition(ctx context.Context, db *gorm.DB, externalID string, to domain.HoldStatus) (bool, error) {
	from, ok := domain.HoldPredecessors[to]
	if !ok {
		return false, payments.ErrInvalidInput.WithMessage("no transition into status " + string(to))
	}
	res := db.WithContext(ctx).Model(&domain.Hold{}).
		Where("external_id = ? AND status IN ?", externalID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var current domain.Hold
	if err := db.WithContext(ctx).Select("id", "status").Where("external_id = ?", externalID).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, payments.ErrHoldNotFound
		}
		return false, err
	}
	if current.Status != to {
		log.Debug().Str("external_id", externalID).Str("current", string(current.Status)).Str("target", string(to)).
			Msg("hold transition ignored")
	}
	return false, nil
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, page pagination.Page) (pagination.Result[domain.Hold], error) {
	page = page.Normalize()
	var total int64
	if err := s.DB.WithContext(ctx).Model(&domain.Hold{}).Where("payer_user_id = ?", userID).Count(&total).Error; err != nil {
		return pagination.Result[domain.Hold]{}, err
	}
	var items []domain.Hold
	if err := s.DB.WithContext(ctx).Where("payer_user_id = ?", userID).Order(`"createdAt" DESC`).Offset(page.Offset()).Limit(page.Limit).Find(&items).Error; err != nil {
		return pagination.Result[domain.Hold]{}, err
	}
	return pagination.NewResult(items, page, total), nil
}
