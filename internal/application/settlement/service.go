package settlement

import (
	"context"
	"errors"
	"strconv"

	"cleanup-backend/internal/application/fees"
	"cleanup-backend/internal/application/requests"
	"cleanup-backend/internal/domain"
	"cleanup-backend/internal/payments"
	"cleanup-backend/internal/pkg/pagination"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestLifecycle is the part of the request-lifecycle collaborator settlement needs.
type RequestLifecycle interface {
	GetRequest(ctx context.Context, id uuid.UUID) (requests.Summary, error)
	MarkSettled(ctx context.Context, id, performerUserID uuid.UUID) error
}

// PayoutAccounts resolves where a performer's payout goes.
type PayoutAccounts interface {
	RequireReady(ctx context.Context, userID uuid.UUID) (domain.PayoutAccount, error)
}

// HoldCapturer captures one authorization and converges its local status.
type HoldCapturer interface {
	Capture(ctx context.Context, h domain.Hold) error
}

type Service struct {
	DB        *gorm.DB
	Processor payments.Processor
	Capturer  HoldCapturer
	Accounts  PayoutAccounts
	Requests  RequestLifecycle
	Currency  string
}

type FailedCapture struct {
	HoldID uuid.UUID `json:"holdId"`
	Reason string    `json:"reason"`
}

type Result struct {
	PayoutID               uuid.UUID       `json:"payoutId"`
	CapturedHoldIDs        []uuid.UUID     `json:"capturedHoldIds"`
	FailedCaptures         []FailedCapture `json:"failedCaptures"`
	NetAmountMinorUnits    int64           `json:"netAmountMinorUnits"`
	PlatformFeeMinorUnits  int64           `json:"platformFeeMinorUnits"`
	ProcessorFeeMinorUnits int64           `json:"processorFeeMinorUnits"`
}

func (s *Service) currency() string {
	if s.Currency == "" {
		return "usd"
	}
	return s.Currency
}

// SettleRequest captures every capturable hold of the request, splits the
// captured total and transfers the net amount to the performer. Calling it
// again for a request that already has a payout returns that payout.
func (s *Service) SettleRequest(ctx context.Context, caller payments.Caller, requestID, performerUserID uuid.UUID) (Result, error) {
	if requestID == uuid.Nil || performerUserID == uuid.Nil {
		return Result{}, payments.ErrInvalidInput.WithMessage("requestId and performerUserId are required")
	}
	req, err := s.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return Result{}, err
	}
	if !caller.CanActFor(req.CreatedBy) {
		return Result{}, payments.ErrForbidden
	}

	existing, err := s.findPayout(ctx, requestID)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		return s.resume(ctx, existing)
	}

	var holds []domain.Hold
	if err := s.DB.WithContext(ctx).
		Where("request_id = ? AND status IN ?", requestID,
			[]domain.HoldStatus{domain.HoldStatusRequiresCapture, domain.HoldStatusSucceeded}).
		Order(`"createdAt" ASC`).
		Find(&holds).Error; err != nil {
		return Result{}, err
	}

	result := Result{CapturedHoldIDs: []uuid.UUID{}, FailedCaptures: []FailedCapture{}}
	var total int64
	for _, h := range holds {
		if h.Status == domain.HoldStatusRequiresCapture {
			if err := s.Capturer.Capture(ctx, h); err != nil {
				log.Warn().Err(err).Str("hold_id", h.ID.String()).Str("request_id", requestID.String()).Msg("capture failed during settlement")
				result.FailedCaptures = append(result.FailedCaptures, FailedCapture{HoldID: h.ID, Reason: err.Error()})
				continue
			}
		}
		result.CapturedHoldIDs = append(result.CapturedHoldIDs, h.ID)
		total += h.AmountMinorUnits
	}

	account, err := s.Accounts.RequireReady(ctx, performerUserID)
	if err != nil {
		return Result{}, err
	}

	split := fees.Calculate(total)
	if err := split.Validate(); err != nil {
		log.Warn().Str("request_id", requestID.String()).Int64("total", total).Int64("net", split.Net).Msg("settlement rejected: fees exceed captured total")
		return Result{}, err
	}

	payout := domain.Payout{
		RequestID:              requestID,
		PerformerUserID:        performerUserID,
		NetAmountMinorUnits:    split.Net,
		PlatformFeeMinorUnits:  split.PlatformFee,
		ProcessorFeeMinorUnits: split.ProcessorFee,
		Currency:               s.currency(),
		Status:                 domain.PayoutStatusPending,
	}
	if len(result.CapturedHoldIDs) > 0 {
		payout.SourceHoldID = &result.CapturedHoldIDs[0]
	}
	if split.Net == 0 {
		payout.Status = domain.PayoutStatusPaid
	}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoNothing: true,
	}).Create(&payout)
	if res.Error != nil {
		return Result{}, res.Error
	}
	if res.RowsAffected == 0 {
		// A concurrent settlement (or an early transfer event) created it first.
		existing, err := s.findPayout(ctx, requestID)
		if err != nil {
			return Result{}, err
		}
		if existing == nil {
			return Result{}, errors.New("payout vanished after conflicting insert")
		}
		return s.resume(ctx, existing)
	}

	if err := s.transfer(ctx, &payout, account.ExternalAccountID); err != nil {
		return Result{}, err
	}
	if err := s.Requests.MarkSettled(ctx, requestID, performerUserID); err != nil {
		return Result{}, err
	}

	log.Info().Str("request_id", requestID.String()).Str("payout_id", payout.ID.String()).
		Int64("total", total).Int64("net", split.Net).Int("captured", len(result.CapturedHoldIDs)).
		Int("failed", len(result.FailedCaptures)).Msg("request settled")

	result.PayoutID = payout.ID
	result.NetAmountMinorUnits = payout.NetAmountMinorUnits
	result.PlatformFeeMinorUnits = payout.PlatformFeeMinorUnits
	result.ProcessorFeeMinorUnits = payout.ProcessorFeeMinorUnits
	return result, nil
}

// resume finishes a settlement whose payout row already exists.
func (s *Service) resume(ctx context.Context, payout *domain.Payout) (Result, error) {
	if payout.ExternalID == nil && payout.Status == domain.PayoutStatusPending && payout.NetAmountMinorUnits > 0 {
		account, err := s.Accounts.RequireReady(ctx, payout.PerformerUserID)
		if err != nil {
			return Result{}, err
		}
		if err := s.transfer(ctx, payout, account.ExternalAccountID); err != nil {
			return Result{}, err
		}
	}
	if err := s.Requests.MarkSettled(ctx, payout.RequestID, payout.PerformerUserID); err != nil {
		return Result{}, err
	}

	var captured []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&domain.Hold{}).
		Where("request_id = ? AND status = ?", payout.RequestID, domain.HoldStatusSucceeded).
		Order(`"createdAt" ASC`).
		Pluck("id", &captured).Error; err != nil {
		return Result{}, err
	}
	if captured == nil {
		captured = []uuid.UUID{}
	}
	return Result{
		PayoutID:               payout.ID,
		CapturedHoldIDs:        captured,
		FailedCaptures:         []FailedCapture{},
		NetAmountMinorUnits:    payout.NetAmountMinorUnits,
		PlatformFeeMinorUnits:  payout.PlatformFeeMinorUnits,
		ProcessorFeeMinorUnits: payout.ProcessorFeeMinorUnits,
	}, nil
}

// transfer issues the payout's transfer. The idempotency key is derived from
// the payout id so a re-issue after a lost response cannot pay twice.
func (s *Service) transfer(ctx context.Context, payout *domain.Payout, destination string) error {
	if payout.NetAmountMinorUnits == 0 {
		return nil
	}
	meta := map[string]string{
		payments.MetaRequestID:       payout.RequestID.String(),
		payments.MetaPerformerUserID: payout.PerformerUserID.String(),
		payments.MetaPayoutID:        payout.ID.String(),
		payments.MetaPlatformFee:     strconv.FormatInt(payout.PlatformFeeMinorUnits, 10),
		payments.MetaProcessorFee:    strconv.FormatInt(payout.ProcessorFeeMinorUnits, 10),
	}
	if payout.SourceHoldID != nil {
		meta[payments.MetaSourceHoldID] = payout.SourceHoldID.String()
	}
	t, err := s.Processor.CreateTransfer(ctx, payments.TransferRequest{
		AmountMinorUnits:   payout.NetAmountMinorUnits,
		Currency:           payout.Currency,
		DestinationAccount: destination,
		Metadata:           meta,
		IdempotencyKey:     "transfer-" + payout.ID.String(),
	})
	if err != nil {
		log.Error().Err(err).Str("payout_id", payout.ID.String()).Msg("transfer request failed, payout left pending")
		return err
	}
	if err := s.DB.WithContext(ctx).Model(&domain.Payout{}).
		Where("id = ? AND external_id IS NULL", payout.ID).
		Update("external_id", t.ExternalID).Error; err != nil {
		return err
	}
	payout.ExternalID = &t.ExternalID
	return nil
}

func (s *Service) findPayout(ctx context.Context, requestID uuid.UUID) (*domain.Payout, error) {
	var p domain.Payout
	if err := s.DB.WithContext(ctx).Where("request_id = ?", requestID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) ListPayoutsForPerformer(ctx context.Context, userID uuid.UUID, page pagination.Page) (pagination.Result[domain.Payout], error) {
	page = page.Normalize()
	var total int64
	if err := s.DB.WithContext(ctx).Model(&domain.Payout{}).Where("performer_user_id = ?", userID).Count(&total).Error; err != nil {
		return pagination.Result[domain.Payout]{}, err
	}
	var items []domain.Payout
	if err := s.DB.WithContext(ctx).Where("performer_user_id = ?", userID).
		Order(`"createdAt" DESC`).Offset(page.Offset()).Limit(page.Limit).
		Find(&items).Error; err != nil {
		return pagination.Result[domain.Payout]{}, err
	}
	return pagination.NewResult(items, page, total), nil
}
