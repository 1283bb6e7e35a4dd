package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"cleanup-backend/internal/application/holds"
	"cleanup-backend/internal/application/notifications"
	"cleanup-backend/internal/application/recovery"
	"cleanup-backend/internal/domain"
	"cleanup-backend/internal/payments"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountUpdater applies readiness flags from account events.
type AccountUpdater interface {
	ApplyAccountUpdate(ctx context.Context, details payments.AccountDetails) (bool, error)
}

// HoldCapturer is the auto-capture path.
type HoldCapturer interface {
	Capture(ctx context.Context, h domain.Hold) error
}

// ContributionLedger rolls back a request's contributed total.
type ContributionLedger interface {
	DecrementContributed(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error
}

// Handler applies processor events to local state. Every mutation is a
// compare-and-set or keyed upsert, so replays and reordering are harmless.
type Handler struct {
	DB        *gorm.DB
	Capturer  HoldCapturer
	Accounts  AccountUpdater
	LedgerFor func(tx *gorm.DB) ContributionLedger
	Notifier  notifications.Notifier
	Recovery  recovery.Enqueuer
	Events    EventLog
}

// HandleEvent dispatches one verified event. Errors are for logging; the
// webhook acknowledges regardless.
func (h *Handler) HandleEvent(ctx context.Context, ev payments.Event) error {
	if ev.Kind == "" {
		log.Debug().Str("event_id", ev.ID).Str("type", ev.Type).Msg("ignoring unhandled processor event")
		return nil
	}
	if h.Events != nil && ev.ID != "" {
		seen, err := h.Events.Seen(ctx, ev.ID)
		if err != nil {
			log.Warn().Err(err).Str("event_id", ev.ID).Msg("event log unavailable, processing anyway")
		} else if seen {
			log.Debug().Str("event_id", ev.ID).Msg("duplicate processor event skipped")
			return nil
		}
	}

	var err error
	switch ev.Kind {
	case payments.EventAccountUpdated:
		err = h.accountUpdated(ctx, ev)
	case payments.EventAuthorizationRequiresCapture:
		err = h.requiresCapture(ctx, ev)
	case payments.EventAuthorizationSucceeded:
		err = h.holdSucceeded(ctx, ev)
	case payments.EventAuthorizationFailed:
		err = h.holdEnded(ctx, ev, domain.HoldStatusFailed)
	case payments.EventAuthorizationCanceled:
		err = h.holdEnded(ctx, ev, domain.HoldStatusCanceled)
	case payments.EventTransferCreated:
		_, _, err = h.ensurePayout(ctx, ev.Transfer, domain.PayoutStatusPending)
	case payments.EventTransferPaid:
		err = h.transferFinished(ctx, ev, domain.PayoutStatusPaid)
	case payments.EventTransferFailed:
		err = h.transferFinished(ctx, ev, domain.PayoutStatusFailed)
	}
	if err != nil {
		log.Error().Err(err).Str("event_id", ev.ID).Str("kind", string(ev.Kind)).Msg("processor event handling failed")
		return err
	}

	if h.Events != nil && ev.ID != "" {
		if err := h.Events.Remember(ctx, ev.ID); err != nil {
			log.Warn().Err(err).Str("event_id", ev.ID).Msg("failed to record processed event")
		}
	}
	return nil
}

func (h *Handler) accountUpdated(ctx context.Context, ev payments.Event) error {
	if ev.Account == nil {
		return nil
	}
	known, err := h.Accounts.ApplyAccountUpdate(ctx, *ev.Account)
	if err != nil {
		return err
	}
	if !known {
		log.Debug().Str("account_id", ev.Account.ExternalID).Msg("account.updated for unknown account ignored")
	}
	return nil
}

func (h *Handler) requiresCapture(ctx context.Context, ev payments.Event) error {
	hold, ok, err := h.ensureHold(ctx, ev.Hold, domain.HoldStatusRequiresCapture)
	if err != nil || !ok {
		return err
	}
	if _, err := holds.Transition(ctx, h.DB, hold.ExternalID, domain.HoldStatusRequiresCapture); err != nil {
		return err
	}
	if err := h.DB.WithContext(ctx).Where("id = ?", hold.ID).First(&hold).Error; err != nil {
		return err
	}
	if hold.Status != domain.HoldStatusRequiresCapture {
		return nil
	}
	// Capture now instead of waiting for settlement so the authorization
	// cannot expire. A failure leaves the hold for settlement to retry.
	if err := h.Capturer.Capture(ctx, hold); err != nil {
		log.Warn().Err(err).Str("hold_id", hold.ID.String()).Str("external_id", hold.ExternalID).Msg("auto-capture failed, hold left for settlement")
	}
	return nil
}

func (h *Handler) holdSucceeded(ctx context.Context, ev payments.Event) error {
	hold, ok, err := h.ensureHold(ctx, ev.Hold, domain.HoldStatusSucceeded)
	if err != nil || !ok {
		return err
	}
	_, err = holds.Transition(ctx, h.DB, hold.ExternalID, domain.HoldStatusSucceeded)
	return err
}

func (h *Handler) holdEnded(ctx context.Context, ev payments.Event, to domain.HoldStatus) error {
	hold, ok, err := h.ensureHold(ctx, ev.Hold, to)
	if err != nil || !ok {
		return err
	}
	if _, err := holds.Transition(ctx, h.DB, hold.ExternalID, to); err != nil {
		return err
	}
	if err := h.DB.WithContext(ctx).Where("id = ?", hold.ID).First(&hold).Error; err != nil {
		return err
	}
	if hold.Kind != domain.HoldKindDonation || (hold.Status != domain.HoldStatusFailed && hold.Status != domain.HoldStatusCanceled) {
		return nil
	}
	if err := h.compensate(ctx, hold.ID); err != nil {
		log.Error().Err(err).Str("hold_id", hold.ID.String()).Str("request_id", hold.RequestID.String()).
			Msg("LEDGER DISCREPANCY: donation compensation failed, queued for retry")
		if h.Recovery != nil {
			_ = h.Recovery.Enqueue(context.WithoutCancel(ctx), recovery.KindCompensateDonation, hold.ID, err)
		}
	}
	return nil
}

// Compensate is the recovery handler for a failed compensation.
func (h *Handler) Compensate(ctx context.Context, holdID uuid.UUID) error {
	return h.compensate(ctx, holdID)
}

// compensate deletes the hold's donation and rolls back the request total in
// one transaction. The decrement only runs when this call removed the row,
// so replays never decrement twice.
func (h *Handler) compensate(ctx context.Context, holdID uuid.UUID) error {
	return h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d domain.Donation
		if err := tx.Where("hold_id = ?", holdID).First(&d).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		res := tx.Where("id = ?", d.ID).Delete(&domain.Donation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := h.LedgerFor(tx).DecrementContributed(ctx, d.RequestID, d.AmountMajorUnits); err != nil {
			return err
		}
		log.Info().Str("hold_id", holdID.String()).Str("request_id", d.RequestID.String()).
			Str("amount", d.AmountMajorUnits.StringFixed(2)).Msg("donation compensated")
		return nil
	})
}

// ensureHold loads the hold for an event, creating it from the event when the
// event beat the local insert. ok is false when the event is not ours.
func (h *Handler) ensureHold(ctx context.Context, d *payments.HoldDetails, status domain.HoldStatus) (domain.Hold, bool, error) {
	if d == nil {
		return domain.Hold{}, false, nil
	}
	var hold domain.Hold
	err := h.DB.WithContext(ctx).Where("external_id = ?", d.ExternalID).First(&hold).Error
	if err == nil {
		return hold, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Hold{}, false, err
	}

	requestID, err1 := uuid.Parse(d.Metadata[payments.MetaRequestID])
	payerID, err2 := uuid.Parse(d.Metadata[payments.MetaPayerUserID])
	kind := domain.HoldKind(d.Metadata[payments.MetaHoldKind])
	if err1 != nil || err2 != nil || !kind.Valid() || d.AmountMinorUnits <= 0 {
		log.Warn().Str("external_id", d.ExternalID).Msg("authorization event for unknown hold without usable metadata ignored")
		return domain.Hold{}, false, nil
	}
	raw, _ := json.Marshal(d.Metadata)
	hold = domain.Hold{
		ExternalID:       d.ExternalID,
		PayerUserID:      payerID,
		RequestID:        requestID,
		AmountMinorUnits: d.AmountMinorUnits,
		Currency:         d.Currency,
		Kind:             kind,
		Status:           status,
		Metadata:         datatypes.JSON(raw),
	}
	// Reuse the id the creator chose so its own insert collides instead of duplicating.
	if id, err := uuid.Parse(d.Metadata[payments.MetaHoldID]); err == nil {
		hold.ID = id
	}
	res := h.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&hold)
	if res.Error != nil {
		return domain.Hold{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		if err := h.DB.WithContext(ctx).Where("external_id = ?", d.ExternalID).First(&hold).Error; err != nil {
			return domain.Hold{}, false, err
		}
		return hold, true, nil
	}
	log.Info().Str("external_id", d.ExternalID).Str("status", string(status)).Msg("hold created from processor event")
	return hold, true, nil
}

// ensurePayout finds the payout a transfer belongs to, by transfer id and then
// by request, creating it from the transfer when the event arrived first.
// created reports whether this call inserted the row.
func (h *Handler) ensurePayout(ctx context.Context, t *payments.TransferDetails, status domain.PayoutStatus) (domain.Payout, bool, error) {
	if t == nil {
		return domain.Payout{}, false, nil
	}
	var p domain.Payout
	err := h.DB.WithContext(ctx).Where("external_id = ?", t.ExternalID).First(&p).Error
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Payout{}, false, err
	}

	requestID, err := uuid.Parse(t.Metadata[payments.MetaRequestID])
	if err != nil {
		log.Warn().Str("transfer_id", t.ExternalID).Msg("transfer event without request metadata ignored")
		return domain.Payout{}, false, nil
	}

	err = h.DB.WithContext(ctx).Where("request_id = ?", requestID).First(&p).Error
	if err == nil {
		if err := h.DB.WithContext(ctx).Model(&domain.Payout{}).
			Where("id = ? AND external_id IS NULL", p.ID).
			Update("external_id", t.ExternalID).Error; err != nil {
			return domain.Payout{}, false, err
		}
		return p, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Payout{}, false, err
	}

	performerID, err := uuid.Parse(t.Metadata[payments.MetaPerformerUserID])
	if err != nil {
		log.Warn().Str("transfer_id", t.ExternalID).Msg("transfer event without performer metadata ignored")
		return domain.Payout{}, false, nil
	}
	platformFee, _ := strconv.ParseInt(t.Metadata[payments.MetaPlatformFee], 10, 64)
	processorFee, _ := strconv.ParseInt(t.Metadata[payments.MetaProcessorFee], 10, 64)
	externalID := t.ExternalID
	p = domain.Payout{
		ExternalID:             &externalID,
		RequestID:              requestID,
		PerformerUserID:        performerID,
		NetAmountMinorUnits:    t.AmountMinorUnits,
		PlatformFeeMinorUnits:  platformFee,
		ProcessorFeeMinorUnits: processorFee,
		Currency:               t.Currency,
		Status:                 status,
	}
	if id, err := uuid.Parse(t.Metadata[payments.MetaPayoutID]); err == nil {
		p.ID = id
	}
	if id, err := uuid.Parse(t.Metadata[payments.MetaSourceHoldID]); err == nil {
		p.SourceHoldID = &id
	}
	res := h.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&p)
	if res.Error != nil {
		return domain.Payout{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		// Settlement inserted it concurrently.
		if err := h.DB.WithContext(ctx).Where("request_id = ?", requestID).First(&p).Error; err != nil {
			return domain.Payout{}, false, err
		}
		return p, false, nil
	}
	log.Info().Str("transfer_id", t.ExternalID).Str("request_id", requestID.String()).Str("status", string(status)).
		Msg("payout created from transfer event")
	return p, true, nil
}

func (h *Handler) transferFinished(ctx context.Context, ev payments.Event, to domain.PayoutStatus) error {
	p, created, err := h.ensurePayout(ctx, ev.Transfer, to)
	if err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		return nil
	}
	applied := created
	if !created {
		res := h.DB.WithContext(ctx).Model(&domain.Payout{}).
			Where("id = ? AND status IN ?", p.ID, domain.PayoutPredecessors[to]).
			Update("status", to)
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected > 0
	}
	if !applied {
		return nil
	}

	log.Info().Str("payout_id", p.ID.String()).Str("status", string(to)).Msg("payout status updated")
	kind := notifications.KindPayoutPaid
	if to == domain.PayoutStatusFailed {
		kind = notifications.KindPayoutFailed
	}
	notifications.Send(ctx, h.Notifier, p.PerformerUserID, kind, map[string]interface{}{
		"payoutId":            p.ID.String(),
		"requestId":           p.RequestID.String(),
		"netAmountMinorUnits": p.NetAmountMinorUnits,
		"currency":            p.Currency,
	})
	return nil
}
