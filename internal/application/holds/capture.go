package holds

import (
	"context"
	"errors"
	"time"

	"cleanup-backend/internal/application/recovery"
	"cleanup-backend/internal/domain"
	"cleanup-backend/internal/payments"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Capturer captures authorizations at the processor and converges the local
// mirror afterwards. Used by settlement and by the auto-capture event path.
type Capturer struct {
	DB        *gorm.DB
	Processor payments.Processor
	Recovery  recovery.Enqueuer

	WriteAttempts int
	WriteBackoff  time.Duration
}

// Capture captures h. A capture rejected because the processor already holds
// the funds (a concurrent auto-capture) counts as success.
func (c *Capturer) Capture(ctx context.Context, h domain.Hold) error {
	if _, err := c.Processor.CaptureHold(ctx, h.ExternalID, "capture-"+h.ID.String()); err != nil {
		details, gerr := c.Processor.GetHold(ctx, h.ExternalID)
		if gerr != nil || details.Status != payments.ProcessorHoldSucceeded {
			return err
		}
		log.Info().Str("hold_id", h.ID.String()).Str("external_id", h.ExternalID).Msg("hold already captured at processor")
	}
	c.markCaptured(ctx, h)
	return nil
}

// markCaptured writes succeeded locally. Money has moved at this point, so a
// failing write is retried and finally queued rather than surfaced.
func (c *Capturer) markCaptured(ctx context.Context, h domain.Hold) {
	attempts := c.WriteAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := c.WriteBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(backoff * time.Duration(i))
		}
		if _, err = Transition(ctx, c.DB, h.ExternalID, domain.HoldStatusSucceeded); err == nil {
			return
		}
	}
	log.Error().Err(err).Str("hold_id", h.ID.String()).Str("external_id", h.ExternalID).
		Msg("hold captured at processor but local status write failed")
	if c.Recovery != nil {
		_ = c.Recovery.Enqueue(context.WithoutCancel(ctx), recovery.KindConvergeHoldCaptured, h.ID, err)
	}
}

// Converge is the recovery handler for a captured hold whose local write was lost.
func (c *Capturer) Converge(ctx context.Context, holdID uuid.UUID) error {
	var h domain.Hold
	if err := c.DB.WithContext(ctx).Where("id = ?", holdID).First(&h).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payments.ErrHoldNotFound
		}
		return err
	}
	_, err := Transition(ctx, c.DB, h.ExternalID, domain.HoldStatusSucceeded)
	return err
}
