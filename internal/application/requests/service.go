package requests

import (
	"context"
	"errors"
	"time"

	"cleanup-backend/internal/domain"
	"cleanup-backend/internal/payments"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Summary is the slice of a cleanup request the payment core needs.
type Summary struct {
	ID        uuid.UUID
	Cost      decimal.Decimal
	Category  string
	CreatedBy uuid.UUID
}

// Service is the gorm-backed request-lifecycle collaborator.
type Service struct {
	DB *gorm.DB
}

// WithTx returns a Service bound to an open transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{DB: tx}
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (Summary, error) {
	var req domain.CleanupRequest
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Summary{}, payments.ErrRequestNotFound
		}
		return Summary{}, err
	}
	return Summary{ID: req.ID, Cost: req.Cost, Category: req.Category, CreatedBy: req.CreatedBy}, nil
}

// MarkSettled records the performer and flags the request settled. Re-marking is a no-op.
func (s *Service) MarkSettled(ctx context.Context, id, performerUserID uuid.UUID) error {
	now := time.Now().UTC()
	res := s.DB.WithContext(ctx).Model(&domain.CleanupRequest{}).
		Where("id = ? AND settled = ?", id, false).
		Updates(map[string]interface{}{
			"settled":           true,
			"settled_at":        now,
			"performer_user_id": performerUserID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.DB.WithContext(ctx).Model(&domain.CleanupRequest{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return payments.ErrRequestNotFound
		}
	}
	return nil
}

// IncrementContributed atomically adds delta (major units) to the running total.
func (s *Service) IncrementContributed(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	res := s.DB.WithContext(ctx).Model(&domain.CleanupRequest{}).
		Where("id = ?", id).
		Update("total_contributed", gorm.Expr("total_contributed + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return payments.ErrRequestNotFound
	}
	return nil
}

// DecrementContributed atomically subtracts delta, clamping the total at zero.
func (s *Service) DecrementContributed(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	res := s.DB.WithContext(ctx).Model(&domain.CleanupRequest{}).
		Where("id = ?", id).
		Update("total_contributed", gorm.Expr(
			"CASE WHEN total_contributed - ? < 0 THEN 0 ELSE total_contributed - ? END", delta, delta,
		))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return payments.ErrRequestNotFound
	}
	return nil
}
