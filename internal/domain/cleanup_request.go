package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CleanupRequest is the request-lifecycle record the payment core reads and settles.
// Only the columns the payment core touches are mapped here.
type CleanupRequest struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Cost             decimal.Decimal `gorm:"column:cost;type:decimal(12,2);not null;default:0" json:"cost"`
	Category         string          `gorm:"column:category;not null" json:"category"`
	CreatedBy        uuid.UUID       `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	TotalContributed decimal.Decimal `gorm:"column:total_contributed;type:decimal(12,2);not null;default:0" json:"total_contributed"`
	PerformerUserID  *uuid.UUID      `gorm:"column:performer_user_id;type:uuid" json:"performer_user_id"`
	Settled          bool            `gorm:"column:settled;not null;default:false" json:"settled"`
	SettledAt        *time.Time      `gorm:"column:settled_at" json:"settled_at"`
	CreatedAt        time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt        time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (CleanupRequest) TableName() string {
	return "Requests"
}

func (r *CleanupRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
