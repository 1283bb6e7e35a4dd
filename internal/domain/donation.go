package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Donation is the business record of a contribution towards a cleanup request.
// AmountMajorUnits equals the linked hold's minor-unit amount divided by 100.
type Donation struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RequestID        uuid.UUID       `gorm:"column:request_id;type:uuid;not null;index" json:"request_id"`
	DonorUserID      uuid.UUID       `gorm:"column:donor_user_id;type:uuid;not null" json:"donor_user_id"`
	AmountMajorUnits decimal.Decimal `gorm:"column:amount_major_units;type:decimal(12,2);not null" json:"amount_major_units"`
	HoldID           *uuid.UUID      `gorm:"column:hold_id;type:uuid;uniqueIndex" json:"hold_id"`
	CreatedAt        time.Time       `gorm:"column:createdAt" json:"createdAt"`
}

func (Donation) TableName() string {
	return "Donations"
}

func (d *Donation) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// MajorUnits converts a minor-unit amount (cents) into major units.
func MajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
