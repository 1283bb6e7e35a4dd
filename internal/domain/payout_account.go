package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayoutAccount maps a performer to the processor account their payouts land in.
type PayoutAccount struct {
	UserID            uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	ExternalAccountID string    `gorm:"column:external_account_id;uniqueIndex;not null" json:"external_account_id"`
	ChargesEnabled    bool      `gorm:"column:charges_enabled;not null;default:false" json:"charges_enabled"`
	PayoutsEnabled    bool      `gorm:"column:payouts_enabled;not null;default:false" json:"payouts_enabled"`
	DetailsSubmitted  bool      `gorm:"column:details_submitted;not null;default:false" json:"details_submitted"`
	CreatedAt         time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (PayoutAccount) TableName() string {
	return "PayoutAccounts"
}
