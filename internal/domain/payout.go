package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "pending"
	PayoutStatusPaid    PayoutStatus = "paid"
	PayoutStatusFailed  PayoutStatus = "failed"
)

// PayoutPredecessors lists the statuses each payout status may be entered from.
// A reversal can fail a payout that was already reported paid.
var PayoutPredecessors = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPaid:   {PayoutStatusPending},
	PayoutStatusFailed: {PayoutStatusPending, PayoutStatusPaid},
}

// Payout is the transfer of a request's settled funds to its performer.
// NetAmountMinorUnits + PlatformFeeMinorUnits + ProcessorFeeMinorUnits equals the captured total.
type Payout struct {
	ID                     uuid.UUID    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ExternalID             *string      `gorm:"column:external_id;uniqueIndex" json:"external_id"`
	RequestID              uuid.UUID    `gorm:"column:request_id;type:uuid;not null;uniqueIndex" json:"request_id"`
	PerformerUserID        uuid.UUID    `gorm:"column:performer_user_id;type:uuid;not null;index" json:"performer_user_id"`
	NetAmountMinorUnits    int64        `gorm:"column:net_amount_minor_units;not null" json:"net_amount_minor_units"`
	PlatformFeeMinorUnits  int64        `gorm:"column:platform_fee_minor_units;not null" json:"platform_fee_minor_units"`
	ProcessorFeeMinorUnits int64        `gorm:"column:processor_fee_minor_units;not null" json:"processor_fee_minor_units"`
	Currency               string       `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Status                 PayoutStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	SourceHoldID           *uuid.UUID   `gorm:"column:source_hold_id;type:uuid" json:"source_hold_id"`
	CreatedAt              time.Time    `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt              time.Time    `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Payout) TableName() string {
	return "Payouts"
}

func (p *Payout) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = PayoutStatusPending
	}
	return nil
}

// TotalMinorUnits is the captured amount the payout was computed from.
func (p *Payout) TotalMinorUnits() int64 {
	return p.NetAmountMinorUnits + p.PlatformFeeMinorUnits + p.ProcessorFeeMinorUnits
}
