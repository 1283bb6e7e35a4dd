package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// HoldKind distinguishes what a hold pays for.
type HoldKind string

const (
	HoldKindDonation    HoldKind = "donation"
	HoldKindRequestCost HoldKind = "request_cost"
)

func (k HoldKind) Valid() bool {
	return k == HoldKindDonation || k == HoldKindRequestCost
}

// HoldStatus mirrors the processor-side authorization state.
type HoldStatus string

const (
	HoldStatusCreated         HoldStatus = "created"
	HoldStatusRequiresCapture HoldStatus = "requires_capture"
	HoldStatusSucceeded       HoldStatus = "succeeded"
	HoldStatusCanceled        HoldStatus = "canceled"
	HoldStatusFailed          HoldStatus = "failed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s HoldStatus) Terminal() bool {
	return s == HoldStatusSucceeded || s == HoldStatusCanceled || s == HoldStatusFailed
}

// HoldPredecessors lists, for each target status, the statuses it may be reached from.
// A target that is absent here can never be entered through a transition.
var HoldPredecessors = map[HoldStatus][]HoldStatus{
	HoldStatusRequiresCapture: {HoldStatusCreated},
	HoldStatusSucceeded:       {HoldStatusCreated, HoldStatusRequiresCapture},
	HoldStatusCanceled:        {HoldStatusCreated, HoldStatusRequiresCapture},
	HoldStatusFailed:          {HoldStatusCreated, HoldStatusRequiresCapture},
}

// Hold is the local mirror of an authorization placed on a payer's funds.
type Hold struct {
	ID               uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ExternalID       string         `gorm:"column:external_id;uniqueIndex;not null" json:"external_id"`
	PayerUserID      uuid.UUID      `gorm:"column:payer_user_id;type:uuid;not null;index" json:"payer_user_id"`
	RequestID        uuid.UUID      `gorm:"column:request_id;type:uuid;not null;index" json:"request_id"`
	AmountMinorUnits int64          `gorm:"column:amount_minor_units;not null;check:amount_minor_units > 0" json:"amount_minor_units"`
	Currency         string         `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Kind             HoldKind       `gorm:"column:kind;type:varchar(20);not null" json:"kind"`
	Status           HoldStatus     `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	Metadata         datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	CreatedAt        time.Time      `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt        time.Time      `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Hold) TableName() string {
	return "Holds"
}

func (h *Hold) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.Status == "" {
		h.Status = HoldStatusCreated
	}
	return nil
}
