package payments

import (
	"context"
)

// Processor-side authorization states reported back by GetHold / CaptureHold.
const (
	ProcessorHoldRequiresAction  = "requires_action"
	ProcessorHoldRequiresCapture = "requires_capture"
	ProcessorHoldSucceeded       = "succeeded"
	ProcessorHoldCanceled        = "canceled"
	ProcessorHoldProcessing      = "processing"
)

// Metadata keys attached to processor objects so asynchronous events can be
// correlated back to local rows.
const (
	MetaRequestID       = "request_id"
	MetaPayerUserID     = "payer_user_id"
	MetaHoldKind        = "kind"
	MetaHoldID          = "hold_id"
	MetaPerformerUserID = "performer_user_id"
	MetaPayoutID        = "payout_id"
	MetaPlatformFee     = "platform_fee"
	MetaProcessorFee    = "processor_fee"
	MetaSourceHoldID    = "source_hold_id"
	MetaUserID          = "user_id"
)

// HoldRequest opens a manual-capture authorization.
type HoldRequest struct {
	AmountMinorUnits int64
	Currency         string
	Metadata         map[string]string
	IdempotencyKey   string
}

// HoldHandle is what the payer's device needs to authenticate the charge.
type HoldHandle struct {
	ExternalID   string
	ClientHandle string
	Status       string
}

// HoldDetails is the processor's current view of an authorization.
type HoldDetails struct {
	ExternalID       string
	Status           string
	AmountMinorUnits int64
	AmountReceived   int64
	Currency         string
	Metadata         map[string]string
}

// TransferRequest moves net funds to a connected payout account.
type TransferRequest struct {
	AmountMinorUnits   int64
	Currency           string
	DestinationAccount string
	Metadata           map[string]string
	IdempotencyKey     string
}

type TransferDetails struct {
	ExternalID       string
	AmountMinorUnits int64
	Currency         string
	Destination      string
	Metadata         map[string]string
}

// AccountRequest creates a payout account for a performer.
type AccountRequest struct {
	Email          string
	Metadata       map[string]string
	IdempotencyKey string
}

type AccountDetails struct {
	ExternalID       string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// OnboardingLinkRequest asks for a hosted onboarding URL for an account.
type OnboardingLinkRequest struct {
	AccountID  string
	RefreshURL string
	ReturnURL  string
}

// Processor is the external payment service. Implementations return *Error
// values of KindProcessor or KindProcessorUnavailable.
type Processor interface {
	CreateHold(ctx context.Context, req HoldRequest) (HoldHandle, error)
	CaptureHold(ctx context.Context, externalID, idempotencyKey string) (HoldDetails, error)
	CancelHold(ctx context.Context, externalID string) error
	GetHold(ctx context.Context, externalID string) (HoldDetails, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (TransferDetails, error)
	CreateAccount(ctx context.Context, req AccountRequest) (AccountDetails, error)
	GetAccount(ctx context.Context, externalID string) (AccountDetails, error)
	CreateOnboardingLink(ctx context.Context, req OnboardingLinkRequest) (string, error)
}
