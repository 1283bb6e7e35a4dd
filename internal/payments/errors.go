package payments

import (
	"errors"
	"fmt"
)

// Kind tags every error the payment core surfaces. Callers switch on it
// instead of inspecting messages.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindProcessor
	KindProcessorUnavailable
	KindInsufficientSettlement
	KindSignatureVerification
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindProcessor:
		return "processor_error"
	case KindProcessorUnavailable:
		return "processor_unavailable"
	case KindInsufficientSettlement:
		return "insufficient_settlement_amount"
	case KindSignatureVerification:
		return "signature_verification_failed"
	default:
		return "internal"
	}
}

// Error is the tagged error returned by every payment operation.
// Code identifies the specific condition within a Kind ("amount_too_small").
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and code, so sentinels work with errors.Is
// even after being wrapped with a cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Wrap returns a copy of a sentinel carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

// WithMessage returns a copy of a sentinel with a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: msg, Err: e.Err}
}

var (
	ErrInvalidInput                 = &Error{Kind: KindValidation, Code: "invalid_input", Message: "Invalid input"}
	ErrAmountTooSmall               = &Error{Kind: KindValidation, Code: "amount_too_small", Message: "Amount is below the minimum charge"}
	ErrRequestNotFound              = &Error{Kind: KindNotFound, Code: "request_not_found", Message: "Request not found"}
	ErrHoldNotFound                 = &Error{Kind: KindNotFound, Code: "hold_not_found", Message: "Hold not found"}
	ErrPayoutAccountNotFound        = &Error{Kind: KindNotFound, Code: "payout_account_not_found", Message: "Payout account not found or payouts are not enabled"}
	ErrForbidden                    = &Error{Kind: KindForbidden, Code: "forbidden", Message: "User is Forbidden from performing this action"}
	ErrProcessor                    = &Error{Kind: KindProcessor, Code: "processor_error", Message: "Payment processor rejected the operation"}
	ErrProcessorUnavailable         = &Error{Kind: KindProcessorUnavailable, Code: "processor_unavailable", Message: "Payment processor unavailable"}
	ErrInsufficientSettlementAmount = &Error{Kind: KindInsufficientSettlement, Code: "insufficient_settlement_amount", Message: "Fees exceed the captured amount"}
	ErrSignatureVerificationFailed  = &Error{Kind: KindSignatureVerification, Code: "signature_verification_failed", Message: "Webhook signature verification failed"}
)

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}
