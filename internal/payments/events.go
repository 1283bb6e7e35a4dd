package payments

import (
	"encoding/json"
	"errors"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// EventKind is the processor-neutral name of an asynchronous event.
type EventKind string

const (
	EventAccountUpdated               EventKind = "account.updated"
	EventAuthorizationRequiresCapture EventKind = "authorization.requires_capture"
	EventAuthorizationSucceeded       EventKind = "authorization.succeeded"
	EventAuthorizationFailed          EventKind = "authorization.failed"
	EventAuthorizationCanceled        EventKind = "authorization.canceled"
	EventTransferCreated              EventKind = "transfer.created"
	EventTransferPaid                 EventKind = "transfer.paid"
	EventTransferFailed               EventKind = "transfer.failed"
)

var stripeEventKinds = map[stripe.EventType]EventKind{
	"account.updated":                          EventAccountUpdated,
	"payment_intent.amount_capturable_updated": EventAuthorizationRequiresCapture,
	"payment_intent.succeeded":                 EventAuthorizationSucceeded,
	"payment_intent.payment_failed":            EventAuthorizationFailed,
	"payment_intent.canceled":                  EventAuthorizationCanceled,
	"transfer.created":                         EventTransferCreated,
	"transfer.paid":                            EventTransferPaid,
	"transfer.failed":                          EventTransferFailed,
	"transfer.reversed":                        EventTransferFailed,
}

// Event is a verified, decoded processor event. Exactly one payload is set
// for recognized kinds; Kind is empty for types this service ignores.
type Event struct {
	ID       string
	Type     string
	Kind     EventKind
	Hold     *HoldDetails
	Transfer *TransferDetails
	Account  *AccountDetails
}

// VerifyStripeSignature checks the Stripe-Signature header over the raw body.
func VerifyStripeSignature(payload []byte, header, secret string) error {
	if header == "" || secret == "" {
		return ErrSignatureVerificationFailed.Wrap(errors.New("missing signature or secret"))
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, header, secret, webhook.DefaultTolerance); err != nil {
		return ErrSignatureVerificationFailed.Wrap(err)
	}
	return nil
}

// ParseStripeEvent decodes a webhook body into an Event.
func ParseStripeEvent(payload []byte) (Event, error) {
	var se stripe.Event
	if err := json.Unmarshal(payload, &se); err != nil {
		return Event{}, ErrInvalidInput.WithMessage("malformed event body").Wrap(err)
	}
	ev := Event{ID: se.ID, Type: string(se.Type)}
	kind, ok := stripeEventKinds[se.Type]
	if !ok {
		return ev, nil
	}
	if se.Data == nil || len(se.Data.Raw) == 0 {
		return Event{}, ErrInvalidInput.WithMessage("event has no data object")
	}
	ev.Kind = kind

	switch kind {
	case EventAccountUpdated:
		var acct stripe.Account
		if err := json.Unmarshal(se.Data.Raw, &acct); err != nil {
			return Event{}, ErrInvalidInput.WithMessage("malformed account object").Wrap(err)
		}
		ev.Account = &AccountDetails{
			ExternalID:       acct.ID,
			ChargesEnabled:   acct.ChargesEnabled,
			PayoutsEnabled:   acct.PayoutsEnabled,
			DetailsSubmitted: acct.DetailsSubmitted,
		}
	case EventTransferCreated, EventTransferPaid, EventTransferFailed:
		var tr stripe.Transfer
		if err := json.Unmarshal(se.Data.Raw, &tr); err != nil {
			return Event{}, ErrInvalidInput.WithMessage("malformed transfer object").Wrap(err)
		}
		details := &TransferDetails{
			ExternalID:       tr.ID,
			AmountMinorUnits: tr.Amount,
			Currency:         string(tr.Currency),
			Metadata:         tr.Metadata,
		}
		if tr.Destination != nil {
			details.Destination = tr.Destination.ID
		}
		ev.Transfer = details
	default:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(se.Data.Raw, &pi); err != nil {
			return Event{}, ErrInvalidInput.WithMessage("malformed payment intent object").Wrap(err)
		}
		ev.Hold = &HoldDetails{
			ExternalID:       pi.ID,
			Status:           string(pi.Status),
			AmountMinorUnits: pi.Amount,
			AmountReceived:   pi.AmountReceived,
			Currency:         string(pi.Currency),
			Metadata:         pi.Metadata,
		}
	}
	if (ev.Hold != nil && ev.Hold.ExternalID == "") || (ev.Transfer != nil && ev.Transfer.ExternalID == "") ||
		(ev.Account != nil && ev.Account.ExternalID == "") {
		return Event{}, ErrInvalidInput.WithMessage("event object has no id")
	}
	return ev, nil
}
