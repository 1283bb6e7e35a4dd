// Package paymentstest provides an in-memory payments.Processor for tests.
package paymentstest

import (
	"context"
	"fmt"
	"sync"

	"cleanup-backend/internal/payments"
)

type fakeIntent struct {
	details  payments.HoldDetails
	captures int
}

// FakeProcessor records calls and keeps processor-side state in memory.
// Fail* maps let a test inject an error for a specific external id.
type FakeProcessor struct {
	mu sync.Mutex

	intents   map[string]*fakeIntent
	accounts  map[string]payments.AccountDetails
	transfers map[string]payments.TransferDetails
	seq       int

	CreateHoldErr     error
	CreateTransferErr error
	CaptureErr        map[string]error
	GetAccountErr     error

	CreateHoldCalls  int
	CaptureCalls     []string
	CancelCalls      []string
	TransferRequests []payments.TransferRequest
	IdempotencyKeys  []string
}

func New() *FakeProcessor {
	return &FakeProcessor{
		intents:    map[string]*fakeIntent{},
		accounts:   map[string]payments.AccountDetails{},
		transfers:  map[string]payments.TransferDetails{},
		CaptureErr: map[string]error{},
	}
}

func (f *FakeProcessor) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_test_%d", prefix, f.seq)
}

// SetHoldStatus changes the processor-side status of an intent.
func (f *FakeProcessor) SetHoldStatus(externalID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in, ok := f.intents[externalID]; ok {
		in.details.Status = status
	}
}

// AddIntent registers an intent the fake did not create itself.
func (f *FakeProcessor) AddIntent(externalID string, amount int64, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[externalID] = &fakeIntent{details: payments.HoldDetails{
		ExternalID: externalID, Status: status, AmountMinorUnits: amount, Currency: "usd",
	}}
}

// SetAccount registers or replaces a connected account.
func (f *FakeProcessor) SetAccount(acct payments.AccountDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[acct.ExternalID] = acct
}

func (f *FakeProcessor) Captures(externalID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in, ok := f.intents[externalID]; ok {
		return in.captures
	}
	return 0
}

func (f *FakeProcessor) CreateHold(ctx context.Context, req payments.HoldRequest) (payments.HoldHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateHoldCalls++
	f.IdempotencyKeys = append(f.IdempotencyKeys, req.IdempotencyKey)
	if f.CreateHoldErr != nil {
		return payments.HoldHandle{}, f.CreateHoldErr
	}
	id := f.next("pi")
	f.intents[id] = &fakeIntent{details: payments.HoldDetails{
		ExternalID:       id,
		Status:           "requires_payment_method",
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         req.Currency,
		Metadata:         req.Metadata,
	}}
	return payments.HoldHandle{ExternalID: id, ClientHandle: id + "_secret", Status: "requires_payment_method"}, nil
}

func (f *FakeProcessor) CaptureHold(ctx context.Context, externalID, idempotencyKey string) (payments.HoldDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CaptureCalls = append(f.CaptureCalls, externalID)
	if err := f.CaptureErr[externalID]; err != nil {
		return payments.HoldDetails{}, err
	}
	in, ok := f.intents[externalID]
	if !ok {
		return payments.HoldDetails{}, payments.ErrProcessor.WithMessage("No such payment_intent: " + externalID)
	}
	if in.details.Status == payments.ProcessorHoldSucceeded {
		return payments.HoldDetails{}, payments.ErrProcessor.WithMessage("This PaymentIntent has already been captured")
	}
	in.captures++
	in.details.Status = payments.ProcessorHoldSucceeded
	in.details.AmountReceived = in.details.AmountMinorUnits
	return in.details, nil
}

func (f *FakeProcessor) CancelHold(ctx context.Context, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CancelCalls = append(f.CancelCalls, externalID)
	if in, ok := f.intents[externalID]; ok {
		in.details.Status = payments.ProcessorHoldCanceled
	}
	return nil
}

func (f *FakeProcessor) GetHold(ctx context.Context, externalID string) (payments.HoldDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.intents[externalID]
	if !ok {
		return payments.HoldDetails{}, payments.ErrProcessor.WithMessage("No such payment_intent: " + externalID)
	}
	return in.details, nil
}

func (f *FakeProcessor) CreateTransfer(ctx context.Context, req payments.TransferRequest) (payments.TransferDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TransferRequests = append(f.TransferRequests, req)
	if f.CreateTransferErr != nil {
		return payments.TransferDetails{}, f.CreateTransferErr
	}
	for _, t := range f.transfers {
		if t.Metadata[payments.MetaPayoutID] != "" && t.Metadata[payments.MetaPayoutID] == req.Metadata[payments.MetaPayoutID] {
			return t, nil
		}
	}
	id := f.next("tr")
	t := payments.TransferDetails{
		ExternalID:       id,
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         req.Currency,
		Destination:      req.DestinationAccount,
		Metadata:         req.Metadata,
	}
	f.transfers[id] = t
	return t, nil
}

func (f *FakeProcessor) CreateAccount(ctx context.Context, req payments.AccountRequest) (payments.AccountDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct := payments.AccountDetails{ExternalID: f.next("acct")}
	f.accounts[acct.ExternalID] = acct
	return acct, nil
}

func (f *FakeProcessor) GetAccount(ctx context.Context, externalID string) (payments.AccountDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetAccountErr != nil {
		return payments.AccountDetails{}, f.GetAccountErr
	}
	acct, ok := f.accounts[externalID]
	if !ok {
		return payments.AccountDetails{}, payments.ErrProcessor.WithMessage("No such account: " + externalID)
	}
	return acct, nil
}

func (f *FakeProcessor) CreateOnboardingLink(ctx context.Context, req payments.OnboardingLinkRequest) (string, error) {
	return "https://connect.example.test/setup/" + req.AccountID, nil
}
