package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

type stripeTransferAPI interface {
	New(params *stripe.TransferParams) (*stripe.Transfer, error)
}

type stripeAccountAPI interface {
	New(params *stripe.AccountParams) (*stripe.Account, error)
	GetByID(id string, params *stripe.AccountParams) (*stripe.Account, error)
}

type stripeAccountLinkAPI interface {
	New(params *stripe.AccountLinkParams) (*stripe.AccountLink, error)
}

// StripeClients lets tests replace individual Stripe resource clients.
type StripeClients struct {
	PaymentIntents stripePaymentIntentAPI
	Transfers      stripeTransferAPI
	Accounts       stripeAccountAPI
	AccountLinks   stripeAccountLinkAPI
}

// StripeConfig configures StripeProcessor. Stripe's own network retries are
// disabled; RetryingProcessor owns the retry policy.
type StripeConfig struct {
	SecretKey  string
	HTTPClient *http.Client
	Clients    *StripeClients
}

// StripeProcessor implements Processor on Stripe PaymentIntents (manual
// capture), Transfers and Connect Express accounts.
type StripeProcessor struct {
	api StripeClients
}

func NewStripeProcessor(cfg StripeConfig) (*StripeProcessor, error) {
	var clients StripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		key := strings.TrimSpace(cfg.SecretKey)
		if key == "" {
			return nil, errors.New("stripe: secret key is required")
		}
		httpClient := cfg.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: 30 * time.Second}
		}
		backendCfg := &stripe.BackendConfig{
			HTTPClient:        httpClient,
			MaxNetworkRetries: stripe.Int64(0),
		}
		sc := client.New(key, &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
		})
		clients = StripeClients{
			PaymentIntents: sc.PaymentIntents,
			Transfers:      sc.Transfers,
			Accounts:       sc.Accounts,
			AccountLinks:   sc.AccountLinks,
		}
	}
	if clients.PaymentIntents == nil || clients.Transfers == nil || clients.Accounts == nil || clients.AccountLinks == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}
	return &StripeProcessor{api: clients}, nil
}

func (p *StripeProcessor) CreateHold(ctx context.Context, req HoldRequest) (HoldHandle, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountMinorUnits),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Metadata:      copyMetadata(req.Metadata),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return HoldHandle{}, classifyStripeError("create payment intent", err)
	}
	log.Info().Str("payment_intent", pi.ID).Int64("amount", pi.Amount).Msg("stripe payment intent created")
	return HoldHandle{ExternalID: pi.ID, ClientHandle: pi.ClientSecret, Status: string(pi.Status)}, nil
}

func (p *StripeProcessor) CaptureHold(ctx context.Context, externalID, idempotencyKey string) (HoldDetails, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	pi, err := p.api.PaymentIntents.Capture(externalID, params)
	if err != nil {
		return HoldDetails{}, classifyStripeError("capture payment intent", err)
	}
	log.Info().Str("payment_intent", pi.ID).Int64("amount_received", pi.AmountReceived).Msg("stripe payment intent captured")
	return holdDetailsFromIntent(pi), nil
}

func (p *StripeProcessor) CancelHold(ctx context.Context, externalID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := p.api.PaymentIntents.Cancel(externalID, params); err != nil {
		return classifyStripeError("cancel payment intent", err)
	}
	return nil
}

func (p *StripeProcessor) GetHold(ctx context.Context, externalID string) (HoldDetails, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.api.PaymentIntents.Get(externalID, params)
	if err != nil {
		return HoldDetails{}, classifyStripeError("get payment intent", err)
	}
	return holdDetailsFromIntent(pi), nil
}

func (p *StripeProcessor) CreateTransfer(ctx context.Context, req TransferRequest) (TransferDetails, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.AmountMinorUnits),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Destination: stripe.String(req.DestinationAccount),
		Metadata:    copyMetadata(req.Metadata),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	t, err := p.api.Transfers.New(params)
	if err != nil {
		return TransferDetails{}, classifyStripeError("create transfer", err)
	}
	log.Info().Str("transfer", t.ID).Int64("amount", t.Amount).Str("destination", req.DestinationAccount).Msg("stripe transfer created")
	out := TransferDetails{
		ExternalID:       t.ID,
		AmountMinorUnits: t.Amount,
		Currency:         string(t.Currency),
		Metadata:         t.Metadata,
	}
	if t.Destination != nil {
		out.Destination = t.Destination.ID
	}
	return out, nil
}

func (p *StripeProcessor) CreateAccount(ctx context.Context, req AccountRequest) (AccountDetails, error) {
	params := &stripe.AccountParams{
		Type: stripe.String(string(stripe.AccountTypeExpress)),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
		Metadata: copyMetadata(req.Metadata),
	}
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	acct, err := p.api.Accounts.New(params)
	if err != nil {
		return AccountDetails{}, classifyStripeError("create account", err)
	}
	return accountDetails(acct), nil
}

func (p *StripeProcessor) GetAccount(ctx context.Context, externalID string) (AccountDetails, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx
	acct, err := p.api.Accounts.GetByID(externalID, params)
	if err != nil {
		return AccountDetails{}, classifyStripeError("get account", err)
	}
	return accountDetails(acct), nil
}

func (p *StripeProcessor) CreateOnboardingLink(ctx context.Context, req OnboardingLinkRequest) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(req.AccountID),
		RefreshURL: stripe.String(req.RefreshURL),
		ReturnURL:  stripe.String(req.ReturnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx
	link, err := p.api.AccountLinks.New(params)
	if err != nil {
		return "", classifyStripeError("create account link", err)
	}
	return link.URL, nil
}

func holdDetailsFromIntent(pi *stripe.PaymentIntent) HoldDetails {
	if pi == nil {
		return HoldDetails{}
	}
	return HoldDetails{
		ExternalID:       pi.ID,
		Status:           string(pi.Status),
		AmountMinorUnits: pi.Amount,
		AmountReceived:   pi.AmountReceived,
		Currency:         string(pi.Currency),
		Metadata:         pi.Metadata,
	}
}

func accountDetails(acct *stripe.Account) AccountDetails {
	if acct == nil {
		return AccountDetails{}
	}
	return AccountDetails{
		ExternalID:       acct.ID,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}
}

// classifyStripeError separates rejections (surfaced verbatim, never retried)
// from transient failures (rate limits, 5xx, transport errors).
func classifyStripeError(op string, err error) error {
	wrapped := fmt.Errorf("stripe: %s: %w", op, err)
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= 500 || se.Type == stripe.ErrorTypeAPI {
			return ErrProcessorUnavailable.Wrap(wrapped)
		}
		msg := se.Msg
		if msg == "" {
			msg = ErrProcessor.Message
		}
		return ErrProcessor.WithMessage(msg).Wrap(wrapped)
	}
	return ErrProcessorUnavailable.Wrap(wrapped)
}

func copyMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
