package payments

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds every processor call: each attempt gets its own timeout,
// transient failures are retried up to Attempts times with linear backoff.
type RetryPolicy struct {
	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
}

// DefaultRetryPolicy is used when configuration leaves fields unset.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Timeout: 10 * time.Second, Backoff: 250 * time.Millisecond}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryPolicy.Attempts
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultRetryPolicy.Timeout
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// RetryingProcessor decorates a Processor with a RetryPolicy.
type RetryingProcessor struct {
	Next   Processor
	Policy RetryPolicy
}

func NewRetryingProcessor(next Processor, policy RetryPolicy) *RetryingProcessor {
	return &RetryingProcessor{Next: next, Policy: policy.normalized()}
}

func withRetry[T any](ctx context.Context, policy RetryPolicy, op string, fn func(context.Context) (T, error)) (T, error) {
	policy = policy.normalized()
	var zero T
	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		out, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return out, nil
		}
		if !retryable(err) {
			return zero, err
		}
		lastErr = err
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Int("max_attempts", policy.Attempts).Msg("processor call failed, retrying")
		if attempt == policy.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ErrProcessorUnavailable.Wrap(ctx.Err())
		case <-time.After(policy.Backoff * time.Duration(attempt)):
		}
	}
	return zero, ErrProcessorUnavailable.Wrap(lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return KindOf(err) == KindProcessorUnavailable
}

func (r *RetryingProcessor) CreateHold(ctx context.Context, req HoldRequest) (HoldHandle, error) {
	return withRetry(ctx, r.Policy, "create_hold", func(ctx context.Context) (HoldHandle, error) {
		return r.Next.CreateHold(ctx, req)
	})
}

func (r *RetryingProcessor) CaptureHold(ctx context.Context, externalID, idempotencyKey string) (HoldDetails, error) {
	return withRetry(ctx, r.Policy, "capture_hold", func(ctx context.Context) (HoldDetails, error) {
		return r.Next.CaptureHold(ctx, externalID, idempotencyKey)
	})
}

func (r *RetryingProcessor) CancelHold(ctx context.Context, externalID string) error {
	_, err := withRetry(ctx, r.Policy, "cancel_hold", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.Next.CancelHold(ctx, externalID)
	})
	return err
}

func (r *RetryingProcessor) GetHold(ctx context.Context, externalID string) (HoldDetails, error) {
	return withRetry(ctx, r.Policy, "get_hold", func(ctx context.Context) (HoldDetails, error) {
		return r.Next.GetHold(ctx, externalID)
	})
}

func (r *RetryingProcessor) CreateTransfer(ctx context.Context, req TransferRequest) (TransferDetails, error) {
	return withRetry(ctx, r.Policy, "create_transfer", func(ctx context.Context) (TransferDetails, error) {
		return r.Next.CreateTransfer(ctx, req)
	})
}

func (r *RetryingProcessor) CreateAccount(ctx context.Context, req AccountRequest) (AccountDetails, error) {
	return withRetry(ctx, r.Policy, "create_account", func(ctx context.Context) (AccountDetails, error) {
		return r.Next.CreateAccount(ctx, req)
	})
}

func (r *RetryingProcessor) GetAccount(ctx context.Context, externalID string) (AccountDetails, error) {
	return withRetry(ctx, r.Policy, "get_account", func(ctx context.Context) (AccountDetails, error) {
		return r.Next.GetAccount(ctx, externalID)
	})
}

func (r *RetryingProcessor) CreateOnboardingLink(ctx context.Context, req OnboardingLinkRequest) (string, error) {
	return withRetry(ctx, r.Policy, "create_onboarding_link", func(ctx context.Context) (string, error) {
		return r.Next.CreateOnboardingLink(ctx, req)
	})
}
