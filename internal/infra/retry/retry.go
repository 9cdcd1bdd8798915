// Package retry wraps outbound calls in bounded exponential backoff with
// jitter.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"rust-vip-platform/internal/config"
	"rust-vip-platform/internal/domain/ports/adapter"
)

// Policy bounds a retried call. MaxAttempts counts the first try.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	Jitter       float64 // randomization factor, 0.15 means ±15%
	MaxDelay     time.Duration
}

// DefaultPolicy: 3 tries, 500ms initial delay, factor 2, ±15% jitter, 5s cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   2,
		Jitter:       0.15,
		MaxDelay:     5 * time.Second,
	}
}

func FromConfig(c config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: c.InitialDelay,
		Multiplier:   c.Multiplier,
		Jitter:       c.Jitter,
		MaxDelay:     c.MaxDelay,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.RandomizationFactor = p.Jitter
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Notify is called before each retry with the error that caused it.
type Notify func(err error, attempt int, wait time.Duration)

// Do runs op until it succeeds, returns a permanent error or the policy runs
// out of attempts. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, notify Notify) error {
	attempt := 0
	operation := func() error {
		attempt++
		return Classify(op(ctx))
	}
	var n backoff.Notify
	if notify != nil {
		n = func(err error, wait time.Duration) { notify(err, attempt, wait) }
	}
	return backoff.RetryNotify(operation, p.backOff(ctx), n)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Classify turns errors that a retry cannot fix into permanent ones:
// provider 4xx answers (except 429) and context cancellation. Network errors
// and 5xx stay retryable.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	var pe *adapter.ProviderError
	if errors.As(err, &pe) && !pe.Transient() {
		return backoff.Permanent(err)
	}
	return err
}
