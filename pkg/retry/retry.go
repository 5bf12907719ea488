// Package retry runs idempotent boundary calls with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/okian/irwin/pkg/metrics"
)

// Default policy values.
const (
	defaultMaxTries        = 5
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = 2.0
	defaultJitter          = 0.5
)

// Policy bounds how an operation is retried.
type Policy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsed caps the total time spent retrying. Zero means no cap
	// beyond MaxTries and the context.
	MaxElapsed time.Duration
	// Jitter is the backoff randomization factor in [0, 1].
	Jitter float64
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxTries:        defaultMaxTries,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
		Jitter:          defaultJitter,
	}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// After asks for the next attempt to wait the given number of seconds
// instead of the backoff interval.
func After(seconds int) error {
	return backoff.RetryAfter(seconds)
}

// Do runs op until it succeeds, returns a permanent error, the policy is
// exhausted or ctx is done. Each retried attempt is counted under operation.
func Do(ctx context.Context, p Policy, operation string, op func(context.Context) error) error {
	_, err := Value(ctx, p, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, p Policy, operation string, op func(context.Context) (T, error)) (T, error) {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(p.tries()),
		backoff.WithNotify(func(error, time.Duration) {
			metrics.RecordRetry(operation)
		}),
	}
	if p.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(p.MaxElapsed))
	}

	return backoff.Retry(ctx, func() (T, error) {
		return op(ctx)
	}, opts...)
}

func (p Policy) tries() uint {
	if p.MaxTries == 0 {
		return 1
	}
	return p.MaxTries
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.Multiplier = defaultMultiplier
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Jitter >= 0 && p.Jitter <= 1 {
		b.RandomizationFactor = p.Jitter
	}
	return b
}
