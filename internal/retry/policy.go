// Package retry holds the fixed-interval retry policies used by the
// WiFi and broker connection loops.
package retry

import (
	"context"
	"time"

	retrygo "github.com/avast/retry-go/v4"
)

// Policy retries an operation at a fixed interval. MaxAttempts of zero
// retries until the operation succeeds or the context is done.
type Policy struct {
	MaxAttempts uint
	Interval    time.Duration
}

// Bounded returns a policy that gives up after attempts tries
func Bounded(attempts uint, interval time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Interval: interval}
}

// Forever returns a policy that never gives up
func Forever(interval time.Duration) Policy {
	return Policy{Interval: interval}
}

// Unbounded reports whether the policy retries until success
func (p Policy) Unbounded() bool {
	return p.MaxAttempts == 0
}

// Do runs fn until it succeeds or the policy is exhausted, returning the
// last error. onRetry, if not nil, is called after every failed attempt
// with the zero-based attempt number.
func (p Policy) Do(ctx context.Context, fn func() error, onRetry func(attempt uint, err error)) error {
	opts := []retrygo.Option{
		retrygo.Context(ctx),
		retrygo.Attempts(p.MaxAttempts),
		retrygo.Delay(p.Interval),
		retrygo.DelayType(retrygo.FixedDelay),
		retrygo.LastErrorOnly(true),
	}
	if onRetry != nil {
		opts = append(opts, retrygo.OnRetry(onRetry))
	}

	return retrygo.Do(fn, opts...)
}
