// Package retryutil wraps github.com/cenkalti/backoff/v4 into the single
// helper every intermediary/oracle call site in this module uses, in place
// of the teacher's scattered ad-hoc "for attempt := range maxRetries"
// loops (src/chainadapter/adapter.go, bitcoin/adapter.go).
package retryutil

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/arcsign/swapcore/chainkit"
)

// Policy configures the exponential backoff used by Do.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

// DefaultPolicy mirrors the teacher's RPC client defaults: quick first
// retry, capped growth, bounded total wall time.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsedTime:  30 * time.Second,
		MaxRetries:      6,
	}
}

// permanent wraps an error to signal backoff.Retry to stop immediately.
type permanent struct{ err error }

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Do runs fn under the given policy, retrying while fn returns a
// retryable error (per chainkit.IsRetryable, or any error not explicitly
// classified as non-retryable). It stops immediately, without retrying,
// when fn returns an error classified NonRetryable or UserIntervention,
// or when ctx is cancelled.
func Do(ctx context.Context, policy Policy, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.MaxElapsedTime = policy.MaxElapsedTime

	var bo backoff.BackOff = b
	if policy.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, policy.MaxRetries)
	}
	bo = backoff.WithContext(bo, ctx)

	op := func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var ce *chainkit.ChainError
		if errors.As(err, &ce) && ce.Classification != chainkit.Retryable {
			return &permanent{err: err}
		}
		return err
	}

	err := backoff.Retry(op, bo)
	if err == nil {
		return nil
	}
	var p *permanent
	if errors.As(err, &p) {
		return p.err
	}
	return err
}
