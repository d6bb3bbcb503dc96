package smartsheet

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy controls retry behavior for remote calls.
//
// An operation is attempted up to MaxAttempts times in total. Between
// attempts the delay starts at BaseDelay and grows by Multiplier, jittered
// by RandomizationFactor, capped at MaxDelay. Operations mark permanent
// failures with backoff.Permanent to stop retrying immediately.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	BaseDelay           time.Duration
	MaxDelay            time.Duration
	Multiplier          float64
	RandomizationFactor float64

	// timer overrides the wait timer between attempts. Tests inject an
	// instant timer so retry paths run without sleeping.
	timer backoff.Timer
}

// DefaultPolicy returns the retry policy used for API calls:
// maxAttempts total attempts with exponential backoff from 500ms up to 30s.
func DefaultPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:         maxAttempts,
		BaseDelay:           500 * time.Millisecond,
		MaxDelay:            30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.25,
	}
}

// Do runs op under the policy. It returns nil on the first success, the
// unwrapped inner error for a permanent failure, or the last attempt's
// error once attempts are exhausted. Context cancellation stops retrying.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.MaxInterval = p.MaxDelay
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = p.RandomizationFactor
	eb.MaxElapsedTime = 0 // bounded by attempt count, not wall clock
	eb.Reset()

	b := backoff.WithMaxRetries(backoff.WithContext(eb, ctx), uint64(attempts-1))
	return backoff.RetryNotifyWithTimer(op, b, nil, p.timer)
}
