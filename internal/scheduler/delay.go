package scheduler

import (
	"context"
	"math/rand"
	"time"
)

// DelayPolicy is the evasion hook consulted before every authentication
// attempt. Implementations decide how long the execution unit waits.
type DelayPolicy interface {
	Wait(ctx context.Context) error
}

// NoDelay never waits.
type NoDelay struct{}

// Wait returns immediately.
func (NoDelay) Wait(ctx context.Context) error { return ctx.Err() }

// FixedDelay waits a constant duration between attempts.
type FixedDelay struct {
	D time.Duration
}

// Wait sleeps for the configured duration, honoring cancellation.
func (d FixedDelay) Wait(ctx context.Context) error {
	return sleep(ctx, d.D)
}

// JitterDelay waits a base duration plus a random jitter fraction, so
// attempt timing does not form a detectable fixed pattern.
type JitterDelay struct {
	Base   time.Duration
	Jitter float64 // fraction of Base, e.g. 0.3 adds up to 30%
}

// Wait sleeps for base plus random jitter, honoring cancellation.
func (d JitterDelay) Wait(ctx context.Context) error {
	wait := d.Base
	if d.Jitter > 0 {
		wait += time.Duration(rand.Float64() * d.Jitter * float64(d.Base))
	}
	return sleep(ctx, wait)
}

// NewDelayPolicy builds a policy from configuration values: zero seconds
// means no delay, zero jitter means a fixed delay.
func NewDelayPolicy(seconds, jitter float64) DelayPolicy {
	if seconds <= 0 {
		return NoDelay{}
	}
	base := time.Duration(seconds * float64(time.Second))
	if jitter <= 0 {
		return FixedDelay{D: base}
	}
	return JitterDelay{Base: base, Jitter: jitter}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
