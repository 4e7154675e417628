// Package ratelimit paces outbound requests to marketplaces: a steady
// requests-per-second Limiter and a randomized Pause before each call.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"
)

// Limiter spaces operations at a fixed rate with optional jitter. It is safe
// for concurrent use by multiple goroutines. A Limiter created with rps <= 0
// never blocks.
type Limiter struct {
	ticker   *time.Ticker
	interval time.Duration
	jitter   float64 // fraction of interval, 0.0 to 1.0
}

// NewLimiter creates a limiter allowing rps operations per second. jitter is
// clamped to [0, 1].
func NewLimiter(rps float64, jitter float64) *Limiter {
	jitter = min(max(jitter, 0), 1)
	if rps <= 0 {
		return &Limiter{jitter: jitter}
	}

	interval := time.Duration(float64(time.Second) / rps)
	return &Limiter{
		ticker:   time.NewTicker(interval),
		interval: interval,
		jitter:   jitter,
	}
}

// Wait blocks until the next slot is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.ticker == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ticker.C:
	}

	if l.jitter == 0 {
		return nil
	}
	// The ticker already enforces the minimum spacing, so only the positive
	// half of the jitter window adds delay.
	extra := time.Duration(float64(l.interval) * l.jitter * (rand.Float64()*2 - 1))
	if extra <= 0 {
		return nil
	}
	return sleep(ctx, extra)
}

// Stop releases the ticker.
func (l *Limiter) Stop() {
	if l != nil && l.ticker != nil {
		l.ticker.Stop()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
