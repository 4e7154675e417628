package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pause is a randomized delay drawn uniformly from [Min, Max]. Sources apply
// it before every request so traffic does not arrive on a fixed cadence.
// The zero value does not pause.
type Pause struct {
	Min time.Duration
	Max time.Duration
}

// Duration draws one delay from the range.
func (p Pause) Duration() time.Duration {
	lo, hi := p.Min, p.Max
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// Wait sleeps for a freshly drawn delay, returning early with ctx.Err() when
// ctx is done.
func (p Pause) Wait(ctx context.Context) error {
	d := p.Duration()
	if d <= 0 {
		return ctx.Err()
	}
	return sleep(ctx, d)
}
