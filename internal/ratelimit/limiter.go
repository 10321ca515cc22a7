// Package ratelimit gates workload iterations to a maximum rate.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is shared by all slots of one workload. A nil *Limiter never
// blocks, so callers need not special-case workloads without a limit.
type Limiter struct {
	lim *rate.Limiter
}

// ForWorkload returns a limiter admitting perSecond iterations per second
// with a burst of the same size, or nil when perSecond is not positive.
func ForWorkload(perSecond int) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	return &Limiter{lim: rate.NewLimiter(rate.Limit(perSecond), perSecond)}
}

// Wait blocks until the next iteration may run or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.lim.Wait(ctx)
}

// Rate returns the limit in iterations per second, 0 for unlimited.
func (l *Limiter) Rate() int {
	if l == nil {
		return 0
	}
	return int(l.lim.Limit())
}
