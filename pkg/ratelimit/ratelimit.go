// Package ratelimit paces outbound calls to provider endpoints.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter spaces operations at least one interval apart, with optional
// jitter so bursts of workers don't hit a provider in lockstep. It is safe
// for concurrent use by multiple goroutines.
type Limiter struct {
	interval time.Duration
	jitter   float64 // 0.0 to 1.0

	mu   sync.Mutex
	next time.Time
}

// NewLimiter creates a limiter with the given requests per second (rps) and
// jitter factor. Jitter must be between 0.0 and 1.0. If rps is <= 0, the
// limiter never blocks.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}

	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	return &Limiter{
		interval: time.Duration(float64(time.Second) / rps),
		jitter:   jitter,
	}
}

// Wait blocks until the caller's reserved slot arrives, or until the context
// is canceled. Each call reserves the next slot before sleeping, so
// concurrent waiters are serialized one interval apart rather than released
// together.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.interval == 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}

	step := l.interval
	if l.jitter > 0 {
		// +/- jitter fraction of the interval
		factor := 1 + l.jitter*((rand.Float64()*2)-1)
		step = time.Duration(float64(step) * factor)
	}
	l.next = slot.Add(step)
	l.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
