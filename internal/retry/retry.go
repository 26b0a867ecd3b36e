// Package retry provides bounded retry with exponential backoff for provider
// calls whose failures are carried as result values rather than errors.
package retry

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"
)

// DefaultMarkers are the error-text signatures treated as transient. The list
// is the compatibility baseline for the providers we talk to; matching is
// case-sensitive substring search.
var DefaultMarkers = []string{
	"ThrottlingException",
	"Too many requests",
	"Rate exceeded",
	"Timeout",
	"timed out",
	"429",
}

// Outcome is the minimal view a call result must expose for retry decisions.
type Outcome interface {
	Succeeded() bool
	ErrorText() string
}

// Policy controls retry behavior. The zero value performs a single attempt.
type Policy struct {
	// MaxAttempts caps the total number of calls, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// BackoffBase is the exponential base in seconds: attempt n sleeps
	// BackoffBase^n plus jitter.
	BackoffBase float64
	// JitterMax is the upper bound, in seconds, of the uniform random jitter
	// added to each backoff sleep.
	JitterMax float64
	// Retryable decides from the error text whether a failure is transient.
	// Nil means MarkerPredicate(DefaultMarkers).
	Retryable func(errText string) bool
	// Sleep is swappable for tests. Nil means a context-aware timer sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy mirrors the orchestrator defaults.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BackoffBase: 1.8,
	JitterMax:   0.25,
}

// MarkerPredicate builds a predicate matching any of the given substrings.
func MarkerPredicate(markers []string) func(string) bool {
	return func(errText string) bool {
		for _, m := range markers {
			if strings.Contains(errText, m) {
				return true
			}
		}
		return false
	}
}

// DefaultRetryable is the compatibility-baseline predicate.
var DefaultRetryable = MarkerPredicate(DefaultMarkers)

// Do runs call until it succeeds, fails permanently, or attempts are
// exhausted. The last result is always returned; Do never turns a failed
// result into a panic or an error, and it stops early if ctx is done.
func Do[T Outcome](ctx context.Context, p Policy, call func(context.Context) T) T {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	var last T
	for attempt := 1; ; attempt++ {
		last = call(ctx)
		if last.Succeeded() {
			return last
		}
		if attempt >= attempts || !retryable(last.ErrorText()) {
			return last
		}
		if ctx.Err() != nil {
			return last
		}
		backoff := math.Pow(p.BackoffBase, float64(attempt)) + rand.Float64()*p.JitterMax
		if err := sleep(ctx, time.Duration(backoff*float64(time.Second))); err != nil {
			return last
		}
	}
}

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
