package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy describes a bounded retry budget: how many attempts in total, how
// long to wait between them, and which errors are worth another try.
// Call sites parameterize it once instead of copy-pasting retry loops.
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(err error) bool
}

// Linear returns a backoff that waits attempt*step between tries.
func Linear(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// Exponential returns base*2^(attempt-1) capped at max, with 0-25% jitter
// to avoid thundering herd on shared endpoints.
func Exponential(base, max time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		d := float64(base) * math.Pow(2, float64(attempt-1))
		if d > float64(max) {
			d = float64(max)
		}
		jitter := d * 0.25 * rand.Float64()
		return time.Duration(d + jitter)
	}
}

// Do runs fn up to p.MaxAttempts times. It stops early when fn succeeds,
// when the error is not retryable, or when ctx is done while waiting.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			var wait time.Duration
			if p.Backoff != nil {
				wait = p.Backoff(attempt - 1)
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-time.After(wait):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
