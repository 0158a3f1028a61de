// Package adapterclient provides the adapter-with-retry(3) wrapper every
// read-only (and cancel) adapter call is run through: exponential backoff
// with jitter, bounded by a per-venue rate limiter.
package adapterclient

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Limiter bundles the venue-wide rate limiter a Retryer waits on before
// every attempt.
type Limiter struct {
	*rate.Limiter
}

// NewLimiter creates a token-bucket limiter at the given steady rate and
// burst size.
func NewLimiter(perSecond float64, burst int) *Limiter {
	return &Limiter{rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Retryable marks an error as safe to retry (network blip, rate limit,
// nonce-sync failure). Only an error whose Retryable reports false stops
// the retry loop early; errors that do not implement this are retried.
type Retryable interface {
	Retryable() bool
}

// Do runs fn up to maxRetries+1 times, waiting on limiter before each
// attempt and backing off exponentially with jitter between retryable
// failures. The final error, if any, wraps the last attempt's error.
func Do(ctx context.Context, limiter *Limiter, name string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("adapterclient: %s: rate limiter: %w", name, err)
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if r, ok := err.(Retryable); ok && !r.Retryable() {
			return fmt.Errorf("adapterclient: %s: %w", name, err)
		}
		if attempt == maxRetries {
			break
		}
		slog.Warn("adapterclient: retrying after failure", "call", name, "attempt", attempt+1, "err", err)
		sleep(ctx, attempt)
	}
	return fmt.Errorf("adapterclient: %s: exhausted %d retries: %w", name, maxRetries, lastErr)
}

func sleep(ctx context.Context, attempt int) {
	backoff := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	jitter := time.Duration(rand.Int64N(int64(baseRetryWait)))
	select {
	case <-time.After(backoff + jitter):
	case <-ctx.Done():
	}
}
