package ocr

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Epistemic-Technology/pdfed/internal/logger"
)

const (
	// Vision requests are billed per call; one page is one request.
	defaultRequestsPerSecond = 2
	defaultBurst             = 4

	maxRetries     = 5
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 32 * time.Second
)

// NewLimiter returns a request limiter; rps <= 0 selects the default rate.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	burst := int(math.Ceil(rps * 2))
	if burst < defaultBurst {
		burst = defaultBurst
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// retryDelay is the wait before the given attempt (attempt >= 1).
func retryDelay(attempt int, base time.Duration) time.Duration {
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

// RateLimitedCall waits for limiter approval, then calls fn, retrying with
// exponential backoff while the provider reports rate limiting.
func RateLimitedCall[T any](ctx context.Context, limiter *rate.Limiter, log logger.Logger, fn func(context.Context) (T, error)) (T, error) {
	return rateLimitedCall(ctx, limiter, log, baseRetryDelay, fn)
}

func rateLimitedCall[T any](ctx context.Context, limiter *rate.Limiter, log logger.Logger, base time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt, base)
			log.Info("Retry attempt %d/%d after %v delay", attempt, maxRetries, delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info("Retry succeeded on attempt %d", attempt)
			}
			return result, nil
		}

		lastErr = err
		if !isRateLimitError(err) {
			return zero, err
		}

		log.Warn("Rate limit error (429) on attempt %d/%d: %v", attempt+1, maxRetries+1, err)
	}

	return zero, fmt.Errorf("max retries (%d) exceeded, last error: %w", maxRetries, lastErr)
}

// isRateLimitError checks if an error is a 429 from the provider
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{"429", "rate limit", "rate_limit_exceeded", "Too Many Requests"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
