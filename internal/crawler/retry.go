package crawler

import (
	"context"
	"fmt"
	"time"

	"presswatch/internal/config"
)

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// policy runs out of attempts. Backoff delays follow policy.GetRetryDelay
// and are interrupted by ctx.
func Retry(ctx context.Context, policy *config.RetryPolicy, fn func(attempt int) error) error {
	maxAttempts := 1
	if policy != nil && policy.MaxAttempts > 1 {
		maxAttempts = policy.MaxAttempts
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, policy.GetRetryDelay(attempt)); err != nil {
				return fmt.Errorf("%w (last error: %w)", err, lastErr)
			}
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) || ctx.Err() != nil {
			return lastErr
		}
	}

	return fmt.Errorf("gave up after %d attempts: %w", maxAttempts, lastErr)
}

// permanentError marks an error that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Retry gives up immediately, e.g. when a page
// was fetched but its content could not be decoded.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
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
