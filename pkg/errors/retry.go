package errors

import (
	"context"
	"time"
)

// BackoffStrategy selects how retry delays grow between attempts.
type BackoffStrategy int

const (
	// BackoffExponential doubles the delay after each attempt, capped at
	// MaxDelay. Used for transient backpressure at the channel layer.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear grows the delay as attempt * InitialDelay. Used for the
	// driver's outer batch retry loop.
	BackoffLinear
)

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Strategy       BackoffStrategy
	RetryableError func(error) bool
}

// Delay returns the backoff delay preceding the given retry. Attempts are
// counted from 1; the delay before retrying attempt n is Delay(n).
func (c *RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var d time.Duration
	switch c.Strategy {
	case BackoffLinear:
		d = time.Duration(attempt) * c.InitialDelay
	default:
		d = c.InitialDelay << (attempt - 1)
	}

	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// RetryableFunc is a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// Retry executes fn up to MaxAttempts times, sleeping between attempts
// according to the configured backoff strategy. Non-retryable errors are
// returned immediately; exhaustion wraps the last error with
// ErrCodeRetriesExhausted.
func Retry(ctx context.Context, config *RetryConfig, fn RetryableFunc) error {
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if config.RetryableError != nil && !config.RetryableError(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		if err := Sleep(ctx, config.Delay(attempt)); err != nil {
			return err
		}
	}

	exhausted := Wrap(lastErr, ErrCodeRetriesExhausted, "operation failed after retries exhausted")
	return exhausted.WithContext("attempts", config.MaxAttempts)
}

// Sleep waits for the given duration, returning early with the context's
// error if it is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
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
