package tmdb

import (
	"context"
	"time"
)

// RetryPolicy is the named retry schedule applied to retryable
// upstream failures. Delay grows linearly: BackoffUnit × attempt.
type RetryPolicy struct {
	MaxAttempts int
	BackoffUnit time.Duration
}

// DefaultRetryPolicy retries 3 times with 2s, 4s, 6s delays.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BackoffUnit: 2 * time.Second,
}

// Delay returns the wait before the given retry attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BackoffUnit * time.Duration(attempt)
}

// sleepFunc waits for d or until ctx is done. Injected in tests so the
// retry schedule can be verified without real delays.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
