// Package retry provides a small retry-with-backoff combinator used to wrap
// per-file pipeline attempts.
package retry

import (
	"context"
	"errors"
	"time"
)

// Config controls how many attempts are made and how long to wait between
// them. The wait before attempt N (N >= 2) is BackoffBase * (N-1), a linear
// ramp rather than an exponential one.
type Config struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// Normalize fills in defaults for zero values.
func (c Config) Normalize() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	return c
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as non-retryable: Do returns the wrapped error
// immediately without spending further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds or the attempt budget is spent. The last error
// is returned on exhaustion. Context cancellation interrupts the backoff wait
// and is returned immediately.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	cfg = cfg.Normalize()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := cfg.BackoffBase * time.Duration(attempt-1)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if err := fn(ctx); err != nil {
			var pErr *permanentError
			if errors.As(err, &pErr) {
				return pErr.err
			}
			lastErr = err
			continue
		}
		return nil
	}

	return lastErr
}
