package process

import (
	"context"
	"errors"
	"time"
)

const defaultRetryDelay = 300 * time.Millisecond

// PermanentError marks an error that retrying cannot fix.
type PermanentError struct {
	Err error
}

// Error implements the error interface.
func (e *PermanentError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that [Retry] gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &PermanentError{Err: err}
}

// Retry calls fn up to attempts times with exponential backoff starting at
// baseDelay. It stops on success, on a [PermanentError], or when ctx is done,
// and otherwise returns the last error.
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	if baseDelay <= 0 {
		baseDelay = defaultRetryDelay
	}

	var last error

	for i := range attempts {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}

		last = err

		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(baseDelay * time.Duration(1<<i))

		select {
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		case <-timer.C:
		}
	}

	return last
}
