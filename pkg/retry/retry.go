// Package retry provides the single bounded retry-with-backoff combinator
// used by every retrying call site in the engine: transaction submission,
// confirmation polling, and external lookups all share it instead of carrying
// their own loop and counter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration // doubled after every failed attempt
	MaxDelay    time.Duration // cap on a single backoff sleep, 0 for no cap
}

// Validate reports whether the policy is usable.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("retry: base delay must be >= 0")
	}
	return nil
}

// Delay returns the backoff sleep before the given retry (attempt is
// 1-based; the delay applies after that attempt failed).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// nonRetryable wraps an error to stop the combinator immediately.
type nonRetryable struct{ err error }

func (n nonRetryable) Error() string { return n.err.Error() }
func (n nonRetryable) Unwrap() error { return n.err }

// Abort marks err as non-retryable: the combinator returns it on first
// occurrence without consuming further attempts.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	return nonRetryable{err: err}
}

// IsAbort reports whether err was marked non-retryable.
func IsAbort(err error) bool {
	var n nonRetryable
	return errors.As(err, &n)
}

// Do runs op until it succeeds, the policy is exhausted, op returns an
// Abort-marked error, or ctx is done. The last underlying error is returned
// on exhaustion.
func Do(ctx context.Context, policy Policy, logger *zap.Logger, name string, op func(ctx context.Context) error) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry",
					zap.String("op", name),
					zap.Int("attempt", attempt))
			}
			return nil
		}

		var n nonRetryable
		if errors.As(lastErr, &n) {
			logger.Debug("operation failed with non-retryable error",
				zap.String("op", name),
				zap.Int("attempt", attempt),
				zap.Error(n.err))
			return n.err
		}

		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.Delay(attempt)
		logger.Debug("operation failed, backing off",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	logger.Warn("operation exhausted retries",
		zap.String("op", name),
		zap.Int("attempts", policy.MaxAttempts),
		zap.Error(lastErr))
	return lastErr
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, policy Policy, logger *zap.Logger, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, policy, logger, name, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
