package dbretry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	maxElapsedTime  = 30 * time.Second
	initialInterval = 500 * time.Millisecond
	maxInterval     = 5 * time.Second
	maxRetries      = uint64(5)
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// retryableClasses lists SQLSTATE classes that indicate a transient condition:
// connection exceptions (08), transaction rollbacks (40), insufficient
// resources (53) and operator intervention (57).
var retryableClasses = []string{"08", "40", "53", "57"}

// retryableCodes lists individual SQLSTATE codes outside those classes.
var retryableCodes = map[string]struct{}{
	"55006": {}, // object_in_use
	"55P03": {}, // lock_not_available
}

// networkErrorFragments are matched against error text when the driver does
// not return a typed error.
var networkErrorFragments = []string{
	"connection reset by peer",
	"broken pipe",
	"connection refused",
	"no connection",
	"i/o timeout",
	"EOF",
}

// IsRetryableError checks if the given error is retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var pgerr pgdriver.Error
	if errors.As(err, &pgerr) {
		code := pgerr.Field('C')
		if _, ok := retryableCodes[code]; ok {
			return true
		}
		for _, class := range retryableClasses {
			if strings.HasPrefix(code, class) {
				return true
			}
		}
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()
	for _, fragment := range networkErrorFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgerr pgdriver.Error
	return errors.As(err, &pgerr) && pgerr.Field('C') == uniqueViolation
}

// Operation wraps a database operation with retry logic.
func Operation[T any](ctx context.Context, operation func(context.Context) (T, error)) (T, error) {
	var result T

	err := retry(ctx, func() error {
		var err error
		result, err = operation(ctx)
		return err
	})

	return result, err
}

// NoResult wraps a database operation that doesn't return a result.
func NoResult(ctx context.Context, operation func(context.Context) error) error {
	return retry(ctx, func() error {
		return operation(ctx)
	})
}

// Transaction wraps a database transaction with retry logic.
func Transaction(ctx context.Context, db bun.IDB, fn func(context.Context, bun.Tx) error) error {
	return NoResult(ctx, func(ctx context.Context) error {
		return db.RunInTx(ctx, nil, fn)
	})
}

// retry runs fn with exponential backoff until it succeeds, fails with a
// non-retryable error, or the retry budget is spent. Non-retryable errors are
// returned unwrapped so callers can match sentinels with errors.Is.
func retry(ctx context.Context, fn func() error) error {
	var lastErr error

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxElapsedTime),
		backoff.WithInitialInterval(initialInterval),
		backoff.WithMaxInterval(maxInterval),
	), maxRetries)

	err := backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		lastErr = err
		return err
	}, backoff.WithContext(b, ctx))
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}

	if lastErr != nil {
		return fmt.Errorf("database operation failed after retries: %w", lastErr)
	}

	return fmt.Errorf("database operation failed: %w", err)
}
