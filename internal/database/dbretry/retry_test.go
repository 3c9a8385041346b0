package dbretry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "wrapped deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: true},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: true},
		{name: "unexpected EOF", err: errors.New("unexpected EOF"), want: true},
		{name: "plain error", err: errNotFound, want: false},
		{name: "canceled context", err: context.Canceled, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()
	assert.False(t, IsUniqueViolation(errNotFound))
	assert.False(t, IsUniqueViolation(nil))
}

func TestOperation(t *testing.T) {
	initialInterval = time.Millisecond
	maxInterval = 5 * time.Millisecond

	t.Run("returns result on success", func(t *testing.T) {
		result, err := Operation(t.Context(), func(context.Context) (int, error) {
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, result)
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		calls := 0
		_, err := Operation(t.Context(), func(context.Context) (int, error) {
			calls++
			return 0, errNotFound
		})
		require.ErrorIs(t, err, errNotFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		result, err := Operation(t.Context(), func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("write: broken pipe")
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := NoResult(t.Context(), func(context.Context) error {
			calls++
			return errors.New("i/o timeout")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after retries")
		assert.Equal(t, int(maxRetries)+1, calls)
	})
}
