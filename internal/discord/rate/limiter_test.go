package rate_test

import (
	"context"
	"testing"
	"time"

	"github.com/robalyx/storefront/internal/discord/rate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterSpacesRequests(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	var waited []time.Duration

	limiter := rate.New(time.Second).WithClock(
		func() time.Time { return now },
		func(_ context.Context, d time.Duration) error {
			waited = append(waited, d)
			now = now.Add(d)
			return nil
		},
	)

	for range 3 {
		require.NoError(t, limiter.Wait(t.Context()))
	}

	assert.Equal(t, []time.Duration{time.Second, time.Second}, waited)
}

func TestLimiterNoWaitAfterIdle(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	calls := 0

	limiter := rate.New(time.Second).WithClock(
		func() time.Time { return now },
		func(context.Context, time.Duration) error {
			calls++
			return nil
		},
	)

	require.NoError(t, limiter.Wait(t.Context()))
	now = now.Add(5 * time.Second)
	require.NoError(t, limiter.Wait(t.Context()))

	assert.Zero(t, calls)
}

func TestLimiterCancelled(t *testing.T) {
	t.Parallel()

	limiter := rate.New(time.Hour)
	require.NoError(t, limiter.Wait(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	assert.ErrorIs(t, limiter.Wait(ctx), context.Canceled)
}
