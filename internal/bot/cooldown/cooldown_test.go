package cooldown_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/storefront/internal/bot/cooldown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTest(t *testing.T, window time.Duration) (*cooldown.Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return cooldown.New(client, window), mr
}

func TestAllow(t *testing.T) {
	t.Parallel()

	limiter, mr := setupTest(t, 3*time.Second)
	ctx := t.Context()

	ok, _, err := limiter.Allow(ctx, 1, "order")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, left, err := limiter.Allow(ctx, 1, "order")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Positive(t, left)
	assert.LessOrEqual(t, left, 3*time.Second)

	// other users and commands are independent
	ok, _, err = limiter.Allow(ctx, 2, "order")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _, err = limiter.Allow(ctx, 1, "stock")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(4 * time.Second)

	ok, _, err = limiter.Allow(ctx, 1, "order")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDisabled(t *testing.T) {
	t.Parallel()

	limiter := cooldown.New(nil, 0)

	for range 3 {
		ok, _, err := limiter.Allow(t.Context(), 1, "order")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
