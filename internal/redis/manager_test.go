package redis

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/storefront/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	manager := NewManager(&config.Redis{Host: mr.Host(), Port: port}, zap.NewNop())
	manager.dial = func(opt rueidis.ClientOption) (rueidis.Client, error) {
		opt.DisableCache = true
		opt.ClientName = ""
		return rueidis.NewClient(opt)
	}
	t.Cleanup(manager.Close)

	return manager
}

func TestGetClientReusesConnection(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)

	first, err := manager.GetClient(CooldownDBIndex)
	require.NoError(t, err)
	second, err := manager.GetClient(CooldownDBIndex)
	require.NoError(t, err)

	assert.Same(t, first, second)
	require.NoError(t, manager.Ping(t.Context(), CooldownDBIndex))
}

func TestOptions(t *testing.T) {
	t.Parallel()

	manager := NewManager(&config.Redis{Host: "cache", Port: 6380, Username: "u", Password: "p"}, zap.NewNop())
	opt := manager.options(3)

	assert.Equal(t, []string{"cache:6380"}, opt.InitAddress)
	assert.Equal(t, 3, opt.SelectDB)
	assert.Equal(t, "u", opt.Username)
	assert.Equal(t, "storefront", opt.ClientName)
}
