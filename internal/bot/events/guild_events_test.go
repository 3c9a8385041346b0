package events

import (
	"testing"

	"github.com/disgoorg/disgo/events"
	"github.com/robalyx/storefront/internal/database/sqlite"
	"github.com/robalyx/storefront/internal/display"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOnGuildLeaveForgetsDisplays(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store, err := sqlite.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	registry := display.NewRegistry(store, display.SystemClock{}, zap.NewNop())
	for _, kind := range display.Kinds {
		registry.Register(ctx, display.Handle{GuildID: 1, Kind: kind, ChannelID: 10, MessageID: 20})
	}
	other := display.Handle{GuildID: 2, Kind: display.KindStock, ChannelID: 30, MessageID: 40}
	registry.Register(ctx, other)

	handler := NewGuildEventHandler(registry, zap.NewNop())
	handler.OnGuildLeave(&events.GuildLeave{GenericGuild: &events.GenericGuild{GuildID: 1}})

	for _, kind := range display.Kinds {
		_, ok := registry.Lookup(1, kind)
		assert.False(t, ok, kind)

		_, found, err := store.GetSetting(ctx, 1, kind.SettingKey())
		require.NoError(t, err)
		assert.False(t, found, kind)
	}

	handle, ok := registry.Lookup(2, display.KindStock)
	require.True(t, ok)
	assert.Equal(t, other, handle)
}
