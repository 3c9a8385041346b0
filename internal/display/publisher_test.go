package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublisherPublish(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	clock := newFakeClock()
	store := newFakeStore()
	store.addProduct(1, "A", "Alpha", 1000, 2)
	messenger := newFakeMessenger()
	registry := NewRegistry(store, clock, zap.NewNop())

	publisher := NewPublisher(registry, store, messenger, NewRenderer(testOptions()), clock, zap.NewNop())

	handle, err := publisher.Publish(ctx, 1, KindStock, 55)
	require.NoError(t, err)
	assert.Equal(t, Handle{GuildID: 1, Kind: KindStock, ChannelID: 55, MessageID: 9001}, handle)

	registered, ok := registry.Lookup(1, KindStock)
	require.True(t, ok)
	assert.Equal(t, handle, registered)

	require.Len(t, messenger.sent, 1)
	assert.Contains(t, messenger.sent[0].Artifact.Body, "Rp 1.000")
	assert.Equal(t, "Updated 0 seconds ago", messenger.sent[0].Artifact.Footer)

	_, ok = store.setting(1, "display:stock")
	assert.True(t, ok)
}

func TestPublisherMissingChannel(t *testing.T) {
	t.Parallel()

	messenger := newFakeMessenger()
	messenger.goneChannels[55] = true
	registry := NewRegistry(newFakeStore(), newFakeClock(), zap.NewNop())

	publisher := NewPublisher(registry, newFakeStore(), messenger, NewRenderer(testOptions()), newFakeClock(), zap.NewNop())

	_, err := publisher.Publish(t.Context(), 1, KindLeaderboard, 55)
	require.ErrorIs(t, err, ErrTargetGone)

	_, ok := registry.Lookup(1, KindLeaderboard)
	assert.False(t, ok)
}
