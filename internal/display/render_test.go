package display

import (
	"strings"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFormatAge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		age  time.Duration
		want string
	}{
		{-time.Second, "0 seconds ago"},
		{0, "0 seconds ago"},
		{time.Second, "1 second ago"},
		{59*time.Second + 900*time.Millisecond, "59 seconds ago"},
		{time.Minute, "1 minute ago"},
		{59*time.Minute + 59*time.Second, "59 minutes ago"},
		{time.Hour, "1 hour ago"},
		{23 * time.Hour, "23 hours ago"},
		{72 * time.Hour, "72 hours ago"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatAge(tt.age))
		})
	}
}

func TestFormatRupiah(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Rp 0", FormatRupiah(0))
	assert.Equal(t, "Rp 999", FormatRupiah(999))
	assert.Equal(t, "Rp 1.000", FormatRupiah(1000))
	assert.Equal(t, "Rp 1.234.567", FormatRupiah(1234567))
}

func TestRankLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "🥇", RankLabel(1))
	assert.Equal(t, "🥈", RankLabel(2))
	assert.Equal(t, "🥉", RankLabel(3))
	assert.Equal(t, "#4", RankLabel(4))
	assert.Equal(t, "#10", RankLabel(10))
}

func TestRenderStock(t *testing.T) {
	t.Parallel()

	now := time.Now()
	renderer := NewRenderer(testOptions())

	artifact := renderer.Render(KindStock, &State{
		Stock:       []StockLine{{Code: "A", Name: "Alpha", Price: 1000, Available: 2}},
		LastRefresh: now.Add(-5 * time.Second),
		Now:         now,
	})

	assert.Equal(t, "Stock", artifact.Title)
	assert.Contains(t, artifact.Body, "2")
	assert.Contains(t, artifact.Body, "Rp 1.000")
	assert.Contains(t, artifact.Body, "Alpha")
	assert.Equal(t, 0x123456, artifact.Color)
	assert.Equal(t, "Updated 5 seconds ago", artifact.Footer)
	assert.Equal(t, now, artifact.Timestamp)
}

func TestRenderStockSoldOutAndEmpty(t *testing.T) {
	t.Parallel()

	now := time.Now()
	renderer := NewRenderer(testOptions())

	soldOut := renderer.Render(KindStock, &State{
		Stock:       []StockLine{{Code: "B", Name: "Beta", Price: 5000}},
		LastRefresh: now,
		Now:         now,
	})
	assert.Contains(t, soldOut.Body, "sold out")

	empty := renderer.Render(KindStock, &State{LastRefresh: now, Now: now})
	assert.Equal(t, "Nothing for sale", empty.Body)
}

func TestRenderLeaderboard(t *testing.T) {
	t.Parallel()

	now := time.Now()
	opts := testOptions()
	opts.LeaderboardLimit = 4
	renderer := NewRenderer(opts)

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		artifact := renderer.Render(KindLeaderboard, &State{LastRefresh: now, Now: now})
		assert.Equal(t, "Top Buyers", artifact.Title)
		assert.Equal(t, "No buyers yet", artifact.Body)
	})

	t.Run("ranked", func(t *testing.T) {
		t.Parallel()

		entries := make([]*types.LeaderboardEntry, 5)
		for i := range entries {
			entries[i] = &types.LeaderboardEntry{
				UserID:         snowflake.ID(100 + i),
				TotalPurchases: 1,
				TotalSpent:     int64(5000 - i*1000),
			}
		}

		artifact := renderer.Render(KindLeaderboard, &State{Leaderboard: entries, LastRefresh: now, Now: now})
		lines := strings.Split(artifact.Body, "\n")
		require.Len(t, lines, 4)
		assert.True(t, strings.HasPrefix(lines[0], "🥇 <@100>"))
		assert.True(t, strings.HasPrefix(lines[1], "🥈"))
		assert.True(t, strings.HasPrefix(lines[2], "🥉"))
		assert.True(t, strings.HasPrefix(lines[3], "#4"))
		assert.Contains(t, lines[0], "Rp 5.000")
		assert.Contains(t, lines[0], "1 purchase)")
	})
}

func TestRegisterThenPreviewIsInSecondsBucket(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := newFakeStore()
	store.addProduct(1, "A", "Alpha", 1000, 2)

	registry := NewRegistry(store, clock, zap.NewNop())
	registry.Register(t.Context(), Handle{GuildID: 1, Kind: KindStock, ChannelID: 10, MessageID: 20})

	scheduler := NewScheduler(SchedulerParams{
		Registry:  registry,
		Reader:    store,
		Messenger: newFakeMessenger(),
		Renderer:  NewRenderer(testOptions()),
		Clock:     clock,
		Logger:    zap.NewNop(),
	})

	clock.Advance(3 * time.Second)

	artifact, err := scheduler.Preview(t.Context(), 1, KindStock)
	require.NoError(t, err)
	assert.Equal(t, "Updated 3 seconds ago", artifact.Footer)
}
