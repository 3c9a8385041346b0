package shop

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database"
	"github.com/robalyx/storefront/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// salesStore serves sales queries from an in-memory purchase list.
type salesStore struct {
	database.Store

	purchases []*types.Purchase
	sinces    []time.Time
}

func (s *salesStore) SumSales(_ context.Context, _ snowflake.ID, since time.Time) (int64, error) {
	s.sinces = append(s.sinces, since)

	var total int64
	for _, p := range s.purchases {
		if since.IsZero() || !p.PurchasedAt.Before(since) {
			total += p.TotalPrice
		}
	}
	return total, nil
}

func (s *salesStore) GetPurchasesSince(_ context.Context, _ snowflake.ID, since time.Time) ([]*types.Purchase, error) {
	var out []*types.Purchase
	for _, p := range s.purchases {
		if !p.PurchasedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func newSalesService(store *salesStore, now time.Time) *Service {
	svc := NewService(store, nil, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc
}

func TestSalesSummary(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)
	store := &salesStore{purchases: []*types.Purchase{
		{TotalPrice: 100, PurchasedAt: now.Add(-time.Hour)},
		{TotalPrice: 200, PurchasedAt: now.Add(-3 * 24 * time.Hour)},
		{TotalPrice: 400, PurchasedAt: now.Add(-10 * 24 * time.Hour)},
		{TotalPrice: 800, PurchasedAt: now.AddDate(0, -2, 0)},
	}}

	summary, err := newSalesService(store, now).SalesSummary(t.Context(), guildID)
	require.NoError(t, err)

	assert.Equal(t, int64(100), summary.Today)
	assert.Equal(t, int64(300), summary.Week)
	assert.Equal(t, int64(700), summary.Month)
	assert.Equal(t, int64(1500), summary.AllTime)

	require.Len(t, store.sinces, 4)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), store.sinces[0])
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), store.sinces[2])
	assert.True(t, store.sinces[3].IsZero())
}

func TestDailySales(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)
	store := &salesStore{purchases: []*types.Purchase{
		{TotalPrice: 100, PurchasedAt: now.Add(-time.Hour)},
		{TotalPrice: 50, PurchasedAt: now.Add(-2 * time.Hour)},
		{TotalPrice: 200, PurchasedAt: now.AddDate(0, 0, -2)},
	}}

	totals, err := newSalesService(store, now).DailySales(t.Context(), guildID, 3)
	require.NoError(t, err)
	require.Len(t, totals, 3)

	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), totals[0].Day)
	assert.Equal(t, int64(200), totals[0].Total)
	assert.Zero(t, totals[1].Total)
	assert.Equal(t, int64(150), totals[2].Total)
	assert.Equal(t, 2, totals[2].Count)

	clamped, err := newSalesService(store, now).DailySales(t.Context(), guildID, 365)
	require.NoError(t, err)
	assert.Len(t, clamped, MaxChartDays)
}

func TestBuildSalesChart(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	pngHeader := []byte("\x89PNG\r\n\x1a\n")

	t.Run("with sales", func(t *testing.T) {
		t.Parallel()

		buf, err := BuildSalesChart([]DailyTotal{
			{Day: day, Total: 1000},
			{Day: day.AddDate(0, 0, 1), Total: 2500},
			{Day: day.AddDate(0, 0, 2), Total: 0},
		})
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(buf.Bytes(), pngHeader))
	})

	t.Run("no sales", func(t *testing.T) {
		t.Parallel()

		buf, err := BuildSalesChart([]DailyTotal{{Day: day}, {Day: day.AddDate(0, 0, 1)}})
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(buf.Bytes(), pngHeader))
	})

	t.Run("too few days", func(t *testing.T) {
		t.Parallel()

		_, err := BuildSalesChart([]DailyTotal{{Day: day}})
		require.ErrorIs(t, err, ErrNotEnoughData)
	})
}
