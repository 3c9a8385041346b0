package shop

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/display"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const alertChannel = snowflake.ID(900)

type sentAlert struct {
	ChannelID snowflake.ID
	Title     string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentAlert
	err  error
}

func (f *fakeSender) SendMessage(
	_ context.Context, channelID snowflake.ID, artifact *display.Artifact,
) (snowflake.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return 0, f.err
	}
	f.sent = append(f.sent, sentAlert{ChannelID: channelID, Title: artifact.Title})
	return snowflake.ID(len(f.sent)), nil
}

func (f *fakeSender) Titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	titles := make([]string, len(f.sent))
	for i, alert := range f.sent {
		titles[i] = alert.Title
	}
	return titles
}

func TestSetStockThreshold(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	svc, _ := newTestService(t)

	_, err := svc.SetStockThreshold(ctx, guildID, "14d", 3, alertChannel)
	require.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = svc.SetStockThreshold(ctx, guildID, "7d", 0, alertChannel)
	require.ErrorIs(t, err, ErrInvalidThreshold)
	_, err = svc.SetStockThreshold(ctx, guildID, "7d", 3, 0)
	require.ErrorIs(t, err, ErrInvalidChannel)

	_, found, err := svc.StockThreshold(ctx, guildID)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = svc.SetStockThreshold(ctx, guildID, "30d", 3, alertChannel)
	require.NoError(t, err)

	settings, found, err := svc.StockThreshold(ctx, guildID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StockThreshold{Period: "30d", Threshold: 3, ChannelID: alertChannel}, *settings)

	guilds, err := svc.store.GuildsWithSetting(ctx, StockThresholdKey)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{guildID}, guilds)
}

func TestStockThresholdIsLow(t *testing.T) {
	t.Parallel()

	settings := &StockThreshold{Period: "7d", Threshold: 3}

	tests := []struct {
		name      string
		available int
		sold      int
		want      bool
	}{
		{name: "above threshold without sales", available: 3, sold: 0, want: false},
		{name: "below threshold", available: 2, sold: 0, want: true},
		{name: "empty", available: 0, sold: 0, want: true},
		{name: "covers recent demand", available: 5, sold: 5, want: false},
		{name: "below recent demand", available: 4, sold: 5, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, settings.IsLow(tt.available, tt.sold))
		})
	}
}

func TestStockAlerterAlertsOnceUntilRestocked(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	svc, _ := newTestService(t)
	sender := &fakeSender{}
	alerter := NewStockAlerter(svc, sender, 0, zap.NewNop())

	require.NoError(t, svc.AddProduct(ctx, guildID, "NF", "Netflix", 1000))
	require.NoError(t, svc.AddProduct(ctx, guildID, "SP", "Spotify", 500))
	_, _, err := svc.AddCodes(ctx, guildID, "NF", "N1,N2,N3,N4,N5")
	require.NoError(t, err)
	require.NoError(t, svc.AddCode(ctx, guildID, "SP", "S1"))

	// Without settings nothing is checked.
	sent, err := alerter.CheckGuild(ctx, guildID)
	require.NoError(t, err)
	assert.Zero(t, sent)

	_, err = svc.SetStockThreshold(ctx, guildID, "7d", 3, alertChannel)
	require.NoError(t, err)

	sent, err = alerter.CheckGuild(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"Low stock alert: Spotify"}, sender.Titles())
	assert.Equal(t, alertChannel, sender.sent[0].ChannelID)

	sent, err = alerter.CheckGuild(ctx, guildID)
	require.NoError(t, err)
	assert.Zero(t, sent)

	// Restocking clears the alert so the next drop alerts again.
	_, _, err = svc.AddCodes(ctx, guildID, "SP", "S2,S3,S4")
	require.NoError(t, err)
	sent, err = alerter.CheckGuild(ctx, guildID)
	require.NoError(t, err)
	assert.Zero(t, sent)

	_, err = svc.Sell(ctx, guildID, buyer, "SP", 2)
	require.NoError(t, err)
	sent, err = alerter.CheckGuild(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"Low stock alert: Spotify", "Low stock alert: Spotify"}, sender.Titles())
}

func TestStockAlerterRecentDemand(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	svc, _ := newTestService(t)
	sender := &fakeSender{}
	alerter := NewStockAlerter(svc, sender, 0, zap.NewNop())

	require.NoError(t, svc.AddProduct(ctx, guildID, "NF", "Netflix", 1000))
	_, _, err := svc.AddCodes(ctx, guildID, "NF", "N1,N2,N3,N4,N5,N6,N7")
	require.NoError(t, err)
	_, err = svc.SetStockThreshold(ctx, guildID, "30d", 1, alertChannel)
	require.NoError(t, err)

	_, err = svc.Sell(ctx, guildID, buyer, "NF", 4)
	require.NoError(t, err)

	// 3 codes left after selling 4 in the window.
	sent, err := alerter.CheckGuild(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"Low stock alert: Netflix"}, sender.Titles())
}

func TestStockAlerterRetriesFailedSend(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	svc, _ := newTestService(t)
	sender := &fakeSender{err: errors.New("missing access")}
	alerter := NewStockAlerter(svc, sender, 0, zap.NewNop())

	require.NoError(t, svc.AddProduct(ctx, guildID, "NF", "Netflix", 1000))
	_, err := svc.SetStockThreshold(ctx, guildID, "7d", 2, alertChannel)
	require.NoError(t, err)

	sent, err := alerter.CheckGuild(ctx, guildID)
	require.Error(t, err)
	assert.Zero(t, sent)

	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()

	alerter.Tick(ctx)
	assert.Equal(t, []string{"Low stock alert: Netflix"}, sender.Titles())

	alerter.Tick(ctx)
	assert.Len(t, sender.Titles(), 1)
}

func TestStockAlerterTickSkipsUnconfiguredGuilds(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	svc, _ := newTestService(t)
	sender := &fakeSender{}
	alerter := NewStockAlerter(svc, sender, 0, zap.NewNop())

	const otherGuild = snowflake.ID(5151)
	for _, id := range []snowflake.ID{guildID, otherGuild} {
		require.NoError(t, svc.AddProduct(ctx, id, "NF", "Netflix", 1000))
	}
	_, err := svc.SetStockThreshold(ctx, otherGuild, "7d", 1, alertChannel)
	require.NoError(t, err)

	alerter.Tick(ctx)
	assert.Equal(t, []string{"Low stock alert: Netflix"}, sender.Titles())
}
