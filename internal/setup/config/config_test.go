package config

import (
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name: "valid",
			config: Config{
				Common: CommonConfig{Version: CurrentCommonVersion, Storage: Storage{Backend: BackendSQLite}},
				Bot:    BotConfig{Version: CurrentBotVersion},
			},
		},
		{
			name: "missing common version",
			config: Config{
				Bot: BotConfig{Version: CurrentBotVersion},
			},
			wantErr: ErrConfigVersionMissing,
		},
		{
			name: "bot version mismatch",
			config: Config{
				Common: CommonConfig{Version: CurrentCommonVersion},
				Bot:    BotConfig{Version: CurrentBotVersion + 1},
			},
			wantErr: ErrConfigVersionMismatch,
		},
		{
			name: "unknown backend",
			config: Config{
				Common: CommonConfig{Version: CurrentCommonVersion, Storage: Storage{Backend: "mysql"}},
				Bot:    BotConfig{Version: CurrentBotVersion},
			},
			wantErr: ErrUnknownBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var c Config
	c.Bot.Display.StockTitle = "Custom"
	c.applyDefaults()

	assert.Equal(t, BackendPostgres, c.Common.Storage.Backend)
	assert.Equal(t, "data", c.Common.Storage.SQLiteDir)
	assert.Equal(t, "Custom", c.Bot.Display.StockTitle)
	assert.Equal(t, DefaultLeaderboardTitle, c.Bot.Display.LeaderboardTitle)
	assert.Equal(t, DefaultLeaderboardLimit, c.Bot.Display.LeaderboardLimit)
	assert.Equal(t, DefaultColor, c.Bot.Display.Color)
	assert.Equal(t, DefaultLogLevel, c.Common.Debug.LogLevel)
	assert.Equal(t, DefaultMaxLogsToKeep, c.Common.Debug.MaxLogsToKeep)
	assert.Equal(t, DefaultMetricsPort, c.Common.Metrics.Port)
}

func TestDisplayDurations(t *testing.T) {
	t.Parallel()

	var d Display
	assert.Equal(t, DefaultRefreshInterval, d.RefreshInterval())
	assert.Equal(t, DefaultOperationDelay, d.OperationDelay())
	assert.Equal(t, DefaultSweepStagger, d.SweepStagger())

	d = Display{RefreshIntervalMS: 1500, OperationDelayMS: 10, SweepStaggerMS: 20}
	assert.Equal(t, 1500*time.Millisecond, d.RefreshInterval())
	assert.Equal(t, 10*time.Millisecond, d.OperationDelay())
	assert.Equal(t, 20*time.Millisecond, d.SweepStagger())
}

func TestIsAdmin(t *testing.T) {
	t.Parallel()

	b := BotConfig{AdminIDs: []uint64{42, 7}}
	assert.True(t, b.IsAdmin(snowflake.ID(7)))
	assert.False(t, b.IsAdmin(snowflake.ID(8)))
	assert.Equal(t, DefaultCommandCooldown, b.CommandCooldown())
}
