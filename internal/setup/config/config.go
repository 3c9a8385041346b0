package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrUnknownBackend        = errors.New("unknown storage backend")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.1.0"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Logging and metrics defaults.
const (
	DefaultLogLevel      = "info"
	DefaultMaxLogsToKeep = 10
	DefaultMaxLogSizeMB  = 50
	DefaultMaxLogBackups = 3
	DefaultMetricsPort   = 9090
)

// Display defaults.
const (
	DefaultRefreshInterval  = 60 * time.Second
	DefaultOperationDelay   = 2 * time.Second
	DefaultSweepStagger     = 5 * time.Second
	DefaultLeaderboardLimit = 10
	DefaultCommandCooldown  = 3 * time.Second
	DefaultStockTitle       = "📦 Stock"
	DefaultLeaderboardTitle = "🏆 Top Buyers"
	DefaultColor            = 0x5865F2
	DefaultStockEmpty       = "No products available yet."
	DefaultLeaderboardEmpty = "No purchases yet. Be the first!"
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig `koanf:"common"`
	Bot    BotConfig    `koanf:"bot"`
}

// CommonConfig contains configuration shared by every command.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	Storage    Storage    `koanf:"storage"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Metrics    Metrics    `koanf:"metrics"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int `koanf:"version"`
	// Discord configuration.
	Discord Discord `koanf:"discord"`
	// Users allowed to run admin commands in every guild.
	AdminIDs []uint64 `koanf:"admin_ids"`
	// Per-user command cooldown in milliseconds.
	CommandCooldownMS int `koanf:"command_cooldown_ms"`
	// Live display configuration.
	Display Display `koanf:"display"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum size of a single log file in megabytes.
	MaxLogSizeMB int `koanf:"max_log_size_mb"`
	// Maximum rotated files kept per log.
	MaxLogBackups int `koanf:"max_log_backups"`
}

// Storage selects the tenant store backend.
type Storage struct {
	// Backend is "postgres" or "sqlite".
	Backend string `koanf:"backend"`
	// Directory holding one SQLite file per guild.
	SQLiteDir string `koanf:"sqlite_dir"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Metrics contains the prometheus endpoint configuration.
type Metrics struct {
	// Serve /metrics when enabled.
	Enabled bool `koanf:"enabled"`
	// Port of the metrics server.
	Port int `koanf:"port"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
}

// Display configures the live stock board and leaderboard.
type Display struct {
	// Interval between periodic sweeps in milliseconds.
	RefreshIntervalMS int `koanf:"refresh_interval_ms"`
	// Pause after each display update in milliseconds.
	OperationDelayMS int `koanf:"operation_delay_ms"`
	// Gap between the stock and leaderboard halves of a sweep in milliseconds.
	SweepStaggerMS int `koanf:"sweep_stagger_ms"`
	// Number of buyers shown on the leaderboard.
	LeaderboardLimit int `koanf:"leaderboard_limit"`
	// Stock board title.
	StockTitle string `koanf:"stock_title"`
	// Leaderboard title.
	LeaderboardTitle string `koanf:"leaderboard_title"`
	// Embed color.
	Color int `koanf:"color"`
	// Optional banner image.
	ImageURL string `koanf:"image_url"`
	// Text shown when no products exist.
	StockEmptyText string `koanf:"stock_empty_text"`
	// Text shown when nobody has purchased yet.
	LeaderboardEmptyText string `koanf:"leaderboard_empty_text"`
}

// RefreshInterval returns the sweep interval.
func (d Display) RefreshInterval() time.Duration {
	return millis(d.RefreshIntervalMS, DefaultRefreshInterval)
}

// OperationDelay returns the pause after each display update.
func (d Display) OperationDelay() time.Duration {
	return millis(d.OperationDelayMS, DefaultOperationDelay)
}

// SweepStagger returns the gap between the two halves of a sweep.
func (d Display) SweepStagger() time.Duration {
	return millis(d.SweepStaggerMS, DefaultSweepStagger)
}

// CommandCooldown returns the per-user command cooldown.
func (b BotConfig) CommandCooldown() time.Duration {
	return millis(b.CommandCooldownMS, DefaultCommandCooldown)
}

// IsAdmin reports whether the user is a configured global admin.
func (b BotConfig) IsAdmin(userID snowflake.ID) bool {
	for _, id := range b.AdminIDs {
		if snowflake.ID(id) == userID {
			return true
		}
	}
	return false
}

// LoadConfig loads the configuration from the config search paths.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".storefront",
		homeDir + "/.storefront/config",
		"/etc/storefront/config",
		"/app/config",
		"config",
		".",
	}

	// Load every config file under its own root key
	var usedConfigPath string

	configFiles := []string{"common", "bot"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)

			sub := koanf.New(".")
			if err := sub.Load(file.Provider(configPath), toml.Parser()); err != nil {
				continue
			}

			if err := k.MergeAt(sub, configName); err != nil {
				return nil, "", fmt.Errorf("failed to merge %s.toml: %w", configName, err)
			}

			configLoaded = true
			if usedConfigPath == "" {
				usedConfigPath = path
			}

			break
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, "", err
	}

	config.applyDefaults()

	return &config, usedConfigPath, nil
}

// Validate checks file versions and the storage backend.
func (c *Config) Validate() error {
	if err := checkConfigVersion("common", c.Common.Version, CurrentCommonVersion); err != nil {
		return err
	}

	if err := checkConfigVersion("bot", c.Bot.Version, CurrentBotVersion); err != nil {
		return err
	}

	switch c.Common.Storage.Backend {
	case "", BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Common.Storage.Backend)
	}

	return nil
}

// applyDefaults fills zero values with their defaults.
func (c *Config) applyDefaults() {
	if c.Common.Storage.Backend == "" {
		c.Common.Storage.Backend = BackendPostgres
	}
	if c.Common.Storage.SQLiteDir == "" {
		c.Common.Storage.SQLiteDir = "data"
	}

	debug := &c.Common.Debug
	if debug.LogLevel == "" {
		debug.LogLevel = DefaultLogLevel
	}
	if debug.MaxLogsToKeep <= 0 {
		debug.MaxLogsToKeep = DefaultMaxLogsToKeep
	}
	if debug.MaxLogSizeMB <= 0 {
		debug.MaxLogSizeMB = DefaultMaxLogSizeMB
	}
	if debug.MaxLogBackups <= 0 {
		debug.MaxLogBackups = DefaultMaxLogBackups
	}
	if c.Common.Metrics.Port == 0 {
		c.Common.Metrics.Port = DefaultMetricsPort
	}

	d := &c.Bot.Display
	if d.LeaderboardLimit <= 0 {
		d.LeaderboardLimit = DefaultLeaderboardLimit
	}
	if d.StockTitle == "" {
		d.StockTitle = DefaultStockTitle
	}
	if d.LeaderboardTitle == "" {
		d.LeaderboardTitle = DefaultLeaderboardTitle
	}
	if d.Color == 0 {
		d.Color = DefaultColor
	}
	if d.StockEmptyText == "" {
		d.StockEmptyText = DefaultStockEmpty
	}
	if d.LeaderboardEmptyText == "" {
		d.LeaderboardEmptyText = DefaultLeaderboardEmpty
	}
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/storefront/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}

// millis converts a millisecond setting to a duration, falling back to def
// for non-positive values.
func millis(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
