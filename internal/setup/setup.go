package setup

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robalyx/storefront/internal/database"
	"github.com/robalyx/storefront/internal/database/sqlite"
	"github.com/robalyx/storefront/internal/redis"
	"github.com/robalyx/storefront/internal/setup/config"
	"github.com/robalyx/storefront/internal/setup/telemetry"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config       // Application configuration
	Logger       *zap.Logger          // Main application logger
	DBLogger     *zap.Logger          // Database-specific logger
	Store        database.Store       // Tenant store for the configured backend
	RedisManager *redis.Manager       // Redis connection manager
	LogManager   *telemetry.Manager   // Log management system
	Metrics      *prometheus.Registry // Registry served on /metrics
	metrics      *metricsServer       // HTTP server for the registry
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	// Load app configuration
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(logDir, &cfg.Common.Debug)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded configuration",
		zap.String("dir", configDir),
		zap.String("backend", cfg.Common.Storage.Backend))

	// Redis manager provides connection pools for various subsystems
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	store, err := OpenStore(ctx, &cfg.Common, dbLogger)
	if err != nil {
		redisManager.Close()
		logManager.Stop()
		return nil, err
	}

	registry := newMetricsRegistry()

	// Start metrics server if enabled
	var metricsSrv *metricsServer

	if cfg.Common.Metrics.Enabled {
		srv, err := startMetricsServer(cfg.Common.Metrics.Port, registry, logger)
		if err != nil {
			logger.Error("Failed to start metrics server", zap.Error(err))
		} else {
			metricsSrv = srv
		}
	}

	// Bundle all initialized components
	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		Store:        store,
		RedisManager: redisManager,
		LogManager:   logManager,
		Metrics:      registry,
		metrics:      metricsSrv,
	}, nil
}

// OpenStore opens the tenant store selected by the storage backend.
// PostgreSQL schemas are migrated on connect.
func OpenStore(ctx context.Context, cfg *config.CommonConfig, dbLogger *zap.Logger) (database.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		store, err := sqlite.New(cfg.Storage.SQLiteDir, dbLogger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendPostgres, "":
		return database.NewConnection(ctx, &cfg.PostgreSQL, dbLogger, true)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Storage.Backend)
	}
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	// Shutdown metrics server if running
	if s.metrics != nil {
		if err := s.metrics.srv.Shutdown(ctx); err != nil {
			s.Logger.Error("Failed to shutdown metrics server", zap.Error(err))
		}

		s.metrics.listener.Close()
	}

	// Close tenant store connections
	if err := s.Store.Close(); err != nil {
		s.Logger.Error("Failed to close store", zap.Error(err))
	}

	// Close Redis connections after the store as cooldowns might run until the end
	s.RedisManager.Close()

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Close log files last
	s.LogManager.Stop()
}
