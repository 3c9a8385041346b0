package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robalyx/storefront/cmd/bot/commands"
	"github.com/robalyx/storefront/internal/bot"
	"github.com/robalyx/storefront/internal/bot/cooldown"
	"github.com/robalyx/storefront/internal/database"
	"github.com/robalyx/storefront/internal/discord/platform"
	"github.com/robalyx/storefront/internal/display"
	"github.com/robalyx/storefront/internal/redis"
	"github.com/robalyx/storefront/internal/setup"
	"github.com/robalyx/storefront/internal/setup/config"
	"github.com/robalyx/storefront/internal/shop"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"

	// shutdownTimeout bounds the wait for the running display refresh.
	shutdownTimeout = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:   "bot",
		Usage:  "Run the storefront Discord bot",
		Action: runBot,
		Commands: []*cli.Command{
			{
				Name:     "migrate",
				Usage:    "Database migration tool",
				Commands: commands.MigrationCommands(loadDependencies),
			},
			{
				Name:     "codes",
				Usage:    "Offline stock management",
				Commands: commands.CodeCommands(loadDependencies),
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// displays serves both publishing and previews to the command handlers.
type displays struct {
	*display.Publisher
	*display.Scheduler
}

// runBot starts the bot and blocks until an interrupt signal arrives.
func runBot(ctx context.Context, _ *cli.Command) error {
	app, err := setup.InitializeApp(ctx, BotLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(context.Background())

	logger := app.Logger
	botCfg := &app.Config.Bot
	displayCfg := botCfg.Display

	cooldownClient, err := app.RedisManager.GetClient(redis.CooldownDBIndex)
	if err != nil {
		return err
	}

	// Restore published displays from the tenant settings
	clock := display.SystemClock{}
	registry := display.NewRegistry(app.Store, clock, logger)
	recovered := registry.Recover(ctx)

	discordBot, err := bot.New(botCfg, cooldown.New(cooldownClient, botCfg.CommandCooldown()), registry, logger)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	messenger := platform.New(discordBot.Rest(), logger)

	renderer := display.NewRenderer(display.Options{
		StockTitle:           displayCfg.StockTitle,
		LeaderboardTitle:     displayCfg.LeaderboardTitle,
		Color:                displayCfg.Color,
		ImageURL:             displayCfg.ImageURL,
		StockEmptyText:       displayCfg.StockEmptyText,
		LeaderboardEmptyText: displayCfg.LeaderboardEmptyText,
		LeaderboardLimit:     displayCfg.LeaderboardLimit,
	})

	scheduler := display.NewScheduler(display.SchedulerParams{
		Registry:       registry,
		Reader:         app.Store,
		Messenger:      messenger,
		Renderer:       renderer,
		Clock:          clock,
		Metrics:        display.NewMetrics(app.Metrics),
		Logger:         logger,
		OperationDelay: displayCfg.OperationDelay(),
	})
	publisher := display.NewPublisher(registry, app.Store, messenger, renderer, clock, logger)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()

	service := shop.NewService(app.Store, scheduler, logger)

	// Low stock alerts are checked after every display sweep
	sweeper := display.NewSweeper(
		registry, scheduler, clock, displayCfg.RefreshInterval(), displayCfg.SweepStagger(), logger,
	)
	sweeper.AddTicker(shop.NewStockAlerter(service, messenger, displayCfg.Color, logger))
	go sweeper.Run(sweepCtx)

	discordBot.Attach(bot.NewHandlers(service, displays{publisher, scheduler}, messenger, messenger, logger))

	// Start the bot and connect to Discord
	if err := discordBot.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	logger.Info("Bot has been started. Waiting for interrupt signal to gracefully shutdown...",
		zap.Int("recoveredDisplays", recovered))

	// Wait for interrupt signal to gracefully shutdown the bot
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop taking commands before letting the last refresh finish
	discordBot.Close(shutdownCtx)
	stopSweep()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("Display scheduler did not stop cleanly", zap.Error(err))
	}

	return nil
}

// loadDependencies opens the configured store for the offline commands.
// PostgreSQL connections are opened without migrating so the migrate
// commands stay in control of the schema.
func loadDependencies(ctx context.Context) (*commands.CLIDependencies, func(), error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	deps := &commands.CLIDependencies{Logger: logger}

	if cfg.Common.Storage.Backend == config.BackendPostgres {
		db, err := database.NewConnection(ctx, &cfg.Common.PostgreSQL, logger, false)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		deps.Store = db
		deps.Migrator = database.NewMigrator(db.DB())
	} else {
		store, err := setup.OpenStore(ctx, &cfg.Common, logger)
		if err != nil {
			return nil, nil, err
		}

		deps.Store = store
	}

	closeDeps := func() {
		if err := deps.Store.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
		_ = logger.Sync()
	}

	return deps, closeDeps, nil
}
