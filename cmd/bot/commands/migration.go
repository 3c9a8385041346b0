package commands

import (
	"context"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// Loader opens the dependencies for a single command run.
type Loader func(ctx context.Context) (*CLIDependencies, func(), error)

// MigrationCommands returns all migration-related commands.
func MigrationCommands(load Loader) []*cli.Command {
	return []*cli.Command{
		{
			Name:   "init",
			Usage:  "Initialize migration tables",
			Action: withMigrator(load, handleInit),
		},
		{
			Name:   "up",
			Usage:  "Run pending migrations",
			Action: withMigrator(load, handleMigrate),
		},
		{
			Name:   "rollback",
			Usage:  "Rollback the last migration group",
			Action: withMigrator(load, handleRollback),
		},
		{
			Name:   "status",
			Usage:  "Show migration status",
			Action: withMigrator(load, handleStatus),
		},
		{
			Name:      "create",
			Usage:     "Create a new Go migration file",
			ArgsUsage: "NAME",
			Action:    withMigrator(load, handleCreate),
		},
	}
}

// withMigrator opens the dependencies, checks that a migrator exists and
// closes everything once the handler returns.
func withMigrator(
	load Loader, handler func(ctx context.Context, c *cli.Command, deps *CLIDependencies) error,
) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		deps, closeDeps, err := load(ctx)
		if err != nil {
			return err
		}
		defer closeDeps()

		if deps.Migrator == nil {
			return ErrMigratorMissing
		}

		return handler(ctx, c, deps)
	}
}

// handleInit handles the 'init' command.
func handleInit(ctx context.Context, _ *cli.Command, deps *CLIDependencies) error {
	return deps.Migrator.Init(ctx)
}

// handleMigrate handles the 'up' command.
func handleMigrate(ctx context.Context, _ *cli.Command, deps *CLIDependencies) error {
	if err := deps.Migrator.Init(ctx); err != nil {
		return err
	}

	if err := deps.Migrator.Lock(ctx); err != nil {
		return err
	}
	defer deps.Migrator.Unlock(ctx) //nolint:errcheck // -

	group, err := deps.Migrator.Migrate(ctx)
	if err != nil {
		return err
	}

	if group.IsZero() {
		deps.Logger.Info("No new migrations to run (database is up to date)")
		return nil
	}

	deps.Logger.Info("Successfully migrated",
		zap.String("group", group.String()),
	)

	return nil
}

// handleRollback handles the 'rollback' command.
func handleRollback(ctx context.Context, _ *cli.Command, deps *CLIDependencies) error {
	if err := deps.Migrator.Lock(ctx); err != nil {
		return err
	}
	defer deps.Migrator.Unlock(ctx) //nolint:errcheck // -

	group, err := deps.Migrator.Rollback(ctx)
	if err != nil {
		return err
	}

	if group.IsZero() {
		deps.Logger.Info("No groups to roll back")
		return nil
	}

	deps.Logger.Info("Successfully rolled back",
		zap.String("group", group.String()),
	)

	return nil
}

// handleStatus handles the 'status' command.
func handleStatus(ctx context.Context, _ *cli.Command, deps *CLIDependencies) error {
	ms, err := deps.Migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return err
	}

	deps.Logger.Info("Migration status",
		zap.String("migrations", ms.String()),
		zap.String("unapplied", ms.Unapplied().String()),
		zap.String("last_group", ms.LastGroup().String()),
	)

	return nil
}

// handleCreate handles the 'create' command.
func handleCreate(ctx context.Context, c *cli.Command, deps *CLIDependencies) error {
	if c.Args().Len() != 1 {
		return ErrNameRequired
	}

	mf, err := deps.Migrator.CreateGoMigration(ctx, c.Args().First())
	if err != nil {
		return err
	}

	deps.Logger.Info("Created Go migration",
		zap.String("name", mf.Name),
		zap.String("path", mf.Path),
	)

	return nil
}
