package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database"
	"github.com/robalyx/storefront/internal/shop"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// CodeCommands returns the offline stock management commands.
func CodeCommands(load Loader) []*cli.Command {
	return []*cli.Command{
		{
			Name:      "import",
			Usage:     "Import codes for a product from a file",
			ArgsUsage: "GUILD PRODUCT FILE",
			Description: `Import codes separated by newlines or commas into a product's stock.
Blank lines and codes already in the database are skipped. Live stock boards
catch up on their next periodic refresh.

Examples:
  bot codes import 123456789012345678 NITRO codes.txt`,
			Action: withStore(load, handleImport),
		},
		{
			Name:      "stock",
			Usage:     "Show the stock summary of a guild",
			ArgsUsage: "GUILD",
			Action:    withStore(load, handleStock),
		},
	}
}

// withStore opens the dependencies and closes them once the handler returns.
func withStore(
	load Loader, handler func(ctx context.Context, c *cli.Command, deps *CLIDependencies) error,
) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		deps, closeDeps, err := load(ctx)
		if err != nil {
			return err
		}
		defer closeDeps()

		return handler(ctx, c, deps)
	}
}

// handleImport handles the 'import' command.
func handleImport(ctx context.Context, c *cli.Command, deps *CLIDependencies) error {
	if c.Args().Len() != 3 {
		return ErrImportArgs
	}

	guildID, err := snowflake.Parse(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid guild ID: %w", err)
	}

	product := database.NormalizeProductCode(c.Args().Get(1))
	if _, err := deps.Store.GetProduct(ctx, guildID, product); err != nil {
		return err
	}

	raw, err := os.ReadFile(c.Args().Get(2))
	if err != nil {
		return fmt.Errorf("failed to read codes file: %w", err)
	}

	codes := shop.ParseCodes(string(raw))
	if len(codes) == 0 {
		return shop.ErrNoCodes
	}

	added, err := deps.Store.AddCodes(ctx, guildID, product, codes)
	if err != nil {
		return err
	}

	deps.Logger.Info("Imported codes",
		zap.Uint64("guildID", uint64(guildID)),
		zap.String("product", product),
		zap.Int("added", added),
		zap.Int("skipped", len(codes)-added),
	)

	return nil
}

// handleStock handles the 'stock' command.
func handleStock(ctx context.Context, c *cli.Command, deps *CLIDependencies) error {
	if c.Args().Len() != 1 {
		return ErrGuildRequired
	}

	guildID, err := snowflake.Parse(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid guild ID: %w", err)
	}

	summary, err := deps.Store.GetStockSummary(ctx, guildID)
	if err != nil {
		return err
	}

	if len(summary) == 0 {
		deps.Logger.Info("No products found", zap.Uint64("guildID", uint64(guildID)))
		return nil
	}

	for _, line := range summary {
		deps.Logger.Info("Stock",
			zap.String("product", line.Product),
			zap.Int("available", line.Available),
			zap.Int("total", line.Total),
		)
	}

	return nil
}
