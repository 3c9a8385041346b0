package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Stock lookups only ever touch unused codes
			CREATE INDEX IF NOT EXISTS idx_codes_unused
			ON codes (guild_id, product, id)
			WHERE used = false;

			CREATE INDEX IF NOT EXISTS idx_orders_pending
			ON orders (guild_id, created_at DESC)
			WHERE status = 'pending';

			CREATE INDEX IF NOT EXISTS idx_orders_user
			ON orders (guild_id, user_id, created_at DESC);

			CREATE INDEX IF NOT EXISTS idx_purchases_time
			ON purchases (guild_id, purchased_at DESC);

			CREATE INDEX IF NOT EXISTS idx_leaderboard_spent
			ON leaderboard_entries (guild_id, total_spent DESC);

			CREATE INDEX IF NOT EXISTS idx_testimonials_time
			ON testimonials (guild_id, created_at DESC);

			CREATE INDEX IF NOT EXISTS idx_guild_settings_key
			ON guild_settings (key);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_codes_unused;
			DROP INDEX IF EXISTS idx_orders_pending;
			DROP INDEX IF EXISTS idx_orders_user;
			DROP INDEX IF EXISTS idx_purchases_time;
			DROP INDEX IF EXISTS idx_leaderboard_spent;
			DROP INDEX IF EXISTS idx_testimonials_time;
			DROP INDEX IF EXISTS idx_guild_settings_key;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
