package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/storefront/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		tables := []struct {
			model any
			name  string
		}{
			{(*types.Product)(nil), "products"},
			{(*types.Code)(nil), "codes"},
			{(*types.Order)(nil), "orders"},
			{(*types.Purchase)(nil), "purchases"},
			{(*types.LeaderboardEntry)(nil), "leaderboard_entries"},
			{(*types.Testimonial)(nil), "testimonials"},
			{(*types.GuildSetting)(nil), "guild_settings"},
		}

		for _, table := range tables {
			_, err := db.NewCreateTable().
				Model(table.model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %s: %w", table.name, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.GuildSetting)(nil),
			(*types.Testimonial)(nil),
			(*types.LeaderboardEntry)(nil),
			(*types.Purchase)(nil),
			(*types.Order)(nil),
			(*types.Code)(nil),
			(*types.Product)(nil),
		}

		for _, model := range models {
			if _, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop table: %w", err)
			}
		}

		return nil
	})
}
