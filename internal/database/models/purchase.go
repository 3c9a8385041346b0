package models

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database/dbretry"
	"github.com/robalyx/storefront/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// PurchaseModel handles purchase history and the spend leaderboard.
type PurchaseModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewPurchase creates a PurchaseModel with database access.
func NewPurchase(db *bun.DB, logger *zap.Logger) *PurchaseModel {
	return &PurchaseModel{
		db:     db,
		logger: logger.Named("db_purchase"),
	}
}

// Create records a purchase and folds it into the buyer's leaderboard entry
// in the same transaction.
func (r *PurchaseModel) Create(ctx context.Context, purchase *types.Purchase) error {
	return dbretry.Transaction(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(purchase).
			Returning("id, purchased_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert purchase: %w", err)
		}

		entry := &types.LeaderboardEntry{
			GuildID:        purchase.GuildID,
			UserID:         purchase.UserID,
			Username:       purchase.Username,
			TotalPurchases: 1,
			TotalSpent:     purchase.TotalPrice,
		}

		if _, err := tx.NewInsert().Model(entry).
			On("CONFLICT (guild_id, user_id) DO UPDATE").
			Set("username = EXCLUDED.username").
			Set("total_purchases = ?TableAlias.total_purchases + EXCLUDED.total_purchases").
			Set("total_spent = ?TableAlias.total_spent + EXCLUDED.total_spent").
			Returning("NULL").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to update leaderboard: %w", err)
		}

		return nil
	})
}

// List returns the most recent purchases of a guild.
func (r *PurchaseModel) List(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.Purchase, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Purchase, error) {
		var purchases []*types.Purchase
		err := r.db.NewSelect().Model(&purchases).
			Where("guild_id = ?", guildID).
			Order("purchased_at DESC", "id DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list purchases: %w (guildID=%d)", err, guildID)
		}
		return purchases, nil
	})
}

// ListSince returns purchases made at or after since, oldest first.
func (r *PurchaseModel) ListSince(ctx context.Context, guildID snowflake.ID, since time.Time) ([]*types.Purchase, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Purchase, error) {
		var purchases []*types.Purchase
		err := r.db.NewSelect().Model(&purchases).
			Where("guild_id = ?", guildID).
			Where("purchased_at >= ?", since).
			Order("purchased_at ASC", "id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list purchases: %w (guildID=%d)", err, guildID)
		}
		return purchases, nil
	})
}

// Sum returns total revenue since the given time. A zero time sums all sales.
func (r *PurchaseModel) Sum(ctx context.Context, guildID snowflake.ID, since time.Time) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		var total int64
		query := r.db.NewSelect().Model((*types.Purchase)(nil)).
			ColumnExpr("COALESCE(SUM(total_price), 0)").
			Where("guild_id = ?", guildID)
		if !since.IsZero() {
			query = query.Where("purchased_at >= ?", since)
		}

		if err := query.Scan(ctx, &total); err != nil {
			return 0, fmt.Errorf("failed to sum sales: %w (guildID=%d)", err, guildID)
		}
		return total, nil
	})
}

// Leaderboard returns the top buyers by total spent.
func (r *PurchaseModel) Leaderboard(
	ctx context.Context, guildID snowflake.ID, limit int,
) ([]*types.LeaderboardEntry, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.LeaderboardEntry, error) {
		var entries []*types.LeaderboardEntry
		err := r.db.NewSelect().Model(&entries).
			Where("guild_id = ?", guildID).
			Order("total_spent DESC", "total_purchases DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get leaderboard: %w (guildID=%d)", err, guildID)
		}
		return entries, nil
	})
}
