package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database/dbretry"
	"github.com/robalyx/storefront/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ErrNotEnough is returned by Claim when fewer unused codes exist than requested.
var ErrNotEnough = errors.New("not enough unused codes")

// CodeModel handles database operations for product codes.
type CodeModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewCode creates a CodeModel with database access.
func NewCode(db *bun.DB, logger *zap.Logger) *CodeModel {
	return &CodeModel{
		db:     db,
		logger: logger.Named("db_code"),
	}
}

// Create inserts a single code.
func (r *CodeModel) Create(ctx context.Context, code *types.Code) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(code).
			Returning("id, created_at").
			Exec(ctx)
		if err != nil {
			if dbretry.IsUniqueViolation(err) {
				return fmt.Errorf("%w: code for %s", ErrDuplicate, code.Product)
			}
			return fmt.Errorf("failed to create code: %w (guildID=%d)", err, code.GuildID)
		}
		return nil
	})
}

// CreateMany inserts codes, silently skipping values that already exist.
// Returns the number of codes that were actually added.
func (r *CodeModel) CreateMany(ctx context.Context, codes []*types.Code) (int, error) {
	if len(codes) == 0 {
		return 0, nil
	}

	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		result, err := r.db.NewInsert().Model(&codes).
			On("CONFLICT (guild_id, value) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to create codes: %w (count=%d)", err, len(codes))
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count inserted codes: %w", err)
		}
		return int(rows), nil
	})
}

// Delete removes a code of a product.
func (r *CodeModel) Delete(ctx context.Context, guildID snowflake.ID, product, value string) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		result, err := r.db.NewDelete().Model((*types.Code)(nil)).
			Where("guild_id = ?", guildID).
			Where("product = ?", product).
			Where("value = ?", value).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to delete code: %w (guildID=%d, product=%s)", err, guildID, product)
		}
		return affected(result), nil
	})
}

// ListUnused returns every unused code of a product.
func (r *CodeModel) ListUnused(ctx context.Context, guildID snowflake.ID, product string) ([]*types.Code, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Code, error) {
		var codes []*types.Code
		err := r.db.NewSelect().Model(&codes).
			Where("guild_id = ?", guildID).
			Where("product = ?", product).
			Where("used = FALSE").
			Order("id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list codes: %w (guildID=%d, product=%s)", err, guildID, product)
		}
		return codes, nil
	})
}

// CountUnused returns the live stock of a product.
func (r *CodeModel) CountUnused(ctx context.Context, guildID snowflake.ID, product string) (int, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		count, err := r.db.NewSelect().Model((*types.Code)(nil)).
			Where("guild_id = ?", guildID).
			Where("product = ?", product).
			Where("used = FALSE").
			Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count stock: %w (guildID=%d, product=%s)", err, guildID, product)
		}
		return count, nil
	})
}

// Summary returns available and total code counts grouped by product.
func (r *CodeModel) Summary(ctx context.Context, guildID snowflake.ID) ([]*types.StockSummary, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.StockSummary, error) {
		var summary []*types.StockSummary
		err := r.db.NewSelect().Model((*types.Code)(nil)).
			Column("product").
			ColumnExpr("COUNT(*) FILTER (WHERE used = FALSE) AS available").
			ColumnExpr("COUNT(*) AS total").
			Where("guild_id = ?", guildID).
			Group("product").
			Order("product ASC").
			Scan(ctx, &summary)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize stock: %w (guildID=%d)", err, guildID)
		}
		return summary, nil
	})
}

// Claim marks the oldest `quantity` unused codes of a product as used and
// returns them. Nothing is claimed when fewer codes are available.
func (r *CodeModel) Claim(
	ctx context.Context, guildID snowflake.ID, product string, quantity int, now time.Time,
) ([]*types.Code, error) {
	var codes []*types.Code

	err := dbretry.Transaction(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		codes = nil
		err := tx.NewSelect().Model(&codes).
			Where("guild_id = ?", guildID).
			Where("product = ?", product).
			Where("used = FALSE").
			Order("id ASC").
			Limit(quantity).
			For("UPDATE SKIP LOCKED").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("failed to select codes: %w", err)
		}

		if len(codes) < quantity {
			return fmt.Errorf("%w: requested %d, available %d", ErrNotEnough, quantity, len(codes))
		}

		ids := make([]int64, len(codes))
		for i, code := range codes {
			ids[i] = code.ID
			code.Used = true
			code.UsedAt = now
		}

		_, err = tx.NewUpdate().Model((*types.Code)(nil)).
			Set("used = TRUE").
			Set("used_at = ?", now).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to mark codes as used: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return codes, nil
}
