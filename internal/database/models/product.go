package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database/dbretry"
	"github.com/robalyx/storefront/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

var (
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound is returned when a single-row lookup matches nothing.
	ErrNotFound = errors.New("record not found")
)

// ProductModel handles database operations for product listings.
type ProductModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewProduct creates a ProductModel with database access.
func NewProduct(db *bun.DB, logger *zap.Logger) *ProductModel {
	return &ProductModel{
		db:     db,
		logger: logger.Named("db_product"),
	}
}

// Create inserts a new product.
func (r *ProductModel) Create(ctx context.Context, product *types.Product) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(product).
			Returning("id, created_at").
			Exec(ctx)
		if err != nil {
			if dbretry.IsUniqueViolation(err) {
				return fmt.Errorf("%w: product %s", ErrDuplicate, product.Code)
			}
			return fmt.Errorf("failed to create product: %w (guildID=%d)", err, product.GuildID)
		}
		return nil
	})
}

// List returns all products of a guild ordered by name.
func (r *ProductModel) List(ctx context.Context, guildID snowflake.ID) ([]*types.Product, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Product, error) {
		var products []*types.Product
		err := r.db.NewSelect().Model(&products).
			Where("guild_id = ?", guildID).
			Order("name ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list products: %w (guildID=%d)", err, guildID)
		}
		return products, nil
	})
}

// Get returns a single product by code.
func (r *ProductModel) Get(ctx context.Context, guildID snowflake.ID, code string) (*types.Product, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Product, error) {
		var product types.Product
		err := r.db.NewSelect().Model(&product).
			Where("guild_id = ?", guildID).
			Where("code = ?", code).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to get product: %w (guildID=%d, code=%s)", err, guildID, code)
		}
		return &product, nil
	})
}

// Update changes the name and price of a product.
func (r *ProductModel) Update(ctx context.Context, guildID snowflake.ID, code, name string, price int64) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		result, err := r.db.NewUpdate().Model((*types.Product)(nil)).
			Set("name = ?", name).
			Set("price = ?", price).
			Where("guild_id = ?", guildID).
			Where("code = ?", code).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to update product: %w (guildID=%d, code=%s)", err, guildID, code)
		}
		return affected(result), nil
	})
}

// Delete removes a product. Codes of the product are kept.
func (r *ProductModel) Delete(ctx context.Context, guildID snowflake.ID, code string) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		result, err := r.db.NewDelete().Model((*types.Product)(nil)).
			Where("guild_id = ?", guildID).
			Where("code = ?", code).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to delete product: %w (guildID=%d, code=%s)", err, guildID, code)
		}
		return affected(result), nil
	})
}

// affected reports whether a statement changed at least one row.
func affected(result sql.Result) bool {
	rows, err := result.RowsAffected()
	return err == nil && rows > 0
}
