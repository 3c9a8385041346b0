package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database/dbretry"
	"github.com/robalyx/storefront/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// userOrdersLimit caps the order history returned for a single buyer.
const userOrdersLimit = 10

// OrderModel handles database operations for orders.
type OrderModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewOrder creates an OrderModel with database access.
func NewOrder(db *bun.DB, logger *zap.Logger) *OrderModel {
	return &OrderModel{
		db:     db,
		logger: logger.Named("db_order"),
	}
}

// Create inserts a pending order and returns its ID.
func (r *OrderModel) Create(ctx context.Context, order *types.Order) (int64, error) {
	if order.Status == "" {
		order.Status = types.OrderStatusPending
	}

	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		_, err := r.db.NewInsert().Model(order).
			Returning("id, created_at, updated_at").
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to create order: %w (guildID=%d, userID=%d)", err, order.GuildID, order.UserID)
		}
		return order.ID, nil
	})
}

// Get returns a single order by ID.
func (r *OrderModel) Get(ctx context.Context, guildID snowflake.ID, orderID int64) (*types.Order, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Order, error) {
		var order types.Order
		err := r.db.NewSelect().Model(&order).
			Where("guild_id = ?", guildID).
			Where("id = ?", orderID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to get order: %w (guildID=%d, orderID=%d)", err, guildID, orderID)
		}
		return &order, nil
	})
}

// Transition moves an order from one status to another in a single
// conditional update. Returns false when the order is not in status from.
func (r *OrderModel) Transition(
	ctx context.Context, guildID snowflake.ID, orderID int64, from, to types.OrderStatus, now time.Time,
) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		result, err := r.db.NewUpdate().Model((*types.Order)(nil)).
			Set("status = ?", to).
			Set("updated_at = ?", now).
			Where("guild_id = ?", guildID).
			Where("id = ?", orderID).
			Where("status = ?", from).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to update order: %w (guildID=%d, orderID=%d)", err, guildID, orderID)
		}
		return affected(result), nil
	})
}

// ListPending returns pending orders, newest first.
func (r *OrderModel) ListPending(ctx context.Context, guildID snowflake.ID) ([]*types.Order, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Order, error) {
		var orders []*types.Order
		err := r.db.NewSelect().Model(&orders).
			Where("guild_id = ?", guildID).
			Where("status = ?", types.OrderStatusPending).
			Order("created_at DESC", "id DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending orders: %w (guildID=%d)", err, guildID)
		}
		return orders, nil
	})
}

// ListByUser returns the most recent orders of a buyer.
func (r *OrderModel) ListByUser(ctx context.Context, guildID, userID snowflake.ID) ([]*types.Order, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Order, error) {
		var orders []*types.Order
		err := r.db.NewSelect().Model(&orders).
			Where("guild_id = ?", guildID).
			Where("user_id = ?", userID).
			Order("created_at DESC", "id DESC").
			Limit(userOrdersLimit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list user orders: %w (guildID=%d, userID=%d)", err, guildID, userID)
		}
		return orders, nil
	})
}
