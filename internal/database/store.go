package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database/types"
)

var (
	ErrDuplicateProduct  = errors.New("a product with this code already exists")
	ErrDuplicateCode     = errors.New("code already exists in the database")
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("not enough codes in stock")
)

// DefaultListLimit is used when a caller passes a non-positive limit.
const DefaultListLimit = 10

// Store is the tenant storage contract. Every operation is scoped to a
// single guild; data of one guild is never visible to another.
type Store interface {
	// Products
	AddProduct(ctx context.Context, guildID snowflake.ID, code, name string, price int64) error
	GetProducts(ctx context.Context, guildID snowflake.ID) ([]*types.Product, error)
	GetProduct(ctx context.Context, guildID snowflake.ID, code string) (*types.Product, error)
	UpdateProduct(ctx context.Context, guildID snowflake.ID, code, name string, price int64) (bool, error)
	DeleteProduct(ctx context.Context, guildID snowflake.ID, code string) (bool, error)

	// Codes
	AddCode(ctx context.Context, guildID snowflake.ID, product, code string) error
	AddCodes(ctx context.Context, guildID snowflake.ID, product string, codes []string) (int, error)
	DeleteCode(ctx context.Context, guildID snowflake.ID, product, code string) (bool, error)
	GetUnusedCodes(ctx context.Context, guildID snowflake.ID, product string) ([]*types.Code, error)
	GetProductStock(ctx context.Context, guildID snowflake.ID, product string) (int, error)
	GetStockSummary(ctx context.Context, guildID snowflake.ID) ([]*types.StockSummary, error)
	ClaimCodes(ctx context.Context, guildID snowflake.ID, product string, quantity int) ([]*types.Code, error)

	// Orders
	CreateOrder(ctx context.Context, order *types.Order) (int64, error)
	GetOrder(ctx context.Context, guildID snowflake.ID, orderID int64) (*types.Order, error)
	// TransitionOrderStatus moves an order from one status to another. It
	// returns false when the order does not exist or is not in status from.
	TransitionOrderStatus(
		ctx context.Context, guildID snowflake.ID, orderID int64, from, to types.OrderStatus,
	) (bool, error)
	GetPendingOrders(ctx context.Context, guildID snowflake.ID) ([]*types.Order, error)
	GetUserOrders(ctx context.Context, guildID, userID snowflake.ID) ([]*types.Order, error)

	// Purchases and leaderboard
	AddPurchase(ctx context.Context, purchase *types.Purchase) error
	GetPurchases(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.Purchase, error)
	GetPurchasesSince(ctx context.Context, guildID snowflake.ID, since time.Time) ([]*types.Purchase, error)
	GetLeaderboard(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.LeaderboardEntry, error)
	SumSales(ctx context.Context, guildID snowflake.ID, since time.Time) (int64, error)

	// Testimonials
	AddTestimonial(ctx context.Context, testimonial *types.Testimonial) (int64, error)
	GetTestimonials(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.Testimonial, error)

	// Settings
	GetSetting(ctx context.Context, guildID snowflake.ID, key string) (string, bool, error)
	SetSetting(ctx context.Context, guildID snowflake.ID, key, value string) error
	DeleteSetting(ctx context.Context, guildID snowflake.ID, key string) error
	GuildsWithSetting(ctx context.Context, key string) ([]snowflake.ID, error)

	// Close releases all underlying connections.
	Close() error
}

// NormalizeProductCode returns the canonical form of a product code.
func NormalizeProductCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ClampRating keeps testimonial ratings within 1 to 5 stars.
func ClampRating(rating int) int {
	return min(max(rating, 1), 5)
}

// ListLimit returns limit, or DefaultListLimit when limit is not positive.
func ListLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
