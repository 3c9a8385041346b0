package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database/migrations"
	"github.com/robalyx/storefront/internal/database/models"
	"github.com/robalyx/storefront/internal/database/types"
	"github.com/robalyx/storefront/internal/setup/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bunjson"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// sonicProvider is a JSON provider that uses Sonic for encoding and decoding.
type sonicProvider struct{}

func (sonicProvider) Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

func (sonicProvider) Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

func (sonicProvider) NewEncoder(w io.Writer) bunjson.Encoder {
	return sonic.ConfigDefault.NewEncoder(w)
}

func (sonicProvider) NewDecoder(r io.Reader) bunjson.Decoder {
	return sonic.ConfigDefault.NewDecoder(r)
}

// Client is the PostgreSQL-backed Store with access to the underlying models.
type Client interface {
	Store
	// Model returns the repository containing all model operations.
	Model() *Repository
	// DB returns the underlying bun.DB instance.
	DB() *bun.DB
}

// clientImpl represents the concrete implementation of the database client.
type clientImpl struct {
	db     *bun.DB
	logger *zap.Logger
	repo   *Repository
	now    func() time.Time
}

// NewConnection establishes a new database connection and returns a Client instance.
func NewConnection(
	ctx context.Context, config *config.PostgreSQL, logger *zap.Logger, autoMigrate bool,
) (Client, error) {
	// Initialize database connection with config values
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", config.Host, config.Port)),
		pgdriver.WithUser(config.User),
		pgdriver.WithPassword(config.Password),
		pgdriver.WithDatabase(config.DBName),
		pgdriver.WithInsecure(true),
		pgdriver.WithApplicationName("storefront"),
	))

	// Set connection pool settings
	sqldb.SetMaxOpenConns(config.MaxOpenConns)
	sqldb.SetMaxIdleConns(config.MaxIdleConns)
	sqldb.SetConnMaxLifetime(time.Duration(config.MaxLifetime) * time.Minute)
	sqldb.SetConnMaxIdleTime(time.Duration(config.MaxIdleTime) * time.Minute)

	db := NewDB(sqldb, logger)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Run migrations if requested
	if autoMigrate {
		if _, err := Migrate(ctx, db, logger); err != nil {
			return nil, err
		}
	}

	logger.Info("Database connection established")

	return NewClient(db, logger), nil
}

// NewDB wraps a sql.DB with the PostgreSQL dialect, the Sonic JSON provider
// and the query logging hook.
func NewDB(sqldb *sql.DB, logger *zap.Logger) *bun.DB {
	bunjson.SetProvider(sonicProvider{})

	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(NewHook(logger))

	return db
}

// NewClient creates a Client over an existing bun.DB.
func NewClient(db *bun.DB, logger *zap.Logger) Client {
	return &clientImpl{
		db:     db,
		logger: logger.Named("database"),
		repo:   NewRepository(db, logger),
		now:    time.Now,
	}
}

// NewMigrator creates a migrator over all registered migrations.
func NewMigrator(db *bun.DB) *migrate.Migrator {
	return migrate.NewMigrator(db, migrations.Migrations)
}

// Migrate runs every pending migration and returns the applied group.
func Migrate(ctx context.Context, db *bun.DB, logger *zap.Logger) (*migrate.MigrationGroup, error) {
	migrator := NewMigrator(db)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}

	if err := migrator.Lock(ctx); err != nil {
		return nil, fmt.Errorf("failed to lock migrations: %w", err)
	}
	defer migrator.Unlock(ctx) //nolint:errcheck // -

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if group.IsZero() {
		logger.Info("No new migrations to run (database is up to date)")
	} else {
		logger.Info("Automatically ran migrations", zap.String("group", group.String()))
	}

	return group, nil
}

// Close gracefully shuts down the database connection.
func (c *clientImpl) Close() error {
	err := c.db.Close()
	if err != nil {
		c.logger.Error("Failed to close database connection", zap.Error(err))
		return err
	}

	c.logger.Info("Database connection closed")

	return nil
}

// Model returns the repository containing all model operations.
func (c *clientImpl) Model() *Repository {
	return c.repo
}

// DB returns the underlying bun.DB instance.
func (c *clientImpl) DB() *bun.DB {
	return c.db
}

func (c *clientImpl) AddProduct(ctx context.Context, guildID snowflake.ID, code, name string, price int64) error {
	err := c.repo.Product().Create(ctx, &types.Product{
		GuildID: guildID,
		Code:    NormalizeProductCode(code),
		Name:    strings.TrimSpace(name),
		Price:   price,
	})
	if errors.Is(err, models.ErrDuplicate) {
		return ErrDuplicateProduct
	}
	return err
}

func (c *clientImpl) GetProducts(ctx context.Context, guildID snowflake.ID) ([]*types.Product, error) {
	return c.repo.Product().List(ctx, guildID)
}

func (c *clientImpl) GetProduct(ctx context.Context, guildID snowflake.ID, code string) (*types.Product, error) {
	product, err := c.repo.Product().Get(ctx, guildID, NormalizeProductCode(code))
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	return product, err
}

func (c *clientImpl) UpdateProduct(
	ctx context.Context, guildID snowflake.ID, code, name string, price int64,
) (bool, error) {
	return c.repo.Product().Update(ctx, guildID, NormalizeProductCode(code), strings.TrimSpace(name), price)
}

func (c *clientImpl) DeleteProduct(ctx context.Context, guildID snowflake.ID, code string) (bool, error) {
	return c.repo.Product().Delete(ctx, guildID, NormalizeProductCode(code))
}

func (c *clientImpl) AddCode(ctx context.Context, guildID snowflake.ID, product, code string) error {
	err := c.repo.Code().Create(ctx, &types.Code{
		GuildID: guildID,
		Product: NormalizeProductCode(product),
		Value:   strings.TrimSpace(code),
	})
	if errors.Is(err, models.ErrDuplicate) {
		return ErrDuplicateCode
	}
	return err
}

func (c *clientImpl) AddCodes(ctx context.Context, guildID snowflake.ID, product string, codes []string) (int, error) {
	product = NormalizeProductCode(product)

	rows := make([]*types.Code, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, value := range codes {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		rows = append(rows, &types.Code{GuildID: guildID, Product: product, Value: value})
	}

	return c.repo.Code().CreateMany(ctx, rows)
}

func (c *clientImpl) DeleteCode(ctx context.Context, guildID snowflake.ID, product, code string) (bool, error) {
	return c.repo.Code().Delete(ctx, guildID, NormalizeProductCode(product), strings.TrimSpace(code))
}

func (c *clientImpl) GetUnusedCodes(ctx context.Context, guildID snowflake.ID, product string) ([]*types.Code, error) {
	return c.repo.Code().ListUnused(ctx, guildID, NormalizeProductCode(product))
}

func (c *clientImpl) GetProductStock(ctx context.Context, guildID snowflake.ID, product string) (int, error) {
	return c.repo.Code().CountUnused(ctx, guildID, NormalizeProductCode(product))
}

func (c *clientImpl) GetStockSummary(ctx context.Context, guildID snowflake.ID) ([]*types.StockSummary, error) {
	return c.repo.Code().Summary(ctx, guildID)
}

func (c *clientImpl) ClaimCodes(
	ctx context.Context, guildID snowflake.ID, product string, quantity int,
) ([]*types.Code, error) {
	codes, err := c.repo.Code().Claim(ctx, guildID, NormalizeProductCode(product), quantity, c.now())
	if errors.Is(err, models.ErrNotEnough) {
		return nil, fmt.Errorf("%w: %w", ErrInsufficientStock, err)
	}
	return codes, err
}

func (c *clientImpl) CreateOrder(ctx context.Context, order *types.Order) (int64, error) {
	order.Product = NormalizeProductCode(order.Product)
	order.Status = types.OrderStatusPending
	return c.repo.Order().Create(ctx, order)
}

func (c *clientImpl) GetOrder(ctx context.Context, guildID snowflake.ID, orderID int64) (*types.Order, error) {
	order, err := c.repo.Order().Get(ctx, guildID, orderID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (c *clientImpl) TransitionOrderStatus(
	ctx context.Context, guildID snowflake.ID, orderID int64, from, to types.OrderStatus,
) (bool, error) {
	return c.repo.Order().Transition(ctx, guildID, orderID, from, to, c.now())
}

func (c *clientImpl) GetPendingOrders(ctx context.Context, guildID snowflake.ID) ([]*types.Order, error) {
	return c.repo.Order().ListPending(ctx, guildID)
}

func (c *clientImpl) GetUserOrders(ctx context.Context, guildID, userID snowflake.ID) ([]*types.Order, error) {
	return c.repo.Order().ListByUser(ctx, guildID, userID)
}

func (c *clientImpl) AddPurchase(ctx context.Context, purchase *types.Purchase) error {
	purchase.Product = NormalizeProductCode(purchase.Product)
	if purchase.Codes == nil {
		purchase.Codes = []string{}
	}
	return c.repo.Purchase().Create(ctx, purchase)
}

func (c *clientImpl) GetPurchases(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.Purchase, error) {
	return c.repo.Purchase().List(ctx, guildID, ListLimit(limit))
}

func (c *clientImpl) GetPurchasesSince(
	ctx context.Context, guildID snowflake.ID, since time.Time,
) ([]*types.Purchase, error) {
	return c.repo.Purchase().ListSince(ctx, guildID, since)
}

func (c *clientImpl) GetLeaderboard(
	ctx context.Context, guildID snowflake.ID, limit int,
) ([]*types.LeaderboardEntry, error) {
	return c.repo.Purchase().Leaderboard(ctx, guildID, ListLimit(limit))
}

func (c *clientImpl) SumSales(ctx context.Context, guildID snowflake.ID, since time.Time) (int64, error) {
	return c.repo.Purchase().Sum(ctx, guildID, since)
}

func (c *clientImpl) AddTestimonial(ctx context.Context, testimonial *types.Testimonial) (int64, error) {
	testimonial.Rating = ClampRating(testimonial.Rating)
	return c.repo.Testimonial().Create(ctx, testimonial)
}

func (c *clientImpl) GetTestimonials(
	ctx context.Context, guildID snowflake.ID, limit int,
) ([]*types.Testimonial, error) {
	return c.repo.Testimonial().List(ctx, guildID, ListLimit(limit))
}

func (c *clientImpl) GetSetting(ctx context.Context, guildID snowflake.ID, key string) (string, bool, error) {
	return c.repo.Setting().Get(ctx, guildID, key)
}

func (c *clientImpl) SetSetting(ctx context.Context, guildID snowflake.ID, key, value string) error {
	return c.repo.Setting().Set(ctx, guildID, key, value)
}

func (c *clientImpl) DeleteSetting(ctx context.Context, guildID snowflake.ID, key string) error {
	return c.repo.Setting().Delete(ctx, guildID, key)
}

func (c *clientImpl) GuildsWithSetting(ctx context.Context, key string) ([]snowflake.ID, error) {
	return c.repo.Setting().GuildsWithKey(ctx, key)
}
