// Package sqlite implements the tenant store with one SQLite file per guild.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database"
	"github.com/robalyx/storefront/internal/database/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ErrClosed is returned for operations on a closed store.
var ErrClosed = errors.New("sqlite store is closed")

const fileExt = ".db"

// guildConn serializes access to a single guild database.
type guildConn struct {
	mu   sync.Mutex
	conn *sqlite.Conn
}

// Store is a database.Store backed by per-guild SQLite files named
// <dir>/<guildID>.db. Files are created on first use.
type Store struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	conns  map[snowflake.ID]*guildConn
	opens  singleflight.Group
	closed bool
}

var _ database.Store = (*Store)(nil)

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Store{
		dir:    dir,
		logger: logger.Named("sqlite_store"),
		now:    time.Now,
		conns:  make(map[snowflake.ID]*guildConn),
	}, nil
}

// Close closes every open guild database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	var errs []error
	for guildID, gc := range s.conns {
		gc.mu.Lock()
		if err := gc.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("guild %d: %w", guildID, err))
		}
		gc.mu.Unlock()
		delete(s.conns, guildID)
	}

	s.logger.Info("SQLite store closed")

	return errors.Join(errs...)
}

// path returns the database file of a guild.
func (s *Store) path(guildID snowflake.ID) string {
	return filepath.Join(s.dir, guildID.String()+fileExt)
}

// open returns the connection of a guild, opening and initializing the file
// once even under concurrent first use.
func (s *Store) open(guildID snowflake.ID) (*guildConn, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if gc, ok := s.conns[guildID]; ok {
		s.mu.Unlock()
		return gc, nil
	}
	s.mu.Unlock()

	v, err, _ := s.opens.Do(guildID.String(), func() (any, error) {
		s.mu.Lock()
		if gc, ok := s.conns[guildID]; ok {
			s.mu.Unlock()
			return gc, nil
		}
		s.mu.Unlock()

		conn, err := sqlite.OpenConn(s.path(guildID), sqlite.OpenCreate|sqlite.OpenReadWrite|sqlite.OpenWAL)
		if err != nil {
			return nil, fmt.Errorf("failed to open guild database: %w (guildID=%d)", err, guildID)
		}

		if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to initialize guild database: %w (guildID=%d)", err, guildID)
		}

		gc := &guildConn{conn: conn}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			_ = conn.Close()
			return nil, ErrClosed
		}
		s.conns[guildID] = gc

		s.logger.Debug("Opened guild database", zap.Uint64("guildID", uint64(guildID)))

		return gc, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*guildConn), nil
}

// with runs fn while holding the guild's connection. The statement is
// interrupted when ctx is done.
func (s *Store) with(ctx context.Context, guildID snowflake.ID, fn func(conn *sqlite.Conn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gc, err := s.open(guildID)
	if err != nil {
		return err
	}

	gc.mu.Lock()
	defer gc.mu.Unlock()

	gc.conn.SetInterrupt(ctx.Done())
	defer gc.conn.SetInterrupt(nil)

	return fn(gc.conn)
}

// isUnique reports whether err is a unique constraint violation.
func isUnique(err error) bool {
	code := sqlite.ErrCode(err)
	return code == sqlite.ResultConstraintUnique || code == sqlite.ResultConstraintPrimaryKey
}

// exec runs a statement with optional per-row callback.
func exec(conn *sqlite.Conn, query string, fn func(stmt *sqlite.Stmt) error, args ...any) error {
	return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args:       args,
		ResultFunc: fn,
	})
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func parseUserID(text string) snowflake.ID {
	id, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0
	}
	return snowflake.ID(id)
}

// Products

func (s *Store) AddProduct(ctx context.Context, guildID snowflake.ID, code, name string, price int64) error {
	return s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		err := exec(conn,
			`INSERT INTO products (code, name, price, created_at) VALUES (?, ?, ?, ?)`, nil,
			database.NormalizeProductCode(code), strings.TrimSpace(name), price, millis(s.now()))
		if isUnique(err) {
			return database.ErrDuplicateProduct
		}
		if err != nil {
			return fmt.Errorf("failed to add product: %w (guildID=%d)", err, guildID)
		}
		return nil
	})
}

const productColumns = `id, code, name, price, created_at`

func scanProduct(guildID snowflake.ID, stmt *sqlite.Stmt) *types.Product {
	return &types.Product{
		ID:        stmt.GetInt64("id"),
		GuildID:   guildID,
		Code:      stmt.GetText("code"),
		Name:      stmt.GetText("name"),
		Price:     stmt.GetInt64("price"),
		CreatedAt: fromMillis(stmt.GetInt64("created_at")),
	}
}

func (s *Store) GetProducts(ctx context.Context, guildID snowflake.ID) ([]*types.Product, error) {
	var products []*types.Product
	err := s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		return exec(conn, `SELECT `+productColumns+` FROM products ORDER BY name ASC, id ASC`,
			func(stmt *sqlite.Stmt) error {
				products = append(products, scanProduct(guildID, stmt))
				return nil
			})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w (guildID=%d)", err, guildID)
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, guildID snowflake.ID, code string) (*types.Product, error) {
	var product *types.Product
	err := s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		return exec(conn, `SELECT `+productColumns+` FROM products WHERE code = ?`,
			func(stmt *sqlite.Stmt) error {
				product = scanProduct(guildID, stmt)
				return nil
			}, database.NormalizeProductCode(code))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w (guildID=%d)", err, guildID)
	}
	if product == nil {
		return nil, database.ErrProductNotFound
	}
	return product, nil
}

func (s *Store) UpdateProduct(
	ctx context.Context, guildID snowflake.ID, code, name string, price int64,
) (bool, error) {
	return s.change(ctx, guildID, `UPDATE products SET name = ?, price = ? WHERE code = ?`,
		strings.TrimSpace(name), price, database.NormalizeProductCode(code))
}

func (s *Store) DeleteProduct(ctx context.Context, guildID snowflake.ID, code string) (bool, error) {
	return s.change(ctx, guildID, `DELETE FROM products WHERE code = ?`, database.NormalizeProductCode(code))
}

// change runs a statement and reports whether it touched any row.
func (s *Store) change(ctx context.Context, guildID snowflake.ID, query string, args ...any) (bool, error) {
	var changed bool
	err := s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		if err := exec(conn, query, nil, args...); err != nil {
			return err
		}
		changed = conn.Changes() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply change: %w (guildID=%d)", err, guildID)
	}
	return changed, nil
}

// Codes

func (s *Store) AddCode(ctx context.Context, guildID snowflake.ID, product, code string) error {
	return s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		err := exec(conn, `INSERT INTO codes (product, code, created_at) VALUES (?, ?, ?)`, nil,
			database.NormalizeProductCode(product), strings.TrimSpace(code), millis(s.now()))
		if isUnique(err) {
			return database.ErrDuplicateCode
		}
		if err != nil {
			return fmt.Errorf("failed to add code: %w (guildID=%d)", err, guildID)
		}
		return nil
	})
}

func (s *Store) AddCodes(
	ctx context.Context, guildID snowflake.ID, product string, codes []string,
) (added int, err error) {
	product = database.NormalizeProductCode(product)
	now := millis(s.now())

	err = s.with(ctx, guildID, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Save(conn)(&err)

		for _, code := range codes {
			code = strings.TrimSpace(code)
			if code == "" {
				continue
			}

			if err := exec(conn, `INSERT OR IGNORE INTO codes (product, code, created_at) VALUES (?, ?, ?)`, nil,
				product, code, now); err != nil {
				return err
			}
			added += conn.Changes()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add codes: %w (guildID=%d)", err, guildID)
	}
	return added, nil
}

func (s *Store) DeleteCode(ctx context.Context, guildID snowflake.ID, product, code string) (bool, error) {
	return s.change(ctx, guildID, `DELETE FROM codes WHERE product = ? AND code = ?`,
		database.NormalizeProductCode(product), strings.TrimSpace(code))
}

func scanCode(guildID snowflake.ID, stmt *sqlite.Stmt) *types.Code {
	return &types.Code{
		ID:        stmt.GetInt64("id"),
		GuildID:   guildID,
		Product:   stmt.GetText("product"),
		Value:     stmt.GetText("code"),
		Used:      stmt.GetInt64("used") != 0,
		CreatedAt: fromMillis(stmt.GetInt64("created_at")),
		UsedAt:    fromMillis(stmt.GetInt64("used_at")),
	}
}

func (s *Store) GetUnusedCodes(ctx context.Context, guildID snowflake.ID, product string) ([]*types.Code, error) {
	var codes []*types.Code
	err := s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		return exec(conn,
			`SELECT id, product, code, used, created_at, used_at FROM codes
			WHERE product = ? AND used = 0 ORDER BY id ASC`,
			func(stmt *sqlite.Stmt) error {
				codes = append(codes, scanCode(guildID, stmt))
				return nil
			}, database.NormalizeProductCode(product))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list codes: %w (guildID=%d)", err, guildID)
	}
	return codes, nil
}

func (s *Store) GetProductStock(ctx context.Context, guildID snowflake.ID, product string) (int, error) {
	var count int
	err := s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		return exec(conn, `SELECT COUNT(*) FROM codes WHERE product = ? AND used = 0`,
			func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			}, database.NormalizeProductCode(product))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count stock: %w (guildID=%d)", err, guildID)
	}
	return count, nil
}

func (s *Store) GetStockSummary(ctx context.Context, guildID snowflake.ID) ([]*types.StockSummary, error) {
	var summary []*types.StockSummary
	err := s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		return exec(conn,
			`SELECT product, SUM(CASE WHEN used = 0 THEN 1 ELSE 0 END) AS available, COUNT(*) AS total
			FROM codes GROUP BY product ORDER BY product ASC`,
			func(stmt *sqlite.Stmt) error {
				summary = append(summary, &types.StockSummary{
					Product:   stmt.GetText("product"),
					Available: int(stmt.GetInt64("available")),
					Total:     int(stmt.GetInt64("total")),
				})
				return nil
			})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize stock: %w (guildID=%d)", err, guildID)
	}
	return summary, nil
}

func (s *Store) ClaimCodes(
	ctx context.Context, guildID snowflake.ID, product string, quantity int,
) ([]*types.Code, error) {
	product = database.NormalizeProductCode(product)
	now := s.now()

	var codes []*types.Code
	err := s.with(ctx, guildID, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Save(conn)(&err)

		err = exec(conn,
			`SELECT id, product, code, used, created_at, used_at FROM codes
			WHERE product = ? AND used = 0 ORDER BY id ASC LIMIT ?`,
			func(stmt *sqlite.Stmt) error {
				codes = append(codes, scanCode(guildID, stmt))
				return nil
			}, product, quantity)
		if err != nil {
			return err
		}

		if len(codes) < quantity {
			return fmt.Errorf("%w: requested %d, available %d", database.ErrInsufficientStock, quantity, len(codes))
		}

		for _, code := range codes {
			if err := exec(conn, `UPDATE codes SET used = 1, used_at = ? WHERE id = ?`, nil,
				millis(now), code.ID); err != nil {
				return err
			}
			code.Used = true
			code.UsedAt = now
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, database.ErrInsufficientStock) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to claim codes: %w (guildID=%d)", err, guildID)
	}
	return codes, nil
}

// Orders

func (s *Store) CreateOrder(ctx context.Context, order *types.Order) (int64, error) {
	now := s.now()
	order.Product = database.NormalizeProductCode(order.Product)
	order.Status = types.OrderStatusPending

	err := s.with(ctx, order.GuildID, func(conn *sqlite.Conn) error {
		if err := exec(conn,
			`INSERT INTO orders (user_id, username, product, quantity, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, nil,
			order.UserID.String(), order.Username, order.Product, order.Quantity,
			string(order.Status), millis(now), millis(now)); err != nil {
			return err
		}
		order.ID = conn.LastInsertRowID()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w (guildID=%d)", err, order.GuildID)
	}

	order.CreatedAt = fromMillis(millis(now))
	order.UpdatedAt = order.CreatedAt
	return order.ID, nil
}

const orderColumns = `id, user_id, username, product, quantity, status, created_at, updated_at`

func scanOrder(guildID snowflake.ID, stmt *sqlite.Stmt) *types.Order {
	return &types.Order{
		ID:        stmt.GetInt64("id"),
		GuildID:   guildID,
		UserID:    parseUserID(stmt.GetText("user_id")),
		Username:  stmt.GetText("username"),
		Product:   stmt.GetText("product"),
		Quantity:  int(stmt.GetInt64("quantity")),
		Status:    types.OrderStatus(stmt.GetText("status")),
		CreatedAt: fromMillis(stmt.GetInt64("created_at")),
		UpdatedAt: fromMillis(stmt.GetInt64("updated_at")),
	}
}

func (s *Store) listOrders(
	ctx context.Context, guildID snowflake.ID, query string, args ...any,
) ([]*types.Order, error) {
	var orders []*types.Order
	err := s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		return exec(conn, query, func(stmt *sqlite.Stmt) error {
			orders = append(orders, scanOrder(guildID, stmt))
			return nil
		}, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w (guildID=%d)", err, guildID)
	}
	return orders, nil
}

func (s *Store) GetOrder(ctx context.Context, guildID snowflake.ID, orderID int64) (*types.Order, error) {
	orders, err := s.listOrders(ctx, guildID, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, database.ErrOrderNotFound
	}
	return orders[0], nil
}

func (s *Store) TransitionOrderStatus(
	ctx context.Context, guildID snowflake.ID, orderID int64, from, to types.OrderStatus,
) (bool, error) {
	return s.change(ctx, guildID, `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), millis(s.now()), orderID, string(from))
}

func (s *Store) GetPendingOrders(ctx context.Context, guildID snowflake.ID) ([]*types.Order, error) {
	return s.listOrders(ctx, guildID,
		`SELECT `+orderColumns+` FROM orders WHERE status = ? ORDER BY created_at DESC, id DESC`,
		string(types.OrderStatusPending))
}

func (s *Store) GetUserOrders(ctx context.Context, guildID, userID snowflake.ID) ([]*types.Order, error) {
	return s.listOrders(ctx, guildID,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID.String(), database.DefaultListLimit)
}

// Purchases

func (s *Store) AddPurchase(ctx context.Context, purchase *types.Purchase) error {
	now := s.now()
	purchase.Product = database.NormalizeProductCode(purchase.Product)
	if purchase.Codes == nil {
		purchase.Codes = []string{}
	}

	codes, err := sonic.MarshalString(purchase.Codes)
	if err != nil {
		return fmt.Errorf("failed to encode codes: %w", err)
	}

	err = s.with(ctx, purchase.GuildID, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Save(conn)(&err)

		if err := exec(conn,
			`INSERT INTO purchases (user_id, username, avatar_url, product, quantity, unit_price, total_price, codes, purchased_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, nil,
			purchase.UserID.String(), purchase.Username, purchase.AvatarURL, purchase.Product,
			purchase.Quantity, purchase.UnitPrice, purchase.TotalPrice, codes, millis(now)); err != nil {
			return err
		}
		purchase.ID = conn.LastInsertRowID()

		return exec(conn,
			`INSERT INTO leaderboard (user_id, username, total_purchases, total_spent) VALUES (?, ?, 1, ?)
			ON CONFLICT (user_id) DO UPDATE SET
				username = excluded.username,
				total_purchases = total_purchases + 1,
				total_spent = total_spent + excluded.total_spent`, nil,
			purchase.UserID.String(), purchase.Username, purchase.TotalPrice)
	})
	if err != nil {
		return fmt.Errorf("failed to add purchase: %w (guildID=%d)", err, purchase.GuildID)
	}

	purchase.PurchasedAt = fromMillis(millis(now))
	return nil
}

const purchaseColumns = `id, user_id, username, avatar_url, product, quantity, unit_price, total_price, codes, purchased_at`

func (s *Store) listPurchases(
	ctx context.Context, guildID snowflake.ID, query string, args ...any,
) ([]*types.Purchase, error) {
	var purchases []*types.Purchase
	err := s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		return exec(conn, query, func(stmt *sqlite.Stmt) error {
			purchase := &types.Purchase{
				ID:          stmt.GetInt64("id"),
				GuildID:     guildID,
				UserID:      parseUserID(stmt.GetText("user_id")),
				Username:    stmt.GetText("username"),
				AvatarURL:   stmt.GetText("avatar_url"),
				Product:     stmt.GetText("product"),
				Quantity:    int(stmt.GetInt64("quantity")),
				UnitPrice:   stmt.GetInt64("unit_price"),
				TotalPrice:  stmt.GetInt64("total_price"),
				PurchasedAt: fromMillis(stmt.GetInt64("purchased_at")),
			}
			if err := sonic.UnmarshalString(stmt.GetText("codes"), &purchase.Codes); err != nil {
				return fmt.Errorf("failed to decode codes of purchase %d: %w", purchase.ID, err)
			}
			purchases = append(purchases, purchase)
			return nil
		}, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w (guildID=%d)", err, guildID)
	}
	return purchases, nil
}

func (s *Store) GetPurchases(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.Purchase, error) {
	return s.listPurchases(ctx, guildID,
		`SELECT `+purchaseColumns+` FROM purchases ORDER BY purchased_at DESC, id DESC LIMIT ?`,
		database.ListLimit(limit))
}

func (s *Store) GetPurchasesSince(
	ctx context.Context, guildID snowflake.ID, since time.Time,
) ([]*types.Purchase, error) {
	return s.listPurchases(ctx, guildID,
		`SELECT `+purchaseColumns+` FROM purchases WHERE purchased_at >= ? ORDER BY purchased_at ASC, id ASC`,
		millis(since))
}

func (s *Store) GetLeaderboard(
	ctx context.Context, guildID snowflake.ID, limit int,
) ([]*types.LeaderboardEntry, error) {
	var entries []*types.LeaderboardEntry
	err := s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		return exec(conn,
			`SELECT user_id, username, total_purchases, total_spent FROM leaderboard
			ORDER BY total_spent DESC, total_purchases DESC LIMIT ?`,
			func(stmt *sqlite.Stmt) error {
				entries = append(entries, &types.LeaderboardEntry{
					GuildID:        guildID,
					UserID:         parseUserID(stmt.GetText("user_id")),
					Username:       stmt.GetText("username"),
					TotalPurchases: int(stmt.GetInt64("total_purchases")),
					TotalSpent:     stmt.GetInt64("total_spent"),
				})
				return nil
			}, database.ListLimit(limit))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w (guildID=%d)", err, guildID)
	}
	return entries, nil
}

func (s *Store) SumSales(ctx context.Context, guildID snowflake.ID, since time.Time) (int64, error) {
	var from int64
	if !since.IsZero() {
		from = millis(since)
	}

	var total int64
	err := s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		return exec(conn, `SELECT COALESCE(SUM(total_price), 0) FROM purchases WHERE purchased_at >= ?`,
			func(stmt *sqlite.Stmt) error {
				total = stmt.ColumnInt64(0)
				return nil
			}, from)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sum sales: %w (guildID=%d)", err, guildID)
	}
	return total, nil
}

// Testimonials

func (s *Store) AddTestimonial(ctx context.Context, testimonial *types.Testimonial) (int64, error) {
	now := s.now()
	testimonial.Rating = database.ClampRating(testimonial.Rating)

	err := s.with(ctx, testimonial.GuildID, func(conn *sqlite.Conn) error {
		if err := exec(conn,
			`INSERT INTO testimonials (user_id, username, avatar_url, message, rating, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`, nil,
			testimonial.UserID.String(), testimonial.Username, testimonial.AvatarURL,
			testimonial.Message, testimonial.Rating, millis(now)); err != nil {
			return err
		}
		testimonial.ID = conn.LastInsertRowID()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add testimonial: %w (guildID=%d)", err, testimonial.GuildID)
	}

	testimonial.CreatedAt = fromMillis(millis(now))
	return testimonial.ID, nil
}

func (s *Store) GetTestimonials(
	ctx context.Context, guildID snowflake.ID, limit int,
) ([]*types.Testimonial, error) {
	var testimonials []*types.Testimonial
	err := s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		return exec(conn,
			`SELECT id, user_id, username, avatar_url, message, rating, created_at FROM testimonials
			ORDER BY created_at DESC, id DESC LIMIT ?`,
			func(stmt *sqlite.Stmt) error {
				testimonials = append(testimonials, &types.Testimonial{
					ID:        stmt.GetInt64("id"),
					GuildID:   guildID,
					UserID:    parseUserID(stmt.GetText("user_id")),
					Username:  stmt.GetText("username"),
					AvatarURL: stmt.GetText("avatar_url"),
					Message:   stmt.GetText("message"),
					Rating:    int(stmt.GetInt64("rating")),
					CreatedAt: fromMillis(stmt.GetInt64("created_at")),
				})
				return nil
			}, database.ListLimit(limit))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list testimonials: %w (guildID=%d)", err, guildID)
	}
	return testimonials, nil
}

// Settings

func (s *Store) GetSetting(ctx context.Context, guildID snowflake.ID, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		return exec(conn, `SELECT value FROM settings WHERE key = ?`, func(stmt *sqlite.Stmt) error {
			value = stmt.ColumnText(0)
			found = true
			return nil
		}, key)
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting: %w (guildID=%d, key=%s)", err, guildID, key)
	}
	return value, found, nil
}

func (s *Store) SetSetting(ctx context.Context, guildID snowflake.ID, key, value string) error {
	err := s.with(ctx, guildID, func(conn *sqlite.Conn) error {
		return exec(conn, `INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, nil, key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to save setting: %w (guildID=%d, key=%s)", err, guildID, key)
	}
	return nil
}

func (s *Store) DeleteSetting(ctx context.Context, guildID snowflake.ID, key string) error {
	if _, err := s.change(ctx, guildID, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	return nil
}

// GuildsWithSetting scans every guild file in the data directory.
func (s *Store) GuildsWithSetting(ctx context.Context, key string) ([]snowflake.ID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var guilds []snowflake.ID
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}

		id, err := strconv.ParseUint(strings.TrimSuffix(name, fileExt), 10, 64)
		if err != nil {
			continue
		}
		guildID := snowflake.ID(id)

		_, found, err := s.GetSetting(ctx, guildID, key)
		if err != nil {
			s.logger.Warn("Skipping unreadable guild database",
				zap.Uint64("guildID", id),
				zap.Error(err))
			continue
		}
		if found {
			guilds = append(guilds, guildID)
		}
	}

	sort.Slice(guilds, func(i, j int) bool { return guilds[i] < guilds[j] })

	return guilds, nil
}
