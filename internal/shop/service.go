package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database"
	"github.com/robalyx/storefront/internal/database/types"
	"github.com/robalyx/storefront/internal/display"
	"go.uber.org/zap"
)

var (
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrInvalidPrice     = errors.New("price cannot be negative")
	ErrInvalidName      = errors.New("product name cannot be empty")
	ErrNoCodes          = errors.New("no codes were provided")
	ErrCodeNotFound     = errors.New("code not found")
	ErrOrderNotPending  = errors.New("order is no longer pending")
	ErrEmptyTestimonial = errors.New("testimonial message cannot be empty")
	ErrNotEnoughData    = errors.New("not enough data to chart")
)

// Refresher accepts live display refresh requests.
type Refresher interface {
	Enqueue(guildID snowflake.ID, kind display.Kind) bool
}

// Buyer identifies the user an order or sale is made for.
type Buyer struct {
	ID        snowflake.ID
	Username  string
	AvatarURL string
}

// Receipt describes a completed sale.
type Receipt struct {
	Order    *types.Order
	Product  *types.Product
	Purchase *types.Purchase
}

// Service implements the shop operations on top of a tenant store.
// Every mutation that changes what a live display shows requests a refresh.
type Service struct {
	store     database.Store
	refresher Refresher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new shop service.
func NewService(store database.Store, refresher Refresher, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		refresher: refresher,
		logger:    logger.Named("shop"),
		now:       time.Now,
	}
}

// AddProduct creates a product listing.
func (s *Service) AddProduct(ctx context.Context, guildID snowflake.ID, code, name string, price int64) error {
	if err := validateListing(name, price); err != nil {
		return err
	}

	if err := s.store.AddProduct(ctx, guildID, code, strings.TrimSpace(name), price); err != nil {
		return err
	}

	s.refresh(guildID, display.KindStock)
	return nil
}

// UpdateProduct changes the name and price of a product.
func (s *Service) UpdateProduct(ctx context.Context, guildID snowflake.ID, code, name string, price int64) error {
	if err := validateListing(name, price); err != nil {
		return err
	}

	ok, err := s.store.UpdateProduct(ctx, guildID, code, strings.TrimSpace(name), price)
	if err != nil {
		return err
	}
	if !ok {
		return database.ErrProductNotFound
	}

	s.refresh(guildID, display.KindStock)
	return nil
}

// DeleteProduct removes a product listing.
func (s *Service) DeleteProduct(ctx context.Context, guildID snowflake.ID, code string) error {
	ok, err := s.store.DeleteProduct(ctx, guildID, code)
	if err != nil {
		return err
	}
	if !ok {
		return database.ErrProductNotFound
	}

	s.refresh(guildID, display.KindStock)
	return nil
}

// Products lists the guild's catalog.
func (s *Service) Products(ctx context.Context, guildID snowflake.ID) ([]*types.Product, error) {
	return s.store.GetProducts(ctx, guildID)
}

// AddCode stocks a single code for a product.
func (s *Service) AddCode(ctx context.Context, guildID snowflake.ID, product, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrNoCodes
	}

	if _, err := s.store.GetProduct(ctx, guildID, product); err != nil {
		return err
	}

	if err := s.store.AddCode(ctx, guildID, product, code); err != nil {
		return err
	}

	s.refresh(guildID, display.KindStock)
	return nil
}

// AddCodes stocks many codes at once from raw text separated by newlines
// or commas. Returns how many codes were added and how many were submitted.
func (s *Service) AddCodes(ctx context.Context, guildID snowflake.ID, product, raw string) (int, int, error) {
	codes := ParseCodes(raw)
	if len(codes) == 0 {
		return 0, 0, ErrNoCodes
	}

	if _, err := s.store.GetProduct(ctx, guildID, product); err != nil {
		return 0, len(codes), err
	}

	added, err := s.store.AddCodes(ctx, guildID, product, codes)
	if err != nil {
		return 0, len(codes), err
	}

	if added > 0 {
		s.refresh(guildID, display.KindStock)
	}
	return added, len(codes), nil
}

// DeleteCode removes an unused code.
func (s *Service) DeleteCode(ctx context.Context, guildID snowflake.ID, product, code string) error {
	ok, err := s.store.DeleteCode(ctx, guildID, product, strings.TrimSpace(code))
	if err != nil {
		return err
	}
	if !ok {
		return ErrCodeNotFound
	}

	s.refresh(guildID, display.KindStock)
	return nil
}

// UnusedCodes lists the codes still available for a product.
func (s *Service) UnusedCodes(ctx context.Context, guildID snowflake.ID, product string) ([]*types.Code, error) {
	if _, err := s.store.GetProduct(ctx, guildID, product); err != nil {
		return nil, err
	}
	return s.store.GetUnusedCodes(ctx, guildID, product)
}

// StockSummary reports code availability per product.
func (s *Service) StockSummary(ctx context.Context, guildID snowflake.ID) ([]*types.StockSummary, error) {
	return s.store.GetStockSummary(ctx, guildID)
}

// PlaceOrder creates a pending order after checking that enough stock exists.
func (s *Service) PlaceOrder(
	ctx context.Context, guildID snowflake.ID, buyer Buyer, product string, quantity int,
) (*types.Order, *types.Product, error) {
	if quantity < 1 {
		return nil, nil, ErrInvalidQuantity
	}

	p, err := s.store.GetProduct(ctx, guildID, product)
	if err != nil {
		return nil, nil, err
	}

	available, err := s.store.GetProductStock(ctx, guildID, p.Code)
	if err != nil {
		return nil, nil, err
	}
	if available < quantity {
		return nil, nil, fmt.Errorf("%w: %d requested, %d available", database.ErrInsufficientStock, quantity, available)
	}

	order := &types.Order{
		GuildID:  guildID,
		UserID:   buyer.ID,
		Username: buyer.Username,
		Product:  p.Code,
		Quantity: quantity,
		Status:   types.OrderStatusPending,
	}

	id, err := s.store.CreateOrder(ctx, order)
	if err != nil {
		return nil, nil, err
	}
	order.ID = id

	s.logger.Debug("Order placed",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Int64("orderID", id),
		zap.String("product", p.Code),
		zap.Int("quantity", quantity))

	return order, p, nil
}

// CompleteOrder claims the codes for a pending order, records the purchase
// and marks the order completed.
func (s *Service) CompleteOrder(ctx context.Context, guildID snowflake.ID, orderID int64) (*Receipt, error) {
	order, err := s.store.GetOrder(ctx, guildID, orderID)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, order, "")
}

// CancelOrder cancels a pending order.
func (s *Service) CancelOrder(ctx context.Context, guildID snowflake.ID, orderID int64) (*types.Order, error) {
	order, err := s.store.GetOrder(ctx, guildID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPending() {
		return nil, ErrOrderNotPending
	}

	ok, err := s.store.TransitionOrderStatus(ctx, guildID, orderID,
		types.OrderStatusPending, types.OrderStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOrderNotPending
	}

	order.Status = types.OrderStatusCancelled
	return order, nil
}

// Sell records a direct sale made by a seller on behalf of a buyer.
func (s *Service) Sell(
	ctx context.Context, guildID snowflake.ID, buyer Buyer, product string, quantity int,
) (*Receipt, error) {
	order, _, err := s.PlaceOrder(ctx, guildID, buyer, product, quantity)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, order, buyer.AvatarURL)
}

// PendingOrders lists orders awaiting a seller.
func (s *Service) PendingOrders(ctx context.Context, guildID snowflake.ID) ([]*types.Order, error) {
	return s.store.GetPendingOrders(ctx, guildID)
}

// UserOrders lists the latest orders of a buyer.
func (s *Service) UserOrders(ctx context.Context, guildID, userID snowflake.ID) ([]*types.Order, error) {
	return s.store.GetUserOrders(ctx, guildID, userID)
}

// Leaderboard returns the top buyers by total spent.
func (s *Service) Leaderboard(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.LeaderboardEntry, error) {
	return s.store.GetLeaderboard(ctx, guildID, limit)
}

// AddTestimonial stores a buyer review.
func (s *Service) AddTestimonial(
	ctx context.Context, guildID snowflake.ID, buyer Buyer, message string, rating int,
) (*types.Testimonial, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyTestimonial
	}

	testimonial := &types.Testimonial{
		GuildID:   guildID,
		UserID:    buyer.ID,
		Username:  buyer.Username,
		AvatarURL: buyer.AvatarURL,
		Message:   message,
		Rating:    database.ClampRating(rating),
		CreatedAt: s.now(),
	}

	id, err := s.store.AddTestimonial(ctx, testimonial)
	if err != nil {
		return nil, err
	}
	testimonial.ID = id

	return testimonial, nil
}

// Testimonials lists the latest reviews.
func (s *Service) Testimonials(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.Testimonial, error) {
	return s.store.GetTestimonials(ctx, guildID, limit)
}

// complete claims codes and records the purchase for a pending order. The
// order leaves pending before any code is claimed so that only one caller
// can complete it.
func (s *Service) complete(ctx context.Context, order *types.Order, avatarURL string) (*Receipt, error) {
	if !order.IsPending() {
		return nil, ErrOrderNotPending
	}

	product, err := s.store.GetProduct(ctx, order.GuildID, order.Product)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.TransitionOrderStatus(ctx, order.GuildID, order.ID,
		types.OrderStatusPending, types.OrderStatusCompleted)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOrderNotPending
	}

	codes, err := s.store.ClaimCodes(ctx, order.GuildID, order.Product, order.Quantity)
	if err != nil {
		s.reopen(ctx, order)
		return nil, err
	}

	values := make([]string, len(codes))
	for i, code := range codes {
		values[i] = code.Value
	}

	purchase := &types.Purchase{
		GuildID:     order.GuildID,
		UserID:      order.UserID,
		Username:    order.Username,
		AvatarURL:   avatarURL,
		Product:     product.Code,
		Quantity:    order.Quantity,
		UnitPrice:   product.Price,
		TotalPrice:  product.Price * int64(order.Quantity),
		Codes:       values,
		PurchasedAt: s.now(),
	}

	if err := s.store.AddPurchase(ctx, purchase); err != nil {
		s.logger.Error("Codes claimed but purchase could not be recorded",
			zap.Uint64("guildID", uint64(order.GuildID)),
			zap.Int64("orderID", order.ID),
			zap.Strings("codes", values),
			zap.Error(err))
		s.refresh(order.GuildID, display.KindStock)
		return nil, err
	}

	order.Status = types.OrderStatusCompleted

	s.refresh(order.GuildID, display.KindStock)
	s.refresh(order.GuildID, display.KindLeaderboard)

	return &Receipt{Order: order, Product: product, Purchase: purchase}, nil
}

// reopen puts an order back to pending after its codes could not be claimed.
func (s *Service) reopen(ctx context.Context, order *types.Order) {
	_, err := s.store.TransitionOrderStatus(ctx, order.GuildID, order.ID,
		types.OrderStatusCompleted, types.OrderStatusPending)
	if err != nil {
		s.logger.Error("Failed to reopen order",
			zap.Uint64("guildID", uint64(order.GuildID)),
			zap.Int64("orderID", order.ID),
			zap.Error(err))
	}
}

func (s *Service) refresh(guildID snowflake.ID, kind display.Kind) {
	if s.refresher == nil {
		return
	}
	s.refresher.Enqueue(guildID, kind)
}

func validateListing(name string, price int64) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	if price < 0 {
		return ErrInvalidPrice
	}
	return nil
}

// ParseCodes splits raw text on newlines and commas, dropping blanks and
// duplicates while keeping the submitted order.
func ParseCodes(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})

	seen := make(map[string]struct{}, len(fields))
	codes := make([]string, 0, len(fields))

	for _, field := range fields {
		code := strings.TrimSpace(field)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	return codes
}
