package shop

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/display"
	"go.uber.org/zap"
)

// Guild setting keys of the low stock alerts.
const (
	StockThresholdKey = "stock:threshold"
	stockAlertedKey   = "stock:alerted"
)

var (
	ErrInvalidPeriod    = errors.New("period must be 7d or 30d")
	ErrInvalidThreshold = errors.New("threshold must be at least 1")
	ErrInvalidChannel   = errors.New("pick a channel for the alerts")

	errMalformedThreshold = errors.New("malformed stock threshold")
)

// AlertPeriods maps the accepted sales windows to their length.
var AlertPeriods = map[string]time.Duration{ //nolint:gochecknoglobals // -
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// StockThreshold configures the low stock alerts of a guild.
//
// A product is low when its unused codes drop below Threshold, or below the
// number of codes it sold over Period.
type StockThreshold struct {
	Period    string       `json:"period"`
	Threshold int          `json:"threshold"`
	ChannelID snowflake.ID `json:"channelId"`
}

// IsLow reports whether the stock of a product needs restocking.
func (t *StockThreshold) IsLow(available, sold int) bool {
	return available < t.Threshold || (sold > 0 && available < sold)
}

// SetStockThreshold stores the alert settings of a guild and clears the
// products already alerted so the new settings are evaluated from scratch.
func (s *Service) SetStockThreshold(
	ctx context.Context, guildID snowflake.ID, period string, threshold int, channelID snowflake.ID,
) (*StockThreshold, error) {
	if _, ok := AlertPeriods[period]; !ok {
		return nil, ErrInvalidPeriod
	}
	if threshold < 1 {
		return nil, ErrInvalidThreshold
	}
	if channelID == 0 {
		return nil, ErrInvalidChannel
	}

	settings := &StockThreshold{Period: period, Threshold: threshold, ChannelID: channelID}
	value, err := sonic.MarshalString(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stock threshold: %w", err)
	}

	if err := s.store.SetSetting(ctx, guildID, StockThresholdKey, value); err != nil {
		return nil, err
	}
	if err := s.store.DeleteSetting(ctx, guildID, stockAlertedKey); err != nil {
		return nil, err
	}

	return settings, nil
}

// StockThreshold returns the alert settings of a guild, if any.
func (s *Service) StockThreshold(ctx context.Context, guildID snowflake.ID) (*StockThreshold, bool, error) {
	value, found, err := s.store.GetSetting(ctx, guildID, StockThresholdKey)
	if err != nil || !found {
		return nil, false, err
	}

	var settings StockThreshold
	if err := sonic.UnmarshalString(value, &settings); err != nil {
		return nil, false, fmt.Errorf("failed to decode stock threshold: %w (guildID=%d)", err, guildID)
	}
	if _, ok := AlertPeriods[settings.Period]; !ok || settings.Threshold < 1 || settings.ChannelID == 0 {
		return nil, false, fmt.Errorf("%w: %q (guildID=%d)", errMalformedThreshold, value, guildID)
	}
	return &settings, true, nil
}

// AlertSender posts alerts to a channel.
type AlertSender interface {
	SendMessage(ctx context.Context, channelID snowflake.ID, artifact *display.Artifact) (snowflake.ID, error)
}

// StockAlerter posts a low stock alert for every product that falls under
// its guild's threshold. A product is alerted once until it is restocked.
type StockAlerter struct {
	service *Service
	sender  AlertSender
	color   int
	logger  *zap.Logger
}

// NewStockAlerter creates a StockAlerter.
func NewStockAlerter(service *Service, sender AlertSender, color int, logger *zap.Logger) *StockAlerter {
	return &StockAlerter{
		service: service,
		sender:  sender,
		color:   color,
		logger:  logger.Named("stock_alerts"),
	}
}

// Tick checks every guild that configured a threshold.
func (a *StockAlerter) Tick(ctx context.Context) {
	guilds, err := a.service.store.GuildsWithSetting(ctx, StockThresholdKey)
	if err != nil {
		a.logger.Error("Failed to list guilds with stock alerts", zap.Error(err))
		return
	}

	for _, guildID := range guilds {
		if ctx.Err() != nil {
			return
		}

		sent, err := a.CheckGuild(ctx, guildID)
		if err != nil {
			a.logger.Error("Stock alert check failed",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Error(err))
			continue
		}
		if sent > 0 {
			a.logger.Info("Sent low stock alerts",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Int("alerts", sent))
		}
	}
}

// CheckGuild sends the pending low stock alerts of one guild and returns
// how many were sent.
func (a *StockAlerter) CheckGuild(ctx context.Context, guildID snowflake.ID) (int, error) {
	settings, found, err := a.service.StockThreshold(ctx, guildID)
	if err != nil || !found {
		return 0, err
	}

	products, err := a.service.store.GetProducts(ctx, guildID)
	if err != nil {
		return 0, err
	}

	summary, err := a.service.store.GetStockSummary(ctx, guildID)
	if err != nil {
		return 0, err
	}
	available := make(map[string]int, len(summary))
	for _, entry := range summary {
		available[entry.Product] = entry.Available
	}

	purchases, err := a.service.store.GetPurchasesSince(ctx, guildID, a.service.now().Add(-AlertPeriods[settings.Period]))
	if err != nil {
		return 0, err
	}
	sold := make(map[string]int)
	for _, purchase := range purchases {
		sold[purchase.Product] += purchase.Quantity
	}

	previous, err := a.alerted(ctx, guildID)
	if err != nil {
		return 0, err
	}

	var (
		current []string
		sent    int
		sendErr error
	)
	for _, product := range products {
		if !settings.IsLow(available[product.Code], sold[product.Code]) {
			continue
		}
		if slices.Contains(previous, product.Code) {
			current = append(current, product.Code)
			continue
		}
		if sendErr != nil {
			continue
		}

		artifact := &display.Artifact{
			Title: "Low stock alert: " + product.Name,
			Body: fmt.Sprintf("`%s` has %d codes left. Threshold is %d, %d sold in the last %s.",
				product.Code, available[product.Code], settings.Threshold, sold[product.Code], settings.Period),
			Color:     a.color,
			Timestamp: a.service.now(),
		}
		if _, err := a.sender.SendMessage(ctx, settings.ChannelID, artifact); err != nil {
			sendErr = fmt.Errorf("failed to send stock alert: %w (channelID=%d)", err, settings.ChannelID)
			continue
		}

		current = append(current, product.Code)
		sent++
	}

	if !slices.Equal(previous, current) {
		if err := a.saveAlerted(ctx, guildID, current); err != nil {
			return sent, err
		}
	}

	return sent, sendErr
}

func (a *StockAlerter) alerted(ctx context.Context, guildID snowflake.ID) ([]string, error) {
	value, found, err := a.service.store.GetSetting(ctx, guildID, stockAlertedKey)
	if err != nil || !found {
		return nil, err
	}

	var codes []string
	if err := sonic.UnmarshalString(value, &codes); err != nil {
		a.logger.Warn("Discarding malformed alerted products",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Error(err))
		return nil, nil
	}
	return codes, nil
}

func (a *StockAlerter) saveAlerted(ctx context.Context, guildID snowflake.ID, codes []string) error {
	if len(codes) == 0 {
		return a.service.store.DeleteSetting(ctx, guildID, stockAlertedKey)
	}

	value, err := sonic.MarshalString(codes)
	if err != nil {
		return fmt.Errorf("failed to encode alerted products: %w", err)
	}
	return a.service.store.SetSetting(ctx, guildID, stockAlertedKey, value)
}
