package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/bot/constants"
	"github.com/robalyx/storefront/internal/database"
	"github.com/robalyx/storefront/internal/discord/platform"
	"github.com/robalyx/storefront/internal/display"
	"github.com/robalyx/storefront/internal/shop"
	"go.uber.org/zap"
)

// ErrUnknownCommand is returned for routes the bot does not handle.
var ErrUnknownCommand = errors.New("unknown command")

// Displays publishes and previews live displays.
type Displays interface {
	Publish(ctx context.Context, guildID snowflake.ID, kind display.Kind, channelID snowflake.ID) (display.Handle, error)
	Preview(ctx context.Context, guildID snowflake.ID, kind display.Kind) (*display.Artifact, error)
}

// Moderator performs moderation actions in a guild.
type Moderator interface {
	Kick(ctx context.Context, guildID, userID snowflake.ID, reason string) error
	Ban(ctx context.Context, guildID, userID snowflake.ID, reason string) error
	Unban(ctx context.Context, guildID, userID snowflake.ID) error
	Purge(ctx context.Context, channelID snowflake.ID, count int) (int, error)
}

// DirectMessenger delivers private messages to users.
type DirectMessenger interface {
	SendDM(ctx context.Context, userID snowflake.ID, embed discord.Embed) error
}

type handlerFunc func(ctx context.Context, req *Request) (*Response, error)

type routeSpec struct {
	handler handlerFunc
	// admin routes require the Manage Server permission or a configured admin.
	admin bool
	// public routes answer visibly in the channel.
	public bool
}

// Handlers answers slash commands.
type Handlers struct {
	shop      *shop.Service
	displays  Displays
	moderator Moderator
	dm        DirectMessenger
	logger    *zap.Logger
	routes    map[string]routeSpec
}

// NewHandlers creates the command handlers.
func NewHandlers(
	shopService *shop.Service, displays Displays, moderator Moderator, dm DirectMessenger, logger *zap.Logger,
) *Handlers {
	h := &Handlers{
		shop:      shopService,
		displays:  displays,
		moderator: moderator,
		dm:        dm,
		logger:    logger.Named("bot_handlers"),
	}

	h.routes = map[string]routeSpec{
		route(constants.ProductCommandName, constants.AddSubcommand):    {handler: h.productAdd, admin: true},
		route(constants.ProductCommandName, constants.UpdateSubcommand): {handler: h.productUpdate, admin: true},
		route(constants.ProductCommandName, constants.DeleteSubcommand): {handler: h.productDelete, admin: true},
		route(constants.ProductCommandName, constants.ListSubcommand):   {handler: h.productList},

		route(constants.CodeCommandName, constants.AddSubcommand):    {handler: h.codeAdd, admin: true},
		route(constants.CodeCommandName, constants.BulkSubcommand):   {handler: h.codeBulk, admin: true},
		route(constants.CodeCommandName, constants.DeleteSubcommand): {handler: h.codeDelete, admin: true},
		route(constants.CodeCommandName, constants.ViewSubcommand):   {handler: h.codeView, admin: true},

		route(constants.StockCommandName, constants.ViewSubcommand):      {handler: h.preview(display.KindStock)},
		route(constants.StockCommandName, constants.ThresholdSubcommand): {handler: h.stockThreshold, admin: true},
		route(constants.LeaderboardCommandName, ""):                      {handler: h.preview(display.KindLeaderboard)},

		route(constants.OrderCommandName, constants.BuySubcommand):      {handler: h.orderBuy},
		route(constants.OrderCommandName, constants.CompleteSubcommand): {handler: h.orderComplete, admin: true},
		route(constants.OrderCommandName, constants.CancelSubcommand):   {handler: h.orderCancel, admin: true},
		route(constants.OrderCommandName, constants.PendingSubcommand):  {handler: h.orderPending, admin: true},
		route(constants.OrderCommandName, constants.MineSubcommand):     {handler: h.orderMine},
		route(constants.SellCommandName, ""):                            {handler: h.sell, admin: true},

		route(constants.SalesCommandName, constants.SummarySubcommand): {handler: h.salesSummary, admin: true},
		route(constants.SalesCommandName, constants.ChartSubcommand):   {handler: h.salesChart, admin: true},

		route(constants.DisplayCommandName, constants.SetupSubcommand): {handler: h.displaySetup, admin: true},

		route(constants.TestimonialCommandName, constants.AddSubcommand):  {handler: h.testimonialAdd, public: true},
		route(constants.TestimonialCommandName, constants.ListSubcommand): {handler: h.testimonialList},

		route(constants.ModCommandName, constants.KickSubcommand):  {handler: h.modKick, admin: true},
		route(constants.ModCommandName, constants.BanSubcommand):   {handler: h.modBan, admin: true},
		route(constants.ModCommandName, constants.UnbanSubcommand): {handler: h.modUnban, admin: true},
		route(constants.ModCommandName, constants.PurgeSubcommand): {handler: h.modPurge, admin: true},
	}

	return h
}

// IsPublic reports whether the route answers visibly in the channel.
func (h *Handlers) IsPublic(route string) bool {
	return h.routes[route].public
}

// Handle runs the handler of the request's route and turns failures into
// user-facing replies.
func (h *Handlers) Handle(ctx context.Context, req *Request) *Response {
	spec, ok := h.routes[req.Route()]
	if !ok {
		return Reply("This command is not available.")
	}

	if req.GuildID == 0 {
		return Reply("This command can only be used in a server.")
	}

	if spec.admin && !req.Admin {
		return Reply("You need the Manage Server permission to use this command.")
	}

	resp, err := spec.handler(ctx, req)
	if err != nil {
		return h.errorResponse(req, err)
	}
	return resp
}

// errorResponse maps known errors to a reply and logs the rest.
func (h *Handlers) errorResponse(req *Request, err error) *Response {
	known := []error{
		database.ErrProductNotFound,
		database.ErrDuplicateProduct,
		database.ErrDuplicateCode,
		database.ErrInsufficientStock,
		database.ErrOrderNotFound,
		shop.ErrInvalidQuantity,
		shop.ErrInvalidPrice,
		shop.ErrInvalidName,
		shop.ErrNoCodes,
		shop.ErrCodeNotFound,
		shop.ErrOrderNotPending,
		shop.ErrEmptyTestimonial,
		shop.ErrNotEnoughData,
		shop.ErrInvalidPeriod,
		shop.ErrInvalidThreshold,
		shop.ErrInvalidChannel,
		platform.ErrInvalidPurgeCount,
		display.ErrUnknownKind,
	}

	for _, sentinel := range known {
		if errors.Is(err, sentinel) {
			return &Response{Embeds: []discord.Embed{errorEmbed(capitalize(sentinel.Error()) + ".")}}
		}
	}

	if errors.Is(err, display.ErrTargetGone) {
		return &Response{Embeds: []discord.Embed{errorEmbed("That channel no longer exists.")}}
	}

	h.logger.Error("Command failed",
		zap.String("route", req.Route()),
		zap.Uint64("guildID", uint64(req.GuildID)),
		zap.Uint64("userID", uint64(req.User.ID)),
		zap.Error(err))

	return &Response{Embeds: []discord.Embed{errorEmbed("Something went wrong. Please try again later.")}}
}

// Products

func (h *Handlers) productAdd(ctx context.Context, req *Request) (*Response, error) {
	code := database.NormalizeProductCode(req.String(constants.CodeOption))
	name := req.String(constants.NameOption)
	price := int64(req.Int(constants.PriceOption, 0))

	if err := h.shop.AddProduct(ctx, req.GuildID, code, name, price); err != nil {
		return nil, err
	}

	return &Response{Embeds: []discord.Embed{successEmbed("Product added",
		"**"+name+"** (`"+code+"`) at **"+display.FormatRupiah(price)+"**")}}, nil
}

func (h *Handlers) productUpdate(ctx context.Context, req *Request) (*Response, error) {
	code := database.NormalizeProductCode(req.String(constants.CodeOption))
	name := req.String(constants.NameOption)
	price := int64(req.Int(constants.PriceOption, 0))

	if err := h.shop.UpdateProduct(ctx, req.GuildID, code, name, price); err != nil {
		return nil, err
	}

	return &Response{Embeds: []discord.Embed{successEmbed("Product updated",
		"**"+name+"** (`"+code+"`) now costs **"+display.FormatRupiah(price)+"**")}}, nil
}

func (h *Handlers) productDelete(ctx context.Context, req *Request) (*Response, error) {
	code := database.NormalizeProductCode(req.String(constants.CodeOption))

	if err := h.shop.DeleteProduct(ctx, req.GuildID, code); err != nil {
		return nil, err
	}

	return &Response{Embeds: []discord.Embed{successEmbed("Product deleted", "`"+code+"` was removed.")}}, nil
}

func (h *Handlers) productList(ctx context.Context, req *Request) (*Response, error) {
	products, err := h.shop.Products(ctx, req.GuildID)
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []discord.Embed{productListEmbed(products)}}, nil
}

// Codes

func (h *Handlers) codeAdd(ctx context.Context, req *Request) (*Response, error) {
	product := database.NormalizeProductCode(req.String(constants.ProductOption))

	if err := h.shop.AddCode(ctx, req.GuildID, product, req.String(constants.CodeOption)); err != nil {
		return nil, err
	}

	return &Response{Embeds: []discord.Embed{successEmbed("Code added", "1 code added to `"+product+"`.")}}, nil
}

func (h *Handlers) codeBulk(ctx context.Context, req *Request) (*Response, error) {
	product := database.NormalizeProductCode(req.String(constants.ProductOption))

	added, submitted, err := h.shop.AddCodes(ctx, req.GuildID, product, req.String(constants.CodesOption))
	if err != nil {
		return nil, err
	}

	return &Response{Embeds: []discord.Embed{bulkResultEmbed(product, added, submitted)}}, nil
}

func (h *Handlers) codeDelete(ctx context.Context, req *Request) (*Response, error) {
	product := database.NormalizeProductCode(req.String(constants.ProductOption))

	if err := h.shop.DeleteCode(ctx, req.GuildID, product, req.String(constants.CodeOption)); err != nil {
		return nil, err
	}

	return &Response{Embeds: []discord.Embed{successEmbed("Code deleted", "Code removed from `"+product+"`.")}}, nil
}

func (h *Handlers) codeView(ctx context.Context, req *Request) (*Response, error) {
	product := database.NormalizeProductCode(req.String(constants.ProductOption))

	codes, err := h.shop.UnusedCodes(ctx, req.GuildID, product)
	if err != nil {
		return nil, err
	}

	return &Response{Embeds: []discord.Embed{codeListEmbed(product, codes)}}, nil
}

// Displays

func (h *Handlers) preview(kind display.Kind) handlerFunc {
	return func(ctx context.Context, req *Request) (*Response, error) {
		artifact, err := h.displays.Preview(ctx, req.GuildID, kind)
		if err != nil {
			return nil, err
		}
		return &Response{Embeds: []discord.Embed{platform.Embed(artifact)}}, nil
	}
}

func (h *Handlers) displaySetup(ctx context.Context, req *Request) (*Response, error) {
	kind, err := display.ParseKind(req.String(constants.KindOption))
	if err != nil {
		return nil, err
	}

	handle, err := h.displays.Publish(ctx, req.GuildID, kind, req.ID(constants.ChannelOption))
	if err != nil {
		return nil, err
	}

	return &Response{Embeds: []discord.Embed{successEmbed("Live display ready",
		"The "+kind.String()+" display was posted in <#"+handle.ChannelID.String()+"> and will update automatically.")}}, nil
}

func (h *Handlers) stockThreshold(ctx context.Context, req *Request) (*Response, error) {
	settings, err := h.shop.SetStockThreshold(ctx, req.GuildID,
		req.String(constants.PeriodOption), req.Int(constants.ThresholdOption, 0), req.ID(constants.ChannelOption))
	if err != nil {
		return nil, err
	}

	return &Response{Embeds: []discord.Embed{successEmbed("Stock alerts set",
		fmt.Sprintf("Stock threshold set to %d for %s. Alerts go to <#%s>.",
			settings.Threshold, settings.Period, settings.ChannelID))}}, nil
}

// Orders

func (h *Handlers) orderBuy(ctx context.Context, req *Request) (*Response, error) {
	order, product, err := h.shop.PlaceOrder(ctx, req.GuildID, req.User,
		req.String(constants.ProductOption), req.Int(constants.QuantityOption, 1))
	if err != nil {
		return nil, err
	}

	return &Response{Embeds: []discord.Embed{orderPlacedEmbed(order, product)}}, nil
}

func (h *Handlers) orderComplete(ctx context.Context, req *Request) (*Response, error) {
	receipt, err := h.shop.CompleteOrder(ctx, req.GuildID, int64(req.Int(constants.OrderOption, 0)))
	if err != nil {
		return nil, err
	}
	return h.deliver(ctx, receipt), nil
}

func (h *Handlers) orderCancel(ctx context.Context, req *Request) (*Response, error) {
	order, err := h.shop.CancelOrder(ctx, req.GuildID, int64(req.Int(constants.OrderOption, 0)))
	if err != nil {
		return nil, err
	}

	return &Response{Embeds: []discord.Embed{successEmbed("Order cancelled",
		orderLine(order))}}, nil
}

func (h *Handlers) orderPending(ctx context.Context, req *Request) (*Response, error) {
	orders, err := h.shop.PendingOrders(ctx, req.GuildID)
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []discord.Embed{orderListEmbed("Pending orders", orders)}}, nil
}

func (h *Handlers) orderMine(ctx context.Context, req *Request) (*Response, error) {
	orders, err := h.shop.UserOrders(ctx, req.GuildID, req.User.ID)
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []discord.Embed{orderListEmbed("Your orders", orders)}}, nil
}

func (h *Handlers) sell(ctx context.Context, req *Request) (*Response, error) {
	buyer, ok := req.UserOption(constants.UserOption)
	if !ok {
		return Reply("Pick the buyer."), nil
	}

	receipt, err := h.shop.Sell(ctx, req.GuildID, buyer,
		req.String(constants.ProductOption), req.Int(constants.QuantityOption, 1))
	if err != nil {
		return nil, err
	}
	return h.deliver(ctx, receipt), nil
}

// deliver sends the purchased codes to the buyer. When the DM fails the
// codes are shown to the seller instead so they can be handed over manually.
func (h *Handlers) deliver(ctx context.Context, receipt *shop.Receipt) *Response {
	err := h.dm.SendDM(ctx, receipt.Purchase.UserID, deliveryEmbed(receipt))
	if err == nil {
		return &Response{Embeds: []discord.Embed{saleEmbed(receipt, true)}}
	}

	h.logger.Warn("Failed to deliver codes by DM",
		zap.Uint64("guildID", uint64(receipt.Purchase.GuildID)),
		zap.Uint64("userID", uint64(receipt.Purchase.UserID)),
		zap.Error(err))

	return &Response{Embeds: []discord.Embed{saleEmbed(receipt, false), deliveryEmbed(receipt)}}
}

// Sales

func (h *Handlers) salesSummary(ctx context.Context, req *Request) (*Response, error) {
	summary, err := h.shop.SalesSummary(ctx, req.GuildID)
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []discord.Embed{salesSummaryEmbed(summary)}}, nil
}

func (h *Handlers) salesChart(ctx context.Context, req *Request) (*Response, error) {
	totals, err := h.shop.DailySales(ctx, req.GuildID, req.Int(constants.DaysOption, constants.DefaultChartDays))
	if err != nil {
		return nil, err
	}

	buf, err := shop.BuildSalesChart(totals)
	if err != nil {
		return nil, err
	}

	return &Response{
		Embeds:   []discord.Embed{salesChartEmbed(totals)},
		File:     buf,
		FileName: constants.SalesChartFileName,
	}, nil
}

// Testimonials

func (h *Handlers) testimonialAdd(ctx context.Context, req *Request) (*Response, error) {
	testimonial, err := h.shop.AddTestimonial(ctx, req.GuildID, req.User,
		req.String(constants.MessageOption), req.Int(constants.RatingOption, 5))
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []discord.Embed{testimonialEmbed(testimonial)}}, nil
}

func (h *Handlers) testimonialList(ctx context.Context, req *Request) (*Response, error) {
	testimonials, err := h.shop.Testimonials(ctx, req.GuildID, constants.TestimonialsPerPage)
	if err != nil {
		return nil, err
	}

	if len(testimonials) == 0 {
		return Reply("No testimonials yet."), nil
	}

	embeds := make([]discord.Embed, len(testimonials))
	for i, testimonial := range testimonials {
		embeds[i] = testimonialEmbed(testimonial)
	}
	return &Response{Embeds: embeds}, nil
}

// Moderation

func (h *Handlers) modKick(ctx context.Context, req *Request) (*Response, error) {
	target := req.ID(constants.UserOption)
	if err := h.moderator.Kick(ctx, req.GuildID, target, reason(req)); err != nil {
		return nil, err
	}
	return &Response{Embeds: []discord.Embed{successEmbed("Member kicked", "<@"+target.String()+"> was kicked.")}}, nil
}

func (h *Handlers) modBan(ctx context.Context, req *Request) (*Response, error) {
	target := req.ID(constants.UserOption)
	if err := h.moderator.Ban(ctx, req.GuildID, target, reason(req)); err != nil {
		return nil, err
	}
	return &Response{Embeds: []discord.Embed{successEmbed("User banned", "<@"+target.String()+"> was banned.")}}, nil
}

func (h *Handlers) modUnban(ctx context.Context, req *Request) (*Response, error) {
	target := req.ID(constants.UserOption)
	if err := h.moderator.Unban(ctx, req.GuildID, target); err != nil {
		return nil, err
	}
	return &Response{Embeds: []discord.Embed{successEmbed("User unbanned", "<@"+target.String()+"> was unbanned.")}}, nil
}

func (h *Handlers) modPurge(ctx context.Context, req *Request) (*Response, error) {
	deleted, err := h.moderator.Purge(ctx, req.ID(constants.ChannelOption), req.Int(constants.CountOption, 0))
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []discord.Embed{successEmbed("Messages purged",
		plural(deleted, "message")+" deleted.")}}, nil
}

func reason(req *Request) string {
	if r := req.String(constants.ReasonOption); r != "" {
		return r
	}
	return constants.DefaultModerationReason
}
