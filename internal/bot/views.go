package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/storefront/internal/bot/constants"
	"github.com/robalyx/storefront/internal/database/types"
	"github.com/robalyx/storefront/internal/display"
	"github.com/robalyx/storefront/internal/shop"
)

// maxDescription is Discord's embed description limit.
const maxDescription = 4096

func successEmbed(title, description string) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle(title).
		SetDescription(description).
		SetColor(constants.SuccessEmbedColor).
		Build()
}

func errorEmbed(description string) discord.Embed {
	return discord.NewEmbedBuilder().
		SetDescription(description).
		SetColor(constants.ErrorEmbedColor).
		Build()
}

func productListEmbed(products []*types.Product) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle("Products").
		SetColor(constants.DefaultEmbedColor)

	if len(products) == 0 {
		return builder.SetDescription("No products yet.").Build()
	}

	lines := make([]string, len(products))
	for i, product := range products {
		lines[i] = fmt.Sprintf("`%s` **%s** - %s", product.Code, product.Name, display.FormatRupiah(product.Price))
	}

	return builder.SetDescription(truncate(strings.Join(lines, "\n"), maxDescription)).Build()
}

func bulkResultEmbed(product string, added, submitted int) discord.Embed {
	description := fmt.Sprintf("%s added to `%s`.", plural(added, "code"), product)
	if skipped := submitted - added; skipped > 0 {
		description += fmt.Sprintf("\n%s skipped as duplicates.", plural(skipped, "code"))
	}
	return successEmbed("Codes added", description)
}

func codeListEmbed(product string, codes []*types.Code) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("Unused codes for %s (%d)", product, len(codes))).
		SetColor(constants.DefaultEmbedColor)

	if len(codes) == 0 {
		return builder.SetDescription("Out of stock.").Build()
	}

	values := make([]string, len(codes))
	for i, code := range codes {
		values[i] = code.Value
	}

	return builder.SetDescription(codeBlock(values)).Build()
}

func orderPlacedEmbed(order *types.Order, product *types.Product) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("Order #%d placed", order.ID)).
		SetDescription("A seller will complete your order shortly. Your codes will arrive by DM.").
		AddField("Product", product.Name, true).
		AddField("Quantity", strconv.Itoa(order.Quantity), true).
		AddField("Total", display.FormatRupiah(product.Price*int64(order.Quantity)), true).
		SetColor(constants.DefaultEmbedColor).
		Build()
}

func orderLine(order *types.Order) string {
	return fmt.Sprintf("#%d `%s` x%d for <@%d> (%s) <t:%d:R>",
		order.ID, order.Product, order.Quantity, order.UserID, order.Status, order.CreatedAt.Unix())
}

func orderListEmbed(title string, orders []*types.Order) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle(title).
		SetColor(constants.DefaultEmbedColor)

	if len(orders) == 0 {
		return builder.SetDescription("No orders.").Build()
	}

	lines := make([]string, len(orders))
	for i, order := range orders {
		lines[i] = orderLine(order)
	}

	return builder.SetDescription(truncate(strings.Join(lines, "\n"), maxDescription)).Build()
}

// deliveryEmbed carries the purchased codes.
func deliveryEmbed(receipt *shop.Receipt) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("Your purchase: "+receipt.Product.Name).
		SetDescription(codeBlock(receipt.Purchase.Codes)).
		AddField("Quantity", strconv.Itoa(receipt.Purchase.Quantity), true).
		AddField("Total", display.FormatRupiah(receipt.Purchase.TotalPrice), true).
		SetColor(constants.SuccessEmbedColor).
		SetTimestamp(receipt.Purchase.PurchasedAt).
		Build()
}

func saleEmbed(receipt *shop.Receipt, delivered bool) discord.Embed {
	description := fmt.Sprintf("Order #%d for <@%d> completed.", receipt.Order.ID, receipt.Purchase.UserID)
	if delivered {
		description += "\nCodes were sent by DM."
	} else {
		description += "\nThe buyer's DMs are closed. Hand over the codes below manually."
	}

	return discord.NewEmbedBuilder().
		SetTitle("Sale completed").
		SetDescription(description).
		AddField("Product", receipt.Product.Name, true).
		AddField("Quantity", strconv.Itoa(receipt.Purchase.Quantity), true).
		AddField("Total", display.FormatRupiah(receipt.Purchase.TotalPrice), true).
		SetColor(constants.SuccessEmbedColor).
		Build()
}

func salesSummaryEmbed(summary *shop.SalesSummary) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("Sales summary").
		AddField("Today", display.FormatRupiah(summary.Today), true).
		AddField("Last 7 days", display.FormatRupiah(summary.Week), true).
		AddField("This month", display.FormatRupiah(summary.Month), true).
		AddField("All time", display.FormatRupiah(summary.AllTime), false).
		SetColor(constants.DefaultEmbedColor).
		SetTimestamp(summary.Computed).
		Build()
}

func salesChartEmbed(totals []shop.DailyTotal) discord.Embed {
	var revenue int64
	var count int
	for _, total := range totals {
		revenue += total.Total
		count += total.Count
	}

	return discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("Sales over %d days", len(totals))).
		SetDescription(fmt.Sprintf("%s from %s.", display.FormatRupiah(revenue), plural(count, "sale"))).
		SetImage("attachment://"+constants.SalesChartFileName).
		SetColor(constants.DefaultEmbedColor).
		Build()
}

func testimonialEmbed(testimonial *types.Testimonial) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetAuthorName(testimonial.Username).
		SetDescription(truncate(testimonial.Message, maxDescription)).
		AddField("Rating", strings.Repeat("⭐", testimonial.Rating), false).
		SetColor(constants.DefaultEmbedColor).
		SetTimestamp(testimonial.CreatedAt)

	if testimonial.AvatarURL != "" {
		builder.SetThumbnail(testimonial.AvatarURL)
	}

	return builder.Build()
}

// codeBlock lists values in a code block that fits in an embed description.
func codeBlock(values []string) string {
	const overhead = len("```\n\n```")

	var sb strings.Builder
	for i, value := range values {
		line := value
		if i > 0 {
			line = "\n" + value
		}
		if sb.Len()+len(line)+overhead > maxDescription {
			break
		}
		sb.WriteString(line)
	}

	return "```\n" + sb.String() + "\n```"
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
