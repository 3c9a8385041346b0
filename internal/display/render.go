package display

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database/types"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Artifact is a rendered display ready to be published.
type Artifact struct {
	Title     string
	Body      string
	Color     int
	ImageURL  string
	Footer    string
	Timestamp time.Time
}

// StockLine is one product row of the stock board.
type StockLine struct {
	Code      string
	Name      string
	Price     int64
	Available int
}

// State is the tenant data a display is rendered from.
type State struct {
	Stock       []StockLine
	Leaderboard []*types.LeaderboardEntry
	LastRefresh time.Time
	Now         time.Time
}

// Options configures titles, styling and empty-state texts.
type Options struct {
	StockTitle           string
	LeaderboardTitle     string
	Color                int
	ImageURL             string
	StockEmptyText       string
	LeaderboardEmptyText string
	LeaderboardLimit     int
}

// Renderer turns tenant state into artifacts.
type Renderer struct {
	opts Options
}

// NewRenderer creates a Renderer.
func NewRenderer(opts Options) *Renderer {
	if opts.LeaderboardLimit <= 0 {
		opts.LeaderboardLimit = 10
	}
	return &Renderer{opts: opts}
}

// LeaderboardLimit returns how many buyers the leaderboard shows.
func (r *Renderer) LeaderboardLimit() int {
	return r.opts.LeaderboardLimit
}

// Render builds the artifact of the given kind. It has no side effects.
func (r *Renderer) Render(kind Kind, state *State) *Artifact {
	artifact := &Artifact{
		Color:     r.opts.Color,
		ImageURL:  r.opts.ImageURL,
		Footer:    "Updated " + FormatAge(state.Now.Sub(state.LastRefresh)),
		Timestamp: state.Now,
	}

	switch kind {
	case KindStock:
		artifact.Title = r.opts.StockTitle
		artifact.Body = r.stockBody(state.Stock)
	case KindLeaderboard:
		artifact.Title = r.opts.LeaderboardTitle
		artifact.Body = r.leaderboardBody(state.Leaderboard)
	}

	return artifact
}

func (r *Renderer) stockBody(lines []StockLine) string {
	if len(lines) == 0 {
		return r.opts.StockEmptyText
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n\n")
		}

		fmt.Fprintf(&b, "**%s** (`%s`)\n", line.Name, line.Code)
		if line.Available > 0 {
			fmt.Fprintf(&b, "Stock: **%d**\n", line.Available)
		} else {
			b.WriteString("Stock: **0** (sold out)\n")
		}
		fmt.Fprintf(&b, "Price: **%s**", FormatRupiah(line.Price))
	}

	return b.String()
}

func (r *Renderer) leaderboardBody(entries []*types.LeaderboardEntry) string {
	if len(entries) == 0 {
		return r.opts.LeaderboardEmptyText
	}

	var b strings.Builder
	for i, entry := range entries {
		if i >= r.opts.LeaderboardLimit {
			break
		}
		if i > 0 {
			b.WriteString("\n")
		}

		fmt.Fprintf(&b, "%s <@%d> - **%s** (%s)",
			RankLabel(i+1),
			uint64(entry.UserID),
			FormatRupiah(entry.TotalSpent),
			plural(entry.TotalPurchases, "purchase"))
	}

	return b.String()
}

// LoadState reads the data needed to render a display of the given key.
func (r *Renderer) LoadState(
	ctx context.Context, reader TenantReader, key Key, lastRefresh, now time.Time,
) (*State, error) {
	state := &State{LastRefresh: lastRefresh, Now: now}

	switch key.Kind {
	case KindStock:
		lines, err := loadStock(ctx, reader, key.GuildID)
		if err != nil {
			return nil, err
		}
		state.Stock = lines
	case KindLeaderboard:
		entries, err := reader.GetLeaderboard(ctx, key.GuildID, r.opts.LeaderboardLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to load leaderboard: %w", err)
		}
		state.Leaderboard = entries
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, key.Kind)
	}

	return state, nil
}

func loadStock(ctx context.Context, reader TenantReader, guildID snowflake.ID) ([]StockLine, error) {
	products, err := reader.GetProducts(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	lines := make([]StockLine, 0, len(products))
	for _, product := range products {
		available, err := reader.GetProductStock(ctx, guildID, product.Code)
		if err != nil {
			return nil, fmt.Errorf("failed to load stock of %s: %w", product.Code, err)
		}

		lines = append(lines, StockLine{
			Code:      product.Code,
			Name:      product.Name,
			Price:     product.Price,
			Available: available,
		})
	}

	return lines, nil
}

// FormatAge renders a duration as "N second(s) ago", "N minute(s) ago" or
// "N hour(s) ago". There is no day tier.
func FormatAge(age time.Duration) string {
	seconds := max(int(age/time.Second), 0)

	switch {
	case seconds < 60:
		return plural(seconds, "second") + " ago"
	case seconds < 3600:
		return plural(seconds/60, "minute") + " ago"
	default:
		return plural(seconds/3600, "hour") + " ago"
	}
}

// FormatRupiah formats an amount with Indonesian thousands separators,
// e.g. 1000 becomes "Rp 1.000".
func FormatRupiah(amount int64) string {
	return message.NewPrinter(language.Indonesian).Sprintf("Rp %d", amount)
}

// RankLabel returns a medal for the top three ranks and "#N" otherwise.
func RankLabel(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("#%d", rank)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
