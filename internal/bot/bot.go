package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	botEvents "github.com/robalyx/storefront/internal/bot/events"
	"github.com/robalyx/storefront/internal/display"
	"github.com/robalyx/storefront/internal/setup/config"
	"go.uber.org/zap"
)

// commandTimeout bounds the work done for a single command.
const commandTimeout = 30 * time.Second

// Cooldown limits how often a user can run commands.
type Cooldown interface {
	Allow(ctx context.Context, userID snowflake.ID, command string) (bool, time.Duration, error)
}

// Bot owns the Discord gateway connection and dispatches slash commands.
type Bot struct {
	client   bot.Client
	handlers *Handlers
	cooldown Cooldown
	config   *config.BotConfig
	logger   *zap.Logger
}

// New configures the Discord client. Handlers are attached with Attach
// before Start since they depend on the client's REST API. The registry
// forgets the displays of guilds the bot is removed from.
func New(
	cfg *config.BotConfig, cooldown Cooldown, registry *display.Registry, logger *zap.Logger,
) (*Bot, error) {
	b := &Bot{
		cooldown: cooldown,
		config:   cfg,
		logger:   logger.Named("bot"),
	}

	guildEvents := botEvents.NewGuildEventHandler(registry, logger)

	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
			OnGuildJoin:                     guildEvents.OnGuildJoin,
			OnGuildLeave:                    guildEvents.OnGuildLeave,
		}),
	)
	if err != nil {
		return nil, err
	}

	b.client = client
	return b, nil
}

// Rest returns the REST client of the bot.
func (b *Bot) Rest() rest.Rest {
	return b.client.Rest()
}

// Attach sets the command handlers.
func (b *Bot) Attach(handlers *Handlers) {
	b.handlers = handlers
}

// Start registers global commands with Discord and opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering commands")

	_, err := b.client.Rest().SetGlobalCommands(b.client.ApplicationID(), Commands())
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")
	return b.client.OpenGateway(ctx)
}

// Close gracefully shuts down the Discord gateway connection.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.client.Close(ctx)
}

// handleApplicationCommandInteraction defers the response, then runs the
// command in its own goroutine so slow commands do not block the gateway.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go func() {
		req := requestFromEvent(event)

		if err := event.DeferCreateMessage(!b.handlers.IsPublic(req.Route())); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in application command interaction handler",
					zap.String("route", req.Route()),
					zap.Any("panic", r))
				b.respond(event, &Response{Embeds: []discord.Embed{
					errorEmbed("Internal error. Please report this to an administrator."),
				}})
			}
			b.logger.Debug("Application command interaction handled",
				zap.String("route", req.Route()),
				zap.Duration("duration", time.Since(start)))
		}()

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		req.Admin = b.isAdmin(event)

		if resp := b.checkCooldown(ctx, req); resp != nil {
			b.respond(event, resp)
			return
		}

		b.respond(event, b.handlers.Handle(ctx, req))
	}()
}

// isAdmin reports whether the invoking member may run admin commands.
func (b *Bot) isAdmin(event *events.ApplicationCommandInteractionCreate) bool {
	if b.config.IsAdmin(event.User().ID) {
		return true
	}

	member := event.Member()
	if member == nil {
		return false
	}

	return member.Permissions.Has(discord.PermissionAdministrator) ||
		member.Permissions.Has(discord.PermissionManageGuild)
}

// checkCooldown returns a reply when the user is still on cooldown.
// Cooldown failures are logged and never block a command.
func (b *Bot) checkCooldown(ctx context.Context, req *Request) *Response {
	if b.cooldown == nil {
		return nil
	}

	ok, left, err := b.cooldown.Allow(ctx, req.User.ID, req.Command)
	if err != nil {
		b.logger.Warn("Failed to check cooldown", zap.Error(err))
		return nil
	}
	if ok {
		return nil
	}

	return Reply("Slow down! Try again in %.1f seconds.", left.Seconds())
}

func (b *Bot) respond(event *events.ApplicationCommandInteractionCreate, resp *Response) {
	_, err := event.Client().Rest().UpdateInteractionResponse(event.ApplicationID(), event.Token(), resp.update())
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}
