package events

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/events"
	"github.com/robalyx/storefront/internal/display"
	"go.uber.org/zap"
)

// forgetTimeout bounds the settings cleanup after the bot leaves a guild.
const forgetTimeout = 10 * time.Second

// GuildEventHandler tracks guild membership changes of the bot.
type GuildEventHandler struct {
	registry *display.Registry
	logger   *zap.Logger
}

// NewGuildEventHandler creates a new instance of the guild event handler.
func NewGuildEventHandler(registry *display.Registry, logger *zap.Logger) *GuildEventHandler {
	return &GuildEventHandler{
		registry: registry,
		logger:   logger.Named("guild_events"),
	}
}

// OnGuildJoin handles the event when the bot joins a new guild.
func (h *GuildEventHandler) OnGuildJoin(event *events.GuildJoin) {
	h.logger.Info("Bot joined a new guild",
		zap.String("guildID", event.GuildID.String()))
}

// OnGuildLeave handles the event when the bot is removed from a guild.
// Every live display of the guild is unregistered along with its stored handle.
func (h *GuildEventHandler) OnGuildLeave(event *events.GuildLeave) {
	ctx, cancel := context.WithTimeout(context.Background(), forgetTimeout)
	defer cancel()

	for _, kind := range display.Kinds {
		h.registry.Unregister(ctx, event.GuildID, kind)
	}

	h.logger.Info("Bot left a guild",
		zap.String("guildID", event.GuildID.String()))
}
