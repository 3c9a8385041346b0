package display

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// Publisher posts a new display message and registers it for live updates.
type Publisher struct {
	registry  *Registry
	reader    TenantReader
	messenger Messenger
	renderer  *Renderer
	clock     Clock
	logger    *zap.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(
	registry *Registry, reader TenantReader, messenger Messenger, renderer *Renderer, clock Clock, logger *zap.Logger,
) *Publisher {
	if clock == nil {
		clock = SystemClock{}
	}

	return &Publisher{
		registry:  registry,
		reader:    reader,
		messenger: messenger,
		renderer:  renderer,
		clock:     clock,
		logger:    logger.Named("display_publisher"),
	}
}

// Publish sends a fresh display of the given kind to the channel and makes it
// the live display of the guild, replacing any previous registration.
func (p *Publisher) Publish(
	ctx context.Context, guildID snowflake.ID, kind Kind, channelID snowflake.ID,
) (Handle, error) {
	if err := p.messenger.ResolveChannel(ctx, channelID); err != nil {
		return Handle{}, fmt.Errorf("failed to resolve channel: %w", err)
	}

	now := p.clock.Now()
	state, err := p.renderer.LoadState(ctx, p.reader, Key{GuildID: guildID, Kind: kind}, now, now)
	if err != nil {
		return Handle{}, err
	}

	messageID, err := p.messenger.SendMessage(ctx, channelID, p.renderer.Render(kind, state))
	if err != nil {
		return Handle{}, fmt.Errorf("failed to send display: %w", err)
	}

	handle := Handle{
		GuildID:   guildID,
		Kind:      kind,
		ChannelID: channelID,
		MessageID: messageID,
	}
	p.registry.Register(ctx, handle)

	p.logger.Info("Published display",
		zap.Uint64("guildID", uint64(guildID)),
		zap.String("kind", kind.String()),
		zap.Uint64("channelID", uint64(channelID)),
		zap.Uint64("messageID", uint64(messageID)))

	return handle, nil
}
