package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/discord/rate"
	"github.com/robalyx/storefront/internal/display"
	"go.uber.org/zap"
)

// Discord JSON error codes that mean the target was deleted.
const (
	codeUnknownChannel = 10003
	codeUnknownGuild   = 10004
	codeUnknownMessage = 10008
)

const (
	// MaxPurge is the most messages a single purge can remove.
	MaxPurge = 100
	// bulkDeleteMaxAge is how old a message may be for the bulk endpoint.
	bulkDeleteMaxAge = 14 * 24 * time.Hour
	// singleDeleteInterval spaces out one-by-one deletes.
	singleDeleteInterval = time.Second
)

// ErrInvalidPurgeCount is returned for purge counts outside 1..MaxPurge.
var ErrInvalidPurgeCount = errors.New("purge count must be between 1 and 100")

// RestClient is the subset of the disgo REST client used by Client.
type RestClient interface {
	GetChannel(channelID snowflake.ID, opts ...rest.RequestOpt) (discord.Channel, error)
	GetMessage(channelID, messageID snowflake.ID, opts ...rest.RequestOpt) (*discord.Message, error)
	GetMessages(channelID, around, before, after snowflake.ID, limit int, opts ...rest.RequestOpt) ([]discord.Message, error)
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
	UpdateMessage(
		channelID, messageID snowflake.ID, messageUpdate discord.MessageUpdate, opts ...rest.RequestOpt,
	) (*discord.Message, error)
	DeleteMessage(channelID, messageID snowflake.ID, opts ...rest.RequestOpt) error
	BulkDeleteMessages(channelID snowflake.ID, messageIDs []snowflake.ID, opts ...rest.RequestOpt) error
	CreateDMChannel(userID snowflake.ID, opts ...rest.RequestOpt) (*discord.DMChannel, error)
	RemoveMember(guildID, userID snowflake.ID, opts ...rest.RequestOpt) error
	AddBan(guildID, userID snowflake.ID, deleteMessageDuration time.Duration, opts ...rest.RequestOpt) error
	DeleteBan(guildID, userID snowflake.ID, opts ...rest.RequestOpt) error
}

// Client talks to Discord over REST. It implements display.Messenger and
// the moderation and DM helpers used by the bot commands.
type Client struct {
	rest    RestClient
	limiter *rate.Limiter
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a Client over the given REST client.
func New(restClient RestClient, logger *zap.Logger) *Client {
	return &Client{
		rest:    restClient,
		limiter: rate.New(singleDeleteInterval),
		now:     time.Now,
		logger:  logger.Named("discord_platform"),
	}
}

// ResolveChannel checks that the channel still exists.
func (c *Client) ResolveChannel(ctx context.Context, channelID snowflake.ID) error {
	_, err := c.rest.GetChannel(channelID, rest.WithCtx(ctx))
	return classify(err)
}

// FetchMessage checks that the message still exists.
func (c *Client) FetchMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	_, err := c.rest.GetMessage(channelID, messageID, rest.WithCtx(ctx))
	return classify(err)
}

// EditMessage replaces the embed of an existing message.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID snowflake.ID, artifact *display.Artifact) error {
	update := discord.NewMessageUpdateBuilder().
		SetEmbeds(Embed(artifact)).
		Build()

	_, err := c.rest.UpdateMessage(channelID, messageID, update, rest.WithCtx(ctx))
	return classify(err)
}

// SendMessage posts the artifact as a new message.
func (c *Client) SendMessage(ctx context.Context, channelID snowflake.ID, artifact *display.Artifact) (snowflake.ID, error) {
	create := discord.NewMessageCreateBuilder().
		SetEmbeds(Embed(artifact)).
		Build()

	message, err := c.rest.CreateMessage(channelID, create, rest.WithCtx(ctx))
	if err != nil {
		return 0, classify(err)
	}
	return message.ID, nil
}

// SendDM sends an embed to the user's direct messages.
func (c *Client) SendDM(ctx context.Context, userID snowflake.ID, embed discord.Embed) error {
	channel, err := c.rest.CreateDMChannel(userID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}

	_, err = c.rest.CreateMessage(channel.ID(), discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to send DM: %w", err)
	}
	return nil
}

// Kick removes a member from the guild.
func (c *Client) Kick(ctx context.Context, guildID, userID snowflake.ID, reason string) error {
	return c.rest.RemoveMember(guildID, userID, rest.WithCtx(ctx), rest.WithReason(reason))
}

// Ban bans a user from the guild.
func (c *Client) Ban(ctx context.Context, guildID, userID snowflake.ID, reason string) error {
	return c.rest.AddBan(guildID, userID, 0, rest.WithCtx(ctx), rest.WithReason(reason))
}

// Unban lifts a ban.
func (c *Client) Unban(ctx context.Context, guildID, userID snowflake.ID) error {
	return c.rest.DeleteBan(guildID, userID, rest.WithCtx(ctx))
}

// Purge deletes the latest count messages of a channel and returns how many
// were removed. Messages older than two weeks are deleted one at a time.
func (c *Client) Purge(ctx context.Context, channelID snowflake.ID, count int) (int, error) {
	if count < 1 || count > MaxPurge {
		return 0, ErrInvalidPurgeCount
	}

	messages, err := c.rest.GetMessages(channelID, 0, 0, 0, count, rest.WithCtx(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch messages: %w", err)
	}

	cutoff := c.now().Add(-bulkDeleteMaxAge)
	recent := make([]snowflake.ID, 0, len(messages))
	old := make([]snowflake.ID, 0)

	for _, message := range messages {
		if message.ID.Time().After(cutoff) {
			recent = append(recent, message.ID)
		} else {
			old = append(old, message.ID)
		}
	}

	deleted := 0

	switch len(recent) {
	case 0:
	case 1:
		old = append(recent, old...)
	default:
		if err := c.rest.BulkDeleteMessages(channelID, recent, rest.WithCtx(ctx)); err != nil {
			return 0, fmt.Errorf("failed to bulk delete messages: %w", err)
		}
		deleted += len(recent)
	}

	for _, messageID := range old {
		if err := c.limiter.Wait(ctx); err != nil {
			return deleted, err
		}

		if err := c.rest.DeleteMessage(channelID, messageID, rest.WithCtx(ctx)); err != nil {
			c.logger.Warn("Failed to delete message",
				zap.Uint64("channelID", uint64(channelID)),
				zap.Uint64("messageID", uint64(messageID)),
				zap.Error(err))
			continue
		}
		deleted++
	}

	return deleted, nil
}

// Embed converts an artifact into a Discord embed.
func Embed(artifact *display.Artifact) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle(artifact.Title).
		SetDescription(artifact.Body).
		SetColor(artifact.Color).
		SetFooterText(artifact.Footer)

	if artifact.ImageURL != "" {
		builder.SetImage(artifact.ImageURL)
	}

	if !artifact.Timestamp.IsZero() {
		builder.SetTimestamp(artifact.Timestamp)
	}

	return builder.Build()
}

// IsNotFound reports whether err says the Discord resource no longer exists.
func IsNotFound(err error) bool {
	var restError *rest.Error
	if !errors.As(err, &restError) {
		return false
	}

	switch int(restError.Code) {
	case codeUnknownChannel, codeUnknownGuild, codeUnknownMessage:
		return true
	}

	return restError.Response != nil && restError.Response.StatusCode == http.StatusNotFound
}

// classify wraps not-found errors with display.ErrTargetGone.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if IsNotFound(err) {
		return fmt.Errorf("%w: %w", display.ErrTargetGone, err)
	}
	return err
}
