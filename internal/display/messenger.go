package display

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database/types"
)

// ErrTargetGone is wrapped by Messenger errors when the channel or message
// no longer exists.
var ErrTargetGone = errors.New("display target no longer exists")

// Messenger publishes artifacts to the chat platform.
type Messenger interface {
	// ResolveChannel checks that the channel still exists.
	ResolveChannel(ctx context.Context, channelID snowflake.ID) error
	// FetchMessage checks that the message still exists in the channel.
	FetchMessage(ctx context.Context, channelID, messageID snowflake.ID) error
	// EditMessage replaces the content of an existing message.
	EditMessage(ctx context.Context, channelID, messageID snowflake.ID, artifact *Artifact) error
	// SendMessage posts a new message and returns its ID.
	SendMessage(ctx context.Context, channelID snowflake.ID, artifact *Artifact) (snowflake.ID, error)
}

// TenantReader is the read side of the tenant store used to build display state.
type TenantReader interface {
	GetProducts(ctx context.Context, guildID snowflake.ID) ([]*types.Product, error)
	GetProductStock(ctx context.Context, guildID snowflake.ID, product string) (int, error)
	GetLeaderboard(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.LeaderboardEntry, error)
}

// SettingStore persists handles so they survive restarts.
type SettingStore interface {
	GetSetting(ctx context.Context, guildID snowflake.ID, key string) (string, bool, error)
	SetSetting(ctx context.Context, guildID snowflake.ID, key, value string) error
	DeleteSetting(ctx context.Context, guildID snowflake.ID, key string) error
	GuildsWithSetting(ctx context.Context, key string) ([]snowflake.ID, error)
}

// Store is everything the display package needs from the tenant store.
type Store interface {
	TenantReader
	SettingStore
}
