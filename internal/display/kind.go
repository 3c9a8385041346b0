// Package display keeps the live stock board and leaderboard messages of
// every guild up to date.
package display

import (
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// ErrUnknownKind is returned when parsing an unsupported display kind.
var ErrUnknownKind = errors.New("unknown display kind")

// Kind identifies one of the live displays a guild can have.
type Kind int

const (
	KindStock Kind = iota
	KindLeaderboard
)

// Kinds lists every display kind in sweep order.
var Kinds = []Kind{KindStock, KindLeaderboard} //nolint:gochecknoglobals // -

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindStock:
		return "stock"
	case KindLeaderboard:
		return "leaderboard"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// SettingKey is the guild setting under which the handle of this kind is mirrored.
func (k Kind) SettingKey() string {
	return "display:" + k.String()
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stock":
		return KindStock, nil
	case "leaderboard":
		return KindLeaderboard, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Key identifies one display of one guild.
type Key struct {
	GuildID snowflake.ID
	Kind    Kind
}

// Handle is the location of a published display message.
type Handle struct {
	GuildID   snowflake.ID `json:"guildId"`
	Kind      Kind         `json:"kind"`
	ChannelID snowflake.ID `json:"channelId"`
	MessageID snowflake.ID `json:"messageId"`
}

// Key returns the registry key of the handle.
func (h Handle) Key() Key {
	return Key{GuildID: h.GuildID, Kind: h.Kind}
}
