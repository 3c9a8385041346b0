package types

import "github.com/disgoorg/snowflake/v2"

// GuildSetting is a free-form key/value setting scoped to one guild.
type GuildSetting struct {
	GuildID snowflake.ID `bun:",pk"      json:"guildId"`
	Key     string       `bun:",pk"      json:"key"`
	Value   string       `bun:",notnull" json:"value"`
}
