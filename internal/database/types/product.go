package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Product is a sellable listing in a guild's catalog.
// Code is the short upper-case identifier buyers type in commands.
type Product struct {
	ID        int64        `bun:",pk,autoincrement"                            json:"id"`
	GuildID   snowflake.ID `bun:",notnull,unique:products_guild_code"          json:"guildId"`
	Code      string       `bun:",notnull,unique:products_guild_code"          json:"code"`
	Name      string       `bun:",notnull"                                     json:"name"`
	Price     int64        `bun:",notnull"                                     json:"price"`
	CreatedAt time.Time    `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

// Code is a single pre-provisioned digital code belonging to a product.
type Code struct {
	ID        int64        `bun:",pk,autoincrement"                            json:"id"`
	GuildID   snowflake.ID `bun:",notnull,unique:codes_guild_value"            json:"guildId"`
	Product   string       `bun:",notnull"                                     json:"product"`
	Value     string       `bun:",notnull,unique:codes_guild_value"            json:"value"`
	Used      bool         `bun:",notnull,default:false"                       json:"used"`
	CreatedAt time.Time    `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UsedAt    time.Time    `bun:",nullzero"                                    json:"usedAt"`
}

// StockSummary aggregates code availability for one product.
type StockSummary struct {
	Product   string `bun:"product"   json:"product"`
	Available int    `bun:"available" json:"available"`
	Total     int    `bun:"total"     json:"total"`
}
