package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Purchase records a completed sale and the codes that were delivered.
type Purchase struct {
	ID          int64        `bun:",pk,autoincrement"                            json:"id"`
	GuildID     snowflake.ID `bun:",notnull"                                     json:"guildId"`
	UserID      snowflake.ID `bun:",notnull"                                     json:"userId"`
	Username    string       `bun:",notnull"                                     json:"username"`
	AvatarURL   string       `bun:",notnull,default:''"                          json:"avatarUrl"`
	Product     string       `bun:",notnull"                                     json:"product"`
	Quantity    int          `bun:",notnull"                                     json:"quantity"`
	UnitPrice   int64        `bun:",notnull"                                     json:"unitPrice"`
	TotalPrice  int64        `bun:",notnull"                                     json:"totalPrice"`
	Codes       []string     `bun:",type:jsonb"                                  json:"codes"`
	PurchasedAt time.Time    `bun:",nullzero,notnull,default:current_timestamp" json:"purchasedAt"`
}

// LeaderboardEntry holds the running spend totals of one buyer.
type LeaderboardEntry struct {
	GuildID        snowflake.ID `bun:",pk"      json:"guildId"`
	UserID         snowflake.ID `bun:",pk"      json:"userId"`
	Username       string       `bun:",notnull" json:"username"`
	TotalPurchases int          `bun:",notnull" json:"totalPurchases"`
	TotalSpent     int64        `bun:",notnull" json:"totalSpent"`
}

// Testimonial is a buyer's review left after a purchase.
type Testimonial struct {
	ID        int64        `bun:",pk,autoincrement"                            json:"id"`
	GuildID   snowflake.ID `bun:",notnull"                                     json:"guildId"`
	UserID    snowflake.ID `bun:",notnull"                                     json:"userId"`
	Username  string       `bun:",notnull"                                     json:"username"`
	AvatarURL string       `bun:",notnull,default:''"                          json:"avatarUrl"`
	Message   string       `bun:",notnull"                                     json:"message"`
	Rating    int          `bun:",notnull,default:5"                           json:"rating"`
	CreatedAt time.Time    `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
}
