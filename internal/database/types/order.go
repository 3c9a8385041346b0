package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a buyer's request for a quantity of a product.
// Orders start pending and are completed or cancelled by a seller.
type Order struct {
	ID        int64        `bun:",pk,autoincrement"                            json:"id"`
	GuildID   snowflake.ID `bun:",notnull"                                     json:"guildId"`
	UserID    snowflake.ID `bun:",notnull"                                     json:"userId"`
	Username  string       `bun:",notnull"                                     json:"username"`
	Product   string       `bun:",notnull"                                     json:"product"`
	Quantity  int          `bun:",notnull"                                     json:"quantity"`
	Status    OrderStatus  `bun:",notnull,default:'pending'"                   json:"status"`
	CreatedAt time.Time    `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time    `bun:",nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// IsPending reports whether the order can still be completed or cancelled.
func (o *Order) IsPending() bool {
	return o.Status == OrderStatusPending
}
