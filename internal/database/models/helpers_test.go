package models_test

import (
	"github.com/robalyx/storefront/internal/database/types"
)

func newCodes(values ...string) []*types.Code {
	codes := make([]*types.Code, len(values))
	for i, value := range values {
		codes[i] = &types.Code{GuildID: guildID, Product: "NF", Value: value}
	}
	return codes
}

func newPurchase() *types.Purchase {
	return &types.Purchase{
		GuildID:    guildID,
		UserID:     99,
		Username:   "buyer",
		Product:    "NF",
		Quantity:   2,
		UnitPrice:  1000,
		TotalPrice: 2000,
		Codes:      []string{"AAA", "BBB"},
	}
}
