package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceSource is a single fiat/coin exchange rate source queried by the own
// price sampling task of tier-3 nodes.
type PriceSource interface {
	Name() string
	// FetchPrice returns the current price of one coin in the given fiat
	// currency.
	FetchPrice(ctx context.Context, currency string) (decimal.Decimal, error)
}
