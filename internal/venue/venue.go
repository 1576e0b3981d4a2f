// Package venue defines the capability set a trading venue adapter must implement,
// the shared venue error taxonomy and the symbol constraint validator.
package venue

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/pair-trader/internal/types"
)

// Venue defines the interface for venue connectivity.
// Every method that talks to the venue fails with a *Error.
type Venue interface {
	Name() string

	// Quotes
	GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetBidPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetAskPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// GetOrderStatus needs the last known state to tell a cancel after a partial
	// fill apart from a clean cancel.
	GetOrderStatus(ctx context.Context, symbol, orderID string, last types.OrderState) (*OrderStatus, error)

	// Order execution. With dryRun the venue validates the order without
	// committing capital and returns an empty order id.
	PlaceBuyLimitOrder(ctx context.Context, symbol string, qty, price decimal.Decimal, dryRun bool) (string, error)
	PlaceSellLimitOrder(ctx context.Context, symbol string, qty, price decimal.Decimal, dryRun bool) (string, error)
	PlaceBuyMarketOrder(ctx context.Context, symbol string, qty decimal.Decimal, dryRun bool) (string, error)
	PlaceSellMarketOrder(ctx context.Context, symbol string, qty decimal.Decimal, dryRun bool) (string, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// Account
	GetBalance(ctx context.Context, asset string) (decimal.Decimal, error)

	// Metadata
	GetSymbolMetadata(ctx context.Context, symbol string) (*SymbolMetadata, error)
}

// OrderStatus is a venue's view of a placed order, already mapped to OrderState.
type OrderStatus struct {
	Price          decimal.Decimal // limit price, or average fill price for market orders
	Quantity       decimal.Decimal
	QuantityFilled decimal.Decimal
	Status         types.OrderState
	Raw            string // venue status string before mapping
}

// SymbolMetadata holds the trading rules of one symbol.
type SymbolMetadata struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string

	MinPrice  decimal.Decimal
	MaxPrice  decimal.Decimal
	PriceStep decimal.Decimal

	MinQty  decimal.Decimal
	MaxQty  decimal.Decimal
	QtyStep decimal.Decimal

	MinNotional decimal.Decimal
	Tradeable   bool
}

// Place dispatches to the side/type specific placement call.
func Place(ctx context.Context, v Venue, symbol string, side types.Side, typ types.OrderType,
	qty, price decimal.Decimal, dryRun bool) (string, error) {
	switch {
	case side == types.SideBuy && typ == types.OrderTypeLimit:
		return v.PlaceBuyLimitOrder(ctx, symbol, qty, price, dryRun)
	case side == types.SideSell && typ == types.OrderTypeLimit:
		return v.PlaceSellLimitOrder(ctx, symbol, qty, price, dryRun)
	case side == types.SideBuy && typ == types.OrderTypeMarket:
		return v.PlaceBuyMarketOrder(ctx, symbol, qty, dryRun)
	case side == types.SideSell && typ == types.OrderTypeMarket:
		return v.PlaceSellMarketOrder(ctx, symbol, qty, dryRun)
	default:
		return "", NewError(KindAPI, "unsupported order %s %s", side, typ)
	}
}
