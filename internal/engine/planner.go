package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/pair-trader/internal/trading"
	"github.com/tathienbao/pair-trader/internal/types"
	"github.com/tathienbao/pair-trader/internal/venue"
)

// Planner decides what a symbol loop trades. It holds no order state.
type Planner interface {
	// Opening returns the next opening order, or nil when there is nothing to do this cycle.
	Opening(ctx context.Context, v venue.Venue, symbol string) (*trading.OrderRequest, error)
	// Closing returns the order that unwinds the filled opener.
	Closing(ctx context.Context, v venue.Venue, opener *trading.Order) (*trading.OrderRequest, error)
}

// FixedPlanner opens every pair with the same order and closes it at a fixed price.
type FixedPlanner struct {
	Side     types.Side
	Type     types.OrderType
	Quantity decimal.Decimal

	// OpenPrice and ClosePrice are required for limit orders and ignored for market orders.
	OpenPrice  decimal.Decimal
	ClosePrice decimal.Decimal
}

// Validate checks the planner can produce orders.
func (p *FixedPlanner) Validate() error {
	if !p.Side.Valid() {
		return fmt.Errorf("%w: planner side %s", types.ErrInvalidOrder, p.Side)
	}
	if !p.Quantity.IsPositive() {
		return fmt.Errorf("planner: %w", types.ErrInvalidQuantity)
	}
	switch p.Type {
	case types.OrderTypeMarket:
	case types.OrderTypeLimit:
		if !p.OpenPrice.IsPositive() || !p.ClosePrice.IsPositive() {
			return fmt.Errorf("planner: %w", types.ErrMissingPrice)
		}
	default:
		return fmt.Errorf("%w: planner type %s", types.ErrInvalidOrder, p.Type)
	}
	return nil
}

// Opening returns the configured opening order.
func (p *FixedPlanner) Opening(ctx context.Context, v venue.Venue, symbol string) (*trading.OrderRequest, error) {
	return &trading.OrderRequest{
		Side:     p.Side,
		Type:     p.Type,
		Quantity: p.Quantity,
		Price:    p.price(p.OpenPrice),
	}, nil
}

// Closing sells what a buy opener bought, or buys back what a sell opener sold.
func (p *FixedPlanner) Closing(ctx context.Context, v venue.Venue, opener *trading.Order) (*trading.OrderRequest, error) {
	qty := opener.Filled()
	if !qty.IsPositive() {
		return nil, fmt.Errorf("opener %s has no fill to close: %w", opener.ID, types.ErrInvalidQuantity)
	}
	return &trading.OrderRequest{
		Side:     opener.Side.Opposite(),
		Type:     p.Type,
		Quantity: qty,
		Price:    p.price(p.ClosePrice),
	}, nil
}

func (p *FixedPlanner) price(d decimal.Decimal) decimal.NullDecimal {
	if p.Type != types.OrderTypeLimit {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
