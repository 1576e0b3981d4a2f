package trading

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tathienbao/pair-trader/internal/types"
)

// OrderRequest describes an order to create.
type OrderRequest struct {
	Side     types.Side
	Type     types.OrderType
	Quantity decimal.Decimal
	Price    decimal.NullDecimal // required for limit orders
}

// Order is one order sent, or to be sent, to a venue.
type Order struct {
	ID        string
	SessionID string
	Symbol    string
	Side      types.Side
	Type      types.OrderType

	// Price is null for market orders until the venue reports a fill price.
	Price          decimal.NullDecimal
	Quantity       decimal.Decimal
	QuantityFilled decimal.NullDecimal

	Status       types.OrderState
	VenueOrderID string

	CreatedAt  time.Time
	TimePlaced *time.Time
	TimeClosed *time.Time
}

// NewOrder creates a PENDING order for session.
func NewOrder(session *Session, req OrderRequest, now time.Time) (*Order, error) {
	if !session.IsOpen() {
		return nil, types.ErrSessionClosed
	}
	if !req.Side.Valid() {
		return nil, fmt.Errorf("%w: side %s", types.ErrInvalidOrder, req.Side)
	}
	switch req.Type {
	case types.OrderTypeLimit:
		if !req.Price.Valid || !req.Price.Decimal.IsPositive() {
			return nil, types.ErrMissingPrice
		}
	case types.OrderTypeMarket:
	default:
		return nil, fmt.Errorf("%w: type %s", types.ErrInvalidOrder, req.Type)
	}
	if !req.Quantity.IsPositive() {
		return nil, types.ErrInvalidQuantity
	}

	return &Order{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Symbol:    session.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Status:    types.OrderStatePending,
		CreatedAt: now,
	}, nil
}

// IsClosed reports whether the order is in a terminal state.
func (o *Order) IsClosed() bool {
	return o.Status.IsTerminal()
}

// Filled returns the filled quantity, zero when unknown.
func (o *Order) Filled() decimal.Decimal {
	if !o.QuantityFilled.Valid {
		return decimal.Zero
	}
	return o.QuantityFilled.Decimal
}

// transition moves the order to next and stamps TimeClosed on entering a terminal state.
func (o *Order) transition(next types.OrderState, now time.Time) error {
	if o.IsClosed() {
		return types.ErrOrderClosed
	}
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", types.ErrIllegalTransition, o.Status, next)
	}
	o.Status = next
	if next.IsTerminal() {
		t := now
		o.TimeClosed = &t
	}
	return nil
}

func (o *Order) String() string {
	return fmt.Sprintf("%s %s %s %s @ %s [%s]", o.Side, o.Type, o.Quantity, o.Symbol, priceString(o.Price), o.Status)
}

func priceString(p decimal.NullDecimal) string {
	if !p.Valid {
		return "MARKET"
	}
	return p.Decimal.String()
}
