package trading

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tathienbao/pair-trader/internal/types"
)

// Pair links an opening order with the opposite-side order that unwinds it.
type Pair struct {
	ID        string
	SessionID string
	Opening   *Order
	Closing   *Order
	CreatedAt time.Time
}

// NewPair wraps a PENDING opening order.
func NewPair(session *Session, opener *Order, now time.Time) (*Pair, error) {
	if !session.IsOpen() {
		return nil, types.ErrSessionClosed
	}
	if opener.SessionID != session.ID {
		return nil, types.ErrSessionMismatch
	}
	if opener.Status != types.OrderStatePending {
		return nil, types.ErrOpenerNotPending
	}
	return &Pair{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Opening:   opener,
		CreatedAt: now,
	}, nil
}

// AttachCloser sets the closing order. The opener must be closed with some fill,
// and the closer must be open and on the opposite side.
func (p *Pair) AttachCloser(closer *Order) error {
	switch {
	case p.Closing != nil:
		return types.ErrCloserAlreadySet
	case p.Opening.Status == types.OrderStateCancelled:
		return types.ErrOpenerCancelled
	case !p.Opening.IsClosed():
		return types.ErrOpenerNotClosed
	case closer.IsClosed():
		return types.ErrOrderClosed
	case closer.SessionID != p.SessionID:
		return types.ErrSessionMismatch
	case closer.Side == p.Opening.Side:
		return types.ErrSameSide
	}
	p.Closing = closer
	return nil
}

// IsClosed reports whether the pair needs no further action: the opener was
// cancelled without fill, or both orders are closed.
func (p *Pair) IsClosed() bool {
	if p.Opening.Status == types.OrderStateCancelled {
		return true
	}
	return p.Opening.IsClosed() && p.Closing != nil && p.Closing.IsClosed()
}

// Profit returns closing notional over opening notional, minus one. Fees are not included.
func (p *Pair) Profit() (decimal.Decimal, error) {
	if !p.IsClosed() {
		return decimal.Zero, types.ErrPairNotClosed
	}
	if p.Closing == nil || !p.Opening.Price.Valid || !p.Closing.Price.Valid {
		return decimal.Zero, types.ErrNoProfit
	}

	opened := p.Opening.Filled().Mul(p.Opening.Price.Decimal)
	if opened.IsZero() {
		return decimal.Zero, types.ErrNoProfit
	}
	closed := p.Closing.Filled().Mul(p.Closing.Price.Decimal)
	return closed.Div(opened).Sub(decimal.NewFromInt(1)), nil
}
