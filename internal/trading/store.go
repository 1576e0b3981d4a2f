package trading

import (
	"context"
)

// Store persists sessions, orders and pairs.
//
// Update methods must refuse to modify records that are already closed in storage
// and return the matching validation error (types.ErrSessionClosed, types.ErrOrderClosed).
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	UpdateSession(ctx context.Context, s *Session) error

	CreateOrder(ctx context.Context, o *Order) error
	UpdateOrder(ctx context.Context, o *Order) error

	CreatePair(ctx context.Context, p *Pair) error
	UpdatePair(ctx context.Context, p *Pair) error
}
