// Package persistence stores trading sessions, orders and pairs.
package persistence

import (
	"context"

	"github.com/tathienbao/pair-trader/internal/trading"
)

// Repository is the full storage surface: the trading.Store write port plus reads.
type Repository interface {
	trading.Store

	// Session reads
	GetSession(ctx context.Context, id string) (*trading.Session, error)
	ListSessions(ctx context.Context, openOnly bool) ([]*trading.Session, error)

	// Order reads
	GetOrder(ctx context.Context, id string) (*trading.Order, error)
	ListOrders(ctx context.Context, sessionID string) ([]*trading.Order, error)
	ListOpenOrders(ctx context.Context) ([]*trading.Order, error)

	// Pair reads, with opening and closing orders loaded
	ListPairs(ctx context.Context, sessionID string) ([]*trading.Pair, error)
	GetSessionStats(ctx context.Context, sessionID string) (SessionStats, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
}

// SessionStats summarises one session's pairs.
type SessionStats struct {
	Orders      int
	Pairs       int
	ClosedPairs int
	Wins        int
	Losses      int
}
