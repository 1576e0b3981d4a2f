// Package types defines shared types used across the trading system.
package types

import (
	"fmt"
	"strings"
)

// Side represents the direction of an order.
type Side int

const (
	SideBuy Side = iota + 1
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the opposite side.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return s
	}
}

// Valid reports whether s is BUY or SELL.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ParseSide parses "buy"/"sell" (case-insensitive).
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	default:
		return 0, fmt.Errorf("%w: unknown side %q", ErrValidation, s)
	}
}

// OrderType distinguishes limit from market orders.
type OrderType int

const (
	OrderTypeLimit OrderType = iota + 1
	OrderTypeMarket
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeMarket:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

// ParseOrderType parses "limit"/"market" (case-insensitive).
func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LIMIT":
		return OrderTypeLimit, nil
	case "MARKET":
		return OrderTypeMarket, nil
	default:
		return 0, fmt.Errorf("%w: unknown order type %q", ErrValidation, s)
	}
}

// OrderState represents the lifecycle state of an order.
// The numeric values are persisted and must not be reordered.
type OrderState int

const (
	OrderStatePending          OrderState = iota + 1 // not yet sent to the venue
	OrderStatePlaced                                 // accepted by the venue, nothing filled
	OrderStateFilling                                // partially filled
	OrderStateCompleted                              // fully filled
	OrderStateCancelled                              // cancelled before any fill
	OrderStateCancelledPartial                       // cancelled after a partial fill
)

func (s OrderState) String() string {
	switch s {
	case OrderStatePending:
		return "PENDING"
	case OrderStatePlaced:
		return "PLACED"
	case OrderStateFilling:
		return "FILLING"
	case OrderStateCompleted:
		return "COMPLETED"
	case OrderStateCancelled:
		return "CANCELLED"
	case OrderStateCancelledPartial:
		return "CANCELLED_PARTIAL"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether s is one of the declared states.
func (s OrderState) Valid() bool {
	return s >= OrderStatePending && s <= OrderStateCancelledPartial
}

// IsTerminal returns true if no transition can leave the state.
func (s OrderState) IsTerminal() bool {
	switch s {
	case OrderStateCompleted, OrderStateCancelled, OrderStateCancelledPartial:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next is legal.
// Staying in PLACED or FILLING is allowed so repeated venue polls are idempotent.
func (s OrderState) CanTransitionTo(next OrderState) bool {
	switch s {
	case OrderStatePending:
		return next == OrderStatePlaced || next == OrderStateCancelled
	case OrderStatePlaced:
		switch next {
		case OrderStatePlaced, OrderStateFilling, OrderStateCompleted, OrderStateCancelled:
			return true
		}
	case OrderStateFilling:
		switch next {
		case OrderStateFilling, OrderStateCompleted, OrderStateCancelledPartial:
			return true
		}
	}
	return false
}

// TerminalStates lists the sink states, for storage queries.
func TerminalStates() []OrderState {
	return []OrderState{OrderStateCompleted, OrderStateCancelled, OrderStateCancelledPartial}
}
