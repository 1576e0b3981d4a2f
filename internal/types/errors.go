package types

import (
	"errors"
	"fmt"
)

// ErrValidation is the root of every data-model contract violation.
// Validation errors are local and synchronous; the rejected mutation is never persisted.
var ErrValidation = errors.New("validation error")

// Record errors.
var (
	ErrOrderClosed        = fmt.Errorf("%w: order is closed", ErrValidation)
	ErrOrderAlreadyPlaced = fmt.Errorf("%w: order already placed", ErrValidation)
	ErrOrderNotPlaced     = fmt.Errorf("%w: order has not been placed", ErrValidation)
	ErrInvalidOrder       = fmt.Errorf("%w: invalid order", ErrValidation)
	ErrMissingPrice       = fmt.Errorf("%w: limit order has no price", ErrValidation)
	ErrInvalidQuantity    = fmt.Errorf("%w: quantity must be positive", ErrValidation)
	ErrIllegalTransition  = fmt.Errorf("%w: illegal order state transition", ErrValidation)

	ErrSessionClosed     = fmt.Errorf("%w: trading session is closed", ErrValidation)
	ErrVenueAlreadyBound = fmt.Errorf("%w: trading session venue can only be set once", ErrValidation)
	ErrVenueNotBound     = fmt.Errorf("%w: trading session has no venue", ErrValidation)
	ErrSessionMismatch   = fmt.Errorf("%w: order belongs to another session", ErrValidation)
)

// Pairing errors.
var (
	ErrOpenerNotPending = fmt.Errorf("%w: opening order must be pending", ErrValidation)
	ErrOpenerCancelled  = fmt.Errorf("%w: opening order was cancelled", ErrValidation)
	ErrOpenerNotClosed  = fmt.Errorf("%w: opening order is not closed", ErrValidation)
	ErrSameSide         = fmt.Errorf("%w: closing order must be on the opposite side", ErrValidation)
	ErrCloserAlreadySet = fmt.Errorf("%w: pair already has a closing order", ErrValidation)
	ErrPairNotClosed    = fmt.Errorf("%w: pair is not closed", ErrValidation)
	ErrNoProfit         = fmt.Errorf("%w: pair has no realised trade", ErrValidation)
)

// Storage and configuration errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidConfig = errors.New("invalid configuration")
)
