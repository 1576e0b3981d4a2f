package venue

import (
	"errors"
	"fmt"
)

// Kind classifies a venue failure.
type Kind int

const (
	// KindAPI is a generic rejection. Assume no action was taken on the venue.
	KindAPI Kind = iota
	KindInsufficientFunds
	KindOrderNotFound
	// KindExcessiveRounding is raised locally when snapping to a step would distort the value.
	KindExcessiveRounding
	KindUnknownSymbol
	KindOrderPriceInvalid
	KindLotSizeInvalid
	KindOrderValueTooLow
	// KindNetwork covers transport failures where the venue outcome is unknown.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "APIError"
	case KindInsufficientFunds:
		return "InsufficientFunds"
	case KindOrderNotFound:
		return "OrderNotFound"
	case KindExcessiveRounding:
		return "ExcessiveRoundingError"
	case KindUnknownSymbol:
		return "UnknownSymbol"
	case KindOrderPriceInvalid:
		return "OrderPriceInvalid"
	case KindLotSizeInvalid:
		return "LotSizeInvalid"
	case KindOrderValueTooLow:
		return "OrderValueTooLow"
	case KindNetwork:
		return "NetworkError"
	default:
		return "UnknownVenueError"
	}
}

// IsAPIRejection reports whether k is APIError or one of its specific subkinds.
func (k Kind) IsAPIRejection() bool {
	switch k {
	case KindAPI, KindUnknownSymbol, KindOrderPriceInvalid, KindLotSizeInvalid, KindOrderValueTooLow:
		return true
	default:
		return false
	}
}

// Error is the error type returned by every venue operation.
type Error struct {
	Kind    Kind
	Code    int // venue specific code, 0 when not applicable
	Message string
	Err     error
}

// NewError creates an Error with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no message supplied"
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the per-kind sentinels. Every API rejection subkind also matches ErrAPI.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !t.sentinel() {
		return false
	}
	if t.Kind == KindAPI {
		return e.Kind.IsAPIRejection()
	}
	return e.Kind == t.Kind
}

func (e *Error) sentinel() bool {
	return e.Message == "" && e.Code == 0 && e.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrAPI               = &Error{Kind: KindAPI}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrOrderNotFound     = &Error{Kind: KindOrderNotFound}
	ErrExcessiveRounding = &Error{Kind: KindExcessiveRounding}
	ErrUnknownSymbol     = &Error{Kind: KindUnknownSymbol}
	ErrOrderPriceInvalid = &Error{Kind: KindOrderPriceInvalid}
	ErrLotSizeInvalid    = &Error{Kind: KindLotSizeInvalid}
	ErrOrderValueTooLow  = &Error{Kind: KindOrderValueTooLow}
	ErrNetwork           = &Error{Kind: KindNetwork}
)

// ErrUnknownOrderStatus is wrapped by the APIError returned for an unmapped venue status.
var ErrUnknownOrderStatus = errors.New("unknown venue order status")

// KindOf returns the kind of a venue error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind, true
	}
	return 0, false
}
