package venue

import (
	"github.com/tathienbao/pair-trader/internal/types"
)

// Venue status vocabulary. Adapters translate their native strings to these.
const (
	StatusNew             = "NEW"
	StatusPartiallyFilled = "PARTIALLY_FILLED"
	StatusFilled          = "FILLED"
	StatusCanceled        = "CANCELED"
	StatusPendingCancel   = "PENDING_CANCEL"
	StatusRejected        = "REJECTED"
	StatusExpired         = "EXPIRED"
)

// MapStatus maps a venue status string to an OrderState.
//
// A cancel or expiry after a partial fill is only distinguishable through the last
// known state, because the venue reports the same status for both. PENDING_CANCEL keeps
// the last known state. Unknown strings are fatal.
func MapStatus(raw string, last types.OrderState) (types.OrderState, error) {
	switch raw {
	case StatusNew:
		return types.OrderStatePlaced, nil
	case StatusPartiallyFilled:
		return types.OrderStateFilling, nil
	case StatusFilled:
		return types.OrderStateCompleted, nil
	case StatusCanceled, StatusExpired:
		if last == types.OrderStateFilling {
			return types.OrderStateCancelledPartial, nil
		}
		return types.OrderStateCancelled, nil
	case StatusPendingCancel:
		return last, nil
	case StatusRejected:
		return types.OrderStateCancelled, nil
	default:
		return 0, &Error{
			Kind:    KindAPI,
			Message: "unknown response status " + raw,
			Err:     ErrUnknownOrderStatus,
		}
	}
}
