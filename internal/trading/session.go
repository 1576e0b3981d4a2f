// Package trading implements trading sessions, the order lifecycle against a venue,
// and pairing of opening and closing orders.
package trading

import (
	"time"

	"github.com/google/uuid"
	"github.com/tathienbao/pair-trader/internal/types"
	"github.com/tathienbao/pair-trader/internal/venue"
)

// Session groups the orders and pairs traded on one symbol and one venue.
// Once closed it can no longer be modified.
type Session struct {
	ID         string
	Symbol     string
	VenueName  string
	TimeOpened time.Time
	TimeClosed *time.Time

	venue venue.Venue
}

// NewSession creates an open session without a venue.
func NewSession(symbol string, now time.Time) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		TimeOpened: now,
	}
}

// IsOpen reports whether the session has not been closed.
func (s *Session) IsOpen() bool {
	return s.TimeClosed == nil
}

// Venue returns the bound venue, or nil.
func (s *Session) Venue() venue.Venue {
	return s.venue
}

// BindVenue sets the venue. It can only be done once.
func (s *Session) BindVenue(v venue.Venue) error {
	if !s.IsOpen() {
		return types.ErrSessionClosed
	}
	if s.venue != nil || s.VenueName != "" {
		return types.ErrVenueAlreadyBound
	}
	s.venue = v
	s.VenueName = v.Name()
	return nil
}

func (s *Session) close(now time.Time) error {
	if !s.IsOpen() {
		return types.ErrSessionClosed
	}
	t := now
	s.TimeClosed = &t
	return nil
}
