package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/pair-trader/internal/metrics"
	"github.com/tathienbao/pair-trader/internal/types"
	"github.com/tathienbao/pair-trader/internal/venue"
)

// DefaultPollInterval is the sleep between order status polls.
const DefaultPollInterval = 100 * time.Millisecond

// Options configures a Service.
type Options struct {
	// MaxRoundingError bounds the relative change when snapping to step sizes.
	MaxRoundingError decimal.Decimal
	PollInterval     time.Duration
	// DryRun validates orders on the venue without placing them.
	DryRun bool

	Recorder *metrics.Recorder
	Now      func() time.Time
}

// Service runs sessions, the order lifecycle and pairing against a Store.
type Service struct {
	store        Store
	validator    *venue.Validator
	recorder     *metrics.Recorder
	logger       *slog.Logger
	pollInterval time.Duration
	dryRun       bool
	now          func() time.Time
}

// NewService creates a new trading service.
func NewService(store Store, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NewRecorder()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		store:        store,
		validator:    venue.NewValidator(opts.MaxRoundingError),
		recorder:     opts.Recorder,
		logger:       logger,
		pollInterval: opts.PollInterval,
		dryRun:       opts.DryRun,
		now:          opts.Now,
	}
}

// DryRun reports whether orders are only validated.
func (s *Service) DryRun() bool {
	return s.dryRun
}

// PollInterval returns the sleep between order status polls.
func (s *Service) PollInterval() time.Duration {
	return s.pollInterval
}

// OpenSession creates and persists a session for symbol, then binds v to it.
func (s *Service) OpenSession(ctx context.Context, v venue.Venue, symbol string) (*Session, error) {
	sess := NewSession(symbol, s.now())
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	next := *sess
	if err := next.BindVenue(v); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSession(ctx, &next); err != nil {
		return nil, fmt.Errorf("bind venue: %w", err)
	}
	*sess = next

	s.recorder.RecordSessionOpened(symbol)
	s.logger.Info("trading session opened",
		"session_id", sess.ID,
		"symbol", symbol,
		"venue", sess.VenueName,
	)
	return sess, nil
}

// CloseSession stamps the close time. A closed session can no longer change.
func (s *Service) CloseSession(ctx context.Context, sess *Session) error {
	next := *sess
	if err := next.close(s.now()); err != nil {
		return err
	}
	if err := s.store.UpdateSession(ctx, &next); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	*sess = next

	s.recorder.RecordSessionClosed(sess.Symbol)
	s.logger.Info("trading session closed",
		"session_id", sess.ID,
		"symbol", sess.Symbol,
		"duration", sess.TimeClosed.Sub(sess.TimeOpened),
	)
	return nil
}

// CreateOrder creates and persists a PENDING order in sess.
func (s *Service) CreateOrder(ctx context.Context, sess *Session, req OrderRequest) (*Order, error) {
	o, err := NewOrder(sess, req, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.recorder.RecordOrder(o.Symbol, o.Side.String(), o.Status.String())
	return o, nil
}

// OpenPair wraps a PENDING order in a new pair.
func (s *Service) OpenPair(ctx context.Context, sess *Session, opener *Order) (*Pair, error) {
	p, err := NewPair(sess, opener, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreatePair(ctx, p); err != nil {
		return nil, fmt.Errorf("create pair: %w", err)
	}
	return p, nil
}

// ClosePair attaches the closing order to p.
func (s *Service) ClosePair(ctx context.Context, p *Pair, closer *Order) error {
	next := *p
	if err := next.AttachCloser(closer); err != nil {
		return err
	}
	if err := s.store.UpdatePair(ctx, &next); err != nil {
		return fmt.Errorf("update pair: %w", err)
	}
	*p = next
	return nil
}

// commit persists a mutated copy of o and adopts it when storage accepted it.
func (s *Service) commit(ctx context.Context, o *Order, next *Order) error {
	if err := s.store.UpdateOrder(ctx, next); err != nil {
		return fmt.Errorf("update order %s: %w", o.ID, err)
	}
	changed := next.Status != o.Status
	*o = *next
	if changed {
		s.recorder.RecordOrder(o.Symbol, o.Side.String(), o.Status.String())
	}
	return nil
}

func (s *Service) venueError(v venue.Venue, op string, o *Order, err error) error {
	kind := "unknown"
	if k, ok := venue.KindOf(err); ok {
		kind = k.String()
	}
	s.recorder.RecordVenueError(v.Name(), kind)
	s.logger.Warn("venue request failed",
		"op", op,
		"venue", v.Name(),
		"order_id", o.ID,
		"symbol", o.Symbol,
		"kind", kind,
		"err", err,
	)
	return fmt.Errorf("%s order %s: %w", op, o.ID, err)
}

// Cancel cancels o. A PENDING order is cancelled locally; otherwise the venue is
// asked to cancel and the order is reconciled from the venue's answer.
func (s *Service) Cancel(ctx context.Context, o *Order, v venue.Venue) error {
	if o.IsClosed() {
		return types.ErrOrderClosed
	}

	if o.Status == types.OrderStatePending {
		next := *o
		if err := next.transition(types.OrderStateCancelled, s.now()); err != nil {
			return err
		}
		return s.commit(ctx, o, &next)
	}

	if err := v.CancelOrder(ctx, o.Symbol, o.VenueOrderID); err != nil {
		// The order closed on the venue before the cancel arrived; reconcile below.
		if !errors.Is(err, venue.ErrOrderNotFound) {
			return s.venueError(v, "cancel", o, err)
		}
		s.logger.Warn("cancel raced with order close",
			"order_id", o.ID,
			"venue_order_id", o.VenueOrderID,
			"err", err,
		)
	}

	return s.UpdateFromVenue(ctx, o, v)
}

// UpdateFromVenue refreshes o from the venue's status. Closed orders are left untouched.
func (s *Service) UpdateFromVenue(ctx context.Context, o *Order, v venue.Venue) error {
	if o.IsClosed() {
		s.logger.Warn("status update skipped for closed order",
			"order_id", o.ID,
			"status", o.Status,
		)
		return nil
	}
	if o.Status == types.OrderStatePending {
		return types.ErrOrderNotPlaced
	}

	st, err := v.GetOrderStatus(ctx, o.Symbol, o.VenueOrderID, o.Status)
	if err != nil {
		return s.venueError(v, "status", o, err)
	}

	next := *o
	if err := next.transition(st.Status, s.now()); err != nil {
		return fmt.Errorf("order %s venue status %s: %w", o.ID, st.Raw, err)
	}
	next.QuantityFilled = decimal.NewNullDecimal(st.QuantityFilled)
	if !next.Price.Valid && st.Price.IsPositive() &&
		(next.Status == types.OrderStateCompleted || next.Status == types.OrderStateCancelledPartial) {
		next.Price = decimal.NewNullDecimal(st.Price)
	}

	return s.commit(ctx, o, &next)
}

// BlockUntilCompleteOrTimeout polls o until it closes. When timeout elapses first
// the order is cancelled once and its final state reconciled.
func (s *Service) BlockUntilCompleteOrTimeout(ctx context.Context, o *Order, v venue.Venue, timeout time.Duration) error {
	start := s.now()
	timer := metrics.NewTimer()
	defer timer.ObservePoll(o.Symbol)

	for {
		if err := s.UpdateFromVenue(ctx, o, v); err != nil {
			return err
		}

		switch {
		case o.Status == types.OrderStateCompleted:
			s.logger.Info("order completed",
				"order_id", o.ID,
				"symbol", o.Symbol,
				"filled", o.Filled(),
				"price", priceString(o.Price),
			)
			return nil
		case o.IsClosed():
			s.logger.Info("order closed on venue",
				"order_id", o.ID,
				"symbol", o.Symbol,
				"status", o.Status,
				"filled", o.Filled(),
			)
			return nil
		case o.Status == types.OrderStateFilling:
			s.logger.Info("order filling",
				"order_id", o.ID,
				"symbol", o.Symbol,
				"filled", o.Filled(),
				"quantity", o.Quantity,
			)
		}

		if elapsed := s.now().Sub(start); elapsed > timeout {
			s.logger.Warn("order timed out, cancelling",
				"order_id", o.ID,
				"symbol", o.Symbol,
				"status", o.Status,
				"elapsed", elapsed,
			)
			return s.Cancel(ctx, o, v)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}
