package trading

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/pair-trader/internal/metrics"
	"github.com/tathienbao/pair-trader/internal/types"
	"github.com/tathienbao/pair-trader/internal/venue"
)

// ErrPlacementUnrecorded marks a placement the venue accepted but that could not
// be recorded. The order stays PENDING locally while it is live on the venue.
var ErrPlacementUnrecorded = errors.New("venue accepted order but recording it failed")

// Place dispatches on the order type.
func (s *Service) Place(ctx context.Context, o *Order, v venue.Venue) error {
	switch o.Type {
	case types.OrderTypeLimit:
		return s.PlaceLimit(ctx, o, v)
	case types.OrderTypeMarket:
		return s.PlaceMarket(ctx, o, v)
	default:
		return fmt.Errorf("%w: type %s", types.ErrInvalidOrder, o.Type)
	}
}

// PlaceLimit validates o against the symbol's rules and submits it as a limit order.
func (s *Service) PlaceLimit(ctx context.Context, o *Order, v venue.Venue) error {
	if err := checkPlaceable(o, types.OrderTypeLimit); err != nil {
		return err
	}
	if !o.Price.Valid {
		return types.ErrMissingPrice
	}
	return s.place(ctx, o, v)
}

// PlaceMarket validates o's quantity and submits it as a market order.
func (s *Service) PlaceMarket(ctx context.Context, o *Order, v venue.Venue) error {
	if err := checkPlaceable(o, types.OrderTypeMarket); err != nil {
		return err
	}
	return s.place(ctx, o, v)
}

func checkPlaceable(o *Order, typ types.OrderType) error {
	switch {
	case o.IsClosed():
		return types.ErrOrderClosed
	case o.Status != types.OrderStatePending:
		return types.ErrOrderAlreadyPlaced
	case o.Type != typ:
		return fmt.Errorf("%w: order %s is %s, not %s", types.ErrInvalidOrder, o.ID, o.Type, typ)
	}
	return nil
}

func (s *Service) place(ctx context.Context, o *Order, v venue.Venue) error {
	timer := metrics.NewTimer()

	meta, err := v.GetSymbolMetadata(ctx, o.Symbol)
	if err != nil {
		return s.venueError(v, "metadata", o, err)
	}

	price, qty, err := s.validate(meta, o)
	if err != nil {
		s.logger.Warn("order rejected by symbol rules",
			"order_id", o.ID,
			"symbol", o.Symbol,
			"side", o.Side,
			"quantity", o.Quantity,
			"price", priceString(o.Price),
			"err", err,
		)
		return fmt.Errorf("validate order %s: %w", o.ID, err)
	}

	id, err := venue.Place(ctx, v, o.Symbol, o.Side, o.Type, qty, price.Decimal, s.dryRun)
	if err != nil {
		return s.venueError(v, "place", o, err)
	}
	timer.ObserveOrder()

	if s.dryRun {
		s.logger.Info("dry run order accepted by venue",
			"order_id", o.ID,
			"symbol", o.Symbol,
			"side", o.Side,
			"type", o.Type,
			"quantity", qty,
			"price", priceString(price),
		)
		return nil
	}

	now := s.now()
	next := *o
	next.Price = price
	next.Quantity = qty
	next.VenueOrderID = id
	next.TimePlaced = &now
	if err := next.transition(types.OrderStatePlaced, now); err != nil {
		return fmt.Errorf("%w: venue order %s: %w", ErrPlacementUnrecorded, id, err)
	}
	if err := s.commit(ctx, o, &next); err != nil {
		return fmt.Errorf("%w: venue order %s: %w", ErrPlacementUnrecorded, id, err)
	}

	s.logger.Info("order placed",
		"order_id", o.ID,
		"venue_order_id", id,
		"symbol", o.Symbol,
		"side", o.Side,
		"type", o.Type,
		"quantity", qty,
		"price", priceString(price),
	)
	return nil
}

// validate returns the price and quantity rounded to the symbol's steps.
func (s *Service) validate(meta *venue.SymbolMetadata, o *Order) (decimal.NullDecimal, decimal.Decimal, error) {
	if err := s.validator.CheckTradeable(meta); err != nil {
		return decimal.NullDecimal{}, decimal.Zero, err
	}

	price := o.Price
	if o.Type == types.OrderTypeLimit {
		p, err := s.validator.CheckPrice(meta, o.Price.Decimal)
		if err != nil {
			return decimal.NullDecimal{}, decimal.Zero, err
		}
		price = decimal.NewNullDecimal(p)
	}

	qty, err := s.validator.CheckQuantity(meta, o.Quantity)
	if err != nil {
		return decimal.NullDecimal{}, decimal.Zero, err
	}

	if price.Valid {
		if err := s.validator.CheckNotional(meta, price.Decimal, qty); err != nil {
			return decimal.NullDecimal{}, decimal.Zero, err
		}
	}
	return price, qty, nil
}
