// Package paper provides a simulated venue for paper trading.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/pair-trader/internal/types"
	"github.com/tathienbao/pair-trader/internal/venue"
)

// Symbol is a tradeable symbol on the paper venue.
type Symbol struct {
	Metadata  venue.SymbolMetadata
	LastPrice decimal.Decimal
}

// Config holds paper trading configuration.
type Config struct {
	Symbols  []Symbol
	Balances map[string]decimal.Decimal

	// FillDelay is the time between fill steps. Zero fills on the first status query.
	FillDelay time.Duration
	// FillFraction is the share of the order quantity filled per step, in (0, 1].
	FillFraction decimal.Decimal

	// Now is the clock used for fill progress. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns default paper trading config.
func DefaultConfig() Config {
	return Config{
		Balances:     make(map[string]decimal.Decimal),
		FillDelay:    50 * time.Millisecond,
		FillFraction: decimal.NewFromInt(1),
	}
}

type order struct {
	id        string
	symbol    string
	side      types.Side
	typ       types.OrderType
	price     decimal.Decimal
	quantity  decimal.Decimal
	filled    decimal.Decimal
	cancelled bool
	placedAt  time.Time
	// marketable is the time a limit order first crossed the last price.
	marketable time.Time
}

// Venue implements venue.Venue in memory.
type Venue struct {
	cfg    Config
	logger *slog.Logger

	// Market data
	mdMu    sync.RWMutex
	symbols map[string]*Symbol

	// Account and orders share a lock because fills move balances.
	mu          sync.Mutex
	balances    map[string]decimal.Decimal
	orders      map[string]*order
	nextOrderID atomic.Int64
}

// New creates a new paper venue.
func New(cfg Config, logger *slog.Logger) *Venue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if !cfg.FillFraction.IsPositive() || cfg.FillFraction.GreaterThan(decimal.NewFromInt(1)) {
		cfg.FillFraction = decimal.NewFromInt(1)
	}

	v := &Venue{
		cfg:      cfg,
		logger:   logger,
		symbols:  make(map[string]*Symbol),
		balances: make(map[string]decimal.Decimal),
		orders:   make(map[string]*order),
	}
	for i := range cfg.Symbols {
		s := cfg.Symbols[i]
		v.symbols[s.Metadata.Symbol] = &s
	}
	for asset, amount := range cfg.Balances {
		v.balances[asset] = amount
	}
	return v
}

// Name returns the venue name.
func (v *Venue) Name() string {
	return "paper"
}

// SetLastPrice simulates a trade print for symbol.
func (v *Venue) SetLastPrice(symbol string, price decimal.Decimal) {
	v.mdMu.Lock()
	defer v.mdMu.Unlock()

	if s, ok := v.symbols[symbol]; ok {
		s.LastPrice = price
	}
}

// SetBalance overwrites the free balance of asset.
func (v *Venue) SetBalance(asset string, amount decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[asset] = amount
}

func (v *Venue) symbol(name string) (Symbol, error) {
	v.mdMu.RLock()
	defer v.mdMu.RUnlock()

	s, ok := v.symbols[name]
	if !ok {
		return Symbol{}, &venue.Error{Kind: venue.KindUnknownSymbol, Code: -1121, Message: "Invalid symbol."}
	}
	return *s, nil
}

// GetLastPrice returns the last simulated price.
func (v *Venue) GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s, err := v.symbol(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return s.LastPrice, nil
}

// GetBidPrice returns one price step below the last price.
func (v *Venue) GetBidPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s, err := v.symbol(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return s.LastPrice.Sub(s.Metadata.PriceStep), nil
}

// GetAskPrice returns one price step above the last price.
func (v *Venue) GetAskPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s, err := v.symbol(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return s.LastPrice.Add(s.Metadata.PriceStep), nil
}

// GetSymbolMetadata returns the configured trading rules.
func (v *Venue) GetSymbolMetadata(ctx context.Context, symbol string) (*venue.SymbolMetadata, error) {
	s, err := v.symbol(symbol)
	if err != nil {
		return nil, err
	}
	meta := s.Metadata
	return &meta, nil
}

// GetBalance returns the free balance of asset. Funds locked in open orders are excluded.
func (v *Venue) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, o := range v.orders {
		v.advance(o)
	}
	return v.balances[asset], nil
}

// PlaceBuyLimitOrder places a simulated limit buy.
func (v *Venue) PlaceBuyLimitOrder(ctx context.Context, symbol string, qty, price decimal.Decimal, dryRun bool) (string, error) {
	return v.place(symbol, types.SideBuy, types.OrderTypeLimit, qty, price, dryRun)
}

// PlaceSellLimitOrder places a simulated limit sell.
func (v *Venue) PlaceSellLimitOrder(ctx context.Context, symbol string, qty, price decimal.Decimal, dryRun bool) (string, error) {
	return v.place(symbol, types.SideSell, types.OrderTypeLimit, qty, price, dryRun)
}

// PlaceBuyMarketOrder places a simulated market buy at the last price.
func (v *Venue) PlaceBuyMarketOrder(ctx context.Context, symbol string, qty decimal.Decimal, dryRun bool) (string, error) {
	return v.place(symbol, types.SideBuy, types.OrderTypeMarket, qty, decimal.Zero, dryRun)
}

// PlaceSellMarketOrder places a simulated market sell at the last price.
func (v *Venue) PlaceSellMarketOrder(ctx context.Context, symbol string, qty decimal.Decimal, dryRun bool) (string, error) {
	return v.place(symbol, types.SideSell, types.OrderTypeMarket, qty, decimal.Zero, dryRun)
}

func (v *Venue) place(symbol string, side types.Side, typ types.OrderType, qty, price decimal.Decimal, dryRun bool) (string, error) {
	s, err := v.symbol(symbol)
	if err != nil {
		return "", err
	}
	if !s.Metadata.Tradeable {
		return "", &venue.Error{Kind: venue.KindAPI, Code: -1013, Message: "Market is closed."}
	}
	if typ == types.OrderTypeMarket {
		price = s.LastPrice
	}
	if s.Metadata.MinNotional.IsPositive() && price.Mul(qty).LessThan(s.Metadata.MinNotional) {
		return "", &venue.Error{Kind: venue.KindOrderValueTooLow, Code: -1013, Message: "Filter failure: MIN_NOTIONAL"}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	asset, amount := s.Metadata.QuoteAsset, price.Mul(qty)
	if side == types.SideSell {
		asset, amount = s.Metadata.BaseAsset, qty
	}
	if v.balances[asset].LessThan(amount) {
		return "", &venue.Error{
			Kind:    venue.KindInsufficientFunds,
			Code:    -2010,
			Message: "Account has insufficient balance for requested action.",
		}
	}
	if dryRun {
		return "", nil
	}

	v.balances[asset] = v.balances[asset].Sub(amount)

	now := v.cfg.Now()
	o := &order{
		id:       fmt.Sprintf("PAPER-%d", v.nextOrderID.Add(1)),
		symbol:   symbol,
		side:     side,
		typ:      typ,
		price:    price,
		quantity: qty,
		filled:   decimal.Zero,
		placedAt: now,
	}
	if v.marketable(o, s.LastPrice) {
		o.marketable = now
	}
	v.orders[o.id] = o

	v.logger.Info("paper order placed",
		"order_id", o.id,
		"symbol", symbol,
		"side", side,
		"type", typ,
		"quantity", qty,
		"price", price,
	)
	return o.id, nil
}

func (v *Venue) marketable(o *order, last decimal.Decimal) bool {
	if o.typ == types.OrderTypeMarket {
		return true
	}
	if o.side == types.SideBuy {
		return o.price.GreaterThanOrEqual(last)
	}
	return o.price.LessThanOrEqual(last)
}

// advance applies the fills due by now. Callers hold v.mu.
func (v *Venue) advance(o *order) {
	if o.cancelled || o.filled.Equal(o.quantity) {
		return
	}

	now := v.cfg.Now()
	if o.marketable.IsZero() {
		s, err := v.symbol(o.symbol)
		if err != nil || !v.marketable(o, s.LastPrice) {
			return
		}
		o.marketable = now
	}

	steps := int64(1)
	if v.cfg.FillDelay > 0 {
		steps = int64(now.Sub(o.marketable) / v.cfg.FillDelay)
	}
	target := o.quantity.Mul(v.cfg.FillFraction).Mul(decimal.NewFromInt(steps))
	if target.GreaterThan(o.quantity) {
		target = o.quantity
	}
	delta := target.Sub(o.filled)
	if !delta.IsPositive() {
		return
	}
	o.filled = target
	v.settle(o, delta)

	v.logger.Debug("paper order filled",
		"order_id", o.id,
		"symbol", o.symbol,
		"filled", o.filled,
		"quantity", o.quantity,
	)
}

func (v *Venue) settle(o *order, delta decimal.Decimal) {
	s, err := v.symbol(o.symbol)
	if err != nil {
		return
	}
	base, quote := s.Metadata.BaseAsset, s.Metadata.QuoteAsset
	if o.side == types.SideBuy {
		v.balances[base] = v.balances[base].Add(delta)
	} else {
		v.balances[quote] = v.balances[quote].Add(delta.Mul(o.price))
	}
}

// release returns the locked funds of the unfilled remainder.
func (v *Venue) release(o *order) {
	s, err := v.symbol(o.symbol)
	if err != nil {
		return
	}
	remaining := o.quantity.Sub(o.filled)
	if o.side == types.SideBuy {
		quote := s.Metadata.QuoteAsset
		v.balances[quote] = v.balances[quote].Add(remaining.Mul(o.price))
	} else {
		base := s.Metadata.BaseAsset
		v.balances[base] = v.balances[base].Add(remaining)
	}
}

func (o *order) rawStatus() string {
	switch {
	case o.cancelled:
		return venue.StatusCanceled
	case o.filled.Equal(o.quantity):
		return venue.StatusFilled
	case o.filled.IsPositive():
		return venue.StatusPartiallyFilled
	default:
		return venue.StatusNew
	}
}

func orderNotFound() error {
	return &venue.Error{Kind: venue.KindOrderNotFound, Code: -2013, Message: "Order does not exist."}
}

// GetOrderStatus returns the simulated order state.
func (v *Venue) GetOrderStatus(ctx context.Context, symbol, orderID string, last types.OrderState) (*venue.OrderStatus, error) {
	if _, err := v.symbol(symbol); err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	o, ok := v.orders[orderID]
	if !ok || o.symbol != symbol {
		return nil, orderNotFound()
	}
	v.advance(o)

	raw := o.rawStatus()
	state, err := venue.MapStatus(raw, last)
	if err != nil {
		return nil, err
	}
	return &venue.OrderStatus{
		Price:          o.price,
		Quantity:       o.quantity,
		QuantityFilled: o.filled,
		Status:         state,
		Raw:            raw,
	}, nil
}

// CancelOrder cancels an open order. Closed orders are reported as unknown, like Binance does.
func (v *Venue) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if _, err := v.symbol(symbol); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	o, ok := v.orders[orderID]
	if !ok || o.symbol != symbol {
		return orderNotFound()
	}
	v.advance(o)
	if o.cancelled || o.filled.Equal(o.quantity) {
		return &venue.Error{Kind: venue.KindOrderNotFound, Code: -2011, Message: "Unknown order sent."}
	}

	o.cancelled = true
	v.release(o)

	v.logger.Info("paper order cancelled",
		"order_id", o.id,
		"symbol", symbol,
		"filled", o.filled,
	)
	return nil
}

// Ensure Venue implements venue.Venue
var _ venue.Venue = (*Venue)(nil)
