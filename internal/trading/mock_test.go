package trading

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/pair-trader/internal/types"
	"github.com/tathienbao/pair-trader/internal/venue"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(s))
}

func testMetadata() *venue.SymbolMetadata {
	return &venue.SymbolMetadata{
		Symbol:      "BNBBTC",
		BaseAsset:   "BNB",
		QuoteAsset:  "BTC",
		MinPrice:    d("0.0001"),
		MaxPrice:    d("1000"),
		PriceStep:   d("0.0001"),
		MinQty:      d("1"),
		MaxQty:      d("1000000"),
		QtyStep:     d("1"),
		MinNotional: d("0.0001"),
		Tradeable:   true,
	}
}

type placeCall struct {
	side   types.Side
	typ    types.OrderType
	qty    decimal.Decimal
	price  decimal.Decimal
	dryRun bool
}

// mockVenue is a scriptable venue.Venue.
type mockVenue struct {
	mu sync.Mutex

	meta *venue.SymbolMetadata

	// status answers GetOrderStatus; call counts from 1.
	status func(call int, last types.OrderState) (*venue.OrderStatus, error)

	placeErr  error
	cancelErr error

	placed      []placeCall
	cancels     []time.Time
	statusCalls int
	nextID      int
}

func newMockVenue() *mockVenue {
	return &mockVenue{meta: testMetadata()}
}

func (m *mockVenue) Name() string { return "mock" }

func (m *mockVenue) GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return d("0.01"), nil
}

func (m *mockVenue) GetBidPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return d("0.0099"), nil
}

func (m *mockVenue) GetAskPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return d("0.0101"), nil
}

func (m *mockVenue) GetOrderStatus(ctx context.Context, symbol, orderID string, last types.OrderState) (*venue.OrderStatus, error) {
	m.mu.Lock()
	m.statusCalls++
	call := m.statusCalls
	fn := m.status
	m.mu.Unlock()

	if fn == nil {
		return &venue.OrderStatus{Status: last, QuantityFilled: decimal.Zero}, nil
	}
	return fn(call, last)
}

func (m *mockVenue) place(side types.Side, typ types.OrderType, qty, price decimal.Decimal, dryRun bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.placeErr != nil {
		return "", m.placeErr
	}
	m.placed = append(m.placed, placeCall{side: side, typ: typ, qty: qty, price: price, dryRun: dryRun})
	if dryRun {
		return "", nil
	}
	m.nextID++
	return strconv.Itoa(m.nextID), nil
}

func (m *mockVenue) PlaceBuyLimitOrder(ctx context.Context, symbol string, qty, price decimal.Decimal, dryRun bool) (string, error) {
	return m.place(types.SideBuy, types.OrderTypeLimit, qty, price, dryRun)
}

func (m *mockVenue) PlaceSellLimitOrder(ctx context.Context, symbol string, qty, price decimal.Decimal, dryRun bool) (string, error) {
	return m.place(types.SideSell, types.OrderTypeLimit, qty, price, dryRun)
}

func (m *mockVenue) PlaceBuyMarketOrder(ctx context.Context, symbol string, qty decimal.Decimal, dryRun bool) (string, error) {
	return m.place(types.SideBuy, types.OrderTypeMarket, qty, decimal.Zero, dryRun)
}

func (m *mockVenue) PlaceSellMarketOrder(ctx context.Context, symbol string, qty decimal.Decimal, dryRun bool) (string, error) {
	return m.place(types.SideSell, types.OrderTypeMarket, qty, decimal.Zero, dryRun)
}

func (m *mockVenue) CancelOrder(ctx context.Context, symbol, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels = append(m.cancels, time.Now())
	return m.cancelErr
}

func (m *mockVenue) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (m *mockVenue) GetSymbolMetadata(ctx context.Context, symbol string) (*venue.SymbolMetadata, error) {
	if m.meta == nil || m.meta.Symbol != symbol {
		return nil, venue.NewError(venue.KindUnknownSymbol, "unknown symbol %q", symbol)
	}
	meta := *m.meta
	return &meta, nil
}

func (m *mockVenue) cancelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cancels)
}

// memStore is an in-memory Store with the same closed-record guards as SQLite.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	orders   map[string]Order
	pairs    map[string]Pair

	updateErr error
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]Session),
		orders:   make(map[string]Order),
		pairs:    make(map[string]Pair),
	}
}

func (s *memStore) CreateSession(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *memStore) UpdateSession(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	stored, ok := s.sessions[sess.ID]
	if !ok {
		return types.ErrNotFound
	}
	if !stored.IsOpen() {
		return types.ErrSessionClosed
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *memStore) CreateOrder(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = *o
	return nil
}

func (s *memStore) UpdateOrder(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	stored, ok := s.orders[o.ID]
	if !ok {
		return types.ErrNotFound
	}
	if stored.IsClosed() {
		return types.ErrOrderClosed
	}
	s.orders[o.ID] = *o
	return nil
}

func (s *memStore) CreatePair(ctx context.Context, p *Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs[p.ID] = *p
	return nil
}

func (s *memStore) UpdatePair(ctx context.Context, p *Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.pairs[p.ID]; !ok {
		return types.ErrNotFound
	}
	s.pairs[p.ID] = *p
	return nil
}

func (s *memStore) order(id string) Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memStore) session(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// statusSeq answers with the given raw statuses in order, repeating the last one.
func statusSeq(filled string, raws ...string) func(int, types.OrderState) (*venue.OrderStatus, error) {
	return func(call int, last types.OrderState) (*venue.OrderStatus, error) {
		raw := raws[len(raws)-1]
		if call <= len(raws) {
			raw = raws[call-1]
		}
		state, err := venue.MapStatus(raw, last)
		if err != nil {
			return nil, err
		}
		return &venue.OrderStatus{
			Price:          d("0.01"),
			Quantity:       d("10"),
			QuantityFilled: d(filled),
			Status:         state,
			Raw:            raw,
		}, nil
	}
}
