package binance

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tathienbao/pair-trader/internal/types"
	"github.com/tathienbao/pair-trader/internal/venue"
)

type exchangeInfo struct {
	Symbols []symbolInfo `json:"symbols"`
}

type symbolInfo struct {
	Symbol     string         `json:"symbol"`
	Status     string         `json:"status"`
	BaseAsset  string         `json:"baseAsset"`
	QuoteAsset string         `json:"quoteAsset"`
	Filters    []symbolFilter `json:"filters"`
}

type symbolFilter struct {
	FilterType  string          `json:"filterType"`
	MinPrice    decimal.Decimal `json:"minPrice"`
	MaxPrice    decimal.Decimal `json:"maxPrice"`
	TickSize    decimal.Decimal `json:"tickSize"`
	MinQty      decimal.Decimal `json:"minQty"`
	MaxQty      decimal.Decimal `json:"maxQty"`
	StepSize    decimal.Decimal `json:"stepSize"`
	MinNotional decimal.Decimal `json:"minNotional"`
}

func (s symbolInfo) metadata() *venue.SymbolMetadata {
	meta := &venue.SymbolMetadata{
		Symbol:     s.Symbol,
		BaseAsset:  s.BaseAsset,
		QuoteAsset: s.QuoteAsset,
		Tradeable:  s.Status == "TRADING",
	}
	for _, f := range s.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			meta.MinPrice = f.MinPrice
			meta.MaxPrice = f.MaxPrice
			meta.PriceStep = f.TickSize
		case "LOT_SIZE":
			meta.MinQty = f.MinQty
			meta.MaxQty = f.MaxQty
			meta.QtyStep = f.StepSize
		case "MIN_NOTIONAL", "NOTIONAL":
			meta.MinNotional = f.MinNotional
		}
	}
	return meta
}

// RefreshSymbols reloads the symbol metadata cache from exchangeInfo.
func (c *Client) RefreshSymbols(ctx context.Context) error {
	var info exchangeInfo
	if err := c.do(ctx, http.MethodGet, "/api/v3/exchangeInfo", nil, false, &info); err != nil {
		return err
	}

	symbols := make(map[string]*venue.SymbolMetadata, len(info.Symbols))
	for _, s := range info.Symbols {
		symbols[s.Symbol] = s.metadata()
	}

	c.symbolsMu.Lock()
	c.symbols = symbols
	c.symbolsMu.Unlock()

	c.logger.Info("binance symbols loaded", "count", len(symbols))
	return nil
}

// GetSymbolMetadata returns cached trading rules, loading exchangeInfo on first use.
func (c *Client) GetSymbolMetadata(ctx context.Context, symbol string) (*venue.SymbolMetadata, error) {
	c.symbolsMu.RLock()
	empty := len(c.symbols) == 0
	c.symbolsMu.RUnlock()

	if empty {
		if err := c.RefreshSymbols(ctx); err != nil {
			return nil, err
		}
	}

	c.symbolsMu.RLock()
	defer c.symbolsMu.RUnlock()

	meta, ok := c.symbols[symbol]
	if !ok {
		return nil, venue.NewError(venue.KindUnknownSymbol, "unknown symbol %q", symbol)
	}
	cp := *meta
	return &cp, nil
}

type ticker struct {
	LastPrice decimal.Decimal `json:"lastPrice"`
	BidPrice  decimal.Decimal `json:"bidPrice"`
	AskPrice  decimal.Decimal `json:"askPrice"`
}

func (c *Client) ticker(ctx context.Context, symbol string) (*ticker, error) {
	var t ticker
	params := url.Values{"symbol": {symbol}}
	if err := c.do(ctx, http.MethodGet, "/api/v3/ticker/24hr", params, false, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetLastPrice returns the last traded price.
func (c *Client) GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	t, err := c.ticker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return t.LastPrice, nil
}

// GetBidPrice returns the best bid.
func (c *Client) GetBidPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	t, err := c.ticker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return t.BidPrice, nil
}

// GetAskPrice returns the best ask.
func (c *Client) GetAskPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	t, err := c.ticker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return t.AskPrice, nil
}

type orderResponse struct {
	OrderID             int64           `json:"orderId"`
	Type                string          `json:"type"`
	Price               decimal.Decimal `json:"price"`
	OrigQty             decimal.Decimal `json:"origQty"`
	ExecutedQty         decimal.Decimal `json:"executedQty"`
	CummulativeQuoteQty decimal.Decimal `json:"cummulativeQuoteQty"`
	Status              string          `json:"status"`
}

// GetOrderStatus queries an order and maps its status using the last known state.
func (c *Client) GetOrderStatus(ctx context.Context, symbol, orderID string, last types.OrderState) (*venue.OrderStatus, error) {
	var resp orderResponse
	params := url.Values{"symbol": {symbol}, "orderId": {orderID}}
	if err := c.do(ctx, http.MethodGet, "/api/v3/order", params, true, &resp); err != nil {
		return nil, err
	}

	state, err := venue.MapStatus(resp.Status, last)
	if err != nil {
		return nil, err
	}

	price := resp.Price
	if resp.Type == "MARKET" && resp.ExecutedQty.IsPositive() {
		price = resp.CummulativeQuoteQty.Div(resp.ExecutedQty)
	}

	return &venue.OrderStatus{
		Price:          price,
		Quantity:       resp.OrigQty,
		QuantityFilled: resp.ExecutedQty,
		Status:         state,
		Raw:            resp.Status,
	}, nil
}

// PlaceBuyLimitOrder places a GTC limit buy.
func (c *Client) PlaceBuyLimitOrder(ctx context.Context, symbol string, qty, price decimal.Decimal, dryRun bool) (string, error) {
	return c.placeOrder(ctx, symbol, types.SideBuy, types.OrderTypeLimit, qty, price, dryRun)
}

// PlaceSellLimitOrder places a GTC limit sell.
func (c *Client) PlaceSellLimitOrder(ctx context.Context, symbol string, qty, price decimal.Decimal, dryRun bool) (string, error) {
	return c.placeOrder(ctx, symbol, types.SideSell, types.OrderTypeLimit, qty, price, dryRun)
}

// PlaceBuyMarketOrder places a market buy.
func (c *Client) PlaceBuyMarketOrder(ctx context.Context, symbol string, qty decimal.Decimal, dryRun bool) (string, error) {
	return c.placeOrder(ctx, symbol, types.SideBuy, types.OrderTypeMarket, qty, decimal.Zero, dryRun)
}

// PlaceSellMarketOrder places a market sell.
func (c *Client) PlaceSellMarketOrder(ctx context.Context, symbol string, qty decimal.Decimal, dryRun bool) (string, error) {
	return c.placeOrder(ctx, symbol, types.SideSell, types.OrderTypeMarket, qty, decimal.Zero, dryRun)
}

func (c *Client) placeOrder(ctx context.Context, symbol string, side types.Side, typ types.OrderType,
	qty, price decimal.Decimal, dryRun bool) (string, error) {
	params := url.Values{
		"symbol":           {symbol},
		"side":             {side.String()},
		"type":             {typ.String()},
		"quantity":         {qty.String()},
		"newClientOrderId": {uuid.NewString()},
	}
	if typ == types.OrderTypeLimit {
		params.Set("timeInForce", "GTC")
		params.Set("price", price.String())
	}

	path := "/api/v3/order"
	if dryRun {
		path = "/api/v3/order/test"
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, path, params, true, &resp); err != nil {
		return "", err
	}
	if dryRun {
		return "", nil
	}

	id := strconv.FormatInt(resp.OrderID, 10)
	c.logger.Info("binance order placed",
		"order_id", id,
		"client_order_id", params.Get("newClientOrderId"),
		"symbol", symbol,
		"side", side,
		"type", typ,
		"quantity", qty,
		"price", price,
	)
	return id, nil
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{"symbol": {symbol}, "orderId": {orderID}}
	if err := c.do(ctx, http.MethodDelete, "/api/v3/order", params, true, nil); err != nil {
		return err
	}
	c.logger.Info("binance order cancelled", "order_id", orderID, "symbol", symbol)
	return nil
}

type accountResponse struct {
	Balances []struct {
		Asset  string          `json:"asset"`
		Free   decimal.Decimal `json:"free"`
		Locked decimal.Decimal `json:"locked"`
	} `json:"balances"`
}

// GetBalance returns the free balance of asset. Unlisted assets have zero balance.
func (c *Client) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	var resp accountResponse
	if err := c.do(ctx, http.MethodGet, "/api/v3/account", nil, true, &resp); err != nil {
		return decimal.Zero, err
	}
	for _, b := range resp.Balances {
		if b.Asset == asset {
			return b.Free, nil
		}
	}
	return decimal.Zero, nil
}

// Ensure Client implements venue.Venue
var _ venue.Venue = (*Client)(nil)
