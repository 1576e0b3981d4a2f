package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tathienbao/pair-trader/internal/venue"
	"golang.org/x/time/rate"
)

// Client implements venue.Venue for Binance spot.
type Client struct {
	cfg    Config
	logger *slog.Logger
	http   *http.Client
	now    func() time.Time

	// Rate limiting
	limiter *rate.Limiter

	// Symbol metadata from exchangeInfo
	symbolsMu sync.RWMutex
	symbols   map[string]*venue.SymbolMetadata
}

// NewClient creates a new Binance client. A nil httpClient gets one with the configured timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if cfg.MaxRequestsPerSecond <= 0 {
		cfg.MaxRequestsPerSecond = DefaultConfig().MaxRequestsPerSecond
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:     cfg,
		logger:  logger,
		http:    httpClient,
		now:     time.Now,
		limiter: rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSecond), cfg.MaxRequestsPerSecond),
		symbols: make(map[string]*venue.SymbolMetadata),
	}
}

// Name returns the venue name.
func (c *Client) Name() string {
	return "binance"
}

// apiError is the error body Binance returns with non-2xx responses.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func sign(secret, query string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// do sends a request and decodes the JSON response into out. Signed requests
// carry timestamp, recvWindow and signature in the query string.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &venue.Error{Kind: venue.KindNetwork, Message: "rate limiter", Err: err}
	}

	if params == nil {
		params = url.Values{}
	}
	query := params.Encode()
	if signed {
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		if c.cfg.RecvWindow > 0 {
			params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow.Milliseconds(), 10))
		}
		query = params.Encode()
		query += "&signature=" + sign(c.cfg.APISecret, query)
	}

	endpoint := c.cfg.BaseURL + path
	if query != "" {
		endpoint += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return &venue.Error{Kind: venue.KindAPI, Message: "build request", Err: err}
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &venue.Error{Kind: venue.KindNetwork, Message: fmt.Sprintf("%s %s", method, path), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &venue.Error{Kind: venue.KindNetwork, Message: "read response", Err: err}
	}

	if resp.StatusCode >= 300 {
		var ae apiError
		if jsonErr := json.Unmarshal(body, &ae); jsonErr != nil || ae.Code == 0 {
			ae = apiError{Msg: strings.TrimSpace(string(body))}
		}
		c.logger.Debug("binance request rejected",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"code", ae.Code,
			"msg", ae.Msg,
		)
		return translateError(resp.StatusCode, ae.Code, ae.Msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &venue.Error{Kind: venue.KindAPI, Message: fmt.Sprintf("decode %s response", path), Err: err}
	}
	return nil
}

// translateError maps a Binance error response to the venue taxonomy.
func translateError(status, code int, msg string) *venue.Error {
	e := &venue.Error{Kind: venue.KindAPI, Code: code, Message: msg}

	switch {
	case code == -2010 && strings.Contains(strings.ToLower(msg), "insufficient balance"):
		e.Kind = venue.KindInsufficientFunds
	case code == -2011 || code == -2013:
		e.Kind = venue.KindOrderNotFound
	case code == -1121:
		e.Kind = venue.KindUnknownSymbol
	case strings.Contains(msg, "NOTIONAL"):
		e.Kind = venue.KindOrderValueTooLow
	case strings.Contains(msg, "PRICE_FILTER"):
		e.Kind = venue.KindOrderPriceInvalid
	case strings.Contains(msg, "LOT_SIZE"):
		e.Kind = venue.KindLotSizeInvalid
	case status >= 500:
		// Execution status unknown.
		e.Kind = venue.KindNetwork
	}

	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
