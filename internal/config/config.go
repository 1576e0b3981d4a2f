// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/pair-trader/internal/alerting"
	"github.com/tathienbao/pair-trader/internal/engine"
	"github.com/tathienbao/pair-trader/internal/metrics"
	"github.com/tathienbao/pair-trader/internal/trading"
	"github.com/tathienbao/pair-trader/internal/types"
	"github.com/tathienbao/pair-trader/internal/venue"
	"github.com/tathienbao/pair-trader/internal/venue/binance"
	"github.com/tathienbao/pair-trader/internal/venue/paper"
	"gopkg.in/yaml.v3"
)

// Venue types.
const (
	VenueBinance = "binance"
	VenuePaper   = "paper"
)

// Config represents the full application configuration.
type Config struct {
	Venue       VenueConfig       `yaml:"venue"`
	Paper       PaperConfig       `yaml:"paper"`
	Trading     TradingConfig     `yaml:"trading"`
	Plans       []PlanConfig      `yaml:"plans"`
	Health      HealthConfig      `yaml:"health"`
	Shutdown    ShutdownConfig    `yaml:"shutdown"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Alerting    AlertingConfig    `yaml:"alerting"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// VenueConfig selects and configures the venue.
type VenueConfig struct {
	Type               string `yaml:"type"` // binance | paper
	BaseURL            string `yaml:"base_url"`
	Testnet            bool   `yaml:"testnet"`
	APIKey             string `yaml:"api_key"`
	APISecret          string `yaml:"api_secret"`
	RecvWindowMs       int    `yaml:"recv_window_ms"`
	RateLimitPerSecond int    `yaml:"rate_limit_per_second"`
	RequestTimeoutSec  int    `yaml:"request_timeout_sec"`
}

// PaperConfig holds paper venue settings.
type PaperConfig struct {
	Symbols      []PaperSymbolConfig `yaml:"symbols"`
	Balances     map[string]float64  `yaml:"balances"`
	FillDelayMs  int                 `yaml:"fill_delay_ms"`
	FillFraction float64             `yaml:"fill_fraction"`
}

// PaperSymbolConfig holds the trading rules and starting price of a paper symbol.
type PaperSymbolConfig struct {
	Symbol      string  `yaml:"symbol"`
	BaseAsset   string  `yaml:"base_asset"`
	QuoteAsset  string  `yaml:"quote_asset"`
	MinPrice    float64 `yaml:"min_price"`
	MaxPrice    float64 `yaml:"max_price"`
	PriceStep   float64 `yaml:"price_step"`
	MinQty      float64 `yaml:"min_qty"`
	MaxQty      float64 `yaml:"max_qty"`
	QtyStep     float64 `yaml:"qty_step"`
	MinNotional float64 `yaml:"min_notional"`
	LastPrice   float64 `yaml:"last_price"`
	Halted      bool    `yaml:"halted"`
}

// TradingConfig holds order lifecycle settings.
type TradingConfig struct {
	// MaxRoundingError bounds the relative change when snapping price and quantity to step sizes.
	MaxRoundingError float64 `yaml:"max_rounding_error"`
	OrderTimeoutMs   int     `yaml:"order_timeout_ms"`
	PollIntervalMs   int     `yaml:"poll_interval_ms"`
	IdleIntervalMs   int     `yaml:"idle_interval_ms"`
	DryRun           bool    `yaml:"dry_run"`
}

// PlanConfig configures the fixed planner of one symbol.
type PlanConfig struct {
	Symbol     string  `yaml:"symbol"`
	Side       string  `yaml:"side"` // buy | sell
	Type       string  `yaml:"type"` // limit | market
	Quantity   float64 `yaml:"quantity"`
	OpenPrice  float64 `yaml:"open_price"`
	ClosePrice float64 `yaml:"close_price"`
	MaxPairs   int     `yaml:"max_pairs"`
}

// HealthConfig holds health check settings.
type HealthConfig struct {
	HeartbeatIntervalSec int `yaml:"heartbeat_interval_sec"`
}

// ShutdownConfig holds shutdown settings.
type ShutdownConfig struct {
	TimeoutSec int `yaml:"timeout_sec"`
}

// PersistenceConfig holds persistence settings.
type PersistenceConfig struct {
	Path string `yaml:"path"` // sqlite database file
}

// AlertingConfig holds alerting settings.
type AlertingConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig holds a single alert channel configuration.
type ChannelConfig struct {
	Type        string `yaml:"type"` // console | telegram
	MinSeverity string `yaml:"min_severity"`
	BotToken    string `yaml:"bot_token"`
	ChatID      string `yaml:"chat_id"`
	TimeoutSec  int    `yaml:"timeout_sec"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Venue.Type == "" {
		c.Venue.Type = VenuePaper
	}
	if c.Venue.RecvWindowMs <= 0 {
		c.Venue.RecvWindowMs = 5000
	}
	if c.Venue.RateLimitPerSecond <= 0 {
		c.Venue.RateLimitPerSecond = 10
	}
	if c.Venue.RequestTimeoutSec <= 0 {
		c.Venue.RequestTimeoutSec = 10
	}
	if c.Paper.FillFraction == 0 {
		c.Paper.FillFraction = 1
	}
	if c.Trading.MaxRoundingError == 0 {
		c.Trading.MaxRoundingError = 0.001
	}
	if c.Trading.OrderTimeoutMs <= 0 {
		c.Trading.OrderTimeoutMs = 5000
	}
	if c.Trading.PollIntervalMs <= 0 {
		c.Trading.PollIntervalMs = int(trading.DefaultPollInterval / time.Millisecond)
	}
	if c.Trading.IdleIntervalMs < 0 {
		c.Trading.IdleIntervalMs = 0
	}
	if c.Health.HeartbeatIntervalSec <= 0 {
		c.Health.HeartbeatIntervalSec = 15
	}
	if c.Shutdown.TimeoutSec <= 0 {
		c.Shutdown.TimeoutSec = 30
	}
	if c.Persistence.Path == "" {
		c.Persistence.Path = "pair-trader.db"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate fills defaults and validates the configuration.
func (c *Config) Validate() error {
	c.setDefaults()

	var errs []string

	// Venue validation
	switch c.Venue.Type {
	case VenueBinance:
		if c.Venue.APIKey == "" || c.Venue.APISecret == "" {
			errs = append(errs, "venue.api_key and venue.api_secret are required for binance")
		}
	case VenuePaper:
		errs = append(errs, c.validatePaper()...)
	default:
		errs = append(errs, fmt.Sprintf("venue.type must be '%s' or '%s'", VenueBinance, VenuePaper))
	}

	// Trading validation
	if c.Trading.MaxRoundingError <= 0 || c.Trading.MaxRoundingError >= 1 {
		errs = append(errs, "trading.max_rounding_error must be between 0 and 1")
	}

	// Plan validation
	if len(c.Plans) == 0 {
		errs = append(errs, "at least one plan is required")
	}
	seen := make(map[string]bool)
	for i, p := range c.Plans {
		prefix := fmt.Sprintf("plans[%d]", i)
		if p.Symbol == "" {
			errs = append(errs, prefix+".symbol is required")
		} else {
			if seen[p.Symbol] {
				errs = append(errs, fmt.Sprintf("%s: duplicate symbol '%s'", prefix, p.Symbol))
			}
			seen[p.Symbol] = true
			if c.Venue.Type == VenuePaper && !c.hasPaperSymbol(p.Symbol) {
				errs = append(errs, fmt.Sprintf("%s: symbol '%s' is not a paper symbol", prefix, p.Symbol))
			}
		}
		if p.MaxPairs < 0 {
			errs = append(errs, prefix+".max_pairs must not be negative")
		}
		if _, err := p.Planner(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", prefix, err))
		}
	}

	// Alerting validation
	if c.Alerting.Enabled {
		for i, ch := range c.Alerting.Channels {
			prefix := fmt.Sprintf("alerting.channels[%d]", i)
			switch ch.Type {
			case "console":
			case "telegram":
				if ch.BotToken == "" || ch.ChatID == "" {
					errs = append(errs, prefix+": telegram requires bot_token and chat_id")
				}
			default:
				errs = append(errs, fmt.Sprintf("%s.type '%s' is not supported", prefix, ch.Type))
			}
			if ch.MinSeverity != "" {
				if _, err := alerting.ParseSeverity(ch.MinSeverity); err != nil {
					errs = append(errs, fmt.Sprintf("%s: %v", prefix, err))
				}
			}
		}
	}

	// Metrics validation
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validatePaper() []string {
	var errs []string
	if len(c.Paper.Symbols) == 0 {
		errs = append(errs, "paper.symbols is required for the paper venue")
	}
	for i, s := range c.Paper.Symbols {
		prefix := fmt.Sprintf("paper.symbols[%d]", i)
		if s.Symbol == "" || s.BaseAsset == "" || s.QuoteAsset == "" {
			errs = append(errs, prefix+": symbol, base_asset and quote_asset are required")
		}
		if s.PriceStep <= 0 || s.QtyStep <= 0 {
			errs = append(errs, prefix+": price_step and qty_step must be positive")
		}
		if s.MaxPrice > 0 && s.MaxPrice < s.MinPrice {
			errs = append(errs, prefix+": max_price is below min_price")
		}
		if s.MaxQty > 0 && s.MaxQty < s.MinQty {
			errs = append(errs, prefix+": max_qty is below min_qty")
		}
		if s.LastPrice <= 0 {
			errs = append(errs, prefix+".last_price must be positive")
		}
	}
	for asset, amount := range c.Paper.Balances {
		if amount < 0 {
			errs = append(errs, fmt.Sprintf("paper.balances.%s must not be negative", asset))
		}
	}
	if c.Paper.FillFraction <= 0 || c.Paper.FillFraction > 1 {
		errs = append(errs, "paper.fill_fraction must be in (0, 1]")
	}
	if c.Paper.FillDelayMs < 0 {
		errs = append(errs, "paper.fill_delay_ms must not be negative")
	}
	return errs
}

func (c *Config) hasPaperSymbol(symbol string) bool {
	for _, s := range c.Paper.Symbols {
		if s.Symbol == symbol {
			return true
		}
	}
	return false
}

// Planner converts the plan to a validated FixedPlanner.
func (p PlanConfig) Planner() (*engine.FixedPlanner, error) {
	side, err := types.ParseSide(p.Side)
	if err != nil {
		return nil, err
	}
	typ, err := types.ParseOrderType(p.Type)
	if err != nil {
		return nil, err
	}

	planner := &engine.FixedPlanner{
		Side:       side,
		Type:       typ,
		Quantity:   decimal.NewFromFloat(p.Quantity),
		OpenPrice:  decimal.NewFromFloat(p.OpenPrice),
		ClosePrice: decimal.NewFromFloat(p.ClosePrice),
	}
	if err := planner.Validate(); err != nil {
		return nil, err
	}
	return planner, nil
}

// SymbolConfigs builds the engine's per-symbol configuration against v.
func (c *Config) SymbolConfigs(v venue.Venue) ([]engine.SymbolConfig, error) {
	symbols := make([]engine.SymbolConfig, 0, len(c.Plans))
	for _, p := range c.Plans {
		planner, err := p.Planner()
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", p.Symbol, err)
		}
		symbols = append(symbols, engine.SymbolConfig{
			Symbol:        p.Symbol,
			Venue:         v,
			Planner:       planner,
			OrderTimeout:  c.OrderTimeout(),
			CycleInterval: c.IdleInterval(),
			MaxPairs:      p.MaxPairs,
		})
	}
	return symbols, nil
}

// BinanceConfig converts to binance.Config.
func (c *Config) BinanceConfig() binance.Config {
	cfg := binance.DefaultConfig()
	if c.Venue.Testnet {
		cfg = binance.TestnetConfig()
	}
	if c.Venue.BaseURL != "" {
		cfg.BaseURL = c.Venue.BaseURL
	}
	cfg.APIKey = c.Venue.APIKey
	cfg.APISecret = c.Venue.APISecret
	cfg.RecvWindow = time.Duration(c.Venue.RecvWindowMs) * time.Millisecond
	cfg.RequestTimeout = time.Duration(c.Venue.RequestTimeoutSec) * time.Second
	cfg.MaxRequestsPerSecond = c.Venue.RateLimitPerSecond
	return cfg
}

// PaperVenueConfig converts to paper.Config.
func (c *Config) PaperVenueConfig() paper.Config {
	cfg := paper.DefaultConfig()
	cfg.FillDelay = time.Duration(c.Paper.FillDelayMs) * time.Millisecond
	cfg.FillFraction = decimal.NewFromFloat(c.Paper.FillFraction)

	for asset, amount := range c.Paper.Balances {
		cfg.Balances[asset] = decimal.NewFromFloat(amount)
	}
	for _, s := range c.Paper.Symbols {
		cfg.Symbols = append(cfg.Symbols, paper.Symbol{
			Metadata: venue.SymbolMetadata{
				Symbol:      s.Symbol,
				BaseAsset:   s.BaseAsset,
				QuoteAsset:  s.QuoteAsset,
				MinPrice:    decimal.NewFromFloat(s.MinPrice),
				MaxPrice:    decimal.NewFromFloat(s.MaxPrice),
				PriceStep:   decimal.NewFromFloat(s.PriceStep),
				MinQty:      decimal.NewFromFloat(s.MinQty),
				MaxQty:      decimal.NewFromFloat(s.MaxQty),
				QtyStep:     decimal.NewFromFloat(s.QtyStep),
				MinNotional: decimal.NewFromFloat(s.MinNotional),
				Tradeable:   !s.Halted,
			},
			LastPrice: decimal.NewFromFloat(s.LastPrice),
		})
	}
	return cfg
}

// ServiceOptions converts to trading.Options.
func (c *Config) ServiceOptions() trading.Options {
	return trading.Options{
		MaxRoundingError: decimal.NewFromFloat(c.Trading.MaxRoundingError),
		PollInterval:     time.Duration(c.Trading.PollIntervalMs) * time.Millisecond,
		DryRun:           c.Trading.DryRun,
	}
}

// EngineConfig converts to engine.Config.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		HeartbeatInterval: time.Duration(c.Health.HeartbeatIntervalSec) * time.Second,
	}
}

// MetricsServerConfig converts to metrics.ServerConfig.
func (c *Config) MetricsServerConfig() metrics.ServerConfig {
	cfg := metrics.DefaultServerConfig()
	cfg.Port = c.Metrics.Port
	cfg.MetricsPath = c.Metrics.Path
	return cfg
}

// Alerter builds the configured alert channels. With alerting disabled the
// returned alerter has no channels.
func (c *Config) Alerter(logger *slog.Logger) (*alerting.MultiAlerter, error) {
	multi := alerting.NewMultiAlerter(logger)
	if !c.Alerting.Enabled {
		return multi, nil
	}

	for _, ch := range c.Alerting.Channels {
		min := alerting.SeverityInfo
		if ch.MinSeverity != "" {
			sev, err := alerting.ParseSeverity(ch.MinSeverity)
			if err != nil {
				return nil, err
			}
			min = sev
		}

		switch ch.Type {
		case "console":
			multi.AddAlerter(alerting.NewConsoleAlerter(logger, min))
		case "telegram":
			multi.AddAlerter(alerting.NewTelegramAlerter(alerting.TelegramConfig{
				BotToken: ch.BotToken,
				ChatID:   ch.ChatID,
				Timeout:  time.Duration(ch.TimeoutSec) * time.Second,
			}))
		default:
			return nil, fmt.Errorf("%w: alert channel type '%s'", types.ErrInvalidConfig, ch.Type)
		}
	}
	return multi, nil
}

// OrderTimeout returns the order timeout duration.
func (c *Config) OrderTimeout() time.Duration {
	return time.Duration(c.Trading.OrderTimeoutMs) * time.Millisecond
}

// IdleInterval returns the pause between pair cycles.
func (c *Config) IdleInterval() time.Duration {
	return time.Duration(c.Trading.IdleIntervalMs) * time.Millisecond
}

// ShutdownTimeout returns the shutdown timeout duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Shutdown.TimeoutSec) * time.Second
}
