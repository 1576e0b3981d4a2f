// Package main is the entry point for the pair trader.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tathienbao/pair-trader/internal/alerting"
	"github.com/tathienbao/pair-trader/internal/config"
	"github.com/tathienbao/pair-trader/internal/engine"
	"github.com/tathienbao/pair-trader/internal/metrics"
	"github.com/tathienbao/pair-trader/internal/persistence"
	"github.com/tathienbao/pair-trader/internal/trading"
	"github.com/tathienbao/pair-trader/internal/ui"
	"github.com/tathienbao/pair-trader/internal/venue"
	"github.com/tathienbao/pair-trader/internal/venue/binance"
	"github.com/tathienbao/pair-trader/internal/venue/paper"
)

// Version information (set by build flags).
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Parse command
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Secrets referenced as ${VAR} in the config may live in .env.
	_ = godotenv.Load()

	var err error
	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "run":
		err = cmdRun(os.Args[2:])
	case "validate":
		err = cmdValidate(os.Args[2:])
	case "symbol":
		err = cmdSymbol(os.Args[2:])
	case "quote":
		err = cmdQuote(os.Args[2:])
	case "balance":
		err = cmdBalance(os.Args[2:])
	case "sessions":
		err = cmdSessions(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Pair Trader - Buy/Sell Pair Trading on Spot Venues

Usage:
  pair-trader <command> [options]

Commands:
  run        Start trading the configured plans
  validate   Validate configuration file
  symbol     Show the trading rules of a symbol
  quote      Show last, bid and ask prices of a symbol
  balance    Show the free balance of an asset
  sessions   List recorded trading sessions
  version    Show version information
  help       Show this help message

Examples:
  pair-trader run --config config.yaml
  pair-trader run --config config.yaml --paper --verbose
  pair-trader symbol --config config.yaml --symbol BNBBTC
  pair-trader sessions --config config.yaml --open

Use "pair-trader <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("pair-trader version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

// newLogger logs text to a terminal and JSON otherwise.
func newLogger(verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if ui.IsTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func loadConfig(path string, paperMode bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if paperMode && cfg.Venue.Type != config.VenuePaper {
		cfg.Venue.Type = config.VenuePaper
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validate config for paper mode: %w", err)
		}
	}
	return cfg, nil
}

func newVenue(cfg *config.Config, logger *slog.Logger) venue.Venue {
	if cfg.Venue.Type == config.VenueBinance {
		return binance.NewClient(cfg.BinanceConfig(), nil, logger)
	}
	return paper.New(cfg.PaperVenueConfig(), logger)
}

// commonFlags registers the flags shared by the one-shot venue commands.
func commonFlags(name string) (*flag.FlagSet, *string, *bool) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	paperMode := fs.Bool("paper", false, "Use the paper venue regardless of config")
	return fs, configPath, paperMode
}

func cmdValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Venue: %s\n", cfg.Venue.Type)
	fmt.Printf("  Max rounding error: %.4f%%\n", cfg.Trading.MaxRoundingError*100)
	fmt.Printf("  Order timeout: %v\n", cfg.OrderTimeout())
	fmt.Printf("  Dry run: %t\n", cfg.Trading.DryRun)
	for _, p := range cfg.Plans {
		fmt.Printf("  Plan %s: %s %s %g (open %g, close %g, max pairs %d)\n",
			p.Symbol, p.Side, p.Type, p.Quantity, p.OpenPrice, p.ClosePrice, p.MaxPairs)
	}
	return nil
}

func cmdSymbol(args []string) error {
	fs, configPath, paperMode := commonFlags("symbol")
	symbol := fs.String("symbol", "", "Symbol, e.g. BNBBTC (required)")
	fs.Parse(args)
	if *symbol == "" {
		fs.Usage()
		return errors.New("--symbol is required")
	}

	cfg, err := loadConfig(*configPath, *paperMode)
	if err != nil {
		return err
	}
	v := newVenue(cfg, newLogger(false))

	meta, err := v.GetSymbolMetadata(context.Background(), *symbol)
	if err != nil {
		return err
	}

	fmt.Printf("%s on %s\n", meta.Symbol, v.Name())
	fmt.Printf("  Assets:       %s / %s\n", meta.BaseAsset, meta.QuoteAsset)
	fmt.Printf("  Tradeable:    %t\n", meta.Tradeable)
	fmt.Printf("  Price:        %s - %s step %s\n", meta.MinPrice, meta.MaxPrice, meta.PriceStep)
	fmt.Printf("  Quantity:     %s - %s step %s\n", meta.MinQty, meta.MaxQty, meta.QtyStep)
	fmt.Printf("  Min notional: %s\n", meta.MinNotional)
	return nil
}

func cmdQuote(args []string) error {
	fs, configPath, paperMode := commonFlags("quote")
	symbol := fs.String("symbol", "", "Symbol, e.g. BNBBTC (required)")
	fs.Parse(args)
	if *symbol == "" {
		fs.Usage()
		return errors.New("--symbol is required")
	}

	cfg, err := loadConfig(*configPath, *paperMode)
	if err != nil {
		return err
	}
	v := newVenue(cfg, newLogger(false))
	ctx := context.Background()

	last, err := v.GetLastPrice(ctx, *symbol)
	if err != nil {
		return err
	}
	bid, err := v.GetBidPrice(ctx, *symbol)
	if err != nil {
		return err
	}
	ask, err := v.GetAskPrice(ctx, *symbol)
	if err != nil {
		return err
	}

	fmt.Printf("%s on %s: last %s  bid %s  ask %s\n", *symbol, v.Name(), last, bid, ask)
	return nil
}

func cmdBalance(args []string) error {
	fs, configPath, paperMode := commonFlags("balance")
	asset := fs.String("asset", "", "Asset, e.g. BTC (required)")
	fs.Parse(args)
	if *asset == "" {
		fs.Usage()
		return errors.New("--asset is required")
	}

	cfg, err := loadConfig(*configPath, *paperMode)
	if err != nil {
		return err
	}
	v := newVenue(cfg, newLogger(false))

	bal, err := v.GetBalance(context.Background(), *asset)
	if err != nil {
		return err
	}
	fmt.Printf("%s free balance on %s: %s\n", *asset, v.Name(), bal)
	return nil
}

func cmdSessions(args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	openOnly := fs.Bool("open", false, "Only list sessions that are still open")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	repo, err := persistence.NewSQLiteRepository(cfg.Persistence.Path)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := context.Background()
	sessions, err := repo.ListSessions(ctx, *openOnly)
	if err != nil {
		return err
	}

	rows := make([]ui.SessionRow, 0, len(sessions))
	for _, s := range sessions {
		stats, err := repo.GetSessionStats(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("session %s: %w", s.ID, err)
		}
		rows = append(rows, ui.SessionRow{
			ID:          s.ID,
			Symbol:      s.Symbol,
			Venue:       s.VenueName,
			Opened:      s.TimeOpened,
			Closed:      s.TimeClosed,
			Orders:      stats.Orders,
			Pairs:       stats.Pairs,
			ClosedPairs: stats.ClosedPairs,
			Wins:        stats.Wins,
			Losses:      stats.Losses,
		})
	}
	return ui.NewStdoutSessionTable().Write(rows)
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	paperMode := fs.Bool("paper", false, "Use the paper venue regardless of config")
	verbose := fs.Bool("verbose", false, "Debug logging")
	fs.Parse(args)

	logger := newLogger(*verbose)

	cfg, err := loadConfig(*configPath, *paperMode)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return err
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.SetBuildInfo(Version, GitCommit, BuildTime)

	slog.Info("pair-trader starting",
		"version", Version,
		"venue", cfg.Venue.Type,
		"plans", len(cfg.Plans),
		"dry_run", cfg.Trading.DryRun,
	)

	repo, err := persistence.NewSQLiteRepository(cfg.Persistence.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	v := newVenue(cfg, logger)
	if c, ok := v.(*binance.Client); ok {
		if err := c.RefreshSymbols(ctx); err != nil {
			return fmt.Errorf("load binance symbols: %w", err)
		}
	}

	alerter, err := cfg.Alerter(logger)
	if err != nil {
		return err
	}
	warnOpenOrders(ctx, repo, alerter, logger)

	symbols, err := cfg.SymbolConfigs(v)
	if err != nil {
		return err
	}

	svc := trading.NewService(repo, cfg.ServiceOptions(), logger)
	eng := engine.NewEngine(cfg.EngineConfig(), svc, symbols, alerter, logger)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.MetricsServerConfig(), logger)
		metricsServer.RegisterHealthCheck("persistence", func(ctx context.Context) metrics.Check {
			if err := repo.Ping(ctx); err != nil {
				return metrics.Check{Status: metrics.StatusUnhealthy, Message: err.Error()}
			}
			return metrics.Check{Status: metrics.StatusHealthy}
		})
		metricsServer.RegisterHealthCheck("engine", eng.HealthCheck)
		if err := metricsServer.Start(); err != nil {
			return err
		}
	}

	if err := eng.Start(ctx); err != nil {
		return err
	}

	// Returns on signal, or once every symbol loop has finished or halted.
	finished := make(chan struct{})
	go func() {
		waitLoops(ctx, eng)
		close(finished)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case <-finished:
		slog.Info("all symbol loops finished")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.ShutdownTimeout(),
	)
	defer cancel()

	var shutdownErr error
	if err := eng.Stop(shutdownCtx); err != nil {
		slog.Error("engine shutdown error", "err", err)
		shutdownErr = err
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown error", "err", err)
		}
	}

	halted := eng.Halted()
	for symbol, err := range halted {
		slog.Error("symbol halted", "symbol", symbol, "err", err)
	}

	slog.Info("pair-trader shutdown complete")

	if shutdownErr != nil {
		return shutdownErr
	}
	if len(halted) > 0 {
		return fmt.Errorf("%d symbol(s) halted", len(halted))
	}
	return nil
}

// waitLoops returns when no symbol loop is still trading.
func waitLoops(ctx context.Context, eng *engine.Engine) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if eng.Active() == 0 {
				return
			}
		}
	}
}

// warnOpenOrders reports orders a previous run left open. They are not resumed.
func warnOpenOrders(ctx context.Context, repo persistence.Repository, alerter alerting.Alerter, logger *slog.Logger) {
	open, err := repo.ListOpenOrders(ctx)
	if err != nil {
		logger.Warn("failed to list open orders", "err", err)
		return
	}
	for _, o := range open {
		logger.Warn("order left open by a previous run",
			"order_id", o.ID,
			"session_id", o.SessionID,
			"symbol", o.Symbol,
			"status", o.Status,
			"venue_order_id", o.VenueOrderID,
		)
	}
	if len(open) > 0 {
		if err := alerter.Alert(ctx, alerting.SeverityWarning, "Open orders from a previous run need manual review",
			"count", len(open),
		); err != nil {
			logger.Warn("failed to send open orders alert", "err", err)
		}
	}
}
