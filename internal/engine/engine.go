// Package engine runs one pair-trading loop per symbol.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tathienbao/pair-trader/internal/alerting"
	"github.com/tathienbao/pair-trader/internal/metrics"
	"github.com/tathienbao/pair-trader/internal/trading"
)

// Config holds engine configuration.
type Config struct {
	HeartbeatInterval time.Duration
}

// DefaultConfig returns default engine config.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 15 * time.Second,
	}
}

// Engine runs a SymbolLoop per configured symbol.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	alerter  alerting.Alerter
	recorder *metrics.Recorder
	loops    []*SymbolLoop
	started  time.Time

	mu      sync.RWMutex
	running bool
	active  atomic.Int32

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEngine creates an engine with one loop per symbol config.
func NewEngine(cfg Config, svc *trading.Service, symbols []SymbolConfig, alerter alerting.Alerter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultConfig().HeartbeatInterval
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		alerter:  alerter,
		recorder: metrics.NewRecorder(),
		done:     make(chan struct{}),
	}
	for _, sc := range symbols {
		e.loops = append(e.loops, NewSymbolLoop(sc, svc, alerter, e.done, logger))
	}
	return e
}

// Start launches the symbol loops.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.started = time.Now()
	e.mu.Unlock()

	symbols := e.Symbols()
	e.logger.Info("starting trading engine", "symbols", symbols)

	for _, l := range e.loops {
		e.recorder.RecordHalted(l.Symbol(), false)
		e.wg.Add(1)
		e.active.Add(1)
		go func(l *SymbolLoop) {
			defer e.wg.Done()
			defer e.active.Add(-1)
			if err := l.Run(ctx); err != nil {
				e.recorder.RecordError("loop_exit")
			}
		}(l)
	}

	e.wg.Add(1)
	go e.heartbeatLoop(ctx)

	if e.alerter != nil {
		if err := alerting.Send(ctx, e.alerter, alerting.EventEngineStarted, "Trading engine started",
			"symbols", strings.Join(symbols, ","),
		); err != nil {
			e.logger.Warn("failed to send start alert", "err", err)
		}
	}
	return nil
}

// heartbeatLoop records liveness until the engine stops.
func (e *Engine) heartbeatLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.HeartbeatInterval)
	defer ticker.Stop()

	e.recorder.RecordHeartbeat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-ticker.C:
			e.recorder.RecordHeartbeat()
			e.recorder.RecordUptime(time.Since(e.started))
		}
	}
}

// Stop asks every loop to exit at its next cycle boundary and waits for them.
// It returns ctx.Err() if ctx ends before the loops have finished their in-flight orders.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	e.logger.Info("stopping trading engine")
	e.stopOnce.Do(func() { close(e.done) })

	finished := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		e.logger.Error("engine stop timed out, orders may still be in flight", "err", ctx.Err())
		return ctx.Err()
	}

	if e.alerter != nil {
		if err := alerting.Send(ctx, e.alerter, alerting.EventEngineStopped, "Trading engine stopped"); err != nil {
			e.logger.Warn("failed to send stop alert", "err", err)
		}
	}

	e.logger.Info("trading engine stopped")
	return nil
}

// Wait blocks until every loop and the heartbeat have exited.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// IsRunning returns true if engine is running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Active returns the number of symbol loops still trading.
func (e *Engine) Active() int {
	return int(e.active.Load())
}

// Symbols returns the configured symbols.
func (e *Engine) Symbols() []string {
	symbols := make([]string, 0, len(e.loops))
	for _, l := range e.loops {
		symbols = append(symbols, l.Symbol())
	}
	return symbols
}

// Halted returns the halted symbols and the error that halted each.
func (e *Engine) Halted() map[string]error {
	halted := make(map[string]error)
	for _, l := range e.loops {
		if err := l.Halted(); err != nil {
			halted[l.Symbol()] = err
		}
	}
	return halted
}

// HealthCheck reports unhealthy while any symbol is halted.
func (e *Engine) HealthCheck(ctx context.Context) metrics.Check {
	halted := e.Halted()
	if len(halted) == 0 {
		return metrics.Check{Status: metrics.StatusHealthy, Message: fmt.Sprintf("%d symbols trading", len(e.loops))}
	}

	symbols := make([]string, 0, len(halted))
	for s := range halted {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return metrics.Check{Status: metrics.StatusUnhealthy, Message: "halted: " + strings.Join(symbols, ",")}
}
