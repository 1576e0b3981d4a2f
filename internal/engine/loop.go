package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/pair-trader/internal/alerting"
	"github.com/tathienbao/pair-trader/internal/metrics"
	"github.com/tathienbao/pair-trader/internal/trading"
	"github.com/tathienbao/pair-trader/internal/types"
	"github.com/tathienbao/pair-trader/internal/venue"
)

var (
	// ErrOrderStillOpen is returned when an order is neither filled nor closed after its timeout cancel.
	ErrOrderStillOpen = errors.New("order still open after timeout cancel")
	// ErrUnwindIncomplete is returned when a closing order did not fully fill.
	ErrUnwindIncomplete = errors.New("closing order did not fully fill")
	// ErrCancelledWithFill is returned when a cancelled opening order reports a fill
	// that no closing order covers.
	ErrCancelledWithFill = errors.New("cancelled opening order has a fill")
	// ErrPlacementUnknown is returned when the venue may have acted on an order the
	// loop could not confirm. The order is left PENDING for reconciliation.
	ErrPlacementUnknown = errors.New("order placement outcome unknown")
)

// SymbolConfig configures the loop for one symbol.
type SymbolConfig struct {
	Symbol  string
	Venue   venue.Venue
	Planner Planner

	// OrderTimeout bounds each poll; the order is cancelled when it elapses.
	OrderTimeout time.Duration
	// CycleInterval is the pause between pair cycles.
	CycleInterval time.Duration
	// MaxPairs stops the loop after this many pairs. Zero means no limit.
	MaxPairs int
}

// SymbolLoop drives pair cycles for one symbol in its own session. It is the
// only writer of that session's records.
type SymbolLoop struct {
	cfg      SymbolConfig
	svc      *trading.Service
	alerter  alerting.Alerter
	recorder *metrics.Recorder
	logger   *slog.Logger
	stop     <-chan struct{}

	mu      sync.RWMutex
	haltErr error
	// session is a snapshot; the loop works on its own copy.
	session *trading.Session

	orders      int
	pairs       int
	closedPairs int
	profits     []decimal.Decimal
}

// NewSymbolLoop creates a loop. Closing stop makes the loop exit at the next cycle boundary.
func NewSymbolLoop(cfg SymbolConfig, svc *trading.Service, alerter alerting.Alerter, stop <-chan struct{}, logger *slog.Logger) *SymbolLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &SymbolLoop{
		cfg:      cfg,
		svc:      svc,
		alerter:  alerter,
		recorder: metrics.NewRecorder(),
		logger:   logger.With("symbol", cfg.Symbol),
		stop:     stop,
	}
}

// Symbol returns the loop's symbol.
func (l *SymbolLoop) Symbol() string {
	return l.cfg.Symbol
}

// Halted returns the error that halted the loop, or nil.
func (l *SymbolLoop) Halted() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.haltErr
}

// Session returns a copy of the loop's session once opened.
func (l *SymbolLoop) Session() *trading.Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.session == nil {
		return nil
	}
	s := *l.session
	return &s
}

func (l *SymbolLoop) publish(sess *trading.Session) {
	snap := *sess
	l.mu.Lock()
	l.session = &snap
	l.mu.Unlock()
}

// Run opens a session and runs pair cycles until ctx is cancelled, stop is
// closed, MaxPairs is reached, or an error halts the symbol. Cancellation is
// only observed between cycles: venue work inside a cycle runs to completion.
func (l *SymbolLoop) Run(ctx context.Context) error {
	if l.aborted(ctx) {
		return nil
	}

	sess, err := l.svc.OpenSession(ctx, l.cfg.Venue, l.cfg.Symbol)
	if err != nil {
		err = fmt.Errorf("open session: %w", err)
		l.halt(ctx, err)
		return err
	}
	l.publish(sess)
	l.notify(ctx, alerting.EventSessionOpened, "Trading session opened",
		"session_id", sess.ID,
		"venue", sess.VenueName,
	)
	defer l.closeSession(context.WithoutCancel(ctx), sess)

	for cycle := 1; ; cycle++ {
		if l.aborted(ctx) {
			l.logger.Info("symbol loop stopped", "cycles", cycle-1)
			return nil
		}
		if l.cfg.MaxPairs > 0 && l.pairs >= l.cfg.MaxPairs {
			l.logger.Info("symbol loop finished", "pairs", l.pairs)
			return nil
		}

		// The abort signal must not interrupt an order mid-flight.
		traded, err := l.cycle(context.WithoutCancel(ctx), sess)
		if err != nil {
			l.halt(ctx, err)
			return err
		}
		if pause := l.pause(traded); pause > 0 {
			if !l.sleep(ctx, pause) {
				return nil
			}
		}
	}
}

func (l *SymbolLoop) aborted(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-l.stop:
		return true
	default:
		return false
	}
}

// pause returns the wait before the next cycle. Dry run cycles never leave an
// order on the venue, so they wait at least a poll interval.
func (l *SymbolLoop) pause(traded bool) time.Duration {
	d := l.cfg.CycleInterval
	if l.svc.DryRun() && d < l.svc.PollInterval() {
		d = l.svc.PollInterval()
	}
	if !traded && d <= 0 {
		d = time.Millisecond
	}
	return d
}

// sleep waits d and reports false when aborted first.
func (l *SymbolLoop) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-l.stop:
		return false
	case <-t.C:
		return true
	}
}

// cycle runs one pair: open, fill, close. It reports whether an opener was created.
func (l *SymbolLoop) cycle(ctx context.Context, sess *trading.Session) (bool, error) {
	v := l.cfg.Venue

	req, err := l.cfg.Planner.Opening(ctx, v, l.cfg.Symbol)
	if err != nil {
		return false, fmt.Errorf("plan opening order: %w", err)
	}
	if req == nil {
		return false, nil
	}

	opener, err := l.svc.CreateOrder(ctx, sess, *req)
	if err != nil {
		return false, fmt.Errorf("create opening order: %w", err)
	}
	l.orders++

	p, err := l.svc.OpenPair(ctx, sess, opener)
	if err != nil {
		return true, fmt.Errorf("open pair: %w", err)
	}
	l.pairs++

	if err := l.execute(ctx, opener, "opening"); err != nil {
		return true, err
	}
	if opener.Status == types.OrderStateCancelled && opener.Filled().IsPositive() {
		return true, fmt.Errorf("pair %s opener %s cancelled with %s of %s filled: %w",
			p.ID, opener.ID, opener.Filled(), opener.Quantity, ErrCancelledWithFill)
	}
	if opener.Status == types.OrderStateCancelled {
		l.recorder.RecordPairAbandoned(l.cfg.Symbol)
		l.closedPairs++
		l.logger.Info("opening order cancelled without fill", "pair_id", p.ID, "order_id", opener.ID)
		return true, nil
	}

	closeReq, err := l.cfg.Planner.Closing(ctx, v, opener)
	if err != nil {
		return true, fmt.Errorf("plan closing order: %w", err)
	}
	closer, err := l.svc.CreateOrder(ctx, sess, *closeReq)
	if err != nil {
		return true, fmt.Errorf("create closing order: %w", err)
	}
	l.orders++

	if err := l.svc.ClosePair(ctx, p, closer); err != nil {
		return true, fmt.Errorf("close pair: %w", err)
	}
	if err := l.execute(ctx, closer, "closing"); err != nil {
		return true, err
	}
	if closer.Status != types.OrderStateCompleted {
		return true, fmt.Errorf("pair %s closer %s %s with %s of %s: %w",
			p.ID, closer.ID, closer.Status, closer.Filled(), closer.Quantity, ErrUnwindIncomplete)
	}

	l.closedPairs++
	profit, err := p.Profit()
	if err != nil {
		l.logger.Warn("pair closed without profit", "pair_id", p.ID, "err", err)
		return true, nil
	}
	l.profits = append(l.profits, profit)
	l.recorder.RecordPairClosed(l.cfg.Symbol, profit)
	l.logger.Info("pair closed",
		"pair_id", p.ID,
		"opening", opener,
		"closing", closer,
		"profit", profit,
	)
	l.notify(ctx, alerting.EventPairClosed, "Pair closed",
		"symbol", l.cfg.Symbol,
		"pair_id", p.ID,
		"profit", profit.Mul(decimal.NewFromInt(100)).StringFixed(3)+"%",
	)
	return true, nil
}

// execute places o and polls it until it closes or times out. In dry run mode
// the order is only validated and then cancelled locally.
func (l *SymbolLoop) execute(ctx context.Context, o *trading.Order, role string) error {
	v := l.cfg.Venue

	if err := l.svc.Place(ctx, o, v); err != nil {
		if !placementRejected(err) {
			l.logger.Error("order placement outcome unknown",
				"order_id", o.ID,
				"role", role,
				"status", o.Status,
				"err", err,
			)
			return fmt.Errorf("place %s order %s left %s: %w: %w", role, o.ID, o.Status, ErrPlacementUnknown, err)
		}
		l.notify(ctx, alerting.EventOrderRejected, "Order rejected",
			"symbol", o.Symbol,
			"role", role,
			"side", o.Side.String(),
			"err", err.Error(),
		)
		l.abandon(ctx, o)
		return fmt.Errorf("place %s order: %w", role, err)
	}

	if l.svc.DryRun() {
		if err := l.svc.Cancel(ctx, o, v); err != nil {
			return fmt.Errorf("cancel dry run %s order: %w", role, err)
		}
		return nil
	}

	if err := l.svc.BlockUntilCompleteOrTimeout(ctx, o, v, l.cfg.OrderTimeout); err != nil {
		return fmt.Errorf("poll %s order: %w", role, err)
	}
	if !o.IsClosed() {
		return fmt.Errorf("%s order %s is %s: %w", role, o.ID, o.Status, ErrOrderStillOpen)
	}
	if o.Status != types.OrderStateCompleted && o.TimePlaced != nil &&
		o.TimeClosed != nil && o.TimeClosed.Sub(*o.TimePlaced) >= l.cfg.OrderTimeout {
		l.notify(ctx, alerting.EventOrderTimedOut, "Order timed out",
			"symbol", o.Symbol,
			"role", role,
			"status", o.Status.String(),
			"filled", o.Filled().String(),
		)
	}
	return nil
}

// placementRejected reports whether err proves the venue took no action: a
// local validation failure or an explicit venue rejection. Transport failures
// and orders the venue accepted but that were not recorded are ambiguous.
func placementRejected(err error) bool {
	if errors.Is(err, trading.ErrPlacementUnrecorded) {
		return false
	}
	return errors.Is(err, types.ErrValidation) ||
		errors.Is(err, venue.ErrAPI) ||
		errors.Is(err, venue.ErrInsufficientFunds) ||
		errors.Is(err, venue.ErrExcessiveRounding)
}

// abandon closes a never-placed order so the session holds no open records.
func (l *SymbolLoop) abandon(ctx context.Context, o *trading.Order) {
	if o.Status != types.OrderStatePending {
		return
	}
	if err := l.svc.Cancel(ctx, o, l.cfg.Venue); err != nil {
		l.logger.Warn("failed to cancel unplaced order", "order_id", o.ID, "err", err)
	}
}

func (l *SymbolLoop) halt(ctx context.Context, err error) {
	l.mu.Lock()
	l.haltErr = err
	l.mu.Unlock()

	l.recorder.RecordHalted(l.cfg.Symbol, true)
	l.recorder.RecordError("symbol_halted")
	l.logger.Error("symbol halted", "err", err)
	l.notify(context.WithoutCancel(ctx), alerting.EventSymbolHalted, "Symbol halted",
		"symbol", l.cfg.Symbol,
		"err", err.Error(),
	)
}

func (l *SymbolLoop) closeSession(ctx context.Context, sess *trading.Session) {
	if err := l.svc.CloseSession(ctx, sess); err != nil {
		l.logger.Error("failed to close session", "session_id", sess.ID, "err", err)
		return
	}
	l.publish(sess)

	summary := alerting.NewSessionSummary(
		sess.ID, sess.Symbol, sess.VenueName,
		sess.TimeOpened, *sess.TimeClosed,
		l.orders, l.pairs, l.closedPairs,
		l.profits,
		l.Halted() != nil,
	)
	l.logger.Info("session summary",
		"session_id", sess.ID,
		"pairs", summary.Pairs,
		"wins", summary.Wins,
		"losses", summary.Losses,
		"compound_return_pct", summary.CompoundReturnPct.StringFixed(3),
		"halted", summary.Halted,
	)
	if l.alerter != nil {
		if err := alerting.SendSummary(ctx, l.alerter, summary); err != nil {
			l.logger.Warn("failed to send session summary", "err", err)
		}
	}
}

func (l *SymbolLoop) notify(ctx context.Context, event alerting.AlertEvent, message string, fields ...any) {
	if l.alerter == nil {
		return
	}
	if err := alerting.Send(ctx, l.alerter, event, message, fields...); err != nil {
		l.logger.Warn("failed to send alert", "event", event, "err", err)
	}
}
