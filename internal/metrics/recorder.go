package metrics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recorder provides methods for recording metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordOrder records an order reaching status.
func (r *Recorder) RecordOrder(symbol, side, status string) {
	OrdersTotal.WithLabelValues(symbol, side, status).Inc()
}

// RecordPairClosed records a closed pair and its profit ratio.
func (r *Recorder) RecordPairClosed(symbol string, profit decimal.Decimal) {
	outcome := "loss"
	if profit.IsPositive() {
		outcome = "win"
	} else if profit.IsZero() {
		outcome = "flat"
	}
	PairsClosedTotal.WithLabelValues(symbol, outcome).Inc()
	PairProfit.WithLabelValues(symbol).Observe(profit.InexactFloat64())
}

// RecordPairAbandoned records a pair whose opener was cancelled without fill.
func (r *Recorder) RecordPairAbandoned(symbol string) {
	PairsClosedTotal.WithLabelValues(symbol, "cancelled").Inc()
}

// RecordSessionOpened records a session being opened.
func (r *Recorder) RecordSessionOpened(symbol string) {
	SessionsActive.WithLabelValues(symbol).Inc()
}

// RecordSessionClosed records a session being closed.
func (r *Recorder) RecordSessionClosed(symbol string) {
	SessionsActive.WithLabelValues(symbol).Dec()
}

// RecordHalted records the halted status of a symbol loop.
func (r *Recorder) RecordHalted(symbol string, halted bool) {
	if halted {
		SymbolHalted.WithLabelValues(symbol).Set(1)
	} else {
		SymbolHalted.WithLabelValues(symbol).Set(0)
	}
}

// RecordVenueError records a venue failure.
func (r *Recorder) RecordVenueError(venue, kind string) {
	VenueErrorsTotal.WithLabelValues(venue, kind).Inc()
}

// RecordOrderLatency records order placement latency.
func (r *Recorder) RecordOrderLatency(duration time.Duration) {
	OrderLatency.Observe(duration.Seconds())
}

// RecordPollDuration records how long an order was polled.
func (r *Recorder) RecordPollDuration(symbol string, duration time.Duration) {
	PollDuration.WithLabelValues(symbol).Observe(duration.Seconds())
}

// RecordHeartbeat records a heartbeat.
func (r *Recorder) RecordHeartbeat() {
	HeartbeatTimestamp.Set(float64(time.Now().Unix()))
}

// RecordUptime records process uptime.
func (r *Recorder) RecordUptime(uptime time.Duration) {
	UptimeSeconds.Set(uptime.Seconds())
}

// RecordError records an error.
func (r *Recorder) RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

// Timer is a helper for measuring latency.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed duration.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ObserveOrder observes the elapsed time as order placement latency.
func (t *Timer) ObserveOrder() {
	OrderLatency.Observe(t.Elapsed().Seconds())
}

// ObservePoll observes the elapsed time as poll duration for symbol.
func (t *Timer) ObservePoll(symbol string) {
	PollDuration.WithLabelValues(symbol).Observe(t.Elapsed().Seconds())
}
