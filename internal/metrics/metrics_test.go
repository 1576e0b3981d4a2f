package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func TestRecorder_RecordOrder(t *testing.T) {
	r := NewRecorder()
	counter := OrdersTotal.WithLabelValues("TESTORD", "BUY", "PLACED")
	before := testutil.ToFloat64(counter)

	r.RecordOrder("TESTORD", "BUY", "PLACED")
	r.RecordOrder("TESTORD", "BUY", "PLACED")
	r.RecordOrder("TESTORD", "SELL", "COMPLETED")

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("orders_total{BUY,PLACED} delta = %v, want 2", got)
	}
}

func TestRecorder_RecordPairClosed(t *testing.T) {
	r := NewRecorder()
	tests := []struct {
		profit  decimal.Decimal
		outcome string
	}{
		{decimal.RequireFromString("0.01"), "win"},
		{decimal.RequireFromString("-0.002"), "loss"},
		{decimal.Zero, "flat"},
	}

	for _, tt := range tests {
		counter := PairsClosedTotal.WithLabelValues("TESTPAIR", tt.outcome)
		before := testutil.ToFloat64(counter)
		r.RecordPairClosed("TESTPAIR", tt.profit)
		if got := testutil.ToFloat64(counter) - before; got != 1 {
			t.Errorf("pairs_closed_total{%s} delta = %v, want 1", tt.outcome, got)
		}
	}

	abandoned := PairsClosedTotal.WithLabelValues("TESTPAIR", "cancelled")
	before := testutil.ToFloat64(abandoned)
	r.RecordPairAbandoned("TESTPAIR")
	if got := testutil.ToFloat64(abandoned) - before; got != 1 {
		t.Errorf("pairs_closed_total{cancelled} delta = %v, want 1", got)
	}
}

func TestRecorder_RecordSession(t *testing.T) {
	r := NewRecorder()
	gauge := SessionsActive.WithLabelValues("TESTSESS")

	r.RecordSessionOpened("TESTSESS")
	r.RecordSessionOpened("TESTSESS")
	r.RecordSessionClosed("TESTSESS")

	if got := testutil.ToFloat64(gauge); got != 1 {
		t.Errorf("sessions_active = %v, want 1", got)
	}
}

func TestRecorder_RecordHalted(t *testing.T) {
	r := NewRecorder()
	gauge := SymbolHalted.WithLabelValues("TESTHALT")

	r.RecordHalted("TESTHALT", true)
	if got := testutil.ToFloat64(gauge); got != 1 {
		t.Errorf("symbol_halted = %v, want 1", got)
	}
	r.RecordHalted("TESTHALT", false)
	if got := testutil.ToFloat64(gauge); got != 0 {
		t.Errorf("symbol_halted = %v, want 0", got)
	}
}

func TestRecorder_RecordVenueError(t *testing.T) {
	r := NewRecorder()
	counter := VenueErrorsTotal.WithLabelValues("paper", "InsufficientFunds")
	before := testutil.ToFloat64(counter)

	r.RecordVenueError("paper", "InsufficientFunds")

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("venue_errors_total delta = %v, want 1", got)
	}
}

func TestRecorder_RecordLatency(t *testing.T) {
	r := NewRecorder()

	r.RecordOrderLatency(100 * time.Millisecond)
	r.RecordPollDuration("TESTLAT", 2*time.Second)
}

func TestRecorder_RecordHeartbeat(t *testing.T) {
	r := NewRecorder()
	r.RecordHeartbeat()
	r.RecordUptime(time.Minute)

	if got := testutil.ToFloat64(HeartbeatTimestamp); got <= 0 {
		t.Errorf("heartbeat = %v, want > 0", got)
	}
	if got := testutil.ToFloat64(UptimeSeconds); got != 60 {
		t.Errorf("uptime = %v, want 60", got)
	}
}

func TestRecorder_RecordError(t *testing.T) {
	r := NewRecorder()

	r.RecordError("persistence")
	r.RecordError("order_timeout")
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)

	elapsed := timer.Elapsed()
	if elapsed < 10*time.Millisecond {
		t.Errorf("elapsed = %v, expected >= 10ms", elapsed)
	}
	timer.ObserveOrder()
	timer.ObservePoll("TESTTIMER")
}

func TestSetBuildInfo(t *testing.T) {
	SetBuildInfo("1.0.0", "abc123", "2026-01-31")

	if got := testutil.ToFloat64(BuildInfo.WithLabelValues("1.0.0", "abc123", "2026-01-31")); got != 1 {
		t.Errorf("build_info = %v, want 1", got)
	}
}

func TestMetricsRegistered(t *testing.T) {
	metrics := []prometheus.Collector{
		OrdersTotal,
		OrderLatency,
		PollDuration,
		VenueErrorsTotal,
		PairsClosedTotal,
		PairProfit,
		SessionsActive,
		SymbolHalted,
		HeartbeatTimestamp,
		UptimeSeconds,
		ErrorsTotal,
		BuildInfo,
	}

	for _, m := range metrics {
		if m == nil {
			t.Error("metric is nil")
		}
	}
}
