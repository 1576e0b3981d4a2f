// Package metrics provides Prometheus metrics and health endpoints.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pair_trader"

// Order metrics.
var (
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_total",
		Help:      "Orders by symbol, side and lifecycle status.",
	}, []string{"symbol", "side", "status"})

	OrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "order_placement_seconds",
		Help:      "Time to validate and submit an order to the venue.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "order_poll_seconds",
		Help:      "Time an order was polled until it closed or timed out.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"symbol"})

	VenueErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "venue_errors_total",
		Help:      "Venue errors by venue and kind.",
	}, []string{"venue", "kind"})
)

// Pair metrics.
var (
	PairsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pairs_closed_total",
		Help:      "Closed buy/sell pairs by outcome.",
	}, []string{"symbol", "outcome"})

	PairProfit = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pair_profit_ratio",
		Help:      "Profit ratio of closed pairs, before fees.",
		Buckets:   []float64{-0.05, -0.02, -0.01, -0.005, -0.001, 0, 0.001, 0.005, 0.01, 0.02, 0.05},
	}, []string{"symbol"})
)

// Session and loop metrics.
var (
	SessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Open trading sessions by symbol.",
	}, []string{"symbol"})

	SymbolHalted = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "symbol_halted",
		Help:      "1 when the trading loop of a symbol halted on an error.",
	}, []string{"symbol"})

	HeartbeatTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "heartbeat_timestamp_seconds",
		Help:      "Unix time of the last trading loop cycle.",
	})

	UptimeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Process uptime.",
	})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Internal errors by type.",
	}, []string{"type"})

	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information.",
	}, []string{"version", "commit", "date"})
)

// SetBuildInfo publishes the build labels.
func SetBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
}
