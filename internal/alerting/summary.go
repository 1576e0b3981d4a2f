package alerting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SessionSummary contains the statistics reported when a trading session ends.
type SessionSummary struct {
	SessionID string
	Symbol    string
	Venue     string
	Opened    time.Time
	Closed    time.Time

	Orders      int
	Pairs       int
	ClosedPairs int
	Wins        int
	Losses      int

	// WinRate, AvgProfitPct and CompoundReturnPct are percentages.
	WinRate           decimal.Decimal
	AvgProfitPct      decimal.Decimal
	CompoundReturnPct decimal.Decimal

	Halted bool
}

// NewSessionSummary builds a summary from the per-pair profits of the closed pairs
// that realised a trade. Profits are fractions (0.01 = 1%).
func NewSessionSummary(
	sessionID, symbol, venueName string,
	opened, closed time.Time,
	orders, pairs, closedPairs int,
	profits []decimal.Decimal,
	halted bool,
) SessionSummary {
	s := SessionSummary{
		SessionID:   sessionID,
		Symbol:      symbol,
		Venue:       venueName,
		Opened:      opened,
		Closed:      closed,
		Orders:      orders,
		Pairs:       pairs,
		ClosedPairs: closedPairs,
		Halted:      halted,
	}

	sum := decimal.Zero
	growth := decimal.NewFromInt(1)
	for _, p := range profits {
		switch {
		case p.IsPositive():
			s.Wins++
		case p.IsNegative():
			s.Losses++
		}
		sum = sum.Add(p)
		growth = growth.Mul(decimal.NewFromInt(1).Add(p))
	}

	if n := len(profits); n > 0 {
		count := decimal.NewFromInt(int64(n))
		s.WinRate = decimal.NewFromInt(int64(s.Wins)).Div(count).Mul(hundred)
		s.AvgProfitPct = sum.Div(count).Mul(hundred)
		s.CompoundReturnPct = growth.Sub(decimal.NewFromInt(1)).Mul(hundred)
	}
	return s
}

// Duration returns how long the session was open.
func (s SessionSummary) Duration() time.Duration {
	return s.Closed.Sub(s.Opened)
}

// Fields returns the summary as alert key-value pairs.
func (s SessionSummary) Fields() []any {
	return []any{
		"session_id", s.SessionID,
		"symbol", s.Symbol,
		"venue", s.Venue,
		"duration", s.Duration().Round(time.Second).String(),
		"orders", s.Orders,
		"pairs", s.Pairs,
		"closed_pairs", s.ClosedPairs,
		"wins", s.Wins,
		"losses", s.Losses,
		"win_rate", s.WinRate.StringFixed(1) + "%",
		"avg_profit", s.AvgProfitPct.StringFixed(3) + "%",
		"compound_return", s.CompoundReturnPct.StringFixed(3) + "%",
		"halted", s.Halted,
	}
}

// SendSummary delivers summary through a, in its own format when it has one.
func SendSummary(ctx context.Context, a Alerter, summary SessionSummary) error {
	if s, ok := a.(SummarySender); ok {
		return s.SendSessionSummary(ctx, summary)
	}
	return Send(ctx, a, EventSessionSummary, "Session summary", summary.Fields()...)
}
