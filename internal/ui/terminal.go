// Package ui formats command output for the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

// ANSI escape codes
const (
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorRed    = "\033[31m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorDim    = "\033[2m"
	ColorBold   = "\033[1m"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of f, or 80 when it is not a terminal.
func TerminalWidth(f *os.File) int {
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// SessionRow is one line of the session report.
type SessionRow struct {
	ID          string
	Symbol      string
	Venue       string
	Opened      time.Time
	Closed      *time.Time
	Orders      int
	Pairs       int
	ClosedPairs int
	Wins        int
	Losses      int
}

// WinRate returns wins over decided pairs as a percentage.
func (r SessionRow) WinRate() decimal.Decimal {
	decided := r.Wins + r.Losses
	if decided == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(r.Wins)).Div(decimal.NewFromInt(int64(decided))).Mul(decimal.NewFromInt(100))
}

// SessionTable renders session rows.
type SessionTable struct {
	w     io.Writer
	color bool
	width int
}

// NewSessionTable creates a table writer. Color is only used when enabled.
func NewSessionTable(w io.Writer, color bool, width int) *SessionTable {
	return &SessionTable{w: w, color: color, width: width}
}

// NewStdoutSessionTable creates a table sized and colored for stdout.
func NewStdoutSessionTable() *SessionTable {
	return NewSessionTable(os.Stdout, IsTerminal(os.Stdout), TerminalWidth(os.Stdout))
}

func (t *SessionTable) paint(color, s string) string {
	if !t.color {
		return s
	}
	return color + s + ColorReset
}

// Write prints the rows. Session ids are shortened on narrow terminals.
func (t *SessionTable) Write(rows []SessionRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(t.w, "No trading sessions.")
		return err
	}

	idWidth := 36
	if t.width < 120 {
		idWidth = 8
	}

	header := fmt.Sprintf("%-*s  %-10s  %-8s  %-19s  %-8s  %6s  %5s  %9s  %8s",
		idWidth, "SESSION", "SYMBOL", "VENUE", "OPENED", "STATE", "ORDERS", "PAIRS", "WIN/LOSS", "WIN RATE")
	if _, err := fmt.Fprintln(t.w, t.paint(ColorBold, header)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(t.w, t.paint(ColorDim, strings.Repeat("─", len(header)))); err != nil {
		return err
	}

	for _, r := range rows {
		id := r.ID
		if len(id) > idWidth {
			id = id[:idWidth]
		}

		state := fmt.Sprintf("%-8s", "closed")
		if r.Closed == nil {
			state = t.paint(ColorYellow, fmt.Sprintf("%-8s", "open"))
		}

		winLoss := fmt.Sprintf("%d/%d", r.Wins, r.Losses)
		winLoss = fmt.Sprintf("%9s", winLoss)
		switch {
		case r.Wins > r.Losses:
			winLoss = t.paint(ColorGreen, winLoss)
		case r.Losses > r.Wins:
			winLoss = t.paint(ColorRed, winLoss)
		}

		if _, err := fmt.Fprintf(t.w, "%-*s  %-10s  %-8s  %-19s  %s  %6d  %5s  %s  %7s%%\n",
			idWidth, id,
			r.Symbol,
			r.Venue,
			r.Opened.Local().Format("2006-01-02 15:04:05"),
			state,
			r.Orders,
			fmt.Sprintf("%d/%d", r.ClosedPairs, r.Pairs),
			winLoss,
			r.WinRate().StringFixed(1),
		); err != nil {
			return err
		}
	}
	return nil
}
