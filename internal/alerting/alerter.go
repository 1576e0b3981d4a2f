// Package alerting sends operator notifications about trading sessions.
package alerting

import (
	"context"
	"fmt"
	"strings"
)

// Severity represents the alert severity level.
type Severity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is for warning messages.
	SeverityWarning
	// SeverityHigh is for high priority alerts.
	SeverityHigh
	// SeverityCritical is for critical alerts requiring immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity parses a severity name such as "warning" (case-insensitive).
func ParseSeverity(s string) (Severity, error) {
	for _, sev := range []Severity{SeverityInfo, SeverityWarning, SeverityHigh, SeverityCritical} {
		if strings.EqualFold(s, sev.String()) {
			return sev, nil
		}
	}
	return SeverityInfo, fmt.Errorf("unknown alert severity %q", s)
}

// Emoji returns an emoji for the severity level.
func (s Severity) Emoji() string {
	switch s {
	case SeverityInfo:
		return "ℹ️"
	case SeverityWarning:
		return "⚠️"
	case SeverityHigh:
		return "🔴"
	case SeverityCritical:
		return "🚨"
	default:
		return "❓"
	}
}

// Alerter defines the interface for sending alerts.
type Alerter interface {
	// Alert sends an alert with the given severity and message.
	Alert(ctx context.Context, severity Severity, message string, fields ...any) error
	// Name returns the name of the alerter.
	Name() string
}

// FormatFields converts variadic fields to a formatted string.
func FormatFields(fields ...any) string {
	if len(fields) == 0 {
		return ""
	}

	result := ""
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		value := fields[i+1]
		if result != "" {
			result += "\n"
		}
		result += fmt.Sprintf("• %s: %v", key, value)
	}
	return result
}

// AlertEvent names something the engine reports.
type AlertEvent string

const (
	// EventSymbolHalted is sent when a symbol loop stops on an error it cannot recover from.
	EventSymbolHalted AlertEvent = "symbol_halted"
	// EventOrderRejected is sent when a venue or the symbol rules reject an order.
	EventOrderRejected AlertEvent = "order_rejected"
	// EventOrderTimedOut is sent when an order is cancelled after its poll timeout.
	EventOrderTimedOut AlertEvent = "order_timed_out"
	EventPairClosed    AlertEvent = "pair_closed"
	EventSessionOpened AlertEvent = "session_opened"
	EventSessionClosed AlertEvent = "session_closed"
	// EventSessionSummary carries the statistics of a finished session.
	EventSessionSummary AlertEvent = "session_summary"
	EventEngineStarted  AlertEvent = "engine_started"
	EventEngineStopped  AlertEvent = "engine_stopped"
)

// EventSeverity returns the default severity for an event.
func EventSeverity(event AlertEvent) Severity {
	switch event {
	case EventSymbolHalted:
		return SeverityCritical
	case EventOrderRejected, EventOrderTimedOut:
		return SeverityWarning
	case EventPairClosed, EventSessionOpened, EventSessionClosed, EventSessionSummary:
		return SeverityInfo
	case EventEngineStarted, EventEngineStopped:
		return SeverityInfo
	default:
		return SeverityInfo
	}
}

// Send delivers event through a at its default severity.
func Send(ctx context.Context, a Alerter, event AlertEvent, message string, fields ...any) error {
	return a.Alert(ctx, EventSeverity(event), message, fields...)
}
