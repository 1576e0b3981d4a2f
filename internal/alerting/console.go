package alerting

import (
	"context"
	"log/slog"
)

// ConsoleAlerter writes alerts to the log. Alerts below min are dropped.
type ConsoleAlerter struct {
	logger *slog.Logger
	min    Severity
}

// NewConsoleAlerter creates a console alerter that logs every alert at or above min.
func NewConsoleAlerter(logger *slog.Logger, min Severity) *ConsoleAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleAlerter{logger: logger, min: min}
}

// Name returns the name of the alerter.
func (c *ConsoleAlerter) Name() string {
	return "console"
}

// Alert logs the alert at a level matching its severity.
func (c *ConsoleAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	if severity < c.min {
		return nil
	}

	level := slog.LevelInfo
	switch severity {
	case SeverityCritical:
		level = slog.LevelError
	case SeverityHigh, SeverityWarning:
		level = slog.LevelWarn
	}

	attrs := make([]any, 0, len(fields)+2)
	attrs = append(attrs, "severity", severity.String())
	attrs = append(attrs, fields...)
	c.logger.Log(ctx, level, "[ALERT] "+message, attrs...)
	return nil
}
