package alerting

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// SummarySender is implemented by alerters with a dedicated session summary format.
type SummarySender interface {
	SendSessionSummary(ctx context.Context, summary SessionSummary) error
}

// MultiAlerter sends alerts to multiple channels.
type MultiAlerter struct {
	mu       sync.RWMutex
	alerters []Alerter
	logger   *slog.Logger
}

// NewMultiAlerter creates a new multi-channel alerter.
func NewMultiAlerter(logger *slog.Logger, alerters ...Alerter) *MultiAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiAlerter{
		alerters: alerters,
		logger:   logger,
	}
}

// Name returns the name of the alerter.
func (m *MultiAlerter) Name() string {
	return "multi"
}

// AddAlerter adds a new alerter to the multi-alerter.
func (m *MultiAlerter) AddAlerter(alerter Alerter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerters = append(m.alerters, alerter)
}

// Len returns the number of channels.
func (m *MultiAlerter) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.alerters)
}

// Alert sends an alert to all configured channels concurrently.
// Channel failures are logged and joined.
func (m *MultiAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	return m.fanOut(func(a Alerter) error {
		return a.Alert(ctx, severity, message, fields...)
	})
}

// SendSessionSummary sends the summary in each channel's own format. Channels
// without one receive it as an info alert.
func (m *MultiAlerter) SendSessionSummary(ctx context.Context, summary SessionSummary) error {
	return m.fanOut(func(a Alerter) error {
		return SendSummary(ctx, a, summary)
	})
}

func (m *MultiAlerter) fanOut(send func(Alerter) error) error {
	m.mu.RLock()
	alerters := make([]Alerter, len(m.alerters))
	copy(alerters, m.alerters)
	m.mu.RUnlock()

	var wg sync.WaitGroup
	errCh := make(chan error, len(alerters))

	for _, alerter := range alerters {
		wg.Add(1)
		go func(a Alerter) {
			defer wg.Done()
			if err := send(a); err != nil {
				m.logger.Error("alerter failed",
					"alerter", a.Name(),
					"err", err,
				)
				errCh <- err
			}
		}(alerter)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
