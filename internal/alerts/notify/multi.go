package notify

import (
	"context"
	"errors"
	"log"
	"time"

	"aquatracking/internal/observability/metrics"
)

// NamedDispatcher labels a channel for logs and metrics.
type NamedDispatcher struct {
	Name       string
	Dispatcher Dispatcher
}

// MultiDispatcher sends each message to every channel.
type MultiDispatcher struct {
	channels []NamedDispatcher
	logger   *log.Logger
}

// NewMultiDispatcher constructs a MultiDispatcher. Nil channels are skipped.
func NewMultiDispatcher(logger *log.Logger, channels ...NamedDispatcher) *MultiDispatcher {
	if logger == nil {
		logger = log.Default()
	}
	kept := make([]NamedDispatcher, 0, len(channels))
	for _, ch := range channels {
		if ch.Dispatcher != nil {
			kept = append(kept, ch)
		}
	}
	return &MultiDispatcher{channels: kept, logger: logger}
}

// Send forwards the message to all channels and joins their errors.
func (m *MultiDispatcher) Send(ctx context.Context, msg Message) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, ch := range m.channels {
		start := time.Now()
		err := ch.Dispatcher.Send(ctx, msg)
		metrics.ObserveNotification(ch.Name, err, time.Since(start))
		if err != nil {
			m.logger.Printf("notify: channel %s failed: %v", ch.Name, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
