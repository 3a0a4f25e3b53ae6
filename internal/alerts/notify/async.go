package notify

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrClosed is returned once the dispatcher stops accepting messages.
var ErrClosed = errors.New("notify: dispatcher closed")

// AsyncDispatcher hands messages to a background goroutine and returns
// immediately. Delivery failures are logged, never returned.
type AsyncDispatcher struct {
	next    Dispatcher
	logger  *log.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// AsyncOption configures the async dispatcher.
type AsyncOption func(*AsyncDispatcher)

// WithSendTimeout bounds each background delivery.
func WithSendTimeout(timeout time.Duration) AsyncOption {
	return func(d *AsyncDispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) AsyncOption {
	return func(d *AsyncDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewAsyncDispatcher wraps next.
func NewAsyncDispatcher(next Dispatcher, opts ...AsyncOption) (*AsyncDispatcher, error) {
	if next == nil {
		return nil, errors.New("async dispatcher: nil dispatcher")
	}
	d := &AsyncDispatcher{
		next:    next,
		logger:  log.Default(),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Send schedules delivery. The caller's context only gates scheduling; the
// delivery itself outlives the request.
func (d *AsyncDispatcher) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	d.wg.Add(1)
	go d.deliver(msg)
	return nil
}

func (d *AsyncDispatcher) deliver(msg Message) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("notify: panic delivering to=%s: %v", msg.To, r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.next.Send(ctx, msg); err != nil {
		d.logger.Printf("notify: delivery to=%s subject=%q failed: %v", msg.To, msg.Subject, err)
		return
	}
	d.logger.Printf("notify: delivered to=%s subject=%q", msg.To, msg.Subject)
}

// Wait blocks until in-flight deliveries finish.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting messages and waits for in-flight deliveries or ctx.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
