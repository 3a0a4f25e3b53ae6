package notify

import (
	"context"
	"log"
)

// Message is a rendered notification for one recipient.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Dispatcher delivers messages.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// LogChannel writes messages to the logger instead of delivering them.
// It is used when no mail transport is configured.
type LogChannel struct {
	logger *log.Logger
}

// NewLogChannel constructs a LogChannel.
func NewLogChannel(logger *log.Logger) *LogChannel {
	if logger == nil {
		logger = log.Default()
	}
	return &LogChannel{logger: logger}
}

// Send logs the message.
func (c *LogChannel) Send(_ context.Context, msg Message) error {
	c.logger.Printf("notify: no transport configured, dropping mail to=%s subject=%q", msg.To, msg.Subject)
	return nil
}
