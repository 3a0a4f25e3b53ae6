package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// MailConfig holds SMTP transport settings.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// SSL selects implicit TLS; otherwise STARTTLS is used when offered.
	SSL     bool
	From    string
	Timeout time.Duration
}

// MailChannel delivers messages over SMTP.
type MailChannel struct {
	cfg MailConfig
}

// NewMailChannel validates the transport settings.
func NewMailChannel(cfg MailConfig) (*MailChannel, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail channel: empty host")
	}
	if cfg.From == "" {
		return nil, errors.New("mail channel: empty sender")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
		if cfg.SSL {
			cfg.Port = 465
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &MailChannel{cfg: cfg}, nil
}

// Send dials the server and delivers one message.
func (c *MailChannel) Send(ctx context.Context, msg Message) error {
	if c == nil {
		return errors.New("mail channel: nil channel")
	}
	m, err := buildMessage(c.cfg.From, msg)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(c.cfg.Host, c.clientOptions()...)
	if err != nil {
		return fmt.Errorf("mail channel: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mail channel: send to %s: %w", msg.To, err)
	}
	return nil
}

func (c *MailChannel) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(c.cfg.Port),
		mail.WithTimeout(c.cfg.Timeout),
	}
	if c.cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if c.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.cfg.Username),
			mail.WithPassword(c.cfg.Password),
		)
	}
	return opts
}

func buildMessage(from string, msg Message) (*mail.Msg, error) {
	if msg.To == "" {
		return nil, errors.New("mail channel: empty recipient")
	}
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("mail channel: from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail channel: to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}
