// Package notify formats request notifications and hands them to a mail transport.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/facility-requests/internal/config"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer is implemented by every mail transport.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer picks the transport named in configuration.
func NewMailer(ctx context.Context, cfg config.NotificationConfig, logger *zap.Logger) (Mailer, error) {
	switch cfg.Transport {
	case "", config.TransportLog:
		return NewLogMailer(logger), nil
	case config.TransportNoop:
		return NoopMailer{}, nil
	case config.TransportSMTP:
		return NewSMTPMailer(cfg.SMTP, cfg.EmailFrom), nil
	case config.TransportGraph:
		return NewGraphMailer(ctx, cfg.Graph), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds a log-only mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message envelope.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.HTML)))
	return nil
}

// NoopMailer drops every message.
type NoopMailer struct{}

// Send does nothing.
func (NoopMailer) Send(context.Context, Message) error { return nil }

// ErrNoRecipient is returned when a message has no address to go to.
var ErrNoRecipient = errors.New("notification has no recipient")
