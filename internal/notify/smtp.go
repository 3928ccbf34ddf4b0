package notify

import (
	"context"
	"fmt"

	mail "github.com/wneessen/go-mail"

	"github.com/spec-kit/facility-requests/internal/config"
)

// SMTPMailer delivers through an SMTP relay.
type SMTPMailer struct {
	cfg  config.SMTPConfig
	from string
}

// NewSMTPMailer builds the relay mailer. Connections are opened per message.
func NewSMTPMailer(cfg config.SMTPConfig, from string) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, from: from}
}

// Send dials the relay and delivers one message.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	envelope, err := m.envelope(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password))
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, envelope); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) envelope(msg Message) (*mail.Msg, error) {
	if msg.To == "" {
		return nil, ErrNoRecipient
	}
	envelope := mail.NewMsg()
	if err := envelope.From(m.from); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := envelope.To(msg.To); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	envelope.Subject(msg.Subject)
	envelope.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return envelope, nil
}
