// Package notify delivers account emails: verification links, password
// reset links, confirmations and promotional enrollment notices.
package notify

import (
	"context"
	"fmt"

	"github.com/ttn64681/SWE-Final-Proj/internal/logging"
	"gopkg.in/gomail.v2"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sink delivers a message or reports why it could not.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig configures SMTPSink.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSink sends mail through an SMTP relay.
type SMTPSink struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSink(cfg SMTPConfig) *SMTPSink {
	return &SMTPSink{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPSink) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// LogSink writes messages to the log instead of sending them. Used when no
// SMTP host is configured.
type LogSink struct {
	logger logging.Logger
}

func NewLogSink(l logging.Logger) *LogSink {
	return &LogSink{logger: l.With("module", "mail_log_sink")}
}

func (s *LogSink) Send(ctx context.Context, msg Message) error {
	s.logger.Info(ctx, "email not sent, no SMTP host configured", "to", msg.To, "subject", msg.Subject)
	s.logger.Debug(ctx, "email body", "to", msg.To, "body", msg.Body)
	return nil
}
