package notify

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPConfig configures the SMTP sink.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSink sends one email per recipient through gomail.
type SMTPSink struct {
	from string
	send func(*gomail.Message) error
}

// NewSMTPSink dials the server for every message.
func NewSMTPSink(cfg SMTPConfig) *SMTPSink {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTPSink{from: cfg.From, send: func(m *gomail.Message) error { return dialer.DialAndSend(m) }}
}

func (s *SMTPSink) Deliver(ctx context.Context, msg Message) error {
	recipients := Dedupe(msg.Recipients)
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	subject := sanitizeHeader(msg.Subject)
	body := SanitizeHTML(msg.Body)

	var errs []error
	for _, to := range recipients {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := validateAddress(to); err != nil {
			errs = append(errs, err)
			continue
		}
		m := gomail.NewMessage()
		m.SetHeader("From", s.from)
		m.SetHeader("To", to)
		m.SetHeader("Subject", subject)
		m.SetBody("text/html", body)
		if err := s.send(m); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}
