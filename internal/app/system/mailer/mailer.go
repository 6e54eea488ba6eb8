// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Email is one rendered message.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// Config holds SMTP settings. An empty Host selects the log-only sender.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// NewSender returns an SMTP sender when cfg.Host is set, otherwise a sender
// that only logs messages (local development).
func NewSender(cfg Config, logger *zap.Logger) Sender {
	if strings.TrimSpace(cfg.Host) == "" {
		return &LogSender{Log: logger}
	}
	return NewSMTPSender(cfg)
}

// SMTPSender delivers mail over SMTP with gomail.
type SMTPSender struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPSender(cfg Config) *SMTPSender {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		dialer:   gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
		from:     cfg.From,
		fromName: cfg.FromName,
	}
}

// Send dials, sends and hangs up. gomail has no context support, so a
// canceled ctx abandons the wait but not the dial itself.
func (s *SMTPSender) Send(ctx context.Context, e Email) error {
	if e.To == "" {
		return errors.New("mailer: empty recipient")
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", e.Subject)
	m.SetHeader("Message-ID", messageID(s.from))
	m.SetBody("text/plain", e.TextBody)
	if e.HTMLBody != "" {
		m.AddAlternative("text/html", e.HTMLBody)
	}

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", e.To, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func messageID(from string) string {
	domain := "chimeo.local"
	if _, d, ok := strings.Cut(from, "@"); ok && d != "" {
		domain = d
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	Log *zap.Logger
}

func (s *LogSender) Send(_ context.Context, e Email) error {
	if e.To == "" {
		return errors.New("mailer: empty recipient")
	}
	if s.Log != nil {
		s.Log.Info("email (log only)",
			zap.String("to", e.To),
			zap.String("subject", e.Subject),
			zap.String("body", e.TextBody))
	}
	return nil
}
