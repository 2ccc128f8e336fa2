// Package mailer sends meeting invitation emails. Delivery is best-effort;
// callers report failures but never fail the request that triggered a send.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/crh-church/backend/config"
)

// ErrNotConfigured means no SMTP host is set.
var ErrNotConfigured = errors.New("mailer: smtp not configured")

// Mailer dispatches a single email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTP sends mail through a plain SMTP relay.
type SMTP struct {
	cfg    config.EmailConfig
	logger *zap.Logger
}

// NewSMTP creates an SMTP mailer from config.
func NewSMTP(cfg config.EmailConfig, logger *zap.Logger) *SMTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTP{cfg: cfg, logger: logger}
}

// Configured reports whether an SMTP host is set.
func (m *SMTP) Configured() bool {
	return m.cfg.SMTPHost != ""
}

// Send delivers one message. The context is honored only before the dial;
// net/smtp has no per-operation cancellation.
func (m *SMTP) Send(ctx context.Context, to, subject, body string) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}

	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		m.cfg.FromName, m.cfg.FromAddress, to, subject, body)

	if err := smtp.SendMail(addr, auth, m.cfg.FromAddress, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
