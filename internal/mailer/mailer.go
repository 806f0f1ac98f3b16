package mailer

import (
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/supportdesk/server/internal/config"
)

// Mailer delivers a rendered notification email. Implementations never
// surface failures to the request path; callers run sends on the
// background pool and the pool logs errors.
type Mailer interface {
	Send(to, subject, html string) error
}

// SMTPMailer sends mail over plain SMTP with STARTTLS-capable auth.
// When credentials are absent it logs and drops the message, so an
// unconfigured environment behaves like a silent no-op.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// NewSMTPMailer builds the mailer.
func NewSMTPMailer(cfg config.SMTPConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// Send delivers one HTML message.
func (m *SMTPMailer) Send(to, subject, html string) error {
	if !m.cfg.Enabled() {
		m.logger.Debug("email not sent, smtp credentials not configured",
			zap.String("to", to),
			zap.String("subject", subject))
		return nil
	}

	msg := "MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n"
	msg += fmt.Sprintf("From: %s <%s>\r\n", m.cfg.FromName, m.cfg.From)
	msg += fmt.Sprintf("To: %s\r\n", to)
	msg += fmt.Sprintf("Subject: %s\r\n\r\n", subject)
	msg += html

	addr := m.cfg.Host + ":" + m.cfg.Port
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	m.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
