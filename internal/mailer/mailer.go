// Package mailer delivers reminder emails over SMTP. With no credentials
// configured it runs in disabled mode and logs the message instead, which
// keeps local development working without a mail account.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/packmind/internal/config"
)

// Mailer sends HTML email through a single SMTP account. Sends are rate
// limited so a large user base does not trip provider throttling.
type Mailer struct {
	cfg     config.SMTPConfig
	limiter *rate.Limiter
	log     *zap.Logger

	// sendMail is swapped out in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a Mailer from SMTP configuration.
func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(1), 3),
		log:      zap.L().With(zap.String("component", "mailer")),
		sendMail: smtp.SendMail,
	}
}

// Enabled reports whether credentials are configured. A disabled mailer
// logs instead of sending.
func (m *Mailer) Enabled() bool {
	return m.cfg.Username != "" && m.cfg.Password != ""
}

// Send delivers one HTML email. OverrideTo, when set, redirects every
// message to a single test recipient.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m.cfg.OverrideTo != "" {
		to = m.cfg.OverrideTo
	}
	if !m.Enabled() {
		m.log.Info("mail disabled, skipping send",
			zap.String("to", to),
			zap.String("subject", subject))
		return nil
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "mailer: rate limit wait")
	}

	msg := buildMessage(m.cfg.From, to, subject, htmlBody)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := m.sendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return eris.Wrapf(err, "mailer: send to %s", to)
	}

	m.log.Info("sent email", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// buildMessage assembles an RFC 5322 message with CRLF line endings.
func buildMessage(from, to, subject, htmlBody string) []byte {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)
	return []byte(msg.String())
}
