// Package mailer sends transactional mail through Resend's SMTP relay.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("mailer not configured")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Mailer struct {
	host     string
	port     int
	username string
	apiKey   string
	from     string
	to       string
	timeout  time.Duration
	log      *zap.SugaredLogger
	send     sendFunc
}

func New(cfg *cfgpkg.Config, log *zap.SugaredLogger) *Mailer {
	m := &Mailer{
		host:     cfg.Mail.SMTPHost,
		port:     cfg.Mail.SMTPPort,
		username: cfg.Mail.Username,
		apiKey:   cfg.Mail.APIKey,
		from:     cfg.Mail.From,
		to:       cfg.Mail.To,
		timeout:  10 * time.Second,
		log:      log,
		send:     smtp.SendMail,
	}
	if !m.Configured() {
		log.Warnw("mailer disabled: api key or recipient not configured")
	}
	return m
}

// Configured reports whether a real API key and both addresses are set.
func (m *Mailer) Configured() bool {
	return cfgpkg.Configured(m.apiKey) && cfgpkg.Configured(m.from) && cfgpkg.Configured(m.to)
}

// SendMail delivers one HTML mail. Empty from/to fall back to the configured
// addresses. net/smtp has no context support, so ctx only bounds how long
// the caller waits.
func (m *Mailer) SendMail(ctx context.Context, from, to, subject, html string) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	if from == "" {
		from = m.from
	}
	if to == "" {
		to = m.to
	}
	rcpt := strings.Split(to, ",")
	for i := range rcpt {
		rcpt[i] = strings.TrimSpace(rcpt[i])
	}

	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	auth := smtp.PlainAuth("", m.username, m.apiKey, m.host)
	body := buildMessage(from, rcpt, subject, html)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.send(addr, auth, from, rcpt, body) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send mail: %w", err)
		}
		m.log.Infow("mail sent", "to", rcpt, "subject", subject)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to send mail: %w", ctx.Err())
	}
}

func buildMessage(from string, to []string, subject, html string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	b.WriteString("\r\n")
	return []byte(b.String())
}

var Module = fx.Options(
	fx.Provide(New),
)
