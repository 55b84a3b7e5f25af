package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func configured() *cfgpkg.Config {
	return &cfgpkg.Config{Mail: cfgpkg.MailConfig{
		APIKey:   "re_123456",
		SMTPHost: "smtp.resend.com",
		SMTPPort: 587,
		Username: "resend",
		From:     "gym@example.com",
		To:       "owner@example.com",
	}}
}

func TestSend_NotConfigured(t *testing.T) {
	cfg := configured()
	cfg.Mail.APIKey = "your_resend_api_key"
	m := New(cfg, zap.NewNop().Sugar())
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	require.False(t, m.Configured())
	require.ErrorIs(t, m.SendMail(context.Background(), "", "", "x", ""), ErrNotConfigured)
}

func TestSend_BuildsMessage(t *testing.T) {
	m := New(configured(), zap.NewNop().Sugar())
	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody string
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, string(msg)
		return nil
	}

	err := m.SendMail(context.Background(), "", "", "New feedback", "<p>5/5</p>")
	require.NoError(t, err)
	require.Equal(t, "smtp.resend.com:587", gotAddr)
	require.Equal(t, "gym@example.com", gotFrom)
	require.Equal(t, []string{"owner@example.com"}, gotTo)
	require.True(t, strings.HasPrefix(gotBody, "From: gym@example.com\r\n"))
	require.Contains(t, gotBody, "Subject: New feedback\r\n")
	require.Contains(t, gotBody, "Content-Type: text/html; charset=UTF-8\r\n\r\n<p>5/5</p>")
}

func TestSend_ErrorsAndTimeout(t *testing.T) {
	m := New(configured(), zap.NewNop().Sugar())
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("535 auth failed") }
	require.ErrorContains(t, m.SendMail(context.Background(), "", "", "s", ""), "535 auth failed")

	m.timeout = 20 * time.Millisecond
	block := make(chan struct{})
	defer close(block)
	m.send = func(string, smtp.Auth, string, []string, []byte) error { <-block; return nil }
	require.ErrorIs(t, m.SendMail(context.Background(), "", "", "s", ""), context.DeadlineExceeded)
}
