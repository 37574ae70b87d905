// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

// Package mail delivers the transactional email sent by the auth services.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/trailhead/trailhead/internal/auth"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPConfig configures an SMTPMailer.
type SMTPConfig struct {
	Addr     string
	From     string
	Username string
	Password string
}

// SMTPMailer sends plain-text email through an SMTP relay.
type SMTPMailer struct {
	addr string
	from *mail.Address
	auth smtp.Auth
	send SendFunc
	now  func() time.Time
}

// SMTPOption configures an SMTPMailer.
type SMTPOption func(*SMTPMailer)

// WithSendFunc replaces smtp.SendMail.
func WithSendFunc(fn SendFunc) SMTPOption {
	return func(m *SMTPMailer) { m.send = fn }
}

// WithSMTPClock sets the clock used for the Date header.
func WithSMTPClock(now func() time.Time) SMTPOption {
	return func(m *SMTPMailer) { m.now = now }
}

// NewSMTPMailer validates cfg and returns a mailer. Credentials are only
// used when Username is set.
func NewSMTPMailer(cfg SMTPConfig, opts ...SMTPOption) (*SMTPMailer, error) {
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("addr", cfg.Addr).Wrap(err)
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("from", cfg.From).Wrap(err)
	}

	m := &SMTPMailer{
		addr: cfg.Addr,
		from: from,
		send: smtp.SendMail,
		now:  time.Now,
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Send implements auth.Mailer. smtp.SendMail has no context support, so
// ctx is only checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg auth.Message) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").Wrap(err)
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return oops.Code("MAIL_RECIPIENT_INVALID").Wrap(err)
	}

	body := m.render(to, msg)
	if err := m.send(m.addr, m.auth, m.from.Address, []string{to.Address}, body); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("addr", m.addr).Wrap(err)
	}
	return nil
}

func (m *SMTPMailer) render(to *mail.Address, msg auth.Message) []byte {
	var b bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }
	header("From", m.from.String())
	header("To", to.String())
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", m.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes()
}

// LogMailer writes messages to a logger instead of delivering them. It is
// the development default.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer returns a LogMailer. A nil logger uses slog.Default.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send implements auth.Mailer.
func (m *LogMailer) Send(ctx context.Context, msg auth.Message) error {
	m.logger.InfoContext(ctx, "mail not delivered; log driver active",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body)
	return nil
}

var (
	_ auth.Mailer = (*SMTPMailer)(nil)
	_ auth.Mailer = (*LogMailer)(nil)
)
