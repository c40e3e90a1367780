// Package mailer delivers instructor notifications over SMTP.
package mailer

import (
	"context"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTP struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

func NewSMTP(cfg Config) *SMTP {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTP{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

func (m *SMTP) Notify(ctx context.Context, recipientEmail, subject, body string) error {
	if recipientEmail == "" {
		return fmt.Errorf("mailer: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	err := m.send(
		fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port),
		auth,
		m.cfg.From,
		[]string{recipientEmail},
		m.compose(recipientEmail, subject, body),
	)
	if err != nil {
		return fmt.Errorf("mailer: send to %s: %w", recipientEmail, err)
	}
	zerolog.Ctx(ctx).Debug().Str("to", recipientEmail).Str("subject", subject).Msg("notification sent")
	return nil
}

func (m *SMTP) compose(to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("From: %s\r\n", m.cfg.From))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", m.now().UTC().Format(time.RFC1123Z)))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject)))
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	b.WriteString("\r\n")
	w := quotedprintable.NewWriter(&b)
	w.Write([]byte(body))
	w.Close()
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogOnly stands in for SMTP when no mail host is configured.
type LogOnly struct{}

func (LogOnly) Notify(ctx context.Context, recipientEmail, subject, body string) error {
	zerolog.Ctx(ctx).Info().
		Str("to", recipientEmail).
		Str("subject", subject).
		Msg("mail disabled, notification logged only")
	return nil
}
