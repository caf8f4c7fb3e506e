// Package mailer sends password reset mail over SMTP.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"net/url"

	"github.com/rs/zerolog"
)

type Config struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

type Mailer interface {
	SendPasswordReset(ctx context.Context, to, token, baseURL string) error
}

type SMTPMailer struct {
	config Config
	logger zerolog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(cfg Config, logger zerolog.Logger) *SMTPMailer {
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &SMTPMailer{config: cfg, logger: logger, send: smtp.SendMail}
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		from, to, subject, body,
	))
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if !m.config.Enabled {
		m.logger.Info().Str("to", to).Str("subject", subject).Msg("email disabled, not sent")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	auth := smtp.PlainAuth("", m.config.User, m.config.Password, m.config.Host)
	addr := m.config.Host + ":" + m.config.Port
	if err := m.send(addr, auth, m.config.From, []string{to}, buildMessage(m.config.From, to, subject, body)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	m.logger.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

func resetLink(baseURL, token string) string {
	return fmt.Sprintf("%s/reset-password/%s", baseURL, url.PathEscape(token))
}

// SendPasswordReset 寄出重設密碼連結
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, token, baseURL string) error {
	link := resetLink(baseURL, token)
	body := fmt.Sprintf("We received a request to reset your password.\r\n\r\n"+
		"Open the link below within one hour to choose a new password:\r\n%s\r\n\r\n"+
		"If you did not request this, you can ignore this email.", link)
	if !m.config.Enabled {
		m.logger.Debug().Str("to", to).Str("link", link).Msg("password reset link")
	}
	return m.Send(ctx, to, "Password Reset Request", body)
}
