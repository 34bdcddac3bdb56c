// Package email sends transactional mail over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"

	"github.com/idbridge/idbridge/internal/events"
	"github.com/idbridge/idbridge/internal/observability/logger"
)

type Sender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// SMTPConfig configures the SMTP sender. TLSMode is one of "auto",
// "starttls", "ssl" or "none".
type SMTPConfig struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string
	InsecureSkipVerify bool
}

type SMTPSender struct{ cfg SMTPConfig }

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}
	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}

	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.cfg.InsecureSkipVerify}
	default:
		// "auto"/"starttls": the dialer negotiates STARTTLS when offered.
	}

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// WelcomeHandler returns an event handler that mails newly created accounts.
// Send failures are logged and swallowed; mail never blocks a sign-in.
func WelcomeHandler(sender Sender, appName string) events.Handler {
	return func(ctx context.Context, ev events.Event) error {
		login, ok := ev.(events.UserLoginEvent)
		if !ok || !login.NewAccount || login.Email == "" {
			return nil
		}

		name := login.Name
		if name == "" {
			name = login.Email
		}
		subject := fmt.Sprintf("Welcome to %s", appName)
		text := fmt.Sprintf("Hi %s,\n\nYour %s account is ready. You signed in with %s.\n", name, appName, login.Provider)
		html := fmt.Sprintf("<p>Hi %s,</p><p>Your %s account is ready. You signed in with <b>%s</b>.</p>", name, appName, login.Provider)

		go func() {
			if err := sender.Send(login.Email, subject, html, text); err != nil {
				logger.From(ctx).Warn("welcome email failed",
					logger.Component("email"),
					logger.AccountID(login.AccountID),
					logger.Err(err),
				)
			}
		}()
		return nil
	}
}
