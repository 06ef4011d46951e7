// Package email delivers campaign messages over SMTP.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/aimkt/marketing-api/internal/provider"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

type Transport struct {
	dialer  *gomail.Dialer
	from    string
	subject string
}

func NewTransport(cfg Config) *Transport {
	subject := cfg.Subject
	if subject == "" {
		subject = "A message from your store"
	}
	return &Transport{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		subject: subject,
	}
}

func (t *Transport) Deliver(ctx context.Context, recipient, content string) (*provider.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !strings.Contains(recipient, "@") {
		return nil, &provider.Error{
			Code:      "invalid_recipient",
			Message:   fmt.Sprintf("%q is not an email address", recipient),
			Temporary: false,
		}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", t.subject)
	m.SetBody("text/plain", content)

	if err := t.dialer.DialAndSend(m); err != nil {
		// SMTP failures are connection-level here; the server was not
		// reached or dropped us, so a retry may succeed.
		return nil, &provider.Error{
			Code:      "smtp_error",
			Message:   err.Error(),
			Temporary: true,
		}
	}

	return &provider.Receipt{ProviderRef: "smtp-" + uuid.New().String()}, nil
}
