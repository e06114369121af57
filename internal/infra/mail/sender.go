package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
)

var ErrNotConfigured = errors.New("smtp credentials are not configured")

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPSender struct {
	host string
	port int
	user string
	pass string
	from string
}

func NewSMTPSender(host string, port int, user, pass, from string) *SMTPSender {
	if from == "" {
		from = user
	}
	return &SMTPSender{host: host, port: port, user: user, pass: pass, from: from}
}

// Send delivers a plain-text message over implicit TLS. Port 465 providers
// reject STARTTLS, so the connection is wrapped from the first byte.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if s.host == "" || s.user == "" || s.pass == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.user, s.pass, s.host)

	e := email.NewEmail()
	e.From = s.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	if s.port == 465 {
		return e.SendWithTLS(addr, auth, &tls.Config{ServerName: s.host})
	}
	return e.Send(addr, auth)
}
