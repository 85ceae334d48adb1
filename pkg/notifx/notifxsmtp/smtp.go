// Package notifxsmtp delivers e-mail to an SMTP relay with go-mail.
package notifxsmtp

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
	mail "github.com/go-mail/mail"
)

var ErrRegistry = errx.NewRegistry("NOTIFX_SMTP")

var CodeSendFailed = ErrRegistry.Register("SEND_FAILED", errx.TypeExternal, http.StatusBadGateway, "SMTP delivery failed")

// Dialer is satisfied by *mail.Dialer
type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

type SMTPProvider struct {
	dialer Dialer
}

func NewSMTPProvider(dialer Dialer) *SMTPProvider {
	return &SMTPProvider{dialer: dialer}
}

// NewFromConfig dials cfg's relay, negotiating STARTTLS when offered
func NewFromConfig(cfg config.NotifxConfig) *SMTPProvider {
	d := mail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	d.TLSConfig = &tls.Config{ServerName: cfg.SMTPHost}
	return NewSMTPProvider(d)
}

func (p *SMTPProvider) SendEmail(_ context.Context, msg notifx.EmailMessage, _ ...notifx.Option) error {
	if err := p.dialer.DialAndSend(Build(msg)); err != nil {
		return ErrRegistry.NewWithCause(CodeSendFailed, err).WithDetail("subject", msg.Subject)
	}
	return nil
}

// Build converts msg into a multipart/alternative message when both bodies
// are present
func Build(msg notifx.EmailMessage) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	for k, v := range msg.Headers {
		m.SetHeader(k, v)
	}

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBody("text/html", msg.HTMLBody)
	default:
		m.SetBody("text/plain", msg.TextBody)
	}
	return m
}
