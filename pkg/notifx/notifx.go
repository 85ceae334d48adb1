// Package notifx renders and delivers e-mail through a pluggable provider.
package notifx

import (
	"context"
)

// EmailSender delivers a single message
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage, opts ...Option) error
}

// Client renders templates and hands the result to its provider
type Client struct {
	provider  EmailSender
	from      string
	templates *TemplateRegistry
}

// NewClient uses from for messages that do not set one
func NewClient(provider EmailSender, from string) *Client {
	return &Client{
		provider:  provider,
		from:      from,
		templates: NewTemplateRegistry(),
	}
}

func (c *Client) SendEmail(ctx context.Context, msg EmailMessage, opts ...Option) error {
	if msg.From == "" {
		msg.From = c.from
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.provider.SendEmail(ctx, msg, opts...)
}

func (c *Client) RegisterTemplate(name string, tpl Template) error {
	return c.templates.Register(name, tpl)
}

// SendTemplatedEmail renders name with data into msg and sends it
func (c *Client) SendTemplatedEmail(ctx context.Context, name string, data any, msg EmailMessage, opts ...Option) error {
	r, err := c.templates.Render(name, data)
	if err != nil {
		return err
	}
	msg.Subject = r.Subject
	msg.TextBody = r.Text
	msg.HTMLBody = r.HTML
	return c.SendEmail(ctx, msg, opts...)
}
