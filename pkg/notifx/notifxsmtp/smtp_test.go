package notifxsmtp

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
	mail "github.com/go-mail/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDialer struct {
	sent []*mail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*mail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestSendBuildsAlternativeMessage(t *testing.T) {
	d := &fakeDialer{}
	p := NewSMTPProvider(d)

	err := p.SendEmail(context.Background(), notifx.EmailMessage{
		From:     "noreply@example.com",
		To:       []string{"user@example.com"},
		Subject:  "Confirm",
		TextBody: "plain",
		HTMLBody: "<p>html</p>",
		Headers:  map[string]string{"List-Unsubscribe": "<https://x/block>"},
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	var buf bytes.Buffer
	_, err = d.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Confirm")
	assert.Contains(t, raw, "List-Unsubscribe")
	assert.Contains(t, raw, "multipart/alternative")
}

func TestSendWrapsFailure(t *testing.T) {
	p := NewSMTPProvider(&fakeDialer{err: errors.New("connection refused")})
	err := p.SendEmail(context.Background(), notifx.EmailMessage{To: []string{"a@b.c"}, Subject: "s", TextBody: "t"})
	assert.True(t, errx.HasCode(err, CodeSendFailed))
}
