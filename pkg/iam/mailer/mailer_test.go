package mailer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/cryptotoken"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/emailrequest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/envelope"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/mailer"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/mailer/mailertest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store/storetest"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMailer(t *testing.T) (*mailer.Mailer, *mailertest.Recorder, *store.UnitOfWork) {
	t.Helper()
	db := storetest.Open(t)
	clock := &kernel.FixedClock{T: time.Now().UTC()}
	throttle := emailrequest.NewThrottle(db, config.ThrottleConfig{Ceiling: 4, Spacing: time.Hour}, clock, nil)
	blocker := emailrequest.NewBlocker(throttle, envelope.New("0123456789abcdef0123", clock), cryptotoken.NewGate(db, clock), time.Hour)

	rec := &mailertest.Recorder{}
	u, err := store.Begin(context.Background(), db)
	require.NoError(t, err)
	return mailer.NewMailer(rec, blocker, "https://auth.example.com/"), rec, u
}

func TestScheduleWaitsForCommit(t *testing.T) {
	m, rec, u := newMailer(t)
	ctx := store.WithUnitOfWork(context.Background(), u)

	require.NoError(t, m.Schedule(ctx, mailer.Mail{Template: mailer.Welcome, To: "a@example.com"}))
	assert.Empty(t, rec.Mails())

	require.NoError(t, u.Commit(ctx))
	require.Len(t, rec.Mails(), 1)
	assert.Equal(t, "a@example.com", rec.Mails()[0].To)
}

func TestScheduleDroppedOnRollback(t *testing.T) {
	m, rec, u := newMailer(t)
	ctx := store.WithUnitOfWork(context.Background(), u)

	require.NoError(t, m.Schedule(ctx, mailer.Mail{Template: mailer.Welcome, To: "a@example.com"}))
	require.NoError(t, u.Rollback())
	assert.Empty(t, rec.Mails())
}

func TestScheduleThrottledCarriesBlockLink(t *testing.T) {
	m, rec, u := newMailer(t)
	ctx := store.WithUnitOfWork(context.Background(), u)

	require.NoError(t, m.ScheduleThrottled(ctx, emailrequest.PurposePasswordReset, mailer.Mail{Template: mailer.PasswordReset, To: "a@example.com"}))
	require.NoError(t, u.Commit(ctx))

	got := rec.Last(mailer.PasswordReset, "a@example.com")
	require.NotNil(t, got)
	assert.Contains(t, got.BlockLink, "https://auth.example.com/block-email?code=")
}

type sink struct {
	msgs []notifx.EmailMessage
	opts []notifx.SendOptions
	err  error
}

func (s *sink) SendEmail(_ context.Context, msg notifx.EmailMessage, opts ...notifx.Option) error {
	s.msgs = append(s.msgs, msg)
	s.opts = append(s.opts, notifx.ApplySendOptions(opts))
	return s.err
}

func TestSenderRendersQueuedMail(t *testing.T) {
	out := &sink{}
	sender, err := mailer.NewSender(notifx.NewClient(out, "noreply@example.com"), nil)
	require.NoError(t, err)

	job, err := jobx.NewJob(mailer.JobType, mailer.Queue, mailer.Mail{
		Template:  mailer.EmailChange,
		To:        "new@example.com",
		Data:      map[string]any{"Code": "abc123"},
		BlockLink: "https://auth.example.com/block-email?code=x",
	})
	require.NoError(t, err)

	require.NoError(t, sender.Handle(context.Background(), &jobx.JobInfo{ID: "1", Payload: job.Payload}))
	require.Len(t, out.msgs, 1)
	assert.Contains(t, out.msgs[0].TextBody, "abc123")
	assert.Contains(t, out.msgs[0].TextBody, "block-email")
	assert.Equal(t, "<https://auth.example.com/block-email?code=x>", out.msgs[0].Headers["List-Unsubscribe"])
}

func TestSenderNamesConfigSet(t *testing.T) {
	out := &sink{}
	sender, err := mailer.NewSender(notifx.NewClient(out, "noreply@example.com"), nil)
	require.NoError(t, err)

	job, err := jobx.NewJob(mailer.JobType, mailer.Queue, mailer.Mail{Template: mailer.Welcome, To: "a@example.com"})
	require.NoError(t, err)
	info := &jobx.JobInfo{ID: "1", Payload: job.Payload}

	require.NoError(t, sender.Handle(context.Background(), info))
	sender.UseConfigSet("auth-events")
	require.NoError(t, sender.Handle(context.Background(), info))

	require.Len(t, out.opts, 2)
	assert.Empty(t, out.opts[0].ConfigID)
	assert.Equal(t, "auth-events", out.opts[1].ConfigID)
	assert.Equal(t, mailer.Welcome, out.opts[1].Tags["template"])
}

func TestSenderReturnsDeliveryErrorForRetry(t *testing.T) {
	obs := &deliveries{}
	sender, err := mailer.NewSender(notifx.NewClient(&sink{err: errors.New("down")}, "noreply@example.com"), obs)
	require.NoError(t, err)

	job, err := jobx.NewJob(mailer.JobType, mailer.Queue, mailer.Mail{Template: mailer.Welcome, To: "a@example.com"})
	require.NoError(t, err)
	assert.Error(t, sender.Handle(context.Background(), &jobx.JobInfo{ID: "1", Payload: job.Payload}))
	assert.Equal(t, []string{"welcome:failed"}, obs.seen)
}

type deliveries struct{ seen []string }

func (d *deliveries) MailSent(template string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	d.seen = append(d.seen, template+":"+result)
}

type flakyQueue struct {
	mailertest.Recorder
	failures int
}

func (f *flakyQueue) Enqueue(ctx context.Context, job jobx.Job) (string, error) {
	if f.failures > 0 {
		f.failures--
		return "", errors.New("queue unavailable")
	}
	return f.Recorder.Enqueue(ctx, job)
}

func TestScheduleRetriesEnqueue(t *testing.T) {
	db := storetest.Open(t)
	clock := &kernel.FixedClock{T: time.Now().UTC()}
	throttle := emailrequest.NewThrottle(db, config.ThrottleConfig{Ceiling: 4, Spacing: time.Hour}, clock, nil)
	blocker := emailrequest.NewBlocker(throttle, envelope.New("0123456789abcdef0123", clock), cryptotoken.NewGate(db, clock), time.Hour)
	q := &flakyQueue{failures: 2}
	m := mailer.NewMailer(q, blocker, "https://auth.example.com")

	u, err := store.Begin(context.Background(), db)
	require.NoError(t, err)
	ctx := store.WithUnitOfWork(context.Background(), u)
	require.NoError(t, m.Schedule(ctx, mailer.Mail{Template: mailer.Welcome, To: "a@example.com"}))
	require.NoError(t, u.Commit(ctx))

	assert.Len(t, q.Mails(), 1)
}

func TestSenderPrefersLanguageOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, mailer.Welcome+".subject"), []byte("Hello {{.Email}}"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "de"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "de", mailer.Welcome+".txt"), []byte("Dein Konto {{.Email}} ist bereit."), 0o644))

	templates, err := fsxlocal.NewLocalFileSystem(dir)
	require.NoError(t, err)

	out := &sink{}
	sender, err := mailer.NewSender(notifx.NewClient(out, "noreply@example.com"), nil)
	require.NoError(t, err)
	require.NoError(t, sender.LoadOverrides(context.Background(), templates, []string{"en", "de"}))

	for _, lang := range []string{"de", "en", ""} {
		job, err := jobx.NewJob(mailer.JobType, mailer.Queue, mailer.Mail{Template: mailer.Welcome, To: "a@example.com", Language: lang})
		require.NoError(t, err)
		require.NoError(t, sender.Handle(context.Background(), &jobx.JobInfo{ID: lang, Payload: job.Payload}))
	}

	require.Len(t, out.msgs, 3)
	// the german variant keeps the root subject
	assert.Equal(t, "Hello a@example.com", out.msgs[0].Subject)
	assert.Equal(t, "Dein Konto a@example.com ist bereit.", out.msgs[0].TextBody)
	assert.Equal(t, "Hello a@example.com", out.msgs[1].Subject)
	assert.Equal(t, "Your account a@example.com is ready.", out.msgs[1].TextBody)
	assert.Equal(t, out.msgs[1], out.msgs[2])
}

func TestLoadOverridesRejectsBrokenTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, mailer.Invitation+".txt"), []byte("{{.Token"), 0o644))
	templates, err := fsxlocal.NewLocalFileSystem(dir)
	require.NoError(t, err)

	sender, err := mailer.NewSender(notifx.NewClient(&sink{}, "noreply@example.com"), nil)
	require.NoError(t, err)
	err = sender.LoadOverrides(context.Background(), templates, nil)
	assert.True(t, errx.HasCode(err, notifx.CodeTemplateParse))
}
