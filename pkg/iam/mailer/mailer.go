// Package mailer turns account workflow events into queued e-mails. Mails
// are scheduled inside the request's unit of work and only reach the queue
// once it committed.
package mailer

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/asyncx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/emailrequest"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
)

const (
	JobType = "mail.send"
	Queue   = "mail"

	enqueueAttempts = 3
	enqueueBackoff  = 100 * time.Millisecond
)

// Template names
const (
	SignupConfirmation = "signup-confirmation"
	Welcome            = "welcome"
	PasswordReset      = "password-reset"
	PasswordChanged    = "password-changed"
	EmailChange        = "email-change"
	EmailChanged       = "email-changed"
	Invitation         = "invitation"
	SignupRequested    = "signup-requested"
)

// Mail is the job payload of one e-mail
type Mail struct {
	Template string         `json:"template"`
	To       string         `json:"to"`
	Language string         `json:"language,omitempty"`
	Data     map[string]any `json:"data,omitempty"`

	// BlockLink lets the recipient stop mails of the same purpose
	BlockLink string `json:"block_link,omitempty"`
}

// Scheduler is what workflows depend on
type Scheduler interface {
	Schedule(ctx context.Context, m Mail) error
	ScheduleThrottled(ctx context.Context, purpose emailrequest.Purpose, m Mail) error
	Link(path string, query url.Values) string
}

type Mailer struct {
	enqueuer  jobx.JobEnqueuer
	blocker   *emailrequest.Blocker
	publicURL string
}

func NewMailer(enqueuer jobx.JobEnqueuer, blocker *emailrequest.Blocker, publicURL string) *Mailer {
	return &Mailer{
		enqueuer:  enqueuer,
		blocker:   blocker,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Schedule queues m after the unit of work in ctx commits. The enqueue is
// retried a few times; a final failure is logged and never undoes the
// committed work.
func (m *Mailer) Schedule(ctx context.Context, mail Mail) error {
	job, err := jobx.NewJob(JobType, Queue, mail)
	if err != nil {
		return err
	}

	store.AfterCommit(ctx, func(ctx context.Context) {
		id, err := asyncx.RetryWithBackoff(ctx, enqueueAttempts, enqueueBackoff, func(ctx context.Context) (string, error) {
			return m.enqueuer.Enqueue(ctx, job)
		})
		log := logx.WithContext(ctx).WithField("template", mail.Template)
		if err != nil {
			log.WithError(err).Error("failed to enqueue mail")
			return
		}
		log.WithField("job_id", id).Debug("mail enqueued")
	})
	return nil
}

// ScheduleThrottled attaches the block link of purpose before scheduling
func (m *Mailer) ScheduleThrottled(ctx context.Context, purpose emailrequest.Purpose, mail Mail) error {
	code, err := m.blocker.Code(purpose, mail.To)
	if err != nil {
		return err
	}
	mail.BlockLink = m.Link("/block-email", url.Values{"code": {code}})
	return m.Schedule(ctx, mail)
}

// Link builds an absolute link into the public URL
func (m *Mailer) Link(path string, query url.Values) string {
	link := m.publicURL + path
	if len(query) > 0 {
		link += "?" + query.Encode()
	}
	return link
}
