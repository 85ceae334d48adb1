// Package mailertest captures queued mails in tests.
package mailertest

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/iam/mailer"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/google/uuid"
)

// Recorder is a jobx.JobEnqueuer keeping every mail it receives
type Recorder struct {
	mu    sync.Mutex
	mails []mailer.Mail
}

func (r *Recorder) Enqueue(_ context.Context, job jobx.Job) (string, error) {
	info := jobx.JobInfo{Payload: job.Payload}
	var m mailer.Mail
	if err := info.Decode(&m); err != nil {
		return "", err
	}
	r.mu.Lock()
	r.mails = append(r.mails, m)
	r.mu.Unlock()
	return uuid.NewString(), nil
}

func (r *Recorder) EnqueueDelayed(ctx context.Context, job jobx.Job, _ time.Duration) (string, error) {
	return r.Enqueue(ctx, job)
}

// Mails returns a copy of the recorded mails
func (r *Recorder) Mails() []mailer.Mail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mailer.Mail(nil), r.mails...)
}

// Last returns the last mail sent to to with template, or nil
func (r *Recorder) Last(template, to string) *mailer.Mail {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.mails) - 1; i >= 0; i-- {
		if r.mails[i].Template == template && r.mails[i].To == to {
			m := r.mails[i]
			return &m
		}
	}
	return nil
}

// Reset forgets recorded mails
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.mails = nil
	r.mu.Unlock()
}
