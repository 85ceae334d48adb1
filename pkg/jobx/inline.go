package jobx

import (
	"context"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/google/uuid"
)

// Inline is a JobEnqueuer running handlers synchronously in the caller's
// goroutine. It serves development setups without a queue backend.
// Failures are logged and never retried.
type Inline struct {
	handlers map[string]HandlerFunc
}

func NewInline() *Inline {
	return &Inline{handlers: make(map[string]HandlerFunc)}
}

func (d *Inline) Register(jobType string, handler HandlerFunc) {
	d.handlers[jobType] = handler
}

func (d *Inline) Enqueue(ctx context.Context, job Job) (string, error) {
	handler, ok := d.handlers[job.Type]
	if !ok {
		return "", ErrNoHandler().WithDetail("type", job.Type)
	}

	now := time.Now().UTC()
	info := &JobInfo{
		ID:        uuid.NewString(),
		Type:      job.Type,
		Queue:     job.Queue,
		Payload:   job.Payload,
		Status:    JobStatusActive,
		Attempts:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := handler(ctx, info); err != nil {
		logx.WithError(err).WithFields(logx.Fields{"job_id": info.ID, "job_type": info.Type}).
			Error("jobx: inline job failed")
	}
	return info.ID, nil
}

// EnqueueDelayed ignores the delay
func (d *Inline) EnqueueDelayed(ctx context.Context, job Job, _ time.Duration) (string, error) {
	return d.Enqueue(ctx, job)
}
