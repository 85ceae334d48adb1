package jobx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue records the outcome calls of Process
type fakeQueue struct {
	enqueued  []Job
	completed []string
	failed    []string
	retried   []string
	retry     bool
}

func (q *fakeQueue) Enqueue(_ context.Context, job Job) (string, error) {
	q.enqueued = append(q.enqueued, job)
	return "job-1", nil
}

func (q *fakeQueue) EnqueueDelayed(ctx context.Context, job Job, _ time.Duration) (string, error) {
	return q.Enqueue(ctx, job)
}

func (q *fakeQueue) GetJob(context.Context, string) (*JobInfo, error) { return nil, ErrJobNotFound() }

func (q *fakeQueue) Dequeue(_ context.Context, _ []string, timeout time.Duration) (*JobInfo, error) {
	time.Sleep(timeout)
	return nil, nil
}

func (q *fakeQueue) Complete(_ context.Context, id string, _ []byte) error {
	q.completed = append(q.completed, id)
	return nil
}

func (q *fakeQueue) Fail(_ context.Context, id string, _ string) (bool, error) {
	q.failed = append(q.failed, id)
	return q.retry, nil
}

func (q *fakeQueue) Retry(_ context.Context, id string, _ time.Duration) error {
	q.retried = append(q.retried, id)
	return nil
}

func (q *fakeQueue) PromoteScheduled(context.Context, []string) error { return nil }

func TestEnqueueFillsDefaults(t *testing.T) {
	q := &fakeQueue{}
	c := NewClient(q, func(o *WorkerOptions) { o.MaxRetries = 7 })

	_, err := c.Enqueue(context.Background(), Job{Type: "mail.send"})
	require.NoError(t, err)
	require.Len(t, q.enqueued, 1)
	assert.Equal(t, "default", q.enqueued[0].Queue)
	assert.Equal(t, 7, q.enqueued[0].MaxRetries)

	_, err = c.Enqueue(context.Background(), Job{})
	assert.ErrorIs(t, err, ErrInvalidJob())
}

func TestProcessOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("success completes", func(t *testing.T) {
		q := &fakeQueue{}
		c := NewClient(q)
		c.Register("ok", func(context.Context, *JobInfo) error { return nil })

		c.Process(ctx, &JobInfo{ID: "a", Type: "ok"})
		assert.Equal(t, []string{"a"}, q.completed)
		assert.Empty(t, q.failed)
	})

	t.Run("failure retries while allowed", func(t *testing.T) {
		q := &fakeQueue{retry: true}
		c := NewClient(q)
		c.Register("bad", func(context.Context, *JobInfo) error { return errors.New("boom") })

		c.Process(ctx, &JobInfo{ID: "b", Type: "bad"})
		assert.Equal(t, []string{"b"}, q.failed)
		assert.Equal(t, []string{"b"}, q.retried)
	})

	t.Run("panic counts as failure", func(t *testing.T) {
		q := &fakeQueue{}
		c := NewClient(q)
		c.Register("panics", func(context.Context, *JobInfo) error { panic("nope") })

		c.Process(ctx, &JobInfo{ID: "c", Type: "panics"})
		assert.Equal(t, []string{"c"}, q.failed)
		assert.Empty(t, q.retried)
	})

	t.Run("unknown type fails", func(t *testing.T) {
		q := &fakeQueue{}
		NewClient(q).Process(ctx, &JobInfo{ID: "d", Type: "missing"})
		assert.Equal(t, []string{"d"}, q.failed)
	})
}

func TestStartRejectsSecondRun(t *testing.T) {
	c := NewClient(&fakeQueue{}, WithPollInterval(10*time.Millisecond), WithDequeueTimeout(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.running
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.Start(ctx), ErrAlreadyRunning())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not stop")
	}
}

func TestInlineRunsHandlerSynchronously(t *testing.T) {
	d := NewInline()
	var got struct{ To string }
	d.Register("mail.send", func(_ context.Context, job *JobInfo) error {
		return job.Decode(&got)
	})

	job, err := NewJob("mail.send", "mail", map[string]string{"To": "ann@example.com"})
	require.NoError(t, err)
	id, err := d.Enqueue(context.Background(), job)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, "ann@example.com", got.To)

	// handler errors are logged, not returned
	d.Register("fails", func(context.Context, *JobInfo) error { return errors.New("smtp down") })
	_, err = d.EnqueueDelayed(context.Background(), Job{Type: "fails"}, time.Hour)
	assert.NoError(t, err)

	_, err = d.Enqueue(context.Background(), Job{Type: "unknown"})
	assert.ErrorIs(t, err, ErrNoHandler())
}
