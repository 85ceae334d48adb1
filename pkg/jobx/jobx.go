// Package jobx runs background jobs: mail delivery leaves the request path
// through here once the request's unit of work has committed.
package jobx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"golang.org/x/sync/errgroup"
)

// HandlerFunc processes a job. A returned error makes the job retry until
// it runs out of attempts.
type HandlerFunc func(ctx context.Context, job *JobInfo) error

// JobEnqueuer hands jobs to a backend
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job Job) (string, error)
	EnqueueDelayed(ctx context.Context, job Job, delay time.Duration) (string, error)
}

type JobStatusReader interface {
	GetJob(ctx context.Context, jobID string) (*JobInfo, error)
}

// JobProcessor is the backend side of the worker loop
type JobProcessor interface {
	Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*JobInfo, error)
	Complete(ctx context.Context, jobID string, result []byte) error
	Fail(ctx context.Context, jobID string, errMsg string) (retry bool, err error)
	Retry(ctx context.Context, jobID string, delay time.Duration) error
	PromoteScheduled(ctx context.Context, queues []string) error
}

// Queue is a complete backend
type Queue interface {
	JobEnqueuer
	JobStatusReader
	JobProcessor
}

// Client enqueues jobs and runs the workers processing them
type Client struct {
	queue    Queue
	opts     WorkerOptions
	handlers map[string]HandlerFunc
	mu       sync.RWMutex
	running  bool
}

func NewClient(queue Queue, options ...WorkerOption) *Client {
	opts := defaultWorkerOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Client{
		queue:    queue,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register sets the handler of jobType
func (c *Client) Register(jobType string, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[jobType] = handler
}

func (c *Client) Enqueue(ctx context.Context, job Job) (string, error) {
	if err := c.prepare(&job); err != nil {
		return "", err
	}
	return c.queue.Enqueue(ctx, job)
}

func (c *Client) EnqueueDelayed(ctx context.Context, job Job, delay time.Duration) (string, error) {
	if err := c.prepare(&job); err != nil {
		return "", err
	}
	return c.queue.EnqueueDelayed(ctx, job, delay)
}

func (c *Client) GetJob(ctx context.Context, jobID string) (*JobInfo, error) {
	return c.queue.GetJob(ctx, jobID)
}

func (c *Client) prepare(job *Job) error {
	if job.Type == "" {
		return ErrInvalidJob().WithDetail("reason", "missing type")
	}
	if job.Queue == "" {
		job.Queue = "default"
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = c.opts.MaxRetries
	}
	return nil
}

// Start processes jobs until ctx is cancelled, then waits up to the
// shutdown timeout for running jobs.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning()
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	logx.WithFields(logx.Fields{"workers": c.opts.Concurrency, "queues": c.opts.Queues}).Info("jobx: workers started")

	var g errgroup.Group
	g.Go(func() error {
		c.promote(ctx)
		return nil
	})
	for id := range c.opts.Concurrency {
		g.Go(func() error {
			c.work(ctx, id)
			return nil
		})
	}

	<-ctx.Done()
	stopped := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		logx.Info("jobx: workers stopped")
	case <-time.After(c.opts.ShutdownTimeout):
		logx.Warn("jobx: shutdown timed out with jobs still running")
	}
	return nil
}

// promote moves due delayed jobs onto their queues every poll interval
func (c *Client) promote(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := c.queue.PromoteScheduled(ctx, c.opts.Queues)
		if err != nil && ctx.Err() == nil {
			logx.WithError(err).Warn("jobx: promoting delayed jobs failed")
		}
	}
}

func (c *Client) work(ctx context.Context, id int) {
	for ctx.Err() == nil {
		job, err := c.queue.Dequeue(ctx, c.opts.Queues, c.opts.DequeueTimeout)
		switch {
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			logx.WithError(err).WithField("worker", id).Warn("jobx: dequeue failed")
			select {
			case <-ctx.Done():
			case <-time.After(c.opts.PollInterval):
			}
		case job != nil:
			c.Process(ctx, job)
		}
	}
}

// Process runs the handler of one dequeued job and records the outcome
func (c *Client) Process(ctx context.Context, job *JobInfo) {
	log := logx.WithFields(logx.Fields{"job_id": job.ID, "job_type": job.Type})

	err := c.run(ctx, job)
	if err == nil {
		if err := c.queue.Complete(ctx, job.ID, nil); err != nil {
			log.WithError(err).Error("jobx: failed to complete job")
		}
		return
	}

	log.WithError(err).Warn("jobx: job failed")
	retry, failErr := c.queue.Fail(ctx, job.ID, err.Error())
	if failErr != nil {
		log.WithError(failErr).Error("jobx: failed to mark job as failed")
		return
	}
	if retry {
		if err := c.queue.Retry(ctx, job.ID, c.opts.DefaultRetryDelay); err != nil {
			log.WithError(err).Error("jobx: failed to retry job")
		}
	}
}

func (c *Client) run(ctx context.Context, job *JobInfo) (err error) {
	c.mu.RLock()
	handler, ok := c.handlers[job.Type]
	c.mu.RUnlock()
	if !ok {
		return ErrNoHandler().WithDetail("type", job.Type)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("jobx: handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}
