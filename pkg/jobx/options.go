package jobx

import (
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
)

// WorkerOptions configures the client
type WorkerOptions struct {
	Queues            []string
	Concurrency       int
	PollInterval      time.Duration
	ShutdownTimeout   time.Duration
	DequeueTimeout    time.Duration
	DefaultRetryDelay time.Duration
	MaxRetries        int
}

func defaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		Queues:            []string{"default"},
		Concurrency:       4,
		PollInterval:      time.Second,
		ShutdownTimeout:   30 * time.Second,
		DequeueTimeout:    5 * time.Second,
		DefaultRetryDelay: 30 * time.Second,
		MaxRetries:        3,
	}
}

type WorkerOption func(*WorkerOptions)

// FromConfig applies every non-zero setting of cfg
func FromConfig(cfg config.JobxConfig) WorkerOption {
	return func(o *WorkerOptions) {
		if len(cfg.Queues) > 0 {
			o.Queues = cfg.Queues
		}
		if cfg.Concurrency > 0 {
			o.Concurrency = cfg.Concurrency
		}
		if cfg.PollInterval > 0 {
			o.PollInterval = cfg.PollInterval
		}
		if cfg.ShutdownTimeout > 0 {
			o.ShutdownTimeout = cfg.ShutdownTimeout
		}
		if cfg.DequeueTimeout > 0 {
			o.DequeueTimeout = cfg.DequeueTimeout
		}
		if cfg.DefaultRetryDelay > 0 {
			o.DefaultRetryDelay = cfg.DefaultRetryDelay
		}
		if cfg.MaxRetries > 0 {
			o.MaxRetries = cfg.MaxRetries
		}
	}
}

func WithQueues(queues ...string) WorkerOption {
	return func(o *WorkerOptions) {
		o.Queues = queues
	}
}

func WithConcurrency(n int) WorkerOption {
	return func(o *WorkerOptions) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		o.PollInterval = d
	}
}

func WithDequeueTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		o.DequeueTimeout = d
	}
}

func WithDefaultRetryDelay(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		o.DefaultRetryDelay = d
	}
}
