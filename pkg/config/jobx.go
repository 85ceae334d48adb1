package config

import "time"

// JobxConfig configures the background job queue.
type JobxConfig struct {
	// Backend is "inline" (mails sent in the request goroutine after commit)
	// or "redis"
	Backend           string        `env:"BACKEND" envDefault:"inline"`
	Concurrency       int           `env:"CONCURRENCY" envDefault:"4"`
	Queues            []string      `env:"QUEUES" envDefault:"mail,default" envSeparator:","`
	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	DequeueTimeout    time.Duration `env:"DEQUEUE_TIMEOUT" envDefault:"5s"`
	DefaultRetryDelay time.Duration `env:"DEFAULT_RETRY_DELAY" envDefault:"30s"`
	MaxRetries        int           `env:"MAX_RETRIES" envDefault:"5"`

	// InProcess makes `serve` run the worker next to the HTTP server
	InProcess bool `env:"IN_PROCESS" envDefault:"false"`
}
