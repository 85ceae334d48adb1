// Package asyncx holds the context aware retry and timeout helpers used
// around remote calls.
package asyncx

import (
	"context"
	"time"
)

// RetryWithBackoff calls fn up to attempts times. The pause between two
// attempts starts at initialDelay and doubles each time. A done ctx stops
// the loop with ctx.Err().
func RetryWithBackoff[T any](
	ctx context.Context,
	attempts int,
	initialDelay time.Duration,
	fn func(context.Context) (T, error),
) (T, error) {
	var (
		zero  T
		err   error
		val   T
		delay = initialDelay
	)
	for i := range attempts {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}

		if i < attempts-1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
				delay *= 2
			}
		}
	}
	return zero, err
}

// WithTimeout runs fn under a deadline of d. When fn outlives it the call
// returns context.DeadlineExceeded and fn keeps running on its own.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type res struct {
		v   T
		err error
	}

	ch := make(chan res, 1)
	go func() {
		v, err := fn(ctx)
		ch <- res{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
