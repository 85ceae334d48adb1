package jobxredis

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T) (*RedisQueue, *kernel.FixedClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := &kernel.FixedClock{T: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewRedisQueue(rdb, clock), clock
}

func TestEnqueueDequeueComplete(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)

	job, err := jobx.NewJob("mail.send", "mail", map[string]string{"to": "a@example.com"})
	require.NoError(t, err)
	job.MaxRetries = 2

	id, err := q.Enqueue(ctx, job)
	require.NoError(t, err)

	got, err := q.Dequeue(ctx, []string{"mail"}, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, jobx.JobStatusActive, got.Status)
	assert.Equal(t, 1, got.Attempts)

	var payload map[string]string
	require.NoError(t, got.Decode(&payload))
	assert.Equal(t, "a@example.com", payload["to"])

	require.NoError(t, q.Complete(ctx, id, nil))
	stored, err := q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, jobx.JobStatusCompleted, stored.Status)
}

func TestFailRetriesUntilExhausted(t *testing.T) {
	ctx := context.Background()
	q, clock := newQueue(t)

	id, err := q.Enqueue(ctx, jobx.Job{Type: "mail.send", Queue: "mail", MaxRetries: 2})
	require.NoError(t, err)

	_, err = q.Dequeue(ctx, []string{"mail"}, 100*time.Millisecond)
	require.NoError(t, err)
	retry, err := q.Fail(ctx, id, "smtp down")
	require.NoError(t, err)
	assert.True(t, retry)
	require.NoError(t, q.Retry(ctx, id, time.Minute))

	// not due yet
	require.NoError(t, q.PromoteScheduled(ctx, []string{"mail"}))
	none, err := q.Dequeue(ctx, []string{"mail"}, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, none)

	clock.Advance(2 * time.Minute)
	require.NoError(t, q.PromoteScheduled(ctx, []string{"mail"}))
	again, err := q.Dequeue(ctx, []string{"mail"}, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, 2, again.Attempts)

	retry, err = q.Fail(ctx, id, "smtp down")
	require.NoError(t, err)
	assert.False(t, retry)

	stored, err := q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, jobx.JobStatusFailed, stored.Status)
	assert.Equal(t, "smtp down", stored.Error)
}

func TestGetJobUnknown(t *testing.T) {
	q, _ := newQueue(t)
	_, err := q.GetJob(context.Background(), "nope")
	assert.True(t, errx.HasCode(err, CodeNotFound))
}
