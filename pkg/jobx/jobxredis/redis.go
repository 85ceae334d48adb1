// Package jobxredis stores jobx queues in Redis: one list per ready queue,
// one sorted set per queue for delayed and retried jobs.
package jobxredis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue implements jobx.Queue
type RedisQueue struct {
	rdb    *redis.Client
	clock  kernel.Clock
	prefix string
}

// NewRedisClient connects to the configured server
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisQueue(rdb *redis.Client, clock kernel.Clock) *RedisQueue {
	if clock == nil {
		clock = kernel.SystemClock
	}
	return &RedisQueue{rdb: rdb, clock: clock, prefix: "gatekeeper:jobx"}
}

func (q *RedisQueue) queueKey(name string) string     { return q.prefix + ":queue:" + name }
func (q *RedisQueue) scheduledKey(name string) string { return q.prefix + ":scheduled:" + name }
func (q *RedisQueue) jobKey(id string) string         { return q.prefix + ":job:" + id }

func (q *RedisQueue) newInfo(job jobx.Job) *jobx.JobInfo {
	now := q.clock.Now()
	return &jobx.JobInfo{
		ID:         uuid.NewString(),
		Type:       job.Type,
		Queue:      job.Queue,
		Payload:    job.Payload,
		Status:     jobx.JobStatusPending,
		MaxRetries: job.MaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job jobx.Job) (string, error) {
	info := q.newInfo(job)
	data, err := json.Marshal(info)
	if err != nil {
		return "", errCorrupt(info.ID, err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, q.jobKey(info.ID), data, 0)
	pipe.LPush(ctx, q.queueKey(job.Queue), info.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", errBackend("enqueue", err).WithDetail("queue", job.Queue)
	}
	return info.ID, nil
}

func (q *RedisQueue) EnqueueDelayed(ctx context.Context, job jobx.Job, delay time.Duration) (string, error) {
	info := q.newInfo(job)
	data, err := json.Marshal(info)
	if err != nil {
		return "", errCorrupt(info.ID, err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, q.jobKey(info.ID), data, 0)
	pipe.ZAdd(ctx, q.scheduledKey(job.Queue), redis.Z{Score: q.score(delay), Member: info.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", errBackend("enqueue_delayed", err).WithDetail("queue", job.Queue)
	}
	return info.ID, nil
}

func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*jobx.JobInfo, error) {
	data, err := q.rdb.Get(ctx, q.jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errNotFound(jobID)
		}
		return nil, errBackend("get", err).WithDetail("job_id", jobID)
	}

	var info jobx.JobInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, errCorrupt(jobID, err)
	}
	return &info, nil
}

// Dequeue blocks up to timeout for a job of one of queues. It answers nil
// without error when nothing arrived.
func (q *RedisQueue) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*jobx.JobInfo, error) {
	keys := make([]string, len(queues))
	for i, name := range queues {
		keys[i] = q.queueKey(name)
	}

	result, err := q.rdb.BRPop(ctx, timeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, errBackend("dequeue", err)
	}

	info, err := q.GetJob(ctx, result[1])
	if err != nil {
		return nil, err
	}
	info.Status = jobx.JobStatusActive
	info.Attempts++
	if err := q.save(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}

func (q *RedisQueue) Complete(ctx context.Context, jobID string, result []byte) error {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	info.Status = jobx.JobStatusCompleted
	info.Result = result
	return q.save(ctx, info)
}

// Fail records errMsg and reports whether attempts remain
func (q *RedisQueue) Fail(ctx context.Context, jobID string, errMsg string) (bool, error) {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}

	retry := info.Attempts < info.MaxRetries
	info.Status = jobx.JobStatusFailed
	if retry {
		info.Status = jobx.JobStatusRetrying
	}
	info.Error = errMsg
	if err := q.save(ctx, info); err != nil {
		return false, err
	}
	return retry, nil
}

func (q *RedisQueue) Retry(ctx context.Context, jobID string, delay time.Duration) error {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if err := q.rdb.ZAdd(ctx, q.scheduledKey(info.Queue), redis.Z{Score: q.score(delay), Member: jobID}).Err(); err != nil {
		return errBackend("retry", err).WithDetail("job_id", jobID)
	}
	return nil
}

var promoteScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ids) do
    redis.call('LPUSH', KEYS[2], id)
end
if #ids > 0 then
    redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
end
return #ids
`)

// PromoteScheduled moves due jobs to their ready queue atomically
func (q *RedisQueue) PromoteScheduled(ctx context.Context, queues []string) error {
	now := strconv.FormatInt(q.clock.Now().Unix(), 10)
	for _, name := range queues {
		err := promoteScript.Run(ctx, q.rdb, []string{q.scheduledKey(name), q.queueKey(name)}, now).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return errBackend("promote", err).WithDetail("queue", name)
		}
	}
	return nil
}

func (q *RedisQueue) save(ctx context.Context, info *jobx.JobInfo) error {
	info.UpdatedAt = q.clock.Now()
	data, err := json.Marshal(info)
	if err != nil {
		return errCorrupt(info.ID, err)
	}
	if err := q.rdb.Set(ctx, q.jobKey(info.ID), data, 0).Err(); err != nil {
		return errBackend("save", err).WithDetail("job_id", info.ID)
	}
	return nil
}

func (q *RedisQueue) score(delay time.Duration) float64 {
	return float64(q.clock.Now().Add(delay).Unix())
}
