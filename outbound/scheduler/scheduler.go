// Package scheduler is a redis-backed one-shot delayed-job coordinator.
// Jobs live in a sorted set (score = fire time in unix millis, member = job
// key) with payload envelopes in a companion hash. Scheduling under an
// existing key replaces the pending job; Cancel removes it. The worker claims
// a due job by removing its member from the set, so exactly one worker runs
// each firing even with concurrent pollers.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ticket-marketplace/common"
	"ticket-marketplace/common/constant"

	"github.com/redis/go-redis/v9"
	"log/slog"
)

const (
	DefaultMaxAttempts = 5
	DefaultBackoffBase = 1 * time.Second
)

type Job struct {
	Name        string
	Key         string
	Payload     json.RawMessage
	Delay       time.Duration
	MaxAttempts int
	BackoffBase time.Duration
}

type envelope struct {
	Name        string          `json:"name"`
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	BackoffMs   int64           `json:"backoff_ms"`
}

func zsetKey(queue string) string  { return fmt.Sprintf("jobs:%s", queue) }
func vaultKey(queue string) string { return fmt.Sprintf("jobs:%s:payloads", queue) }

type Scheduler struct {
	Cache   *redis.Client
	TimeNow func() time.Time
}

func (s Scheduler) now() time.Time {
	if s.TimeNow != nil {
		return s.TimeNow()
	}
	return time.Now()
}

func (s Scheduler) Schedule(ctx context.Context, queue string, job Job) error {
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = DefaultMaxAttempts
	}
	if job.BackoffBase <= 0 {
		job.BackoffBase = DefaultBackoffBase
	}

	env := envelope{
		Name:        job.Name,
		Key:         job.Key,
		Payload:     job.Payload,
		MaxAttempts: job.MaxAttempts,
		BackoffMs:   job.BackoffBase.Milliseconds(),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal job envelope: %w", err)
	}

	fireAt := s.now().Add(job.Delay)

	pipe := s.Cache.TxPipeline()
	pipe.ZAdd(ctx, zsetKey(queue), redis.Z{Score: float64(fireAt.UnixMilli()), Member: job.Key})
	pipe.HSet(ctx, vaultKey(queue), job.Key, string(data))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("schedule job %s:%s: %w", queue, job.Key, err)
	}

	return nil
}

// Cancel is best effort: a job that already fired is simply gone, and the
// handler's own idempotence check covers the race.
func (s Scheduler) Cancel(ctx context.Context, queue, key string) error {
	pipe := s.Cache.TxPipeline()
	pipe.ZRem(ctx, zsetKey(queue), key)
	pipe.HDel(ctx, vaultKey(queue), key)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cancel job %s:%s: %w", queue, key, err)
	}

	return nil
}

type HandlerFunc func(ctx context.Context, payload []byte) error

type Worker struct {
	Cache        *redis.Client
	Queue        string
	Handlers     map[string]HandlerFunc
	PollInterval time.Duration
	BatchSize    int64
	TimeNow      func() time.Time
}

func (w Worker) now() time.Time {
	if w.TimeNow != nil {
		return w.TimeNow()
	}
	return time.Now()
}

func (w Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "job worker started", slog.String("queue", w.Queue))

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "job worker stopped", slog.String("queue", w.Queue))
			return
		case <-ticker.C:
			w.drainDue(ctx)
		}
	}
}

func (w Worker) drainDue(ctx context.Context) {
	batch := w.BatchSize
	if batch <= 0 {
		batch = 100
	}

	due, err := w.Cache.ZRangeByScore(ctx, zsetKey(w.Queue), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(w.now().UnixMilli(), 10),
		Count: batch,
	}).Result()
	if err != nil {
		slog.ErrorContext(ctx, "failed to poll due jobs", slog.String("queue", w.Queue), slog.Any(constant.LogFieldErr, err))
		return
	}

	for _, key := range due {
		if ctx.Err() != nil {
			return
		}
		w.fire(ctx, key)
	}
}

func (w Worker) fire(ctx context.Context, key string) {
	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	claimed, err := w.Cache.ZRem(ctx, zsetKey(w.Queue), key).Result()
	if err != nil {
		slog.ErrorContext(ctx, "failed to claim job", traceIdAttr, slog.String("key", key), slog.Any(constant.LogFieldErr, err))
		return
	}

	// Another worker (or a cancel) got there first.
	if claimed == 0 {
		return
	}

	data, err := w.Cache.HGet(ctx, vaultKey(w.Queue), key).Result()
	if err == redis.Nil {
		slog.WarnContext(ctx, "claimed job has no payload", traceIdAttr, slog.String("key", key))
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to load job payload", traceIdAttr, slog.String("key", key), slog.Any(constant.LogFieldErr, err))
		return
	}

	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		slog.WarnContext(ctx, "job envelope unmarshal error", traceIdAttr, slog.String("key", key), slog.Any(constant.LogFieldErr, err))
		w.Cache.HDel(ctx, vaultKey(w.Queue), key)
		return
	}

	handler, ok := w.Handlers[env.Name]
	if !ok {
		slog.WarnContext(ctx, "no handler for job", traceIdAttr, slog.String("job", env.Name), slog.String("key", key))
		w.Cache.HDel(ctx, vaultKey(w.Queue), key)
		return
	}

	if handlerErr := handler(ctx, env.Payload); handlerErr != nil {
		w.retry(ctx, env, handlerErr)
		return
	}

	if err := w.Cache.HDel(ctx, vaultKey(w.Queue), key).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to delete job payload", traceIdAttr, slog.String("key", key), slog.Any(constant.LogFieldErr, err))
	}

	slog.DebugContext(ctx, "job completed", traceIdAttr, slog.String("job", env.Name), slog.String("key", env.Key))
}

func (w Worker) retry(ctx context.Context, env envelope, handlerErr error) {
	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	env.Attempts++
	if env.Attempts >= env.MaxAttempts {
		slog.ErrorContext(ctx, "job dropped after max attempts", traceIdAttr,
			slog.String("job", env.Name),
			slog.String("key", env.Key),
			slog.Int("attempts", env.Attempts),
			slog.Any(constant.LogFieldErr, handlerErr),
		)
		w.Cache.HDel(ctx, vaultKey(w.Queue), env.Key)
		return
	}

	backoff := time.Duration(env.BackoffMs) * time.Millisecond << (env.Attempts - 1)

	data, err := json.Marshal(env)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal retry envelope", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return
	}

	pipe := w.Cache.TxPipeline()
	pipe.ZAdd(ctx, zsetKey(w.Queue), redis.Z{Score: float64(w.now().Add(backoff).UnixMilli()), Member: env.Key})
	pipe.HSet(ctx, vaultKey(w.Queue), env.Key, string(data))

	if _, err := pipe.Exec(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to reschedule job", traceIdAttr, slog.String("key", env.Key), slog.Any(constant.LogFieldErr, err))
		return
	}

	slog.WarnContext(ctx, "job rescheduled", traceIdAttr,
		slog.String("job", env.Name),
		slog.String("key", env.Key),
		slog.Int("attempts", env.Attempts),
		slog.Duration("backoff", backoff),
		slog.Any(constant.LogFieldErr, handlerErr),
	)
}
