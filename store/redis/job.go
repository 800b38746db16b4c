package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/id"
	"github.com/xraph/taskq/job"
)

// maxWatchRetries bounds optimistic-transaction retries.
const maxWatchRetries = 5

// EnqueueJob stores the job as a Hash and adds it to its queue's Sorted
// Set in one MULTI/EXEC. WATCH on the job key makes the duplicate check
// part of the same transaction.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	q := j.Queue
	if q == "" {
		q = s.queue
	}
	fields := jobToMap(j)
	fields["queue"] = q

	txf := func(tx *goredis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return taskq.ErrJobAlreadyExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			pipe.ZAdd(ctx, queueKey(q), goredis.Z{Score: float64(j.EnqueuedAt.UnixMilli()), Member: jID})
			return nil
		})
		return err
	}

	for range maxWatchRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err == nil || errors.Is(err, taskq.ErrJobAlreadyExists) {
			return err
		}
		return wrap("enqueue job", err)
	}
	return wrap("enqueue job", goredis.TxFailedErr)
}

// GetJob retrieves a job by ID together with its remaining retention.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	key := jobKey(jobID.String())

	pipe := s.client.Pipeline()
	fields := pipe.HGetAll(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, wrap("get job", err)
	}

	vals := fields.Val()
	if len(vals) == 0 {
		return nil, taskq.ErrJobNotFound
	}
	j, err := mapToJob(vals)
	if err != nil {
		return nil, err
	}

	// PTTL reports -1 (no expiry) and -2 (missing) as raw durations.
	if d := ttl.Val(); d > 0 {
		j.ExpiresIn = &d
	}
	return j, nil
}

// CountPending returns the cardinality of the configured queue.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, queueKey(s.queue)).Result()
	if err != nil {
		return 0, wrap("count pending", err)
	}
	return n, nil
}

// DequeueJob pops the oldest job from the configured queue and marks it
// started. ZPOPMIN hands each id to exactly one caller.
func (s *Store) DequeueJob(ctx context.Context, workerID string) (*job.Job, error) {
	qk := queueKey(s.queue)

	for {
		members, err := s.client.ZPopMin(ctx, qk, 1).Result()
		if err != nil {
			return nil, wrap("dequeue zpopmin", err)
		}
		if len(members) == 0 {
			return nil, nil //nolint:nilnil // empty queue is not an error
		}

		jID, ok := members[0].Member.(string)
		if !ok {
			continue
		}
		key := jobKey(jID)

		status, err := s.client.HGet(ctx, key, "status").Result()
		if errors.Is(err, goredis.Nil) {
			s.logger.Warn("dequeued id without record", "job_id", jID)
			continue
		}
		if err != nil {
			return nil, wrap("dequeue get status", err)
		}
		if !job.CanTransition(job.State(status), job.StateStarted) {
			s.logger.Warn("dequeued job not queued", "job_id", jID, "status", status)
			continue
		}

		now := time.Now().UTC()
		pipe := s.client.TxPipeline()
		pipe.HSet(ctx, key,
			"status", string(job.StateStarted),
			"started_at", now.Format(time.RFC3339Nano),
			"worker_id", workerID,
		)
		all := pipe.HGetAll(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, wrap("dequeue update", err)
		}
		return mapToJob(all.Val())
	}
}

// RecordAttempt appends a non-final attempt to the job's stream.
func (s *Store) RecordAttempt(ctx context.Context, jobID id.JobID, a *job.Attempt) error {
	jID := jobID.String()

	status, err := s.client.HGet(ctx, jobKey(jID), "status").Result()
	if errors.Is(err, goredis.Nil) {
		return taskq.ErrJobNotFound
	}
	if err != nil {
		return wrap("record attempt get status", err)
	}
	if job.State(status) != job.StateStarted {
		return fmt.Errorf("%w: record attempt on %s job", taskq.ErrInvalidState, status)
	}
	if !s.attemptLog {
		return nil
	}

	if err := s.client.XAdd(ctx, s.xaddArgs(jID, a)).Err(); err != nil {
		return wrap("record attempt", err)
	}
	return nil
}

// FinishJob writes the terminal state, legacy outcome fields and final
// attempt atomically, guarded by WATCH on the job key.
func (s *Store) FinishJob(ctx context.Context, j *job.Job, final *job.Attempt, ttl time.Duration) error {
	jID := j.ID.String()
	key := jobKey(jID)
	akey := attemptsKey(jID)

	ended := time.Now().UTC()
	if j.EndedAt != nil {
		ended = j.EndedAt.UTC()
	}

	txf := func(tx *goredis.Tx) error {
		status, err := tx.HGet(ctx, key, "status").Result()
		if errors.Is(err, goredis.Nil) {
			return taskq.ErrJobNotFound
		}
		if err != nil {
			return err
		}
		if !job.CanTransition(job.State(status), j.Status) {
			return fmt.Errorf("%w: %s → %s", taskq.ErrInvalidState, status, j.Status)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"status", string(j.Status),
				"ended_at", ended.Format(time.RFC3339Nano),
				"result", string(j.Result),
				"exc_info", j.ExcInfo,
			)
			if final != nil && s.attemptLog {
				pipe.XAdd(ctx, s.xaddArgs(jID, final))
			}
			if ttl > 0 {
				pipe.PExpire(ctx, key, ttl)
				pipe.PExpire(ctx, akey, ttl)
			} else {
				pipe.Persist(ctx, key)
				pipe.Persist(ctx, akey)
			}
			return nil
		})
		return err
	}

	for range maxWatchRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err == nil || errors.Is(err, taskq.ErrJobNotFound) || errors.Is(err, taskq.ErrInvalidState) {
			return err
		}
		return wrap("finish job", err)
	}
	return wrap("finish job", goredis.TxFailedErr)
}

// ── helpers ──

func wrap(op string, err error) error {
	return fmt.Errorf("taskq/redis: %s: %w", op, err)
}

func jobToMap(j *job.Job) map[string]interface{} {
	m := map[string]interface{}{
		"id":          j.ID.String(),
		"operation":   string(j.Operation),
		"a":           strconv.FormatInt(j.Args.A, 10),
		"status":      string(j.Status),
		"queue":       j.Queue,
		"worker_id":   j.WorkerID,
		"enqueued_at": j.EnqueuedAt.Format(time.RFC3339Nano),
		"result":      string(j.Result),
		"exc_info":    j.ExcInfo,
	}
	if j.Args.B != nil {
		m["b"] = strconv.FormatInt(*j.Args.B, 10)
	}
	if j.StartedAt != nil {
		m["started_at"] = j.StartedAt.Format(time.RFC3339Nano)
	}
	if j.EndedAt != nil {
		m["ended_at"] = j.EndedAt.Format(time.RFC3339Nano)
	}
	return m
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("taskq/redis: parse job id: %w", err)
	}

	a, _ := strconv.ParseInt(m["a"], 10, 64)                          //nolint:errcheck // best-effort parse from trusted Redis data
	enqueuedAt, _ := time.Parse(time.RFC3339Nano, m["enqueued_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		ID:         jID,
		Operation:  job.Operation(m["operation"]),
		Args:       job.Args{A: a},
		Status:     job.State(m["status"]),
		Queue:      m["queue"],
		WorkerID:   m["worker_id"],
		EnqueuedAt: enqueuedAt,
		ExcInfo:    m["exc_info"],
	}

	if v, ok := m["b"]; ok && v != "" {
		b, _ := strconv.ParseInt(v, 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data
		j.Args.B = &b
	}
	if v := m["result"]; v != "" {
		j.Result = []byte(v)
	}
	if v := m["started_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.StartedAt = &t
	}
	if v := m["ended_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.EndedAt = &t
	}

	return j, nil
}
