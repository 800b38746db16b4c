package redis

import (
	"context"
	"slices"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/id"
	"github.com/xraph/taskq/job"
)

// LatestAttempt reads the newest entry of the job's attempt stream.
func (s *Store) LatestAttempt(ctx context.Context, jobID id.JobID) (*job.Attempt, error) {
	if !s.attemptLog {
		return nil, taskq.ErrAttemptsUnavailable
	}

	msgs, err := s.client.XRevRangeN(ctx, attemptsKey(jobID.String()), "+", "-", 1).Result()
	if err != nil {
		return nil, wrap("latest attempt", err)
	}
	if len(msgs) == 0 {
		return nil, nil //nolint:nilnil // no attempt recorded yet
	}
	return messageToAttempt(msgs[0]), nil
}

// ListAttempts returns up to limit of the newest attempts in creation
// order. A limit <= 0 reads the whole stream.
func (s *Store) ListAttempts(ctx context.Context, jobID id.JobID, limit int) ([]*job.Attempt, error) {
	if !s.attemptLog {
		return nil, taskq.ErrAttemptsUnavailable
	}

	key := attemptsKey(jobID.String())

	var (
		msgs []goredis.XMessage
		err  error
	)
	if limit > 0 {
		msgs, err = s.client.XRevRangeN(ctx, key, "+", "-", int64(limit)).Result()
		slices.Reverse(msgs)
	} else {
		msgs, err = s.client.XRange(ctx, key, "-", "+").Result()
	}
	if err != nil {
		return nil, wrap("list attempts", err)
	}

	out := make([]*job.Attempt, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, messageToAttempt(msg))
	}
	return out, nil
}

func (s *Store) xaddArgs(jID string, a *job.Attempt) *goredis.XAddArgs {
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return &goredis.XAddArgs{
		Stream: attemptsKey(jID),
		MaxLen: s.retention,
		Values: map[string]interface{}{
			"created_at":     created.UTC().Format(time.RFC3339Nano),
			"outcome":        string(a.Outcome),
			"return_value":   string(a.ReturnValue),
			"exception_text": a.ExceptionText,
		},
	}
}

func messageToAttempt(msg goredis.XMessage) *job.Attempt {
	str := func(k string) string {
		v, _ := msg.Values[k].(string) //nolint:errcheck // stream values are always strings
		return v
	}

	created, _ := time.Parse(time.RFC3339Nano, str("created_at")) //nolint:errcheck // best-effort parse from trusted Redis data

	a := &job.Attempt{
		ID:            msg.ID,
		CreatedAt:     created,
		Outcome:       job.Outcome(str("outcome")),
		ExceptionText: str("exception_text"),
	}
	if v := str("return_value"); v != "" {
		a.ReturnValue = []byte(v)
	}
	return a
}
