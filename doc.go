// Package taskq provides a job-submission and lifecycle-tracking front end
// for a durable work queue. Clients submit arithmetic jobs, receive a
// tracking handle, and poll for status, result and execution history until
// the job reaches a terminal state.
//
// taskq is a thin, stateless layer. The Work Store (see job.Store) owns
// persistence and the Executor (see package worker) owns execution; the
// core only admits jobs and reconciles what the store reports into
// consistent snapshots.
//
// # Quick Start
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	defer client.Close()
//
//	s := redisstore.New(client)
//	eng, err := engine.New(s, taskq.NewConfig(taskq.WithPollInterval(2*time.Second)))
//	if err != nil {
//		return err
//	}
//
//	h, err := eng.Submit(ctx, engine.SubmitRequest{Operation: "divide", A: ptr(8), B: ptr(2)})
//	snap, err := eng.Status(ctx, h.JobID)
//
// # Lifecycle
//
//	queued → started → finished | failed | stopped
//
// A job never moves backwards. Once its retention expires the Work Store
// purges it and lookups report ErrJobNotFound.
package taskq
