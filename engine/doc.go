// Package engine is the request-facing core of taskq: admission, status,
// history and queue-size queries over an injected Work Store.
//
// The engine package sits above job, reconcile, ext and observability and
// below the transports (api, dwp) and the binaries.
//
// # Building an Engine
//
//	store := redisstore.New(rdb)
//	eng, err := engine.New(store, taskq.NewConfig(
//	    taskq.WithPollInterval(2*time.Second),
//	    taskq.WithHistoryLimit(10),
//	),
//	    engine.WithLogger(logger),
//	    engine.WithExtension(myExtension),
//	)
//
// # Submitting and Polling
//
//	h, err := eng.Submit(ctx, engine.SubmitRequest{Operation: "divide", A: &eight, B: &two})
//	snap, err := eng.Status(ctx, h.JobID)
//	hist, err := eng.History(ctx, h.JobID)
//
// Snapshots are reconciled from the latest execution attempt when it agrees
// with the terminal status, falling back to the legacy result fields on the
// record otherwise. Every store call is bounded by Config.StoreTimeout and
// any failure other than not-found is reported as taskq.ErrTransientBackend.
package engine
