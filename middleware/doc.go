// Package middleware wraps each execution attempt the worker runs.
//
// The executor composes one chain per pool and calls it once per attempt,
// with the attempt number available through [AttemptFrom]. The first
// middleware passed to [Chain] runs outermost:
//
//	chain := middleware.Chain(
//	    middleware.Recover(logger),
//	    middleware.Logging(logger),
//	    middleware.Tracing(),
//	    middleware.Metrics(),
//	    middleware.Timeout(30*time.Second, logger),
//	)
//
// Tracing and Metrics classify each attempt as ok, error or stopped. An
// attempt is stopped when its error wraps context.Canceled, which is how
// the executor reports a job abandoned during shutdown.
//
// A middleware that returns without calling next skips the attempt and its
// error becomes the attempt's outcome.
package middleware
