package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/taskq/job"
)

// Logging returns middleware that logs the start and outcome of each
// attempt. Stopped attempts are logged at warn, failed ones at error.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		log := logger.With(
			slog.String("job_id", j.ID.String()),
			slog.String("operation", string(j.Operation)),
			slog.Int("attempt", AttemptFrom(ctx)),
		)
		log.Debug("job attempt started", slog.String("queue", j.Queue))

		start := time.Now()
		err := next(ctx)
		elapsed := slog.Duration("elapsed", time.Since(start))

		switch outcomeOf(err) {
		case outcomeOK:
			log.Info("job attempt succeeded", elapsed)
		case outcomeStopped:
			log.Warn("job attempt stopped", elapsed, slog.String("error", err.Error()))
		default:
			log.Error("job attempt failed", elapsed, slog.String("error", err.Error()))
		}
		return err
	}
}
