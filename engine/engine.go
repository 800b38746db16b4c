package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/ext"
	"github.com/xraph/taskq/id"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/observability"
	"github.com/xraph/taskq/reconcile"
)

const instrumentationName = "github.com/xraph/taskq/engine"

// Engine serves admission, status, history and queue-size queries over a
// single injected Work Store. It holds no per-job state and is safe for
// concurrent use.
type Engine struct {
	store      job.Store
	config     taskq.Config
	extensions *ext.Registry
	logger     *slog.Logger

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	pending        []ext.Extension
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithExtension registers a lifecycle extension.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.pending = append(eng.pending, e) }
}

// WithTracerProvider sets the OTel TracerProvider used for spans around
// engine operations. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets the OTel MeterProvider used by the observability
// extension. If not set, the global provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// New creates an Engine reading and writing through store.
func New(store job.Store, cfg taskq.Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("taskq: engine requires a work store")
	}

	eng := &Engine{
		store:  store,
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.Default()
	}
	if eng.config.HistoryLimit <= 0 {
		eng.config.HistoryLimit = taskq.DefaultConfig().HistoryLimit
	}

	eng.extensions = ext.NewRegistry(eng.logger)

	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(instrumentationName))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)
	for _, e := range eng.pending {
		eng.extensions.Register(e)
	}
	eng.pending = nil

	if eng.tracerProvider != nil {
		eng.tracer = eng.tracerProvider.Tracer(instrumentationName)
	} else {
		eng.tracer = otel.Tracer(instrumentationName)
	}

	return eng, nil
}

// Config returns the engine configuration.
func (eng *Engine) Config() taskq.Config { return eng.config }

// Extensions returns the extension registry so the Executor can share it.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// ──────────────────────────────────────────────────
// Admission
// ──────────────────────────────────────────────────

// Submit validates req, persists a queued job and pushes it on the pending
// queue. Validation errors are returned before the store is touched.
func (eng *Engine) Submit(ctx context.Context, req SubmitRequest) (*Handle, error) {
	ctx, span := eng.tracer.Start(ctx, "taskq.submit")
	defer span.End()

	op, err := job.ParseOperation(req.Operation)
	if err != nil {
		return nil, err
	}
	if req.A == nil {
		return nil, fmt.Errorf("%w: %s requires a", taskq.ErrMissingOperand, op)
	}
	args, err := op.Normalize(job.Args{A: *req.A, B: req.B})
	if err != nil {
		return nil, err
	}

	j := job.New(op, args, job.WithQueue(eng.config.Queue))
	span.SetAttributes(
		attribute.String("taskq.job.id", j.ID.String()),
		attribute.String("taskq.operation", string(op)),
	)

	sctx, cancel := eng.storeContext(ctx)
	defer cancel()
	if err := eng.store.EnqueueJob(sctx, j); err != nil {
		return nil, eng.backendErr(span, "enqueue", err)
	}

	eng.extensions.EmitJobSubmitted(ctx, j)
	eng.logger.Info("job submitted",
		slog.String("job_id", j.ID.String()),
		slog.String("operation", string(op)),
		slog.String("queue", j.Queue),
	)

	return &Handle{
		JobID:               j.ID.String(),
		Status:              j.Status,
		Location:            eng.config.LocationPrefix + j.ID.String(),
		PollIntervalSeconds: eng.config.PollIntervalSeconds(),
	}, nil
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// Status returns a consistent snapshot of the job. It never mutates the
// job and returns taskq.ErrJobNotFound for unknown, purged or malformed
// ids.
func (eng *Engine) Status(ctx context.Context, jobID string) (*Snapshot, error) {
	ctx, span := eng.tracer.Start(ctx, "taskq.status",
		trace.WithAttributes(attribute.String("taskq.job.id", jobID)))
	defer span.End()

	j, err := eng.lookup(ctx, span, jobID)
	if err != nil {
		return nil, err
	}

	var res reconcile.Resolution
	if j.Terminal() {
		actx, cancel := eng.storeContext(ctx)
		latest, latestErr := eng.store.LatestAttempt(actx, j.ID)
		cancel()
		if latestErr != nil && !errors.Is(latestErr, taskq.ErrAttemptsUnavailable) {
			eng.logger.Warn("latest attempt unreadable, using legacy fields",
				slog.String("job_id", jobID),
				slog.String("error", latestErr.Error()),
			)
		}
		res = reconcile.Reconcile(j, latest, latestErr)
	} else {
		res = reconcile.Reconcile(j, nil, nil)
	}

	snap := &Snapshot{
		JobID:               j.ID.String(),
		Status:              j.Status,
		Operation:           j.Operation,
		Result:              res.Result,
		Exception:           res.Exception,
		EnqueuedAt:          j.EnqueuedAt,
		StartedAt:           j.StartedAt,
		FinishedAt:          j.EndedAt,
		PollIntervalSeconds: eng.config.PollIntervalSeconds(),
		Source:              res.Source,
	}
	if j.Terminal() && j.ExpiresIn != nil {
		secs := expirySeconds(*j.ExpiresIn)
		snap.ResultExpiresInSeconds = &secs
	}

	span.SetAttributes(
		attribute.String("taskq.status", string(j.Status)),
		attribute.String("taskq.source", res.Source.String()),
	)
	eng.extensions.EmitJobPolled(ctx, j, res.Source)
	return snap, nil
}

// History returns up to Config.HistoryLimit of the job's most recent
// attempts in creation order. A store without an attempt log yields an
// empty history.
func (eng *Engine) History(ctx context.Context, jobID string) (*History, error) {
	ctx, span := eng.tracer.Start(ctx, "taskq.history",
		trace.WithAttributes(attribute.String("taskq.job.id", jobID)))
	defer span.End()

	j, err := eng.lookup(ctx, span, jobID)
	if err != nil {
		return nil, err
	}

	sctx, cancel := eng.storeContext(ctx)
	defer cancel()

	attempts, err := eng.store.ListAttempts(sctx, j.ID, eng.config.HistoryLimit)
	switch {
	case errors.Is(err, taskq.ErrAttemptsUnavailable):
		attempts = nil
	case errors.Is(err, taskq.ErrJobNotFound):
		return nil, taskq.ErrJobNotFound
	case err != nil:
		return nil, eng.backendErr(span, "list attempts", err)
	}

	bounded := reconcile.BoundHistory(attempts, eng.config.HistoryLimit)
	h := &History{JobID: j.ID.String(), Entries: make([]HistoryEntry, 0, len(bounded))}
	for _, a := range bounded {
		h.Entries = append(h.Entries, newHistoryEntry(a))
	}
	return h, nil
}

// PendingCount returns the number of jobs waiting on the pending queue.
// The value is eventually consistent.
func (eng *Engine) PendingCount(ctx context.Context) (int64, error) {
	ctx, span := eng.tracer.Start(ctx, "taskq.pending_count")
	defer span.End()

	sctx, cancel := eng.storeContext(ctx)
	defer cancel()

	n, err := eng.store.CountPending(sctx)
	if err != nil {
		return 0, eng.backendErr(span, "count pending", err)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (eng *Engine) lookup(ctx context.Context, span trace.Span, jobID string) (*job.Job, error) {
	parsed, err := id.ParseJobID(jobID)
	if err != nil {
		return nil, taskq.ErrJobNotFound
	}

	sctx, cancel := eng.storeContext(ctx)
	defer cancel()

	j, err := eng.store.GetJob(sctx, parsed)
	if errors.Is(err, taskq.ErrJobNotFound) {
		return nil, taskq.ErrJobNotFound
	}
	if err != nil {
		return nil, eng.backendErr(span, "get job", err)
	}
	return j, nil
}

func (eng *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if eng.config.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, eng.config.StoreTimeout)
}

// backendErr classifies a Work Store failure as transient.
func (eng *Engine) backendErr(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	eng.logger.Error("work store call failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%w: %s: %w", taskq.ErrTransientBackend, op, err)
}
