// Package extension mounts taskq into a gin application.
//
// It assembles the engine, the reference worker pool, the HTTP API and the
// optional wire protocol server from a single Work Store, and exposes a
// Register/Start/Stop/Health lifecycle for the host.
//
//	x := extension.New(
//	    extension.WithStore(redisstore.New(rdb)),
//	    extension.WithDWP(dwp.WithAuth(auth)),
//	)
//	router := gin.New()
//	if err := x.Register(router); err != nil { ... }
//	if err := x.Start(ctx); err != nil { ... }
//	defer x.Stop(ctx)
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/taskq/api"
	"github.com/xraph/taskq/backoff"
	"github.com/xraph/taskq/dwp"
	"github.com/xraph/taskq/engine"
	"github.com/xraph/taskq/ext"
	mw "github.com/xraph/taskq/middleware"
	"github.com/xraph/taskq/queue"
	"github.com/xraph/taskq/store"
	"github.com/xraph/taskq/worker"
)

// ExtensionName is the name used in logs.
const ExtensionName = "taskq"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Extension bundles the taskq components behind one lifecycle.
type Extension struct {
	config         Config
	store          store.Store
	eng            *engine.Engine
	pool           *worker.Pool
	queues         *queue.Manager
	apiHandler     *api.API
	dwpServer      *dwp.Server
	logger         *slog.Logger
	exts           []ext.Extension
	mws            []mw.Middleware
	dwpOpts        []dwp.Option
	limits         []queue.Config
	bo             backoff.Strategy
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	started        bool
}

// New creates a taskq extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the engine. This is nil until Init or Register is called.
func (e *Extension) Engine() *engine.Engine { return e.eng }

// API returns the HTTP API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Pool returns the worker pool, or nil when the worker is disabled.
func (e *Extension) Pool() *worker.Pool { return e.pool }

// DWPServer returns the wire protocol server, or nil if it is not enabled.
func (e *Extension) DWPServer() *dwp.Server { return e.dwpServer }

// Init builds every component. It is idempotent.
func (e *Extension) Init() error {
	if e.eng != nil {
		return nil
	}
	if e.store == nil {
		return errors.New("taskq: extension requires a store")
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	engOpts := []engine.Option{engine.WithLogger(e.logger)}
	for _, x := range e.exts {
		engOpts = append(engOpts, engine.WithExtension(x))
	}
	if e.tracerProvider != nil {
		engOpts = append(engOpts, engine.WithTracerProvider(e.tracerProvider))
	}
	if e.meterProvider != nil {
		engOpts = append(engOpts, engine.WithMeterProvider(e.meterProvider))
	}

	eng, err := engine.New(e.store, e.config.Core, engOpts...)
	if err != nil {
		return fmt.Errorf("taskq: build engine: %w", err)
	}
	e.eng = eng
	e.apiHandler = api.New(eng, e.logger)

	if !e.config.DisableWorker {
		e.initWorker()
	}

	if e.config.EnableDWP {
		dwpOptList := make([]dwp.Option, 0, len(e.dwpOpts)+2)
		dwpOptList = append(dwpOptList, dwp.WithLogger(e.logger))
		if e.config.DWPBasePath != "" {
			dwpOptList = append(dwpOptList, dwp.WithPath(e.config.DWPBasePath))
		}
		dwpOptList = append(dwpOptList, e.dwpOpts...)
		e.dwpServer = dwp.NewServer(dwp.NewHandler(eng, e.logger), dwpOptList...)
	}

	return nil
}

// initWorker builds the executor middleware chain and the pool.
func (e *Extension) initWorker() {
	chain := []mw.Middleware{mw.Recover(e.logger), mw.Logging(e.logger)}
	if e.tracerProvider != nil {
		chain = append(chain, mw.TracingWithTracer(e.tracerProvider.Tracer("github.com/xraph/taskq/worker")))
	} else {
		chain = append(chain, mw.Tracing())
	}
	if e.meterProvider != nil {
		chain = append(chain, mw.MetricsWithMeter(e.meterProvider.Meter("github.com/xraph/taskq/worker")))
	} else {
		chain = append(chain, mw.Metrics())
	}
	if e.config.JobTimeout > 0 {
		chain = append(chain, mw.Timeout(e.config.JobTimeout, e.logger))
	}
	chain = append(chain, e.mws...)

	execOpts := []worker.ExecutorOption{
		worker.WithMaxAttempts(e.config.MaxAttempts),
		worker.WithResultTTL(e.config.Core.ResultTTL),
		worker.WithFailureTTL(e.config.Core.FailureTTL),
		worker.WithStoreTimeout(e.config.Core.StoreTimeout),
		worker.WithMiddleware(chain...),
	}
	if e.bo != nil {
		execOpts = append(execOpts, worker.WithBackoff(e.bo))
	}
	exec := worker.NewExecutor(e.store, e.eng.Extensions(), e.logger, execOpts...)

	poolOpts := []worker.PoolOption{
		worker.WithPoolConcurrency(e.config.Concurrency),
		worker.WithPollInterval(e.config.PollInterval),
	}
	if len(e.limits) > 0 {
		e.queues = queue.NewManager(e.limits...)
		poolOpts = append(poolOpts, worker.WithQueueManager(e.queues))
	}
	e.pool = worker.NewPool(e.store, exec, e.eng.Extensions(), e.logger, poolOpts...)
}

// Register builds the components and mounts the HTTP and wire protocol
// routes on router.
func (e *Extension) Register(router gin.IRouter) error {
	if err := e.Init(); err != nil {
		return err
	}
	if e.config.DisableRoutes {
		return nil
	}

	e.RegisterRoutes(router)
	if e.dwpServer != nil {
		e.dwpServer.RegisterRoutes(router)
	}
	return nil
}

// RegisterRoutes registers the HTTP API routes under the base path.
func (e *Extension) RegisterRoutes(router gin.IRouter) {
	if e.apiHandler == nil {
		return
	}
	if e.config.BasePath != "" {
		router = router.Group(e.config.BasePath)
	}
	e.apiHandler.RegisterRoutes(router)
}

// Handler returns a standalone HTTP handler for all routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	e.RegisterRoutes(r)
	if e.dwpServer != nil {
		e.dwpServer.RegisterRoutes(r)
	}
	return r
}

// Start checks store connectivity and starts the worker pool.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("taskq: extension not initialized")
	}
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("taskq: store ping: %w", err)
	}

	if e.pool != nil {
		if err := e.pool.Start(ctx); err != nil {
			return err
		}
	}
	e.started = true

	e.logger.Info("taskq started",
		slog.String("version", ExtensionVersion),
		slog.Bool("worker", e.pool != nil),
		slog.Bool("dwp", e.dwpServer != nil),
	)
	return nil
}

// Stop closes live dwp sessions and drains the worker pool. Jobs still
// running when ctx ends are stopped.
func (e *Extension) Stop(ctx context.Context) error {
	if !e.started {
		return nil
	}
	e.started = false

	var errs []error
	if e.dwpServer != nil {
		errs = append(errs, e.dwpServer.Shutdown(ctx))
	}
	if e.pool != nil {
		errs = append(errs, e.pool.Stop(ctx))
	}
	e.logger.Info("taskq stopped")
	return errors.Join(errs...)
}

// Health reports store connectivity.
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("taskq: extension not initialized")
	}
	return e.store.Ping(ctx)
}
