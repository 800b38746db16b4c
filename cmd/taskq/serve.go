package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	audithook "github.com/xraph/taskq/audit_hook"
	"github.com/xraph/taskq/dwp"
	"github.com/xraph/taskq/extension"
	"github.com/xraph/taskq/internal/config"
	"github.com/xraph/taskq/store"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var noWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and wire protocol server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if noWorker {
				cfg.Worker.Enabled = false
			}
			return runServer(cmd.Context(), cfg, true)
		},
	}
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "do not execute jobs in this process")
	return cmd
}

func newWorkerCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run a worker pool against the shared Work Store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			cfg.Worker.Enabled = true
			return runServer(cmd.Context(), cfg, false)
		},
	}
}

// buildExtension assembles the components from cfg.
func buildExtension(cfg *config.Config, st store.Store, logger *slog.Logger, serveHTTP bool) (*extension.Extension, error) {
	strategy, err := cfg.Backoff()
	if err != nil {
		return nil, err
	}

	opts := []extension.ExtOption{
		extension.WithConfig(extension.Config{
			DisableWorker: !cfg.Worker.Enabled,
			DisableRoutes: !serveHTTP,
			DWPBasePath:   cfg.Server.DWPPath,
			Concurrency:   cfg.Worker.Concurrency,
			PollInterval:  cfg.Worker.PollInterval,
			MaxAttempts:   cfg.Worker.MaxAttempts,
			JobTimeout:    cfg.Worker.Timeout,
			Core:          cfg.Core(),
		}),
		extension.WithStore(st),
		extension.WithLogger(logger),
		extension.WithBackoff(strategy),
		extension.WithQueueLimits(cfg.Limits()...),
	}
	if cfg.Logging.Audit {
		opts = append(opts, extension.WithExtension(audithook.New(audithook.SlogRecorder(logger), audithook.WithLogger(logger))))
	}
	if serveHTTP {
		opts = append(opts, extension.WithDWP(dwp.WithAuth(cfg.Authenticator())))
	}
	return extension.New(opts...), nil
}

// runServer runs until SIGINT/SIGTERM. With serveHTTP false only the
// worker pool runs.
func runServer(parent context.Context, cfg *config.Config, serveHTTP bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := cfg.Logger(os.Stderr)
	if cfg.Store.Driver == config.DriverMemory && !serveHTTP {
		logger.Warn("worker started with the in-memory store; it will never see jobs admitted by another process")
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			logger.Warn("close store", slog.String("error", cerr.Error()))
		}
	}()

	x, err := buildExtension(cfg, st, logger, serveHTTP)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := x.Register(router); err != nil {
		return err
	}
	router.GET("/healthz", func(c *gin.Context) {
		if err := x.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if err := x.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if serveHTTP {
		srv = &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		g.Go(func() error {
			logger.Info("http server listening", slog.String("addr", cfg.Server.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if srv != nil {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		errs = append(errs, x.Stop(shutdownCtx))
		return errors.Join(errs...)
	})

	return g.Wait()
}
