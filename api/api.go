// Package api exposes the taskq engine over HTTP/JSON using gin.
//
// Routes:
//
//	POST /tasks/enqueue            admit a job (202 + Location)
//	GET  /tasks/job/:jobId         job snapshot
//	GET  /tasks/job/:jobId/history recent execution attempts
//	GET  /queue/count              pending queue size
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/taskq/engine"
)

// API wires the gin handlers for the taskq engine.
type API struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// New creates an API from a taskq Engine.
func New(eng *engine.Engine, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{eng: eng, logger: logger}
}

// Handler returns a gin engine with recovery, request logging, and all
// routes registered.
func (a *API) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), a.requestLogger())
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all taskq routes on the given router.
func (a *API) RegisterRoutes(router gin.IRouter) {
	a.registerJobRoutes(router)
	a.registerQueueRoutes(router)
}

func (a *API) registerJobRoutes(router gin.IRouter) {
	g := router.Group("/tasks")
	g.POST("/enqueue", a.enqueue)
	g.GET("/job/:jobId", a.getJob)
	g.GET("/job/:jobId/history", a.jobHistory)
}

func (a *API) registerQueueRoutes(router gin.IRouter) {
	router.GET("/queue/count", a.queueCount)
}

// requestLogger logs each request at debug level.
func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		a.logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
		)
	}
}
