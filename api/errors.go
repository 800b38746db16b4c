package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/taskq"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) ErrorResponse { return ErrorResponse{Error: msg} }

// writeError maps engine errors onto HTTP status codes.
func (a *API) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, taskq.ErrInvalidOperation), errors.Is(err, taskq.ErrMissingOperand):
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, taskq.ErrJobNotFound):
		c.JSON(http.StatusNotFound, errorBody("job not found"))
	case errors.Is(err, taskq.ErrTransientBackend):
		a.logger.Warn("work store unavailable", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, errorBody("work store unavailable"))
	default:
		a.logger.Error("request failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	}
}
