package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/taskq/engine"
)

func (a *API) enqueue(c *gin.Context) {
	var req engine.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request body: "+err.Error()))
		return
	}

	h, err := a.eng.Submit(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}

	c.Header("Location", h.Location)
	c.JSON(http.StatusAccepted, h)
}

func (a *API) getJob(c *gin.Context) {
	snap, err := a.eng.Status(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (a *API) jobHistory(c *gin.Context) {
	hist, err := a.eng.History(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hist)
}
