package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// QueueCountResponse reports the pending queue size.
type QueueCountResponse struct {
	Count int64 `json:"count"`
}

func (a *API) queueCount(c *gin.Context) {
	n, err := a.eng.PendingCount(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, QueueCountResponse{Count: n})
}
