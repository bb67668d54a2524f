package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Reports service status, market snapshot freshness and whether chat history persistence is available
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{
		"status":       "healthy",
		"chat_history": h.history != nil,
	}
	if snap := h.market.Current(); snap != nil {
		body["snapshot"] = gin.H{
			"ready":  true,
			"origin": snap.Origin,
			"age_ms": snap.Age(time.Now()).Milliseconds(),
		}
	} else {
		// The poller has not produced a snapshot yet. The service can
		// still answer, so report degraded rather than failing the check.
		body["status"] = "degraded"
		body["snapshot"] = gin.H{"ready": false}
	}
	c.JSON(http.StatusOK, body)
}
