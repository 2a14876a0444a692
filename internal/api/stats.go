package api

import (
	"strconv"

	"whatsapp-assistant/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// StatsHandler serves the dashboard counters
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler creates a stats handler
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// RegisterRoutes registers stats routes on an authenticated group
func (h *StatsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.Stats)
	rg.GET("/stats/usage", h.Usage)
	rg.GET("/activities", h.Activities)
}

func (h *StatsHandler) Stats(c *gin.Context) {
	userID, authed := currentUser(c)
	if !authed {
		return
	}
	stats, err := h.stats.Stats(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, stats)
}

func (h *StatsHandler) Usage(c *gin.Context) {
	userID, authed := currentUser(c)
	if !authed {
		return
	}
	usage, err := h.stats.Usage(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, usage)
}

// Activities returns the recent activity feed; limit defaults to 10
func (h *StatsHandler) Activities(c *gin.Context) {
	userID, authed := currentUser(c)
	if !authed {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "limit must be an integer", nil)
			return
		}
		limit = service.ClampActivityLimit(n)
		if n == 0 {
			limit = 1
		}
	}

	items, err := h.stats.Activities(c.Request.Context(), userID, limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}
