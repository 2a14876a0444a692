package api

import (
	"whatsapp-assistant/backend/internal/models"
	"whatsapp-assistant/backend/internal/service"
	"whatsapp-assistant/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// OperatorHandler lets an operator take a thread over and answer by hand
type OperatorHandler struct {
	takeover *service.TakeoverGate
	pipeline *service.Pipeline
	logger   *logger.Logger
}

// NewOperatorHandler creates an operator handler
func NewOperatorHandler(takeover *service.TakeoverGate, pipeline *service.Pipeline, logger *logger.Logger) *OperatorHandler {
	return &OperatorHandler{takeover: takeover, pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers operator routes on an authenticated group
func (h *OperatorHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/threads/:id/takeover", h.SetTakeover)
	rg.POST("/threads/:id/human-reply", h.HumanReply)
}

// SetTakeover switches a thread between automated and human replies
func (h *OperatorHandler) SetTakeover(c *gin.Context) {
	id, valid := threadID(c)
	if !valid {
		return
	}

	var req models.TakeoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Field 'active' is required", err)
		return
	}

	thread, err := h.takeover.Set(c.Request.Context(), id, *req.Active)
	if err != nil {
		fail(c, err)
		return
	}
	logger.FromContext(c).WithThread(thread.ID).Info("Takeover changed", "active", thread.HumanTakeover)
	ok(c, gin.H{"ok": true, "human_takeover": thread.HumanTakeover})
}

// HumanReply stores the operator's message and sends it to the contact.
// The message is kept even when no provider delivers it.
func (h *OperatorHandler) HumanReply(c *gin.Context) {
	id, valid := threadID(c)
	if !valid {
		return
	}

	var req models.HumanReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Field 'content' is required", err)
		return
	}

	msg, delivery, err := h.pipeline.HumanReply(c.Request.Context(), id, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{
		"ok":       true,
		"message":  msg,
		"sent":     delivery.Delivered,
		"provider": delivery.Provider,
	})
}
