package api

import (
	"net/http"

	"whatsapp-assistant/backend/internal/models"
	"whatsapp-assistant/backend/internal/service"
	"whatsapp-assistant/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ThreadHandler serves the owner-scoped thread and message endpoints
type ThreadHandler struct {
	threads *service.ThreadService
	logger  *logger.Logger
}

// NewThreadHandler creates a thread handler
func NewThreadHandler(threads *service.ThreadService, logger *logger.Logger) *ThreadHandler {
	return &ThreadHandler{threads: threads, logger: logger}
}

// RegisterRoutes registers thread routes on an authenticated group
func (h *ThreadHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/threads", h.List)
	rg.POST("/threads", h.Create)
	rg.DELETE("/threads/:id", h.Delete)
	rg.GET("/threads/:id/messages", h.Messages)
	rg.POST("/threads/:id/messages", h.SendMessage)
}

// List returns the caller's threads, newest first
func (h *ThreadHandler) List(c *gin.Context) {
	userID, authed := currentUser(c)
	if !authed {
		return
	}
	threads, err := h.threads.List(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, threads)
}

// Create opens a new thread
func (h *ThreadHandler) Create(c *gin.Context) {
	userID, authed := currentUser(c)
	if !authed {
		return
	}

	var req models.CreateThreadRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request format", err)
			return
		}
	}

	thread, err := h.threads.Create(c.Request.Context(), userID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, thread)
}

// Delete removes a thread and its messages
func (h *ThreadHandler) Delete(c *gin.Context) {
	userID, authed := currentUser(c)
	if !authed {
		return
	}
	id, valid := threadID(c)
	if !valid {
		return
	}
	if err := h.threads.Delete(c.Request.Context(), userID, id); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"ok": true})
}

// Messages lists a thread's messages in order
func (h *ThreadHandler) Messages(c *gin.Context) {
	userID, authed := currentUser(c)
	if !authed {
		return
	}
	id, valid := threadID(c)
	if !valid {
		return
	}
	messages, err := h.threads.Messages(c.Request.Context(), userID, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, messages)
}

// SendMessage stores a message and answers it unless a human has taken over
func (h *ThreadHandler) SendMessage(c *gin.Context) {
	userID, authed := currentUser(c)
	if !authed {
		return
	}
	id, valid := threadID(c)
	if !valid {
		return
	}

	var req models.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format", err)
		return
	}

	out, err := h.threads.SendMessage(c.Request.Context(), userID, id, req)
	if err != nil {
		fail(c, err)
		return
	}

	switch out.Status {
	case service.StatusSuppressed:
		c.JSON(http.StatusAccepted, gin.H{
			"message":        out.Inbound,
			"human_takeover": true,
		})
	case service.StatusEmptyReply:
		c.JSON(http.StatusAccepted, gin.H{"message": out.Inbound})
	default:
		c.JSON(http.StatusCreated, gin.H{
			"message": out.Inbound,
			"reply":   out.Reply,
		})
	}
}
