package api

import (
	"whatsapp-assistant/backend/internal/models"
	"whatsapp-assistant/backend/internal/service"
	"whatsapp-assistant/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	users  *service.UserService
	logger *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *service.UserService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{users: users, logger: logger}
}

// Login handles operator authentication
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Error binding JSON for login", "error", err.Error())
		badRequest(c, "Invalid request format", err)
		return
	}

	res, err := h.users.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	userID, authed := currentUser(c)
	if !authed {
		return
	}

	user, err := h.users.Me(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, user)
}
