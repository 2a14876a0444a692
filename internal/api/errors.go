package api

import (
	"errors"
	"net/http"
	"strconv"

	"whatsapp-assistant/backend/internal/service"
	apperrors "whatsapp-assistant/backend/pkg/errors"
	"whatsapp-assistant/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// fail maps service errors onto AppErrors and hands them to the error middleware
func fail(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, service.ErrThreadNotFound):
		appErr = apperrors.NewNotFoundError(apperrors.CodeNotFound, "Thread not found")
	case errors.Is(err, service.ErrUserNotFound):
		appErr = apperrors.NewNotFoundError(apperrors.CodeNotFound, "User not found")
	case errors.Is(err, service.ErrInvalidCredentials):
		appErr = apperrors.NewUnauthorizedError(apperrors.CodeInvalidLogin, "Invalid email or password")
	case errors.Is(err, service.ErrEmptyContent):
		appErr = apperrors.NewBadRequestError(apperrors.CodeInvalidRequest, "Content must not be empty")
	default:
		appErr = apperrors.NewInternalServerError(apperrors.CodeInternal, "An unexpected error occurred").Wrap(err)
	}
	c.Error(appErr)
	c.Abort()
}

func badRequest(c *gin.Context, message string, err error) {
	appErr := apperrors.NewBadRequestError(apperrors.CodeInvalidRequest, message)
	if err != nil {
		appErr = appErr.WithDetails(err.Error())
	}
	fail(c, appErr)
}

// threadID parses the :id path parameter
func threadID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Thread ID must be a positive number", nil)
		return 0, false
	}
	return uint(id), true
}

// currentUser returns the authenticated user id or aborts with 401
func currentUser(c *gin.Context) (uint, bool) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		fail(c, apperrors.NewUnauthorizedError(apperrors.CodeAuthRequired, "Authentication required"))
		return 0, false
	}
	return id, true
}

func ok(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}
