package middleware

import (
	"strings"

	"whatsapp-assistant/backend/pkg/errors"
	"whatsapp-assistant/backend/pkg/jwt"
	"whatsapp-assistant/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	// ClaimsKey holds the *jwt.Claims of an authenticated request
	ClaimsKey = "claims"
	// UserIDKey holds the authenticated user id
	UserIDKey = "userId"
)

// TokenValidator validates access tokens
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// JWTAuthMiddleware checks that the request has a valid JWT and adds claims
// to the context. Browsers cannot set headers on a websocket upgrade, so a
// token query parameter is accepted when the header is absent.
func JWTAuthMiddleware(tokens TokenValidator, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
			token = strings.TrimSpace(token[7:])
		}
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.Error(errors.NewUnauthorizedError(errors.CodeAuthRequired, "Authorization header is required"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			log.Warn("Invalid JWT token", "error", err.Error(), "path", c.Request.URL.Path)
			c.Error(errors.NewUnauthorizedError(errors.CodeInvalidToken, "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
