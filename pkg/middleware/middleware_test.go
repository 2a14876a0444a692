package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"whatsapp-assistant/backend/pkg/errors"
	"whatsapp-assistant/backend/pkg/jwt"
	"whatsapp-assistant/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		id, _ := CurrentUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id})
	})
	return r
}

func TestJWTAuthMiddleware(t *testing.T) {
	tokens := jwt.NewService("secret", time.Hour)
	token, err := tokens.GenerateToken(42, "op@example.com")
	require.NoError(t, err)
	r := newEngine(JWTAuthMiddleware(tokens, logger.Nop()))

	tests := []struct {
		name   string
		target string
		header string
		status int
	}{
		{"missing", "/ping", "", http.StatusUnauthorized},
		{"bearer", "/ping", "Bearer " + token, http.StatusOK},
		{"query", "/ping?token=" + token, "", http.StatusOK},
		{"bad token", "/ping", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"user_id":42}`, w.Body.String())
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(logger.Nop(), RateLimiterOptions{Limit: 0.001, Burst: 2})
	r := newEngine(limiter.Middleware())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
