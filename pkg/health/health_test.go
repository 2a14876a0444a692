package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"whatsapp-assistant/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckerDatabaseDown(t *testing.T) {
	c := NewChecker(logger.Nop(), time.Minute)
	c.RegisterDatabaseCheck(func(context.Context) error { return errors.New("connection refused") })
	c.RunChecks(context.Background())

	assert.False(t, c.IsSystemHealthy())

	w := httptest.NewRecorder()
	c.HTTPHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status     string                `json:"status"`
		Components map[string]*Component `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, StatusDown, body.Components["database"].Status)
	assert.Equal(t, "connection refused", body.Components["database"].Error)
}

func TestCheckerBreakerDegradedIsHealthy(t *testing.T) {
	c := NewChecker(logger.Nop(), time.Minute)
	c.RegisterDatabaseCheck(func(context.Context) error { return nil })
	c.RegisterBreakerCheck("outbound", func() map[string]string {
		return map[string]string{"outbound-twilio": "open", "outbound-meta": "closed"}
	})
	c.RunChecks(context.Background())

	assert.True(t, c.IsSystemHealthy())
	status := c.GetStatus()
	assert.Equal(t, StatusDegraded, status["outbound"].Status)
	assert.Contains(t, status["outbound"].Description, "outbound-twilio")
}
