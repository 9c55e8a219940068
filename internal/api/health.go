package api

import (
	"net/http"
	"time"

	"realtime-chat/backend/pkg/health"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves the health endpoint from the checker's last results
type HealthHandler struct {
	checker *health.Checker
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *health.Checker, version string) *HealthHandler {
	return &HealthHandler{checker: checker, version: version}
}

// Health handles GET /health. It answers 503 while a critical component is down.
func (h *HealthHandler) Health(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if !h.checker.IsSystemHealthy() {
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":     status,
		"version":    h.version,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": h.checker.GetStatus(),
	})
}
