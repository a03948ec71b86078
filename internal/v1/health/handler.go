package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mychat/chathub/internal/v1/hub"
	"github.com/mychat/chathub/internal/v1/logging"
)

// Handler manages health check endpoints
type Handler struct {
	hub *hub.Hub
}

// NewHandler creates a new health check handler
func NewHandler(h *hub.Hub) *Handler {
	return &Handler{hub: h}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// Returns 200 only if the hub answers within the deadline, 503 otherwise
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	hubStatus := h.checkHub(ctx)
	checks["hub"] = hubStatus
	if hubStatus != "healthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}

// checkHub verifies the hub loop is still routing commands.
func (h *Handler) checkHub(ctx context.Context) string {
	if h.hub == nil {
		return "unhealthy"
	}
	if err := h.hub.Ping(ctx); err != nil {
		logging.Error(ctx, "hub health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}
