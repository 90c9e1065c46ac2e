package httpd

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-approvals/core"
)

const readinessTimeout = 5 * time.Second

type livenessResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthHandler serves the probe endpoints.
type HealthHandler struct {
	service core.ApprovalService
	logger  core.Logger
	version string
	started time.Time
}

func NewHealthHandler(service core.ApprovalService, logger core.Logger, version string) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger,
		version: version,
		started: time.Now(),
	}
}

// Liveness handles GET /healthz. It never touches a backend: a wedged ERP
// must not get the process restarted.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, livenessResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: time.Since(h.started).Seconds(),
	})
}

// Readiness handles GET /readyz. Every configured tenant backend is probed
// concurrently; one unreachable backend marks the process not ready. Check
// values stay coarse so probe output never leaks backend fault detail.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	results := h.service.CheckBackends(ctx)
	checks := make(map[string]string, len(results))
	status := "ready"
	code := http.StatusOK
	for _, result := range results {
		if result.Healthy {
			checks[result.Tenant] = "ok"
			continue
		}
		checks[result.Tenant] = "error"
		status = "not_ready"
		code = http.StatusServiceUnavailable
		if h.logger != nil {
			h.logger.Warn("backend probe failed",
				"tenant", result.Tenant,
				"family", result.Family,
				"error", result.Error,
				"duration_ms", result.DurationMS,
			)
		}
	}

	c.JSON(code, readinessResponse{Status: status, Checks: checks})
}
