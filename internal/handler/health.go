package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a dependency readiness can probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checks map[string]Pinger
	resp   *Responder
	logger *slog.Logger
}

// NewHealthHandler takes the dependencies to probe by name; nil entries are
// reported as not configured and do not fail readiness.
func NewHealthHandler(checks map[string]Pinger, resp *Responder, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &HealthHandler{
		checks: checks,
		resp:   resp,
		logger: logger,
	}
}

// HealthResponse represents the health status response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /healthz, a plain liveness check
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.resp.JSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /readyz and returns 200 only if every configured dependency answers
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	healthy := true
	for name, p := range h.checks {
		if p == nil {
			checks[name] = "not configured"
			continue
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = "error: " + err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !healthy {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		h.logger.Warn("readiness check failed", slog.Any("checks", checks))
	}

	h.resp.JSON(w, statusCode, ReadinessResponse{Status: status, Checks: checks})
}

// PingFunc adapts a plain health function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
