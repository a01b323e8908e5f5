package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	*Handler
	providers map[string]bool
}

// NewHealthHandler creates a health handler. providers reports which upstream
// adapters are configured, e.g. {"transcription": true, "synthesis": false}.
func NewHealthHandler(base *Handler, providers map[string]bool) *HealthHandler {
	return &HealthHandler{Handler: base, providers: providers}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	for name, ok := range h.providers {
		if ok {
			checks[name] = "configured"
		} else {
			checks[name] = "disabled"
		}
	}

	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		h.logger.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["store"] = "unavailable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
		status["store"] = h.repo.Stats()
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
