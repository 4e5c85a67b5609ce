package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/idbuilder/pkg/apierr"
	"github.com/marmos91/idbuilder/pkg/storage"
)

// HealthCheckTimeout is the maximum time allowed for the storage
// round-trip behind the readiness probe.
const HealthCheckTimeout = 5 * time.Second

// HealthHandler handles the unauthenticated health probes.
//
//   - Liveness: is the server process running?
//   - Readiness: is the storage backend reachable?
type HealthHandler struct {
	backend   storage.Backend
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(backend storage.Backend) *HealthHandler {
	return &HealthHandler{
		backend:   backend,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health - simple liveness probe.
//
// Always succeeds as long as the HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	WriteData(w, map[string]any{
		"service":    "idbuilder",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
	})
}

// Readiness handles GET /ready - readiness probe.
//
// Returns 200 only when the storage backend answers a round-trip within
// HealthCheckTimeout.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	if err := h.backend.HealthCheck(ctx); err != nil {
		WriteError(w, r, apierr.Wrap(apierr.CodeUnavailable, "storage backend unreachable", err))
		return
	}

	WriteData(w, map[string]any{
		"backend": h.backend.Name(),
		"latency": time.Since(start).String(),
	})
}
