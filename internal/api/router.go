// Package api provides the HTTP surface of the ID service: router,
// server lifecycle and the wiring between handlers and services.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/idbuilder/internal/api/handlers"
	apimiddleware "github.com/marmos91/idbuilder/internal/api/middleware"
	"github.com/marmos91/idbuilder/internal/logger"
	"github.com/marmos91/idbuilder/pkg/config"
	"github.com/marmos91/idbuilder/pkg/idgen"
	"github.com/marmos91/idbuilder/pkg/metrics"
	"github.com/marmos91/idbuilder/pkg/sequence"
	"github.com/marmos91/idbuilder/pkg/storage"
	"github.com/marmos91/idbuilder/pkg/token"
)

// Deps bundles everything the router needs.
type Deps struct {
	Backend   storage.Backend
	Sequence  *sequence.Manager
	Increment *idgen.IncrementService
	Snowflake *idgen.SnowflakeService
	Formatted *idgen.FormattedService
	Tokens    *token.Store

	Auth           config.AuthConfig
	RequestTimeout time.Duration
	Metrics        *metrics.APIMetrics
}

// NewRouter creates and configures the chi router with all middleware
// and routes.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /ready - Readiness probe (storage round-trip)
//   - GET /metrics - Prometheus exposition (404 when metrics disabled)
//   - GET /v1/auth/verify - Admin token check
//   - GET /v1/auth/token - Issue a key token (admin)
//   - GET /v1/auth/tokenreset - Rotate a key token (admin)
//   - GET /v1/config/list - Paginated config listing (admin)
//   - GET/POST /v1/config/increment - Upsert an increment config (admin)
//   - GET/POST /v1/config/snowflake - Upsert a snowflake config (admin)
//   - GET/POST /v1/config/formatted - Upsert a formatted config (admin)
//   - GET /v1/id/increment - Generate increment IDs (key token)
//   - GET /v1/id/snowflake - Snowflake layout descriptor (key token)
//   - GET /v1/id/formatted - Generate formatted IDs (key token)
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(deps.Metrics))
	r.Use(chimiddleware.Recoverer)
	if deps.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(deps.RequestTimeout))
	}

	healthHandler := handlers.NewHealthHandler(deps.Backend)
	tokenHandler := handlers.NewTokenHandler(deps.Tokens)
	configHandler := handlers.NewConfigHandler(deps.Backend, deps.Sequence)
	idHandler := handlers.NewIDHandler(deps.Increment, deps.Snowflake, deps.Formatted)

	// Probes and metrics - unauthenticated
	r.Get("/health", healthHandler.Liveness)
	r.Get("/ready", healthHandler.Readiness)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	r.Route("/v1", func(r chi.Router) {
		// Admin endpoints
		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.AdminAuth(deps.Auth.Enabled, deps.Auth.AdminToken))

			r.Get("/auth/verify", tokenHandler.Verify)
			r.Get("/auth/token", tokenHandler.Issue)
			r.Get("/auth/tokenreset", tokenHandler.Reset)

			r.Get("/config/list", configHandler.List)
			r.Get("/config/increment", configHandler.Increment)
			r.Post("/config/increment", configHandler.Increment)
			r.Get("/config/snowflake", configHandler.Snowflake)
			r.Post("/config/snowflake", configHandler.Snowflake)
			r.Get("/config/formatted", configHandler.Formatted)
			r.Post("/config/formatted", configHandler.Formatted)
		})

		// Key-token endpoints
		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.KeyAuth(deps.Auth.Enabled, deps.Auth.AdminToken, deps.Tokens))

			r.Get("/id/increment", idHandler.Increment)
			r.Get("/id/snowflake", idHandler.Snowflake)
			r.Get("/id/formatted", idHandler.Formatted)
		})
	})

	return r
}

// isProbePath returns true for endpoints polled by orchestrators.
func isProbePath(path string) bool {
	return path == "/health" || path == "/ready" || path == "/metrics"
}

// requestLogger logs requests using the internal logger and feeds the
// API metrics.
//
// Request start is logged at DEBUG, completion at INFO. Probe endpoints
// complete at DEBUG to keep orchestrator polling out of the logs.
func requestLogger(m *metrics.APIMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := chimiddleware.GetReqID(r.Context())

			logger.Debug("API request started",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			m.RecordRequestStart()

			// Wrap response writer to capture status code
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			m.RecordRequestEnd()
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				m.RecordRequest(rctx.RoutePattern(), ww.Status(), duration)
			}

			logArgs := []any{
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", duration.String(),
			}

			if isProbePath(r.URL.Path) {
				logger.Debug("API request completed", logArgs...)
			} else {
				logger.Info("API request completed", logArgs...)
			}
		})
	}
}
