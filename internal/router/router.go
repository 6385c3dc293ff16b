// Package router wires the HTTP surface: two public endpoints, /metrics when
// a registry is supplied, and a shared middleware chain. There is no per-user auth in this
// service — the corpus is a single shared index, not a multi-tenant store.
package router

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gerard-labs/subtranscript-rag/internal/handler"
	"github.com/gerard-labs/subtranscript-rag/internal/middleware"
)

// queryTimeout bounds how long a single /v1/query request may run before
// the server aborts it; the handler may further shorten this per-request.
const queryTimeout = 60 * time.Second

// Dependencies holds the services the router wires into handlers.
type Dependencies struct {
	Index       handler.IndexStatus
	Coordinator handler.Coordinator
	FrontendURL string
	Version     string

	Metrics    *middleware.Metrics
	MetricsReg *prometheus.Registry

	// QueryRateLimiter is optional; nil disables rate limiting.
	QueryRateLimiter *middleware.RateLimiter
}

// New builds the Chi router: health check, metrics, and the single query
// endpoint, behind security headers, logging, CORS and (optionally)
// Prometheus monitoring.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.FrontendURL))
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	r.Get("/api/health", handler.Health(deps.Index, deps.Version))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(queryTimeout))
		if deps.QueryRateLimiter != nil {
			r.Use(middleware.RateLimit(deps.QueryRateLimiter))
		}
		r.Post("/v1/query", handler.Query(deps.Coordinator, deps.Metrics))
	})

	return r
}
