// Package httptransport assembles the HTTP surface: public registration and
// health, authenticated transaction and trail routes, and the metrics
// endpoint. Feature handlers register themselves; this package only owns
// middleware ordering.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veritrail/internal/platform/metrics"
	"veritrail/internal/platform/middleware"
)

// Registrar is anything that mounts routes on a chi router.
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig carries the assembled feature handlers.
type RouterConfig struct {
	Logger        *slog.Logger
	Authenticator middleware.Authenticator
	Metrics       *metrics.HTTP

	// Public routes: registration and health.
	Principals Registrar
	Health     Registrar

	// Authenticated routes: intake, trails, verification.
	Ingest Registrar
	Trail  Registrar
}

// NewRouter wires middleware and mounts all feature handlers.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cfg.Metrics.Middleware)

	cfg.Principals.Register(r)
	cfg.Health.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAPIKey(cfg.Authenticator, cfg.Logger))
		cfg.Ingest.Register(authed)
		cfg.Trail.Register(authed)
	})

	return r
}
