package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veritrail/pkg/platform/httputil"
)

// HealthChecker reports one component's availability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthCheckFunc adapts plain functions to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) Health(ctx context.Context) error { return f(ctx) }

// HealthHandler reports liveness plus per-component states. The process is
// healthy as long as it can serve; degraded components are reported, not
// fatal, matching the degraded-read posture of the rest of the service.
type HealthHandler struct {
	components map[string]HealthChecker
}

func NewHealthHandler(components map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{components: components}
}

func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	components := make(map[string]string, len(h.components))
	for name, checker := range h.components {
		if checker == nil {
			components[name] = "disabled"
			continue
		}
		if err := checker.Health(ctx); err != nil {
			components[name] = "unavailable: " + err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	httputil.WriteJSON(w, http.StatusOK, healthResponse{
		Status:     status,
		Components: components,
		CheckedAt:  time.Now().UTC(),
	})
}
