package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"emojifed/internal/federation/handler"
	"emojifed/internal/platform/metrics"
	"emojifed/pkg/platform/httputil"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps are the pieces the router mounts. Gatherer and Health are optional.
type Deps struct {
	Federation     handler.Service
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Health         HealthCheck
	Storage        string
	RequestTimeout time.Duration
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewRouter wires the federation API plus the operational endpoints.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	handler.New(deps.Federation, logger, deps.Metrics, deps.RequestTimeout).Register(r)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "health check failed", "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
					Status:  "unhealthy",
					Storage: deps.Storage,
					Error:   err.Error(),
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Storage: deps.Storage})
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}
