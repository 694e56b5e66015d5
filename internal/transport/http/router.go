// Package httptransport assembles the public HTTP surface. Feature handlers
// mount themselves; this layer adds the process-wide middleware and the
// operational endpoints.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carebridge/internal/platform/metrics"
	"carebridge/internal/platform/middleware"
)

// Registrar is implemented by every feature handler.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires the root router: request latency observation, the JSON
// content type, health and metrics endpoints, then every feature handler.
func NewRouter(m *metrics.Metrics, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	if m != nil {
		r.Use(middleware.LatencyMiddleware(m))
	}
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
