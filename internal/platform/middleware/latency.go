package middleware

import (
	"net/http"
	"strconv"
	"time"

	"carebridge/internal/platform/metrics"
)

// LatencyMiddleware records request duration into the transport histogram.
// A nil metrics value disables recording (test wiring).
func LatencyMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			m.ObserveRequest(r.Method, strconv.Itoa(rec.status), time.Since(start).Seconds())
		})
	}
}
