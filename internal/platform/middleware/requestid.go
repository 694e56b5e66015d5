package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"carebridge/pkg/requestcontext"
)

const requestIDHeader = "X-Request-Id"

// RequestID assigns a correlation ID to each request (honoring an inbound
// header when present) and pins the request-scoped clock so every component
// handling the request observes one time reading.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())

		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
