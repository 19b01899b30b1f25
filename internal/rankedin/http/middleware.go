package http

import (
	"log/slog"
	stdhttp "net/http"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// withRequestLog assigns a request id when the client sent none and logs
// one line per request.
func withRequestLog(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: stdhttp.StatusOK}
		next.ServeHTTP(wrapped, r)
		slog.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"request_id", id,
		)
	})
}
