package http

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs one line per request with the level chosen by the
// response status.
func RequestLogger(l logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000,
			}
			if id := middleware.GetReqID(r.Context()); id != "" {
				args = append(args, "request_id", id)
			}

			switch {
			case status >= 500:
				l.Error(r.Context(), "http request", args...)
			case status >= 400:
				l.Warn(r.Context(), "http request", args...)
			default:
				l.Info(r.Context(), "http request", args...)
			}
		})
	}
}
