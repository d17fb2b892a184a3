// Package accesslog provides a middleware that records every request.
package accesslog

import (
	"net/http"
	"time"

	"github.com/KretovDmitry/backoffice/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler returns a middleware that logs method, path, status, size and
// duration of every request. Place it after middleware.RequestID so the
// entries carry the request id.
func Handler(l logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			l.With(r.Context(), "duration_ms", time.Since(start).Milliseconds(), "status", status).
				Infof("%s %s %s %d %d", r.Method, r.URL.Path, r.Proto, status, ww.BytesWritten())
		}

		return http.HandlerFunc(fn)
	}
}
