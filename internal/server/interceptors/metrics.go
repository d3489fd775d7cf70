package interceptors

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestRecorder records completed HTTP requests.
type RequestRecorder interface {
	HTTPRequest(route, method string, status int, d time.Duration)
}

// RequestMetrics records every request under its chi route pattern. Unmatched requests are recorded
// as "unmatched" so label cardinality stays bounded.
func RequestMetrics(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}
			rec.HTTPRequest(route, r.Method, status, time.Since(start))
		})
	}
}
