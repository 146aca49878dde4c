package metrics

import (
	"net/http"
	"strconv"
	"time"

	"authinfo/internal/metrics"
	"authinfo/internal/middleware"
)

// Middleware creates metrics collection middleware. Paths not listed in
// routes are recorded under a single label.
func Middleware(m *metrics.Metrics, routes ...string) middleware.Middleware {
	known := make(map[string]bool, len(routes))
	for _, route := range routes {
		known[route] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := metrics.NormalizePath(r.URL.Path, known)
			method := r.Method

			active := m.ActiveRequests.WithLabelValues(method, path)
			active.Inc()
			defer active.Dec()

			start := time.Now()
			rec := middleware.NewStatusRecorder(w)
			next.ServeHTTP(rec, r)

			status := strconv.Itoa(rec.Status())
			m.RequestsTotal.WithLabelValues(method, path, status).Inc()
			m.RequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}
