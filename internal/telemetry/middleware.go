package telemetry

import (
	"net/http"

	"authinfo/internal/middleware"
)

// Middleware wraps every request in a server span
func (t *Telemetry) Middleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := t.StartHTTPServerSpan(r)

			rec := middleware.NewStatusRecorder(w)
			defer func() {
				if p := recover(); p != nil {
					EndHTTPServerSpan(span, http.StatusInternalServerError)
					panic(p)
				}
				EndHTTPServerSpan(span, rec.Status())
			}()

			next.ServeHTTP(rec, r.WithContext(ctx))
		})
	}
}
