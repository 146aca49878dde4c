package recovery

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"authinfo/internal/middleware"
	"authinfo/pkg/errors"
	"authinfo/pkg/requestid"
)

// Config holds recovery middleware configuration
type Config struct {
	// StackTrace enables stack trace logging
	StackTrace bool
	// PanicHandler is called when a panic occurs (optional)
	PanicHandler func(r *http.Request, recovered any, stack []byte)
}

// Middleware creates panic recovery middleware
func Middleware(config Config, logger *slog.Logger) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := middleware.NewStatusRecorder(w)

			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				// Let the server abort the connection as it normally would.
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				stack := debug.Stack()
				logger.Error("panic recovered",
					"panic", recovered,
					"id", requestid.FromContext(r.Context()),
					"path", r.URL.Path,
					"method", r.Method,
				)
				if config.StackTrace {
					logger.Error("stack trace", "stack", string(stack))
				}

				if config.PanicHandler != nil {
					config.PanicHandler(r, recovered, stack)
				}

				// Headers already went out; nothing useful can be sent.
				if rec.WroteHeader() {
					return
				}
				errors.WriteHTTP(rec, errors.NewError(errors.ErrorTypeInternal, "Internal server error").
					WithDetail("panic", fmt.Sprintf("%v", recovered)))
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

// Default creates recovery middleware with default configuration
func Default(logger *slog.Logger) middleware.Middleware {
	return Middleware(Config{
		StackTrace: true,
	}, logger)
}
