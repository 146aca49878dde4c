package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"authinfo/internal/middleware"
	"authinfo/pkg/errors"
)

// Adapter serves the HTTP routes of the service
type Adapter struct {
	config     Config
	mux        *http.ServeMux
	middleware []middleware.Middleware
	server     *http.Server
	addr       net.Addr
	reqNum     atomic.Uint64
	logger     *slog.Logger
	mu         sync.Mutex
}

// HealthHandler handles health check requests
type HealthHandler interface {
	Health(w http.ResponseWriter, r *http.Request)
	Ready(w http.ResponseWriter, r *http.Request)
	Live(w http.ResponseWriter, r *http.Request)
}

// HealthPaths are the paths health endpoints are mounted on
type HealthPaths struct {
	Health string
	Ready  string
	Live   string
}

// New creates a new HTTP adapter. Unknown paths get a JSON 404.
func New(cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		config: cfg,
		mux:    http.NewServeMux(),
		logger: logger.With("component", "http"),
	}
	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		errors.WriteHTTP(w, errors.NewError(errors.ErrorTypeNotFound, "not found"))
	})
	return a
}

// Handle registers a handler for an exact path
func (a *Adapter) Handle(path string, handler http.Handler) *Adapter {
	a.mux.Handle(path, handler)
	return a
}

// WithHealthHandler mounts the health endpoints. Empty paths are skipped.
func (a *Adapter) WithHealthHandler(handler HealthHandler, paths HealthPaths) *Adapter {
	if paths.Health != "" {
		a.mux.HandleFunc(paths.Health, handler.Health)
	}
	if paths.Ready != "" {
		a.mux.HandleFunc(paths.Ready, handler.Ready)
	}
	if paths.Live != "" {
		a.mux.HandleFunc(paths.Live, handler.Live)
	}
	return a
}

// WithMetricsHandler mounts the metrics handler
func (a *Adapter) WithMetricsHandler(path string, handler http.Handler) *Adapter {
	a.mux.Handle(path, handler)
	return a
}

// WithMiddleware appends middleware wrapping every route. The first one
// added is the outermost.
func (a *Adapter) WithMiddleware(mw ...middleware.Middleware) *Adapter {
	a.middleware = append(a.middleware, mw...)
	return a
}

// Handler returns the routed handler wrapped in the middleware chain
func (a *Adapter) Handler() http.Handler {
	counted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.reqNum.Add(1)
		a.mux.ServeHTTP(w, r)
	})
	return middleware.Chain(a.middleware...)(counted)
}

// Start binds the listener and serves in the background. Bind errors are
// returned directly.
func (a *Adapter) Start(ctx context.Context) error {
	addr := net.JoinHostPort(a.config.Host, strconv.Itoa(a.config.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:      a.Handler(),
		ReadTimeout:  a.config.ReadTimeout,
		WriteTimeout: a.config.WriteTimeout,
		IdleTimeout:  a.config.IdleTimeout,
		TLSConfig:    a.config.TLSConfig,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	if a.config.TLSConfig != nil {
		a.logger.Info("starting TLS server", "addr", listener.Addr().String())
		listener = tls.NewListener(listener, a.config.TLSConfig)
	} else {
		a.logger.Info("starting server", "addr", listener.Addr().String())
	}

	a.mu.Lock()
	a.server = server
	a.addr = listener.Addr()
	a.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			a.logger.Error("server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start
func (a *Adapter) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Stop gracefully stops the server
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	server := a.server
	a.server = nil
	a.mu.Unlock()

	if server == nil {
		return nil
	}

	a.logger.Info("stopping server", "requests", a.reqNum.Load())
	return server.Shutdown(ctx)
}
