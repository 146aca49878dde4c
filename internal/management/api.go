package management

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"authinfo/internal/authinfo"
	"authinfo/internal/circuitbreaker"
	"authinfo/internal/config"
	"authinfo/pkg/errors"
)

// Breaker is the circuit breaker guarding the Redis limiter store
type Breaker interface {
	Stats() circuitbreaker.Stats
	Reset()
}

// BucketResetter clears rate limit state for a client key
type BucketResetter interface {
	Reset(ctx context.Context, key string) error
}

// ReloadFunc re-reads the configuration file and applies it
type ReloadFunc func(ctx context.Context) error

// API provides runtime management endpoints
type API struct {
	config  config.Management
	version string
	logger  *slog.Logger
	mux     *http.ServeMux

	mu       sync.RWMutex
	source   *authinfo.Source
	reload   ReloadFunc
	breaker  Breaker
	limiter  BucketResetter
	server   *http.Server
	addr     net.Addr
	started  time.Time
	basePath string
}

// NewAPI creates a new management API
func NewAPI(cfg config.Management, version string, logger *slog.Logger) *API {
	basePath := strings.TrimSuffix(cfg.BasePath, "/")
	if basePath == "" {
		basePath = "/management"
	}

	api := &API{
		config:   cfg,
		version:  version,
		logger:   logger.With("component", "management-api"),
		mux:      http.NewServeMux(),
		started:  time.Now(),
		basePath: basePath,
	}
	api.setupRoutes()

	if cfg.Token == "" {
		api.logger.Warn("management API has no token configured")
	}
	return api
}

// SetSource sets the auth info source reported by the config endpoint
func (api *API) SetSource(source *authinfo.Source) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.source = source
}

// SetReloader enables the config reload endpoint
func (api *API) SetReloader(fn ReloadFunc) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.reload = fn
}

// SetBreaker enables the circuit breaker endpoints
func (api *API) SetBreaker(b Breaker) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.breaker = b
}

// SetLimiter enables the rate limit reset endpoint
func (api *API) SetLimiter(l BucketResetter) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.limiter = l
}

func (api *API) setupRoutes() {
	base := api.basePath

	api.mux.HandleFunc(base+"/info", api.handleInfo)
	api.mux.HandleFunc(base+"/config", api.handleConfig)
	api.mux.HandleFunc(base+"/config/reload", api.handleConfigReload)
	api.mux.HandleFunc(base+"/circuit-breaker", api.handleCircuitBreaker)
	api.mux.HandleFunc(base+"/circuit-breaker/reset", api.handleCircuitBreakerReset)
	api.mux.HandleFunc(base+"/rate-limits/{key}", api.handleRateLimitReset)
	api.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		errors.WriteHTTP(w, errors.NewError(errors.ErrorTypeNotFound, "not found"))
	})
}

// Handler returns the management routes behind token authentication
func (api *API) Handler() http.Handler {
	return api.authMiddleware(api.mux)
}

// Start binds the management listener and serves in the background
func (api *API) Start(ctx context.Context) error {
	addr := api.config.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind management API to %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	api.mu.Lock()
	api.server = server
	api.addr = listener.Addr()
	api.mu.Unlock()

	api.logger.Info("Starting management API", "addr", listener.Addr().String(), "basePath", api.basePath)
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			api.logger.Error("Management API error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start
func (api *API) Addr() net.Addr {
	api.mu.RLock()
	defer api.mu.RUnlock()
	return api.addr
}

// Stop stops the management API server
func (api *API) Stop(ctx context.Context) error {
	api.mu.Lock()
	server := api.server
	api.server = nil
	api.mu.Unlock()

	if server == nil {
		return nil
	}

	api.logger.Info("Stopping management API")
	return server.Shutdown(ctx)
}

func (api *API) authMiddleware(next http.Handler) http.Handler {
	if api.config.Token == "" {
		return next
	}
	want := []byte("Bearer " + api.config.Token)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="management"`)
			errors.WriteHTTP(w, errors.NewError(errors.ErrorTypeUnauthorized, "invalid token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// InfoResponse describes the running process
type InfoResponse struct {
	Version   string    `json:"version"`
	StartTime time.Time `json:"startTime"`
	Uptime    string    `json:"uptime"`
	GoVersion string    `json:"goVersion"`
}

// Rule is an issuer rule as reported by the config endpoint
type Rule struct {
	Marker   string `json:"marker"`
	Provider string `json:"provider"`
}

// ConfigResponse is the OAuth2 configuration currently served
type ConfigResponse struct {
	AccessTokenURI string `json:"accessTokenUri"`
	ClientID       string `json:"clientId"`
	Scope          string `json:"scope"`
	Issuer         string `json:"issuer"`
	Provider       string `json:"provider"`
	IssuerRules    []Rule `json:"issuerRules"`
}

// BreakerResponse reports the Redis circuit breaker
type BreakerResponse struct {
	State       string     `json:"state"`
	Failures    int        `json:"failures"`
	OpenedAt    *time.Time `json:"openedAt,omitempty"`
	Transitions uint64     `json:"transitions"`
}

func (api *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	api.writeJSON(w, http.StatusOK, InfoResponse{
		Version:   api.version,
		StartTime: api.started,
		Uptime:    time.Since(api.started).Round(time.Second).String(),
		GoVersion: runtime.Version(),
	})
}

func (api *API) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	resp, ok := api.currentConfig()
	if !ok {
		errors.WriteHTTP(w, errors.NewError(errors.ErrorTypeUnavailable, "configuration not loaded"))
		return
	}
	api.writeJSON(w, http.StatusOK, resp)
}

func (api *API) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	api.mu.RLock()
	reload := api.reload
	api.mu.RUnlock()

	if reload == nil {
		errors.WriteHTTP(w, errors.NewError(errors.ErrorTypeUnavailable, "reload requires a configuration file"))
		return
	}

	if err := reload(r.Context()); err != nil {
		api.logger.Warn("Configuration reload failed", "error", err)
		errors.WriteHTTP(w, errors.NewError(errors.ErrorTypeConfig, "reload failed: "+err.Error()).WithCause(err))
		return
	}

	api.logger.Info("Configuration reloaded through management API")
	resp, _ := api.currentConfig()
	api.writeJSON(w, http.StatusOK, resp)
}

func (api *API) handleCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	b := api.getBreaker()
	if b == nil {
		errors.WriteHTTP(w, errors.NewError(errors.ErrorTypeNotFound, "no circuit breaker configured"))
		return
	}
	api.writeJSON(w, http.StatusOK, breakerResponse(b.Stats()))
}

func (api *API) handleCircuitBreakerReset(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	b := api.getBreaker()
	if b == nil {
		errors.WriteHTTP(w, errors.NewError(errors.ErrorTypeNotFound, "no circuit breaker configured"))
		return
	}

	b.Reset()
	api.logger.Info("Circuit breaker reset through management API")
	api.writeJSON(w, http.StatusOK, breakerResponse(b.Stats()))
}

func (api *API) handleRateLimitReset(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodDelete) {
		return
	}

	api.mu.RLock()
	limiter := api.limiter
	api.mu.RUnlock()

	if limiter == nil {
		errors.WriteHTTP(w, errors.NewError(errors.ErrorTypeNotFound, "rate limiting is disabled"))
		return
	}

	key := r.PathValue("key")
	if err := limiter.Reset(r.Context(), key); err != nil {
		errors.WriteHTTP(w, errors.NewError(errors.ErrorTypeUnavailable, "failed to reset rate limit").WithCause(err))
		return
	}

	api.logger.Info("Rate limit reset through management API", "key", key)
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) currentConfig() (ConfigResponse, bool) {
	api.mu.RLock()
	source := api.source
	api.mu.RUnlock()

	if source == nil {
		return ConfigResponse{}, false
	}
	snap := source.Load()
	if snap == nil {
		return ConfigResponse{}, false
	}

	issuer, provider := snap.Resolver.Issuer(snap.Settings.AccessTokenURI)
	resp := ConfigResponse{
		AccessTokenURI: snap.Settings.AccessTokenURI,
		ClientID:       snap.Settings.ClientID,
		Scope:          snap.Settings.Scope,
		Issuer:         issuer,
		Provider:       provider,
	}
	for _, rule := range snap.Resolver.Rules() {
		resp.IssuerRules = append(resp.IssuerRules, Rule{Marker: rule.Marker, Provider: rule.Provider})
	}
	return resp, true
}

func (api *API) getBreaker() Breaker {
	api.mu.RLock()
	defer api.mu.RUnlock()
	return api.breaker
}

func breakerResponse(stats circuitbreaker.Stats) BreakerResponse {
	resp := BreakerResponse{
		State:       stats.State.String(),
		Failures:    stats.Failures,
		Transitions: stats.Transitions,
	}
	if !stats.OpenedAt.IsZero() {
		opened := stats.OpenedAt
		resp.OpenedAt = &opened
	}
	return resp
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	errors.WriteHTTP(w, errors.NewError(errors.ErrorTypeMethodNotAllowed, "method not allowed"))
	return false
}

func (api *API) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		api.logger.Error("Failed to encode response", "error", err)
	}
}
