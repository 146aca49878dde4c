package authinfo

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"authinfo/pkg/errors"
)

// Path is where the handler is mounted
const Path = "/api/auth-info"

// Recorder observes issuer resolutions. Provider is "" when no rule matched.
type Recorder interface {
	IssuerResolved(ctx context.Context, provider string)
}

// Handler serves GET /api/auth-info
type Handler struct {
	source    *Source
	recorders []Recorder
	logger    *slog.Logger
}

// NewHandler creates a new auth-info handler
func NewHandler(source *Source, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		source: source,
		logger: logger.With("component", "authinfo"),
	}
}

// WithRecorder adds a resolution recorder
func (h *Handler) WithRecorder(recorder Recorder) *Handler {
	if recorder != nil {
		h.recorders = append(h.recorders, recorder)
	}
	return h
}

// Get builds the AuthInfo for the current configuration
func (h *Handler) Get(ctx context.Context) AuthInfo {
	snap := h.source.Load()
	info, provider := NewAuthInfo(snap.Settings, snap.Resolver)

	for _, rec := range h.recorders {
		rec.IssuerResolved(ctx, provider)
	}
	return info
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		errors.WriteHTTP(w, errors.NewError(errors.ErrorTypeMethodNotAllowed, "method not allowed"))
		return
	}

	info := h.Get(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(info); err != nil {
		h.logger.Error("failed to write auth info", "error", err)
	}
}
