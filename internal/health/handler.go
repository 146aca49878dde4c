package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Check represents a health check function
type Check func(ctx context.Context) error

type registered struct {
	check Check
	ready bool
}

// Checker manages health checks
type Checker struct {
	checks map[string]registered
	mu     sync.RWMutex
}

// NewChecker creates a new health checker
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]registered),
	}
}

// RegisterCheck registers a check reported by /health only
func (c *Checker) RegisterCheck(name string, check Check) {
	c.register(name, check, false)
}

// RegisterReadyCheck registers a check that also gates /ready
func (c *Checker) RegisterReadyCheck(name string, check Check) {
	c.register(name, check, true)
}

func (c *Checker) register(name string, check Check, ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registered{check: check, ready: ready}
}

// CheckHealth runs all health checks concurrently
func (c *Checker) CheckHealth(ctx context.Context) map[string]CheckResult {
	return c.run(ctx, false)
}

// CheckReady runs the checks registered with RegisterReadyCheck
func (c *Checker) CheckReady(ctx context.Context) map[string]CheckResult {
	return c.run(ctx, true)
}

func (c *Checker) run(ctx context.Context, readyOnly bool) map[string]CheckResult {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, reg := range c.checks {
		if readyOnly && !reg.ready {
			continue
		}
		checks[name] = reg.check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var wg sync.WaitGroup
	var resultsMu sync.Mutex

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()

			start := time.Now()
			err := check(ctx)

			result := CheckResult{
				Status:   StatusHealthy,
				Duration: time.Since(start),
			}
			if err != nil {
				result.Status = StatusUnhealthy
				result.Error = err.Error()
			}

			resultsMu.Lock()
			results[name] = result
			resultsMu.Unlock()
		}(name, check)
	}

	wg.Wait()
	return results
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Version   string                 `json:"version,omitempty"`
}

// Handler creates HTTP handlers for health endpoints
type Handler struct {
	checker *Checker
	version string
	timeout time.Duration
}

// NewHandler creates a new health handler. Checks are cancelled after timeout.
func NewHandler(checker *Checker, version string, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{
		checker: checker,
		version: version,
		timeout: timeout,
	}
}

// Health handles the /health endpoint
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	results := h.checker.CheckHealth(ctx)
	status := overall(results)

	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    results,
		Version:   h.version,
	})
}

// Ready handles the /ready endpoint
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ready := overall(h.checker.CheckReady(ctx)) == StatusHealthy

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"ready":     ready,
		"timestamp": time.Now(),
	})
}

// Live handles the /live endpoint (Kubernetes liveness probe)
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now(),
	})
}

func overall(results map[string]CheckResult) Status {
	for _, result := range results {
		if result.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
	}
	return StatusHealthy
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
