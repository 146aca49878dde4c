package storage

import (
	"context"
	"time"
)

// Limit describes a token bucket: Rate tokens are refilled every Window,
// up to Burst tokens.
type Limit struct {
	Rate   int
	Burst  int
	Window time.Duration
}

// RefillInterval returns how long it takes to refill one token
func (l Limit) RefillInterval() time.Duration {
	if l.Rate <= 0 {
		return l.Window
	}
	return l.Window / time.Duration(l.Rate)
}

// Result is the outcome of a limiter check
type Result struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long until the request would be allowed; zero when allowed
	RetryAfter time.Duration
}

// LimiterStore defines the interface for rate limiter storage
type LimiterStore interface {
	// Allow checks if a request is allowed for the given key
	Allow(ctx context.Context, key string, limit Limit) (Result, error)

	// AllowN checks if n requests are allowed for the given key
	AllowN(ctx context.Context, key string, n int, limit Limit) (Result, error)

	// Reset resets the bucket for the given key
	Reset(ctx context.Context, key string) error

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error

	// Close closes the store and releases resources
	Close() error
}

// LimiterStoreConfig defines common configuration for limiter stores
type LimiterStoreConfig struct {
	// CleanupInterval is how often to clean up idle entries
	CleanupInterval time.Duration
	// MaxEntries is the maximum number of entries to keep (0 = unlimited)
	MaxEntries int
	// KeyPrefix namespaces keys in shared backends
	KeyPrefix string
}

// DefaultConfig returns default configuration
func DefaultConfig() *LimiterStoreConfig {
	return &LimiterStoreConfig{
		CleanupInterval: 5 * time.Minute,
		MaxEntries:      10000,
		KeyPrefix:       "authinfo:ratelimit:",
	}
}
