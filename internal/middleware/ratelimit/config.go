package ratelimit

import (
	"log/slog"

	"authinfo/internal/storage"
)

// Config defines rate limit configuration with storage backend
type Config struct {
	Limit storage.Limit
	// KeyFunc extracts the rate limit key from request; defaults to ByIP(false)
	KeyFunc KeyFunc
	Logger  *slog.Logger
	Store   storage.LimiterStore
	// OnReject is called for every rejected request
	OnReject func(key string)
}
