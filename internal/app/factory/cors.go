package factory

import (
	"authinfo/internal/config"
	"authinfo/internal/middleware"
	"authinfo/internal/middleware/cors"
	"authinfo/pkg/requestid"
)

// CreateCORSMiddleware creates CORS middleware, or nil when CORS is disabled
func CreateCORSMiddleware(cfg *config.CORS) middleware.Middleware {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg.AllowedOrigins = cfg.AllowedOrigins
	}
	if len(cfg.AllowedMethods) > 0 {
		corsCfg.AllowedMethods = cfg.AllowedMethods
	}
	if len(cfg.AllowedHeaders) > 0 {
		corsCfg.AllowedHeaders = cfg.AllowedHeaders
	}
	corsCfg.ExposedHeaders = append([]string{
		requestid.Header,
		"X-RateLimit-Limit",
		"X-RateLimit-Remaining",
		"Retry-After",
	}, cfg.ExposedHeaders...)
	corsCfg.AllowCredentials = cfg.AllowCredentials
	if cfg.MaxAge > 0 {
		corsCfg.MaxAge = cfg.MaxAge
	}

	return cors.New(corsCfg).Handler
}
