package factory

import (
	"context"
	"log/slog"
	"net/http"

	"authinfo/internal/authinfo"
	"authinfo/internal/config"
	"authinfo/internal/health"
	"authinfo/internal/storage"
	"authinfo/pkg/errors"
)

var errNotLoaded = errors.NewError(errors.ErrorTypeUnavailable, "configuration not loaded")

// CreateHealthChecker creates a health checker with the checks the
// configuration asks for. store may be nil.
func CreateHealthChecker(cfg *config.Config, source *authinfo.Source, store storage.LimiterStore, logger *slog.Logger) *health.Checker {
	checker := health.NewChecker()

	checker.RegisterReadyCheck("config", func(ctx context.Context) error {
		if source.Load() == nil {
			return errNotLoaded
		}
		return nil
	})

	if store != nil && cfg.RateLimit.Enabled && cfg.RateLimit.Store == "redis" {
		checker.RegisterCheck("redis", health.PingCheck(store.Ping))
	}

	if ic := cfg.Health.IssuerCheck; ic.Enabled {
		issuer := func() string {
			snap := source.Load()
			iss, _ := snap.Resolver.Issuer(snap.Settings.AccessTokenURI)
			return iss
		}
		client := &http.Client{Timeout: ic.TimeoutDuration()}
		checker.RegisterCheck("issuer", health.NewIssuerCheck(issuer, ic.CacheTTLDuration(), client).Check)
		logger.Info("Issuer discovery check enabled", "cacheTTL", ic.CacheTTLDuration())
	}

	return checker
}

// CreateHealthHandler creates the health check HTTP handler
func CreateHealthHandler(cfg *config.Health, checker *health.Checker, version string) *health.Handler {
	return health.NewHandler(checker, version, cfg.TimeoutDuration())
}
