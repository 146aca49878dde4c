package factory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"authinfo/internal/circuitbreaker"
	"authinfo/internal/config"
	"authinfo/internal/middleware"
	"authinfo/internal/middleware/ratelimit"
	"authinfo/internal/retry"
	"authinfo/internal/storage"
	"authinfo/internal/storage/breaker"
	"authinfo/internal/storage/memory"
	"authinfo/internal/storage/redis"
)

// CreateLimiterStore creates the limiter store named by the rate limit config
func CreateLimiterStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.LimiterStore, error) {
	switch cfg.RateLimit.Store {
	case "memory", "":
		logger.Info("Creating memory limiter store")
		return memory.NewStore(storage.DefaultConfig()), nil

	case "redis":
		client, err := connectRedis(ctx, &cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Creating Redis limiter store", "address", cfg.Redis.Address, "db", cfg.Redis.DB)

		var store storage.LimiterStore = redis.NewStore(client, storage.DefaultConfig())
		if bc := cfg.Redis.Breaker; bc.Enabled {
			store = breaker.New(store, circuitbreaker.New(circuitbreaker.Config{
				MaxFailures: bc.MaxFailures,
				Timeout:     bc.TimeoutDuration(),
				OnStateChange: func(from, to circuitbreaker.State) {
					logger.Warn("Redis circuit breaker state changed", "from", from, "to", to)
				},
			}))
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.RateLimit.Store)
	}
}

func connectRedis(ctx context.Context, cfg *config.Redis, logger *slog.Logger) (goredis.UniversalClient, error) {
	var client goredis.UniversalClient

	r := retry.New(retry.Config{
		MaxAttempts:  cfg.ConnectRetries,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Warn("Redis not reachable, retrying",
				"address", cfg.Address,
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		},
	})

	err := r.Do(ctx, func(ctx context.Context) error {
		c, err := redis.NewClient(ctx, redis.Options{
			Address:  cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// CreateRateLimitMiddleware creates per-client rate limiting backed by store
func CreateRateLimitMiddleware(cfg *config.RateLimit, store storage.LimiterStore, onReject func(string), logger *slog.Logger) middleware.Middleware {
	limit := storage.Limit{
		Rate:   cfg.Rate,
		Burst:  cfg.Burst,
		Window: cfg.WindowDuration(),
	}

	logger.Info("Rate limiting configured",
		"rate", limit.Rate,
		"burst", limit.Burst,
		"window", limit.Window,
		"store", cfg.Store,
	)

	return ratelimit.Middleware(ratelimit.Config{
		Limit:    limit,
		KeyFunc:  ratelimit.ByIP(cfg.TrustForwardedFor),
		Logger:   logger.With("middleware", "ratelimit"),
		Store:    store,
		OnReject: onReject,
	})
}
