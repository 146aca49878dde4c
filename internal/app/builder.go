package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpAdapter "authinfo/internal/adapter/http"
	"authinfo/internal/app/factory"
	"authinfo/internal/authinfo"
	"authinfo/internal/config"
	"authinfo/internal/management"
	"authinfo/internal/middleware"
	"authinfo/internal/middleware/recovery"
	"authinfo/internal/storage/breaker"
)

// Builder builds the authinfo application
type Builder struct {
	config     *config.Config
	configPath string
	version    string
	logger     *slog.Logger
}

// NewBuilder creates a new application builder
func NewBuilder(cfg *config.Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		config:  cfg,
		version: "dev",
		logger:  logger,
	}
}

// WithConfigPath enables hot reload of the given file
func (b *Builder) WithConfigPath(path string) *Builder {
	b.configPath = path
	return b
}

// WithVersion sets the version reported by /health
func (b *Builder) WithVersion(version string) *Builder {
	if version != "" {
		b.version = version
	}
	return b
}

// Build constructs the server. Nothing listens until Start.
func (b *Builder) Build(ctx context.Context) (*Server, error) {
	cfg := b.config
	cfg.ApplyDefaults()

	source, err := authinfo.NewSource(cfg.OAuth2.Settings(), cfg.OAuth2.IssuerRules)
	if err != nil {
		return nil, fmt.Errorf("creating auth info source: %w", err)
	}

	s := &Server{
		config:     cfg,
		configPath: b.configPath,
		source:     source,
		logger:     b.logger,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := authinfo.NewHandler(source, b.logger)

	if factory.ShouldEnableMetrics(&cfg.Metrics) {
		s.metrics = factory.CreateMetrics(registry)
		handler.WithRecorder(s.metrics)
	}

	s.telemetry, err = factory.CreateTelemetry(&cfg.Telemetry, registry, b.logger)
	if err != nil {
		return nil, fmt.Errorf("creating telemetry: %w", err)
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Metrics.Enabled {
		otelMetrics, err := s.telemetry.NewMetrics()
		if err != nil {
			s.cleanup(ctx)
			return nil, fmt.Errorf("creating telemetry metrics: %w", err)
		}
		handler.WithRecorder(otelMetrics)
	}

	var apiMiddleware []middleware.Middleware
	if mw := factory.CreateCORSMiddleware(&cfg.CORS); mw != nil {
		apiMiddleware = append(apiMiddleware, mw)
		b.logger.Info("CORS enabled", "origins", cfg.CORS.AllowedOrigins)
	}

	if cfg.RateLimit.Enabled {
		s.store, err = factory.CreateLimiterStore(ctx, cfg, b.logger)
		if err != nil {
			s.cleanup(ctx)
			return nil, fmt.Errorf("creating limiter store: %w", err)
		}
		apiMiddleware = append(apiMiddleware,
			factory.CreateRateLimitMiddleware(&cfg.RateLimit, s.store, s.rateLimited, b.logger))
	}

	s.adapter, err = factory.CreateHTTPAdapter(&cfg.Server.HTTP, b.logger)
	if err != nil {
		s.cleanup(ctx)
		return nil, fmt.Errorf("creating HTTP adapter: %w", err)
	}
	s.adapter.Handle(authinfo.Path, middleware.Chain(apiMiddleware...)(handler))

	routes := []string{authinfo.Path}
	if cfg.Health.Enabled {
		checker := factory.CreateHealthChecker(cfg, source, s.store, b.logger)
		s.adapter.WithHealthHandler(factory.CreateHealthHandler(&cfg.Health, checker, b.version), httpAdapter.HealthPaths{
			Health: cfg.Health.HealthPath,
			Ready:  cfg.Health.ReadyPath,
			Live:   cfg.Health.LivePath,
		})
		routes = append(routes, cfg.Health.HealthPath, cfg.Health.ReadyPath, cfg.Health.LivePath)
		b.logger.Info("Health checks enabled",
			"health", cfg.Health.HealthPath,
			"ready", cfg.Health.ReadyPath,
			"live", cfg.Health.LivePath,
		)
	}

	if s.metrics != nil {
		s.adapter.WithMetricsHandler(cfg.Metrics.Path, s.metrics.Handler())
		routes = append(routes, cfg.Metrics.Path)
		b.logger.Info("Metrics enabled", "path", cfg.Metrics.Path)
	}

	s.adapter.WithMiddleware(recovery.Default(b.logger), middleware.RequestID())
	if cfg.Telemetry.Enabled && cfg.Telemetry.Tracing.Enabled {
		s.adapter.WithMiddleware(s.telemetry.Middleware())
	}
	if s.metrics != nil {
		s.adapter.WithMiddleware(factory.CreateMetricsMiddleware(s.metrics, routes...))
	}
	s.adapter.WithMiddleware(middleware.Logging(b.logger.With("component", "access")))

	if cfg.Management.Enabled {
		s.management = b.buildManagement(s)
	}

	return s, nil
}

func (b *Builder) buildManagement(s *Server) *management.API {
	api := management.NewAPI(b.config.Management, b.version, b.logger)
	api.SetSource(s.source)

	if s.configPath != "" {
		api.SetReloader(s.reloadFromFile)
	}
	if s.store != nil {
		api.SetLimiter(s.store)
	}
	if guarded, ok := s.store.(*breaker.Store); ok {
		api.SetBreaker(guarded.Breaker())
	}
	return api
}
