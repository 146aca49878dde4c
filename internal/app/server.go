package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"sync"

	httpAdapter "authinfo/internal/adapter/http"
	"authinfo/internal/authinfo"
	"authinfo/internal/config"
	"authinfo/internal/management"
	"authinfo/internal/metrics"
	"authinfo/internal/storage"
	"authinfo/internal/telemetry"
)

// Server represents the authinfo server
type Server struct {
	config     *config.Config
	configPath string
	source     *authinfo.Source
	adapter    *httpAdapter.Adapter
	store      storage.LimiterStore
	metrics    *metrics.Metrics
	telemetry  *telemetry.Telemetry
	watcher    *config.Watcher
	management *management.API
	logger     *slog.Logger
	mu         sync.Mutex
}

// NewServer creates a new server without hot reload
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	return NewBuilder(cfg, logger).Build(ctx)
}

// Start starts the HTTP listener and, when a config path is set, the config
// watcher. It returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		"host", s.config.Server.HTTP.Host,
		"port", s.config.Server.HTTP.Port,
	)
	if err := s.adapter.Start(ctx); err != nil {
		return fmt.Errorf("HTTP server: %w", err)
	}

	if s.management != nil {
		if err := s.management.Start(ctx); err != nil {
			_ = s.adapter.Stop(ctx)
			return fmt.Errorf("management API: %w", err)
		}
	}

	if s.configPath != "" {
		watcher, err := config.NewWatcher(s.configPath, &config.WatcherConfig{
			DebounceDuration: config.DefaultWatcherConfig().DebounceDuration,
			OnChange:         s.Reload,
			OnError:          s.reloadFailed,
		}, s.logger)
		if err != nil {
			_ = s.adapter.Stop(ctx)
			if s.management != nil {
				_ = s.management.Stop(ctx)
			}
			return fmt.Errorf("config watcher: %w", err)
		}
		watcher.Start()

		s.mu.Lock()
		s.watcher = watcher
		s.mu.Unlock()
		s.logger.Info("Watching configuration", "path", watcher.Path())
	}

	s.logger.Info("authinfo started successfully", "addr", s.adapter.Addr())
	return nil
}

// Stop stops the watcher and HTTP server, then releases the limiter store
// and flushes telemetry.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error

	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping config watcher: %w", err))
		}
	}

	if s.management != nil {
		if err := s.management.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stopping management API: %w", err))
		}
	}

	if err := s.adapter.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stopping HTTP server: %w", err))
	}

	s.cleanup(ctx)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	s.logger.Info("authinfo stopped successfully")
	return nil
}

// cleanup releases resources created by Build
func (s *Server) cleanup(ctx context.Context) {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("closing limiter store", "error", err)
		}
		s.store = nil
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Warn("shutting down telemetry", "error", err)
		}
	}
}

// Reload applies the OAuth2 section of cfg. Other sections need a restart
// and are compared against the configuration the server was built with.
// Failures are counted by the watcher's error callback.
func (s *Server) Reload(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.source.Update(cfg.OAuth2.Settings(), cfg.OAuth2.IssuerRules); err != nil {
		return fmt.Errorf("applying oauth2 settings: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ConfigReloaded(nil)
	}

	if restartRequired(s.config, cfg) {
		s.logger.Warn("configuration changes outside oauth2 require a restart")
	}
	s.logger.Info("configuration reloaded",
		"accessTokenUri", cfg.OAuth2.Client.AccessTokenURI,
		"clientId", cfg.OAuth2.Client.ClientID,
	)
	return nil
}

// reloadFromFile reloads the watched config file on demand
func (s *Server) reloadFromFile(context.Context) error {
	cfg, err := config.Load(s.configPath)
	if err == nil {
		err = s.Reload(cfg)
	}
	if err != nil {
		s.reloadFailed(err)
		return err
	}
	return nil
}

func (s *Server) reloadFailed(err error) {
	if s.metrics != nil {
		s.metrics.ConfigReloaded(err)
	}
}

func (s *Server) rateLimited(key string) {
	if s.metrics != nil {
		s.metrics.RateLimited(key)
	}
}

func restartRequired(prev, next *config.Config) bool {
	a, b := *prev, *next
	a.OAuth2, b.OAuth2 = config.OAuth2{}, config.OAuth2{}
	return !reflect.DeepEqual(a, b)
}

// Handler returns the fully wired HTTP handler
func (s *Server) Handler() http.Handler {
	return s.adapter.Handler()
}

// Addr returns the bound listener address, or nil before Start
func (s *Server) Addr() net.Addr {
	return s.adapter.Addr()
}

// ManagementAddr returns the management listener address, or nil when the
// management API is disabled or not started
func (s *Server) ManagementAddr() net.Addr {
	if s.management == nil {
		return nil
	}
	return s.management.Addr()
}
