package factory

import (
	"fmt"
	"log/slog"

	httpAdapter "authinfo/internal/adapter/http"
	"authinfo/internal/config"
	tlsutil "authinfo/pkg/tls"
)

// CreateHTTPAdapter creates the HTTP adapter, loading TLS material when enabled
func CreateHTTPAdapter(cfg *config.HTTP, logger *slog.Logger) (*httpAdapter.Adapter, error) {
	adapterCfg := httpAdapter.Config{
		Host:         cfg.Host,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
		IdleTimeout:  cfg.IdleTimeoutDuration(),
	}

	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsConfig, err := tlsutil.NewServerConfig(tlsutil.Config{
			CertFile:   cfg.TLS.CertFile,
			KeyFile:    cfg.TLS.KeyFile,
			MinVersion: cfg.TLS.MinVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("create TLS config: %w", err)
		}
		adapterCfg.TLSConfig = tlsConfig
	}

	return httpAdapter.New(adapterCfg, logger), nil
}
