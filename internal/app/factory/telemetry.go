package factory

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"authinfo/internal/config"
	"authinfo/internal/telemetry"
)

// CreateTelemetry creates OpenTelemetry providers. OTel metrics are exported
// through reg so they appear on the same /metrics endpoint.
func CreateTelemetry(cfg *config.Telemetry, reg prometheus.Registerer, logger *slog.Logger) (*telemetry.Telemetry, error) {
	tel, err := telemetry.New(*cfg, telemetry.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	if cfg.Enabled {
		logger.Info("Telemetry enabled",
			"service", cfg.Service,
			"tracing", cfg.Tracing.Enabled,
			"metrics", cfg.Metrics.Enabled,
		)
	}
	return tel, nil
}
