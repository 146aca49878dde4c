package factory

import (
	"github.com/prometheus/client_golang/prometheus"

	"authinfo/internal/config"
	"authinfo/internal/metrics"
	"authinfo/internal/middleware"
	metricsMiddleware "authinfo/internal/middleware/metrics"
)

// CreateMetrics creates a metrics instance on reg
func CreateMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.NewWithRegistry(reg, reg)
}

// CreateMetricsMiddleware creates metrics collection middleware labelled by
// the routes served
func CreateMetricsMiddleware(m *metrics.Metrics, routes ...string) middleware.Middleware {
	return metricsMiddleware.Middleware(m, routes...)
}

// ShouldEnableMetrics checks if metrics should be enabled based on config
func ShouldEnableMetrics(cfg *config.Metrics) bool {
	return cfg != nil && cfg.Enabled
}
