package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OtherPath is the path label used for requests outside the known routes
const OtherPath = "other"

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec

	// Rate limiting metrics
	RateLimitRejected prometheus.Counter

	// Config metrics
	ConfigReloads *prometheus.CounterVec

	// Issuer metrics
	IssuerResolutions *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewWithRegistry creates a new Metrics instance with a custom registry
func NewWithRegistry(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authinfo_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authinfo_http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "authinfo_http_requests_active",
				Help: "Number of active HTTP requests",
			},
			[]string{"method", "path"},
		),
		RateLimitRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "authinfo_ratelimit_rejected_total",
				Help: "Total number of requests rejected due to rate limiting",
			},
		),
		ConfigReloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authinfo_config_reloads_total",
				Help: "Total number of configuration reloads by result",
			},
			[]string{"result"},
		),
		IssuerResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authinfo_issuer_resolutions_total",
				Help: "Total number of issuer derivations by matched provider",
			},
			[]string{"provider"},
		),
		gatherer: gatherer,
	}
}

// IssuerResolved records one issuer derivation. An empty provider means no
// rule matched and is reported as "none".
func (m *Metrics) IssuerResolved(_ context.Context, provider string) {
	if provider == "" {
		provider = "none"
	}
	m.IssuerResolutions.WithLabelValues(provider).Inc()
}

// RateLimited records a rejected request
func (m *Metrics) RateLimited(string) {
	m.RateLimitRejected.Inc()
}

// ConfigReloaded records the outcome of a configuration reload
func (m *Metrics) ConfigReloaded(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.ConfigReloads.WithLabelValues(result).Inc()
}

// NormalizePath maps path onto one of the known routes so labels stay bounded
func NormalizePath(path string, routes map[string]bool) string {
	if routes[path] {
		return path
	}
	return OtherPath
}
