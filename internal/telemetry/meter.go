package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the OpenTelemetry instruments of the service
type Metrics struct {
	issuerLookups metric.Int64Counter
}

// NewMetrics creates all instruments on the telemetry meter
func (t *Telemetry) NewMetrics() (*Metrics, error) {
	lookups, err := t.meter.Int64Counter(
		"authinfo.issuer.lookups",
		metric.WithDescription("Issuer derivations by matched identity provider"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create issuer lookups counter: %w", err)
	}

	return &Metrics{issuerLookups: lookups}, nil
}

// IssuerResolved records one issuer derivation and tags the current span
func (m *Metrics) IssuerResolved(ctx context.Context, provider string) {
	if provider == "" {
		provider = "none"
	}
	attr := attribute.String("authinfo.provider", provider)
	m.issuerLookups.Add(ctx, 1, metric.WithAttributes(attr))
	AddEvent(ctx, "issuer.resolved", attr)
}
