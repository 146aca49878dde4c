package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"authinfo/internal/config"
)

func enabledConfig() config.Telemetry {
	return config.Telemetry{
		Enabled: true,
		Service: "authinfo-test",
		Version: "1.0.0",
		Tracing: config.TelemetryTracing{Enabled: true, SampleRate: 1.0},
		Metrics: config.TelemetryMetrics{Enabled: true},
	}
}

func newTestTelemetry(t *testing.T) (*Telemetry, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()

	tel, err := New(enabledConfig(), WithSpanProcessor(spans), WithMetricReader(reader))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(ctx)
	})
	return tel, spans, reader
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(config.Telemetry{Enabled: false})
	if err != nil {
		t.Fatalf("New failed for disabled telemetry: %v", err)
	}

	_, span := tel.Tracer().Start(context.Background(), "noop")
	if span.IsRecording() {
		t.Error("disabled telemetry should not record spans")
	}
	span.End()

	m, err := tel.NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	m.IssuerResolved(context.Background(), "okta")

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestMiddleware_RecordsServerSpan(t *testing.T) {
	tel, spans, _ := newTestTelemetry(t)

	var traceID string
	handler := tel.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = trace.SpanContextFromContext(r.Context()).TraceID().String()
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/auth-info", nil))

	ended := spans.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	span := ended[0]
	if span.Name() != "GET /api/auth-info" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.SpanKind() != trace.SpanKindServer {
		t.Errorf("span kind = %v, want server", span.SpanKind())
	}
	if traceID == "" || traceID != span.SpanContext().TraceID().String() {
		t.Errorf("handler trace id = %q, span trace id = %q", traceID, span.SpanContext().TraceID())
	}

	var status int64
	for _, attr := range span.Attributes() {
		if attr.Key == "http.response.status_code" {
			status = attr.Value.AsInt64()
		}
	}
	if status != 200 {
		t.Errorf("status attribute = %d, want 200", status)
	}
}

func TestMiddleware_ServerErrorStatus(t *testing.T) {
	tel, spans, _ := newTestTelemetry(t)

	tests := []struct {
		code int
		want codes.Code
	}{
		{http.StatusMethodNotAllowed, codes.Unset},
		{http.StatusServiceUnavailable, codes.Error},
	}

	for _, tt := range tests {
		handler := tel.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.code)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

		ended := spans.Ended()
		if got := ended[len(ended)-1].Status().Code; got != tt.want {
			t.Errorf("code %d: span status = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestMiddleware_PropagatesParent(t *testing.T) {
	tel, spans, _ := newTestTelemetry(t)

	// Start a parent span with an independent provider and inject it.
	parentTP := sdktrace.NewTracerProvider()
	defer func() { _ = parentTP.Shutdown(context.Background()) }()
	ctx, parent := parentTP.Tracer("client").Start(context.Background(), "client")
	defer parent.End()

	req := httptest.NewRequest("GET", "/api/auth-info", nil)
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))

	tel.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), req)

	ended := spans.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	if got := ended[0].Parent().SpanID(); got != parent.SpanContext().SpanID() {
		t.Errorf("parent span id = %s, want %s", got, parent.SpanContext().SpanID())
	}
	if ended[0].SpanContext().TraceID() != parent.SpanContext().TraceID() {
		t.Error("server span should join the caller's trace")
	}
}

func TestMiddleware_PanicEndsSpan(t *testing.T) {
	tel, spans, _ := newTestTelemetry(t)

	handler := tel.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic should propagate")
			}
		}()
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	}()

	ended := spans.Ended()
	if len(ended) != 1 || ended[0].Status().Code != codes.Error {
		t.Fatalf("expected one failed span, got %d", len(ended))
	}
}

func TestMetrics_IssuerResolved(t *testing.T) {
	tel, _, reader := newTestTelemetry(t)

	m, err := tel.NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	ctx := context.Background()
	m.IssuerResolved(ctx, "keycloak")
	m.IssuerResolved(ctx, "keycloak")
	m.IssuerResolved(ctx, "")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "authinfo.issuer.lookups" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", md.Data)
			}
			for _, dp := range sum.DataPoints {
				provider, _ := dp.Attributes.Value("authinfo.provider")
				got[provider.AsString()] = dp.Value
			}
		}
	}

	if got["keycloak"] != 2 || got["none"] != 1 {
		t.Errorf("lookups = %v, want keycloak=2 none=1", got)
	}
}

func TestShutdown_Twice(t *testing.T) {
	tel, _, _ := newTestTelemetry(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, "ParentBased{root:AlwaysOnSampler"},
		{1, "ParentBased{root:AlwaysOnSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		got := sampler(tt.rate).Description()
		if len(got) < len(tt.want) || got[:len(tt.want)] != tt.want {
			t.Errorf("sampler(%v) = %q, want prefix %q", tt.rate, got, tt.want)
		}
	}
}
