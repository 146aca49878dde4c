package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"authinfo/internal/config"
)

const instrumentationName = "authinfo"

// Telemetry manages OpenTelemetry providers
type Telemetry struct {
	config     config.Telemetry
	opts       options
	tracer     trace.Tracer
	meter      metric.Meter
	shutdown   []func(context.Context) error
	resource   *resource.Resource
	propagator propagation.TextMapPropagator
}

type options struct {
	spanProcessor sdktrace.SpanProcessor
	metricReader  sdkmetric.Reader
	registerer    promclient.Registerer
}

// Option customizes provider construction
type Option func(*options)

// WithSpanProcessor replaces the OTLP exporter with the given processor
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanProcessor = sp }
}

// WithMetricReader replaces the Prometheus exporter with the given reader
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.metricReader = r }
}

// WithRegisterer sets the Prometheus registry the OTel exporter registers with
func WithRegisterer(reg promclient.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New creates a new telemetry instance. Disabled parts get no-op providers.
func New(cfg config.Telemetry, opts ...Option) (*Telemetry, error) {
	t := &Telemetry{
		config:     cfg,
		tracer:     tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:      metricnoop.NewMeterProvider().Meter(instrumentationName),
		propagator: propagation.NewCompositeTextMapPropagator(),
	}
	for _, opt := range opts {
		opt(&t.opts)
	}

	if !cfg.Enabled {
		return t, nil
	}

	if err := t.initResource(); err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.Tracing.Enabled {
		if err := t.initTracing(); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.Metrics.Enabled {
		if err := t.initMetrics(); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	t.propagator = propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(t.propagator)

	return t, nil
}

func (t *Telemetry) initResource() error {
	service := t.config.Service
	if service == "" {
		service = instrumentationName
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(service)}
	if t.config.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(t.config.Version))
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return err
	}

	t.resource = res
	return nil
}

func (t *Telemetry) initTracing() error {
	sp := t.opts.spanProcessor
	if sp == nil {
		opts := []otlptracehttp.Option{
			otlptracehttp.WithTimeout(10 * time.Second),
			otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
				Enabled:         true,
				InitialInterval: 5 * time.Second,
				MaxInterval:     30 * time.Second,
				MaxElapsedTime:  time.Minute,
			}),
		}
		if t.config.Tracing.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(t.config.Tracing.Endpoint))
		}
		if t.config.Tracing.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(t.config.Tracing.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(t.config.Tracing.Headers))
		}

		// New does not dial; export errors surface later through the otel error handler.
		exporter, err := otlptracehttp.New(context.Background(), opts...)
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		sp = sdktrace.NewBatchSpanProcessor(exporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sp),
		sdktrace.WithResource(t.resource),
		sdktrace.WithSampler(sampler(t.config.Tracing.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	t.tracer = tp.Tracer(instrumentationName)
	t.shutdown = append(t.shutdown, tp.Shutdown)
	return nil
}

// sampler keeps everything for rates outside (0,1); parent decisions are honoured.
func sampler(rate float64) sdktrace.Sampler {
	if rate > 0 && rate < 1 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
	return sdktrace.ParentBased(sdktrace.AlwaysSample())
}

func (t *Telemetry) initMetrics() error {
	reader := t.opts.metricReader
	if reader == nil {
		promOpts := []prometheus.Option{prometheus.WithoutScopeInfo()}
		if t.opts.registerer != nil {
			promOpts = append(promOpts, prometheus.WithRegisterer(t.opts.registerer))
		}
		exporter, err := prometheus.New(promOpts...)
		if err != nil {
			return fmt.Errorf("failed to create metrics exporter: %w", err)
		}
		reader = exporter
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(t.resource),
	)

	otel.SetMeterProvider(mp)
	t.meter = mp.Meter(instrumentationName)
	t.shutdown = append(t.shutdown, mp.Shutdown)
	return nil
}

// Tracer returns the tracer
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// Shutdown flushes and stops the providers. Safe to call more than once.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdown = nil
	return errors.Join(errs...)
}
