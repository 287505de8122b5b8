package observability

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
}

const DefaultSampleRatio = 0.1

type options struct {
	processors  []sdktrace.SpanProcessor
	sampleRatio float64
}

type Option func(*options)

// WithSpanExporter ships finished spans through a batch span processor.
func WithSpanExporter(exporter sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.processors = append(o.processors, sdktrace.NewBatchSpanProcessor(exporter))
	}
}

// WithSpanProcessor registers a processor as is, e.g. a tracetest.SpanRecorder.
func WithSpanProcessor(processor sdktrace.SpanProcessor) Option {
	return func(o *options) {
		o.processors = append(o.processors, processor)
	}
}

// WithSampleRatio sets the root span sampling ratio; values outside (0, 1]
// keep the default.
func WithSampleRatio(ratio float64) Option {
	return func(o *options) {
		if ratio > 0 && ratio <= 1 {
			o.sampleRatio = ratio
		}
	}
}

// NewTraceExporter creates an OTLP/HTTP span exporter for endpoint (host:port).
func NewTraceExporter(ctx context.Context, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp trace exporter: %w", err)
	}
	return exporter, nil
}

func New(serviceName string, opts ...Option) *Observability {
	cfg := options{sampleRatio: DefaultSampleRatio}
	for _, opt := range opts {
		opt(&cfg)
	}

	res := resource.NewSchemaless(semconv.ServiceName(serviceName))

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.sampleRatio))),
	}
	for _, p := range cfg.processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(p))
	}
	tracerProvider := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tracerProvider)

	o := &Observability{
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(serviceName),
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	o.meterProvider = provider
	o.meter = meter
	o.jobCounter = jobCounter
	o.jobDuration = jobDuration
	return o
}

// NewNoop records nothing. Used by tests and tools.
func NewNoop() *Observability {
	return &Observability{tracer: noop.NewTracerProvider().Tracer("noop")}
}

// Tracer is never nil.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracer == nil {
		return noop.NewTracerProvider().Tracer("noop")
	}
	return o.tracer
}

func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

// Shutdown flushes pending spans and stops the providers.
func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		o.meterProvider.Shutdown(ctx)
	}
}
