// Package observability wires OpenTelemetry traces and RED metrics around
// authorization workflow operations. A nil or disabled Provider is a no-op.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

const instrumentationName = "helm.authz"

// Config selects the OTLP endpoint and sampling.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// OTLPEndpoint is a gRPC host:port.
	OTLPEndpoint string
	// SampleRate in [0,1]; root spans below 1 are ratio sampled.
	SampleRate   float64
	BatchTimeout time.Duration
	Enabled      bool
	Insecure     bool
}

// DefaultConfig returns a disabled config pointing at a local collector.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "helm-authz",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
	}
}

// Provider owns the trace and metric pipelines.
type Provider struct {
	config *Config
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
	tracer trace.Tracer
	inst   *instruments
	logger *slog.Logger
}

// instruments are the RED metrics plus the decision outcome counter.
type instruments struct {
	operations metric.Int64Counter
	errors     metric.Int64Counter
	duration   metric.Float64Histogram
	inFlight   metric.Int64UpDownCounter
	decisions  metric.Int64Counter
}

// New creates a provider. A disabled config yields a provider backed by the
// global no-op tracer and no instruments.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Provider{config: config, logger: slog.Default().With("component", "observability")}
	if !config.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		semconv.DeploymentEnvironment(config.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("observability: resource: %w", err)
	}

	if p.tp, err = newTracerProvider(ctx, config, res); err != nil {
		return nil, err
	}
	if p.mp, err = newMeterProvider(ctx, config, res); err != nil {
		_ = p.tp.Shutdown(ctx)
		return nil, err
	}
	otel.SetTracerProvider(p.tp)
	otel.SetMeterProvider(p.mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	p.tracer = p.tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(config.ServiceVersion))
	if p.inst, err = newInstruments(p.mp.Meter(instrumentationName, metric.WithInstrumentationVersion(config.ServiceVersion))); err != nil {
		return nil, fmt.Errorf("observability: instruments: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
		"endpoint", config.OTLPEndpoint,
		"sample_rate", config.SampleRate,
	)
	return p, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

func newTracerProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(cfg.BatchTimeout)),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	), nil
}

func newMeterProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second))),
	), nil
}

func newInstruments(m metric.Meter) (*instruments, error) {
	var (
		in  instruments
		err error
	)
	if in.operations, err = m.Int64Counter("authz.operations.total",
		metric.WithDescription("Workflow operations started"), metric.WithUnit("{operation}")); err != nil {
		return nil, err
	}
	if in.errors, err = m.Int64Counter("authz.errors.total",
		metric.WithDescription("Workflow operations that failed, by error class"), metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if in.duration, err = m.Float64Histogram("authz.operation.duration",
		metric.WithDescription("Workflow operation latency"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5)); err != nil {
		return nil, err
	}
	if in.inFlight, err = m.Int64UpDownCounter("authz.operations.active",
		metric.WithDescription("Workflow operations in flight"), metric.WithUnit("{operation}")); err != nil {
		return nil, err
	}
	if in.decisions, err = m.Int64Counter("authz.decisions.total",
		metric.WithDescription("Finalized decisions by outcome"), metric.WithUnit("{decision}")); err != nil {
		return nil, err
	}
	return &in, nil
}

// Shutdown flushes both pipelines. Errors are logged, never returned, so that
// shutdown always completes.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "trace provider shutdown failed", "error", err)
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "metric provider shutdown failed", "error", err)
		}
	}
	return nil
}

// Tracer returns the configured tracer, or the global one.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return otel.Tracer(instrumentationName)
	}
	return p.tracer
}

func (p *Provider) enabled() bool { return p != nil && p.inst != nil }

// RecordRequest counts an operation that is not wrapped by TrackOperation.
func (p *Provider) RecordRequest(ctx context.Context, attrs ...attribute.KeyValue) {
	if p.enabled() {
		p.inst.operations.Add(ctx, 1, metric.WithAttributes(metricAttrs(attrs)...))
	}
}

// RecordDecision counts a finalized decision.
func (p *Provider) RecordDecision(ctx context.Context, decision contracts.DeploymentDecision, authorized bool) {
	AnnotateDecision(ctx, decision, authorized)
	if p.enabled() {
		p.inst.decisions.Add(ctx, 1, metric.WithAttributes(
			AttrDecision.String(string(decision)),
			AttrAuthorized.Bool(authorized),
		))
	}
}

// metricKeys are the attributes allowed on metrics. Everything else, request
// ids in particular, stays on the span.
var metricKeys = map[attribute.Key]bool{
	AttrOperation:  true,
	AttrActorRole:  true,
	AttrErrorClass: true,
	AttrDecision:   true,
	AttrAuthorized: true,
}

func metricAttrs(attrs []attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, kv := range attrs {
		if metricKeys[kv.Key] {
			out = append(out, kv)
		}
	}
	return out
}

// TrackOperation opens a span and RED measurements for name. The returned
// func closes both and must be called exactly once. Nil-safe.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := p.Tracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	opAttrs := metric.WithAttributes(append([]attribute.KeyValue{AttrOperation.String(name)}, metricAttrs(attrs)...)...)
	if p.enabled() {
		p.inst.operations.Add(ctx, 1, opAttrs)
		p.inst.inFlight.Add(ctx, 1, opAttrs)
	}

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, ErrorClass(err))
		}
		if p.enabled() {
			p.inst.inFlight.Add(ctx, -1, opAttrs)
			p.inst.duration.Record(ctx, time.Since(start).Seconds(), opAttrs)
			if err != nil {
				p.inst.errors.Add(ctx, 1, opAttrs, metric.WithAttributes(AttrErrorClass.String(ErrorClass(err))))
			}
		}
		span.End()
	}
}
