package otel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Exporter selects where spans and metrics go.
type Exporter string

const (
	ExporterStdout Exporter = "stdout"
	ExporterOTLP   Exporter = "otlp"
	// ExporterNone keeps spans in process: decorators and propagation still
	// work, nothing is exported.
	ExporterNone   Exporter = "none"
)

// Config holds OpenTelemetry provider configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Exporter       Exporter
	Insecure       bool    // plain HTTP for OTLP
	SampleRatio    float64 // fraction of root traces kept; 0 keeps all
}

// ConfigFromEnv overlays the OTEL_* environment variables on base. Fields
// left empty by both fall back to a stdout exporter in development.
func ConfigFromEnv(base Config) Config {
	cfg := base
	cfg.ServiceName = lookup("OTEL_SERVICE_NAME", base.ServiceName, "mycouch")
	cfg.ServiceVersion = lookup("OTEL_SERVICE_VERSION", base.ServiceVersion, "0.1.0")
	cfg.Environment = lookup("OTEL_ENVIRONMENT", base.Environment, "development")
	cfg.Exporter = Exporter(lookup("OTEL_EXPORTER", string(base.Exporter), string(ExporterStdout)))
	cfg.Insecure = base.Insecure || cfg.Environment == "development"

	if raw := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); raw != "" {
		if ratio, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.SampleRatio = ratio
		}
	}
	return cfg
}

// Providers holds the globally registered providers.
type Providers struct {
	Tracer *trace.TracerProvider
	Meter  *metric.MeterProvider
}

// Shutdown flushes pending telemetry. It must be called on exit.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		wrap("tracer shutdown", p.Tracer.Shutdown(ctx)),
		wrap("meter shutdown", p.Meter.Shutdown(ctx)),
	)
}

// Setup builds the tracer and meter providers for cfg and registers them,
// with W3C trace context and baggage propagation, as the globals.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	spans, metrics, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	traceOpts := []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSampler(sampler(cfg.SampleRatio)),
	}
	meterOpts := []metric.Option{metric.WithResource(res)}
	if spans != nil {
		traceOpts = append(traceOpts, trace.WithBatcher(spans))
		meterOpts = append(meterOpts, metric.WithReader(metric.NewPeriodicReader(metrics)))
	}

	p := &Providers{
		Tracer: trace.NewTracerProvider(traceOpts...),
		Meter:  metric.NewMeterProvider(meterOpts...),
	}
	otel.SetTracerProvider(p.Tracer)
	otel.SetMeterProvider(p.Meter)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

// newExporters returns nil exporters for ExporterNone.
func newExporters(ctx context.Context, cfg Config) (trace.SpanExporter, metric.Exporter, error) {
	var (
		spans   trace.SpanExporter
		metrics metric.Exporter
		err     error
	)
	switch cfg.Exporter {
	case ExporterNone:
		return nil, nil, nil
	case ExporterStdout:
		if spans, err = stdouttrace.New(stdouttrace.WithPrettyPrint()); err == nil {
			metrics, err = stdoutmetric.New()
		}
	case ExporterOTLP:
		var traceOpts []otlptracehttp.Option
		var metricOpts []otlpmetrichttp.Option
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}
		if spans, err = otlptracehttp.New(ctx, traceOpts...); err == nil {
			metrics, err = otlpmetrichttp.New(ctx, metricOpts...)
		}
	default:
		return nil, nil, fmt.Errorf("unsupported exporter: %q (use %q, %q or %q)",
			cfg.Exporter, ExporterStdout, ExporterOTLP, ExporterNone)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s exporter: %w", cfg.Exporter, err)
	}
	return spans, metrics, nil
}

// sampler keeps a parent's decision and samples ratio of new root traces.
func sampler(ratio float64) trace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return trace.ParentBased(trace.AlwaysSample())
	}
	return trace.ParentBased(trace.TraceIDRatioBased(ratio))
}

func lookup(key, base, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if base != "" {
		return base
	}
	return fallback
}

func wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
