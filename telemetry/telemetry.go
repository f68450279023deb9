// Package telemetry installs the OpenTelemetry tracer and meter providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ErrServiceName is returned when Config has no ServiceName.
var ErrServiceName = errors.New("service name required")

// DefaultMetricInterval is how often metrics are exported.
const DefaultMetricInterval = 30 * time.Second

// Config selects the exporters. OTLPEndpoint wins over Stdout; with neither
// set tracing and metrics stay no-ops.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
	Stdout         bool
	MetricInterval time.Duration
}

// ShutdownFunc flushes and stops the providers.
type ShutdownFunc func(context.Context) error

type exporters struct {
	spans   sdktrace.SpanExporter
	metrics sdkmetric.Exporter
}

// Init sets the global tracer provider, meter provider and propagator.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.ServiceName == "" {
		return nil, ErrServiceName
	}
	if cfg.MetricInterval <= 0 {
		cfg.MetricInterval = DefaultMetricInterval
	}

	var (
		exp exporters
		err error
	)
	switch {
	case cfg.OTLPEndpoint != "":
		exp, err = newOTLPExporters(ctx, cfg.OTLPEndpoint)
	case cfg.Stdout:
		exp, err = newStdoutExporters()
	default:
		log.Println("[telemetry] No exporter configured, tracing and metrics disabled")
		return func(context.Context) error { return nil }, nil
	}
	if err != nil {
		return nil, err
	}

	tp, err := newTracerProvider(exp.spans, cfg)
	if err != nil {
		_ = exp.spans.Shutdown(ctx)
		_ = exp.metrics.Shutdown(ctx)
		return nil, err
	}
	mp, err := newMeterProvider(sdkmetric.NewPeriodicReader(exp.metrics, sdkmetric.WithInterval(cfg.MetricInterval)), cfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = exp.metrics.Shutdown(ctx)
		return nil, err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	log.Printf("[telemetry] Tracing and metrics enabled for %s", cfg.ServiceName)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newStdoutExporters() (exporters, error) {
	spans, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return exporters{}, fmt.Errorf("failed to create span exporter: %w", err)
	}
	metrics, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	if err != nil {
		_ = spans.Shutdown(context.Background())
		return exporters{}, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	return exporters{spans: spans, metrics: metrics}, nil
}

// newOTLPExporters accepts either a URL or a bare host:port.
func newOTLPExporters(ctx context.Context, endpoint string) (exporters, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return exporters{}, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	host := u.Host
	if host == "" {
		host = endpoint
	}
	insecure := u.Scheme != "https"

	traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(host)}
	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(host)}
	if insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}

	spans, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return exporters{}, fmt.Errorf("failed to create span exporter: %w", err)
	}
	metrics, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return exporters{}, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	return exporters{spans: spans, metrics: metrics}, nil
}

func newResource(cfg Config) (*sdkresource.Resource, error) {
	return sdkresource.New(context.Background(), sdkresource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	))
}

func newTracerProvider(exporter sdktrace.SpanExporter, cfg Config) (*sdktrace.TracerProvider, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	), nil
}

func newMeterProvider(reader sdkmetric.Reader, cfg Config) (*sdkmetric.MeterProvider, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	), nil
}
