package telemetry

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "gchat"

// TelemetryConfig holds the configuration for telemetry
type TelemetryConfig struct {
	// OTLP/HTTP collector endpoint, e.g. "http://localhost:4318". Empty disables export.
	Endpoint       string
	ServiceVersion string
}

// Provider manages trace export for one process
type Provider struct {
	enabled        bool
	tracerProvider trace.TracerProvider
	sdk            *sdktrace.TracerProvider
}

// NewProvider creates a new telemetry provider and installs it as the
// global tracer provider when enabled
func NewProvider(ctx context.Context, config TelemetryConfig, logger *log.Logger) (*Provider, error) {
	if config.Endpoint == "" {
		logger.Printf("Telemetry disabled")
		return &Provider{tracerProvider: noop.NewTracerProvider()}, nil
	}

	opts, err := exporterOptions(config.Endpoint)
	if err != nil {
		return nil, err
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(config.ServiceVersion),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Printf("Telemetry enabled, exporting traces to %s", config.Endpoint)
	return &Provider{enabled: true, tracerProvider: tp, sdk: tp}, nil
}

// exporterOptions accepts either a bare host:port or a full URL
func exporterOptions(endpoint string) ([]otlptracehttp.Option, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure()}, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(u.Host)}
	switch u.Scheme {
	case "http":
		opts = append(opts, otlptracehttp.WithInsecure())
	case "https":
	default:
		return nil, fmt.Errorf("unsupported OTLP endpoint scheme: %s", u.Scheme)
	}
	if u.Path != "" && u.Path != "/" {
		opts = append(opts, otlptracehttp.WithURLPath(u.Path))
	}
	return opts, nil
}

// Enabled reports whether traces are exported
func (p *Provider) Enabled() bool {
	return p.enabled
}

// TracerProvider returns the provider spans should be started from
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tracerProvider
}

// Shutdown flushes pending spans and shuts down the telemetry provider
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}
