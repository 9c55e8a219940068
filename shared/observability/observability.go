// Package observability installs the OpenTelemetry tracer and meter providers.
package observability

import (
	"context"
	"errors"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// ShutdownFunc flushes and stops a provider
type ShutdownFunc func(ctx context.Context) error

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(serviceName)),
	)
}

// SetupTracing installs a tracer provider exporting spans to w as JSON lines
func SetupTracing(serviceName string, w io.Writer) (ShutdownFunc, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	res, err := newResource(serviceName)
	if err != nil {
		return nil, err
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// SetupMetrics installs a meter provider whose instruments are exported
// through the default Prometheus registry, so they appear on /metrics next
// to the collectors in pkg/metrics.
func SetupMetrics(serviceName string) (ShutdownFunc, error) {
	exp, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	res, err := newResource(serviceName)
	if err != nil {
		return nil, err
	}

	provider := metric.NewMeterProvider(
		metric.WithReader(exp),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

// Setup installs both providers and returns one shutdown for them
func Setup(serviceName string, traceOutput io.Writer) (ShutdownFunc, error) {
	shutdownTracing, err := SetupTracing(serviceName, traceOutput)
	if err != nil {
		return nil, err
	}

	shutdownMetrics, err := SetupMetrics(serviceName)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return nil, err
	}

	return func(ctx context.Context) error {
		return errors.Join(shutdownTracing(ctx), shutdownMetrics(ctx))
	}, nil
}
