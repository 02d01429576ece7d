// Package telemetry configures OpenTelemetry tracing.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.uber.org/zap"
)

// ServiceName identifies every binary in traces
const ServiceName = "jotjot"

// ShutdownFunc flushes and stops tracing
type ShutdownFunc func(context.Context) error

// InitTracer initializes the OpenTelemetry tracer provider. An empty endpoint
// leaves the exporter to read OTEL_EXPORTER_OTLP_ENDPOINT itself.
func InitTracer(ctx context.Context, serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	var opts []otlptracehttp.Option
	if endpoint != "" {
		opts = append(opts,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(), // collector sidecar; use WithTLSClientConfig for remote collectors
		)
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// Shutdown gracefully shuts down the tracer provider
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// Setup starts tracing when enabled. Failure to start is logged and tracing
// stays on the no-op provider; the returned ShutdownFunc is always safe to call.
func Setup(ctx context.Context, enabled bool, endpoint string, log *zap.Logger) ShutdownFunc {
	if !enabled {
		return func(context.Context) error { return nil }
	}

	tp, err := InitTracer(ctx, ServiceName, endpoint)
	if err != nil {
		log.Warn("tracing_disabled", zap.Error(err))
		return func(context.Context) error { return nil }
	}

	log.Info("tracing_enabled", zap.String("endpoint", endpoint))
	return func(ctx context.Context) error {
		return Shutdown(ctx, tp)
	}
}
