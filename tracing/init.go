package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/settings"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	mu sync.Mutex
	tp *sdktrace.TracerProvider
)

// InitTracer installs a global tracer provider exporting to the configured
// OTLP/HTTP collector. It is a no-op when tracing is disabled or already running.
func InitTracer(ctx context.Context, serviceName string, tSettings *settings.Settings) error {
	if !tSettings.Tracing.Enabled {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()

	if tp != nil {
		return nil
	}

	if tSettings.Tracing.CollectorURL == nil {
		return errors.NewConfigurationError("tracing is enabled but tracing_collectorUrl is not set")
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(tSettings.Tracing.CollectorURL.Host),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return errors.NewConfigurationError("failed to create OTLP exporter", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("client.name", tSettings.ClientName),
			attribute.String("network", tSettings.ChainCfgParams.Name),
		),
	)
	if err != nil {
		return errors.NewConfigurationError("failed to create tracing resource", err)
	}

	tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(time.Second)),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(tSettings.Tracing.SampleRate)),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return nil
}

// ShutdownTracer flushes and stops the tracer provider, if one was started.
func ShutdownTracer(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if tp == nil {
		return nil
	}

	defer func() {
		tp = nil
	}()

	if err := tp.ForceFlush(ctx); err != nil {
		return errors.NewProcessingError("failed to flush spans", err)
	}

	if err := tp.Shutdown(ctx); err != nil {
		return errors.NewProcessingError("failed to shutdown tracer", err)
	}

	return nil
}
