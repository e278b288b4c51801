package telemetry

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope every span from this process is
// recorded under.
const tracerName = "mcpower-gate/wrapper"

// Providers bundles the tracer/meter providers this process owns, so
// run.go can shut them down on exit.
type Providers struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// NewProviders sets up a span-per-operation tracer (§4.3's "mcpower.operation"
// span, attributes event_id/decision) and a periodic stdout metric reader,
// both exporting to w. In production w is typically the audit log's
// directory sibling or io.Discard; in dev_mode it is os.Stderr so spans are
// visible alongside log lines.
func NewProviders(w io.Writer) (*Providers, error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tp)

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(
		sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(60*time.Second)),
	))
	otel.SetMeterProvider(mp)

	return &Providers{tracerProvider: tp, meterProvider: mp}, nil
}

// Shutdown flushes and stops both providers. Safe to call on a nil
// *Providers (no-op), so callers can defer it unconditionally.
func (p *Providers) Shutdown(ctx context.Context) {
	if p == nil {
		return
	}
	_ = p.tracerProvider.Shutdown(ctx)
	_ = p.meterProvider.Shutdown(ctx)
}

// StartOperationSpan starts the "mcpower.operation" span §4.3 describes,
// tagged with the event id and method every inspected operation carries.
func StartOperationSpan(ctx context.Context, eventID, method string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, "mcpower.operation", trace.WithAttributes(
		attribute.String("event_id", eventID),
		attribute.String("method", method),
	))
}

// EndOperationSpan records the final decision on span and ends it.
func EndOperationSpan(span trace.Span, decision string) {
	span.SetAttributes(attribute.String("decision", decision))
	span.End()
}
