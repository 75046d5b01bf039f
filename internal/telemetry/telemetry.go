// Package telemetry wires up OpenTelemetry tracing for the pipeline
// runtime: spans around pipeline build and the block-expansion step
// within it. Export is optional and selected by the
// OTEL_EXPORTER_OTLP_PROTOCOL environment variable, mirroring the
// teacher repo's dual grpc/http OTLP exporter setup.
package telemetry

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Tracer is the runtime's named tracer, used by the pipeline builder for
// its build span and its block-expansion span.
var Tracer = otel.Tracer("strom/pipeline")

// Setup configures the global TracerProvider. When OTEL_EXPORTER_OTLP_PROTOCOL
// is unset, a provider whose exporter discards every span is installed
// (spans are created but never exported) so the runtime never blocks on a
// missing collector.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	proto := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")
	var exp sdktrace.SpanExporter

	switch proto {
	case "grpc":
		exp, err = otlptracegrpc.New(ctx)
	case "http/protobuf", "http":
		exp, err = otlptracehttp.New(ctx)
	default:
		// No collector configured: wire an exporter that discards its
		// input, so spans are created and sampled but dropped on export.
		exp = noopExporter{}
	}
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

type noopExporter struct{}

func (noopExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (noopExporter) Shutdown(context.Context) error                            { return nil }

// StartSpan is a small convenience wrapper used by callers that don't need
// the full otel API surface in scope.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return Tracer.Start(ctx, name)
}
