package tracing

import (
	"context"
	"fmt"
	"io"

	"umbra-hq/umbra/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// instrumentationName identifies spans produced by this module.
const instrumentationName = "umbra-hq/umbra"

// Tracer wraps the OpenTelemetry tracer with the configured sampler and
// exporter. When tracing is disabled a noop tracer is returned, so callers
// can create spans unconditionally.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	enabled  bool
}

// Options tweak tracer construction beyond the config file.
type Options struct {
	// Writer receives exported spans when the stdout exporter is selected.
	// Defaults to os.Stdout.
	Writer io.Writer
}

// New creates a Tracer from the configuration. The tracer must be shut
// down before exit to flush pending spans:
//
//	defer tracer.Shutdown(context.Background())
func New(cfg *config.TracingConfig, opts Options) (*Tracer, error) {
	t := &Tracer{enabled: cfg != nil && cfg.Enabled}

	if !t.enabled {
		t.tracer = noop.NewTracerProvider().Tracer(instrumentationName)
		return t, nil
	}

	sampler, err := newSampler(cfg.Sampler, cfg.SampleRatio)
	if err != nil {
		return nil, fmt.Errorf("sampler: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("resource: %w", err)
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}

	switch cfg.Exporter {
	case "stdout":
		var exporterOpts []stdouttrace.Option
		if opts.Writer != nil {
			exporterOpts = append(exporterOpts, stdouttrace.WithWriter(opts.Writer))
		}
		exporter, err := stdouttrace.New(exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	case "none":
		// Spans are recorded but never exported. Useful for tests and for
		// keeping span-derived request IDs without an export pipeline.
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}

	t.provider = sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(t.provider)
	t.tracer = t.provider.Tracer(instrumentationName)

	return t, nil
}

// Start creates a span linked to the parent span in ctx. The returned span
// must be ended by the caller.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Enabled reports whether tracing is active.
func (t *Tracer) Enabled() bool {
	return t.enabled
}

// Shutdown flushes pending spans and releases the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// TraceID returns the trace ID from the context, or "" if no valid span
// context exists.
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// SetError records err on the span and marks its status as failed.
func SetError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.SetAttributes(attribute.Bool("error", true))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
