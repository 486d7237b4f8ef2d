package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	config "github.com/tigerroll/tidal/pkg/recovery/core/config"
	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	metrics "github.com/tigerroll/tidal/pkg/recovery/core/metrics"
	exception "github.com/tigerroll/tidal/pkg/recovery/support/util/exception"
	logger "github.com/tigerroll/tidal/pkg/recovery/support/util/logger"
)

const tracerName = "github.com/tigerroll/tidal/pkg/recovery"

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer backed by the globally registered provider.
func NewOpenTelemetryTracer() metrics.Tracer {
	return &OpenTelemetryTracer{tracer: otel.Tracer(tracerName)}
}

// SetupTracerProvider installs an OTLP/gRPC-exporting tracer provider as the global
// provider and returns its shutdown function. When tracing is disabled it leaves the
// default no-op provider in place.
func SetupTracerProvider(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	tracing := cfg.Tidal.Tracing
	if !tracing.Enabled {
		logger.Debugf("Tracer: tracing disabled, spans will not be exported.")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(tracing.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, exception.NewRecoveryError("metrics",
			fmt.Sprintf("failed to create OTLP trace exporter for %s", tracing.OTLPEndpoint), err, false)
	}

	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(tracing.ServiceName),
	))
	if err != nil {
		return nil, exception.NewRecoveryError("metrics", "failed to build tracing resource", err, false)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	logger.Infof("Tracer: exporting spans to %s as service %q.", tracing.OTLPEndpoint, tracing.ServiceName)
	return provider.Shutdown, nil
}

// StartTickSpan starts a span covering one orchestrator invocation over an execution.
func (t *OpenTelemetryTracer) StartTickSpan(ctx context.Context, execution *model.RecoveryExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "recovery.tick", trace.WithAttributes(
		attribute.String("recovery.execution_id", execution.ID),
		attribute.String("recovery.plan_id", execution.PlanID),
		attribute.String("recovery.status", execution.Status.String()),
		attribute.Int("recovery.wave_index", execution.CurrentWaveIndex),
		attribute.Bool("recovery.is_drill", execution.IsDrill),
	))
	return ctx, func() { span.End() }
}

// StartWaveSpan starts a span for a WaveExecution.
func (t *OpenTelemetryTracer) StartWaveSpan(ctx context.Context, wave *model.WaveExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "recovery.wave", trace.WithAttributes(
		attribute.String("recovery.execution_id", wave.ExecutionID),
		attribute.Int("recovery.wave_number", wave.WaveNumber),
		attribute.String("recovery.wave_status", wave.Status.String()),
	))
	return ctx, func() { span.End() }
}

// RecordError records an error in the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("recovery.module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event in the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for key, value := range attributes {
		attrs = append(attrs, attribute.String(key, fmt.Sprintf("%v", value)))
	}
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
