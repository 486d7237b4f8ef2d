package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

// RecordExecutionStart does nothing.
func (r *NoOpMetricRecorder) RecordExecutionStart(ctx context.Context, execution *model.RecoveryExecution) {
}

// RecordExecutionEnd does nothing.
func (r *NoOpMetricRecorder) RecordExecutionEnd(ctx context.Context, execution *model.RecoveryExecution) {
}

// RecordWaveStart does nothing.
func (r *NoOpMetricRecorder) RecordWaveStart(ctx context.Context, wave *model.WaveExecution) {}

// RecordWaveEnd does nothing.
func (r *NoOpMetricRecorder) RecordWaveEnd(ctx context.Context, wave *model.WaveExecution) {}

// RecordServerLaunch does nothing.
func (r *NoOpMetricRecorder) RecordServerLaunch(ctx context.Context, executionID string, state model.LaunchState) {
}

// RecordTokenOutcome does nothing.
func (r *NoOpMetricRecorder) RecordTokenOutcome(ctx context.Context, outcome string) {}

// RecordVersionConflict does nothing.
func (r *NoOpMetricRecorder) RecordVersionConflict(ctx context.Context, executionID string) {}

// RecordDuration does nothing.
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// --- NoOpTracer ---

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartTickSpan returns the context unchanged with a no-op end function.
func (t *NoOpTracer) StartTickSpan(ctx context.Context, execution *model.RecoveryExecution) (context.Context, func()) {
	return ctx, func() {}
}

// StartWaveSpan returns the context unchanged with a no-op end function.
func (t *NoOpTracer) StartWaveSpan(ctx context.Context, wave *model.WaveExecution) (context.Context, func()) {
	return ctx, func() {}
}

// RecordError records an error in the current Span.
func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

// RecordEvent records an event in the current Span.
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
