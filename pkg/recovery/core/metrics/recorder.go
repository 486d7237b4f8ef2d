package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
)

// MetricRecorder is an abstract interface for recording metrics related to recovery
// orchestration.
//
// This interface provides a standardized way to record execution, wave, launch and
// token-level events, which facilitates integration with different metrics backends
// (e.g., Prometheus, OpenTelemetry Metrics).
type MetricRecorder interface {
	// RecordExecutionStart records the start of a RecoveryExecution.
	RecordExecutionStart(ctx context.Context, execution *model.RecoveryExecution)

	// RecordExecutionEnd records an execution reaching a terminal status.
	RecordExecutionEnd(ctx context.Context, execution *model.RecoveryExecution)

	// RecordWaveStart records the start of a WaveExecution.
	RecordWaveStart(ctx context.Context, wave *model.WaveExecution)

	// RecordWaveEnd records a wave reaching a terminal status.
	RecordWaveEnd(ctx context.Context, wave *model.WaveExecution)

	// RecordServerLaunch records one server reaching a terminal launch state.
	//
	// state: the terminal launch state (LAUNCHED, FAILED, TERMINATED).
	RecordServerLaunch(ctx context.Context, executionID string, state model.LaunchState)

	// RecordTokenOutcome records the result of acting on a callback token.
	//
	// outcome: "resumed", "cancelled", "expired", "rejected".
	RecordTokenOutcome(ctx context.Context, outcome string)

	// RecordVersionConflict records one optimistic-concurrency conflict on a conditional write.
	RecordVersionConflict(ctx context.Context, executionID string)

	// RecordDuration records the execution time of a specific operation.
	//
	// name: The name of the duration to record (e.g., "monitor_poll_duration").
	// tags: A map of additional tags or attributes to associate with the duration.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
