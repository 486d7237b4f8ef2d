package metrics

import (
	"context"

	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing.
// This interface provides functionality to integrate with tracing systems like
// OpenTelemetry, enabling visualization of tick and wave execution flows.
type Tracer interface {
	// StartTickSpan starts a Span for one orchestrator invocation over an execution.
	//
	// Returns: A context with the new Span set, and a function to end the Span.
	//          It is recommended to call the returned function in a defer statement.
	StartTickSpan(ctx context.Context, execution *model.RecoveryExecution) (context.Context, func())

	// StartWaveSpan starts a Span for a WaveExecution.
	//
	// ctx: The parent context (typically a context with a tick Span).
	StartWaveSpan(ctx context.Context, wave *model.WaveExecution) (context.Context, func())

	// RecordError records an error in the current Span.
	//
	// module: The name of the module or component where the error occurred (e.g., "monitor", "persister").
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current Span.
	//
	// name: The name of the event (e.g., "monitor_poll", "token_issued").
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
