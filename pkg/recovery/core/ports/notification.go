package ports

import (
	"context"
)

// NotificationEvent names the out-of-band events the orchestrator publishes.
type NotificationEvent string

const (
	EventApprovalRequested  NotificationEvent = "APPROVAL_REQUESTED"
	EventExecutionCompleted NotificationEvent = "EXECUTION_COMPLETED"
	EventExecutionFailed    NotificationEvent = "EXECUTION_FAILED"
	EventExecutionCancelled NotificationEvent = "EXECUTION_CANCELLED"
)

// Notifier is an abstract interface for publishing orchestration events to external
// systems. Publishing is fire-and-forget: failures are logged by implementations and
// never block orchestration.
type Notifier interface {
	// Publish emits one event with its context payload (execution ID, wave number,
	// callback token value for approval requests, and similar).
	Publish(ctx context.Context, event NotificationEvent, payload map[string]string)
}
