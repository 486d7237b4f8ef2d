package ports

import (
	"context"

	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
)

// ServerConfig describes one server handed to the remote job service on submission.
type ServerConfig struct {
	ServerID string
	// TargetResourceID is set when the launch must preserve identity by landing in a
	// specific pre-provisioned target.
	TargetResourceID string
}

// JobParticipant is the per-server view returned by a remote job query.
type JobParticipant struct {
	ServerID         string
	LaunchState      model.LaunchState
	TargetResourceID string
}

// JobQueryResult is the remote job service's answer to QueryJob.
type JobQueryResult struct {
	JobStatus    model.RemoteJobStatus
	Participants []JobParticipant
}

// RemoteJobClient is the abstract interface to the external recovery job service. Every
// call may be issued more than once per logical step, so submissions are de-duplicated
// by the caller-supplied idempotency key (executionID:waveNumber).
type RemoteJobClient interface {
	// SubmitJob starts a recovery job for the given servers and returns its job ID.
	// Resubmitting with an idempotency key already seen returns the original job ID.
	SubmitJob(ctx context.Context, serverConfigs []ServerConfig, isDrill bool, idempotencyKey string) (string, error)

	// QueryJob returns the current job status and per-participant launch states.
	QueryJob(ctx context.Context, jobID string) (*JobQueryResult, error)

	// ConfigureLaunchTarget binds a source server to a specific target resource before
	// submission, for identity-preserving launches. Must be idempotent.
	ConfigureLaunchTarget(ctx context.Context, sourceID, targetResourceID string) error
}
