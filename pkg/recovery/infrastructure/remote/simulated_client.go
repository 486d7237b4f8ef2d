// Package remote provides the RemoteJobClient adaptor. The simulated client stands in
// for the external recovery job service: submissions are de-duplicated by idempotency
// key and each queried job launches one more server per poll until every participant
// is LAUNCHED.
package remote

import (
	"context"
	"fmt"
	"sync"

	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	"github.com/tigerroll/tidal/pkg/recovery/core/ports"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/logger"

	"go.uber.org/fx"
)

// launchesPerPoll controls how fast a simulated job converges.
const launchesPerPoll = 1

type simulatedJob struct {
	servers []ports.ServerConfig
	isDrill bool
	polls   int
}

// SimulatedJobClient implements ports.RemoteJobClient without an external service.
type SimulatedJobClient struct {
	mu            sync.Mutex
	jobsByKey     map[string]string
	jobs          map[string]*simulatedJob
	launchTargets map[string]string
}

// NewSimulatedJobClient creates an empty simulated remote job service.
func NewSimulatedJobClient() *SimulatedJobClient {
	return &SimulatedJobClient{
		jobsByKey:     make(map[string]string),
		jobs:          make(map[string]*simulatedJob),
		launchTargets: make(map[string]string),
	}
}

// SubmitJob starts a simulated job. A key already seen returns the original job ID
// without creating a second job.
func (c *SimulatedJobClient) SubmitJob(ctx context.Context, serverConfigs []ports.ServerConfig, isDrill bool, idempotencyKey string) (string, error) {
	const op = "SimulatedJobClient.SubmitJob"
	if len(serverConfigs) == 0 {
		return "", exception.NewValidationError(op, "serverConfigs must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if jobID, ok := c.jobsByKey[idempotencyKey]; ok {
		logger.Debugf("%s: key %s already submitted as job %s", op, idempotencyKey, jobID)
		return jobID, nil
	}

	jobID := fmt.Sprintf("recovery-job-%s", model.NewID())
	servers := make([]ports.ServerConfig, len(serverConfigs))
	copy(servers, serverConfigs)
	c.jobs[jobID] = &simulatedJob{servers: servers, isDrill: isDrill}
	c.jobsByKey[idempotencyKey] = jobID

	logger.Infof("%s: submitted job %s for %d servers (drill=%t, key=%s)", op, jobID, len(servers), isDrill, idempotencyKey)
	return jobID, nil
}

// QueryJob reports the job's progress. Each call advances the simulation by
// launchesPerPoll servers; an unknown job ID is a permanent failure.
func (c *SimulatedJobClient) QueryJob(ctx context.Context, jobID string) (*ports.JobQueryResult, error) {
	const op = "SimulatedJobClient.QueryJob"

	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[jobID]
	if !ok {
		return nil, exception.NewRecoveryError(op, fmt.Sprintf("job %s not found", jobID), nil, false)
	}

	job.polls++
	launched := job.polls * launchesPerPoll
	if launched > len(job.servers) {
		launched = len(job.servers)
	}

	participants := make([]ports.JobParticipant, 0, len(job.servers))
	for i, server := range job.servers {
		state := model.LaunchStatePending
		if i < launched {
			state = model.LaunchStateLaunched
		}
		// The submitted config names the launch target; fall back to a binding
		// configured directly against the server ID.
		target := server.TargetResourceID
		if target == "" {
			target = c.launchTargets[server.ServerID]
		}
		participants = append(participants, ports.JobParticipant{
			ServerID:         server.ServerID,
			LaunchState:      state,
			TargetResourceID: target,
		})
	}

	status := model.RemoteJobStatusInProgress
	if launched == len(job.servers) {
		status = model.RemoteJobStatusCompleted
	}
	return &ports.JobQueryResult{JobStatus: status, Participants: participants}, nil
}

// ConfigureLaunchTarget records the source-to-target binding. Re-binding the same
// pair is a no-op; re-binding to a different target overwrites.
func (c *SimulatedJobClient) ConfigureLaunchTarget(ctx context.Context, sourceID, targetResourceID string) error {
	const op = "SimulatedJobClient.ConfigureLaunchTarget"
	if sourceID == "" || targetResourceID == "" {
		return exception.NewValidationError(op, "sourceID and targetResourceID must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.launchTargets[sourceID] = targetResourceID
	logger.Debugf("%s: %s -> %s", op, sourceID, targetResourceID)
	return nil
}

// LaunchTarget reports the target bound to a source, if any.
func (c *SimulatedJobClient) LaunchTarget(sourceID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	target, ok := c.launchTargets[sourceID]
	return target, ok
}

var _ ports.RemoteJobClient = (*SimulatedJobClient)(nil)

// Module provides the simulated RemoteJobClient.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewSimulatedJobClient,
			fx.As(new(ports.RemoteJobClient)),
		),
	),
)
