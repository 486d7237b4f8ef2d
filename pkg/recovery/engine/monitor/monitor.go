// Package monitor implements the read-only job monitor. It polls the remote job
// service, aggregates per-server launch status into a wave snapshot, and never writes
// durable state. Polling the same unchanged job twice yields an equivalent snapshot.
package monitor

import (
	"context"
	"fmt"
	"time"

	config "github.com/tigerroll/tidal/pkg/recovery/core/config"
	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	"github.com/tigerroll/tidal/pkg/recovery/core/metrics"
	"github.com/tigerroll/tidal/pkg/recovery/core/ports"
	"github.com/tigerroll/tidal/pkg/recovery/engine/retry"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/logger"

	"go.uber.org/fx"
)

// JobMonitor polls one remote job and reports wave progress.
type JobMonitor interface {
	// Poll queries the remote job and returns the aggregated wave snapshot for the
	// given server set. Retryable remote failures are retried with bounded backoff
	// before surfacing; the returned error keeps its retryability classification so
	// the caller can decide the outcome.
	Poll(ctx context.Context, jobID string, serverIDs []string) (*model.WaveStatusSnapshot, error)
}

// remoteJobMonitor implements JobMonitor on top of the RemoteJobClient.
type remoteJobMonitor struct {
	client   ports.RemoteJobClient
	policy   retry.RetryPolicy
	recorder metrics.MetricRecorder
}

// MonitorParams defines the dependencies for NewJobMonitor.
type MonitorParams struct {
	fx.In
	Client   ports.RemoteJobClient
	Cfg      *config.Config
	Recorder metrics.MetricRecorder
}

// NewJobMonitor creates a JobMonitor with a retry policy built from the monitor
// configuration.
func NewJobMonitor(p MonitorParams) JobMonitor {
	factory := retry.NewDefaultRetryPolicyFactory()
	return &remoteJobMonitor{
		client:   p.Client,
		policy:   factory.Create(p.Cfg.Tidal.Monitor),
		recorder: p.Recorder,
	}
}

func (m *remoteJobMonitor) Poll(ctx context.Context, jobID string, serverIDs []string) (*model.WaveStatusSnapshot, error) {
	const op = "JobMonitor.Poll"
	if jobID == "" {
		return nil, exception.NewValidationError(op, "jobID must not be empty")
	}
	if len(serverIDs) == 0 {
		return nil, exception.NewValidationError(op, "serverIDs must not be empty")
	}

	start := time.Now()
	result, err := m.queryWithRetry(ctx, jobID)
	if m.recorder != nil {
		m.recorder.RecordDuration(ctx, "monitor_poll", time.Since(start), map[string]string{"job_id": jobID})
	}
	if err != nil {
		return nil, err
	}

	return BuildSnapshot(result.JobStatus, result.Participants, serverIDs)
}

// queryWithRetry calls QueryJob, retrying retryable failures with bounded backoff.
// A permanent failure or an exhausted attempt budget surfaces the last error with its
// classification intact.
func (m *remoteJobMonitor) queryWithRetry(ctx context.Context, jobID string) (*ports.JobQueryResult, error) {
	const op = "JobMonitor.queryWithRetry"

	maxAttempts := m.policy.GetMaxAttempts()
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := m.client.QueryJob(ctx, jobID)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !m.policy.ShouldRetry(err) {
			return nil, exception.NewRecoveryError(op, fmt.Sprintf("permanent failure querying job %s", jobID), err, false)
		}
		if attempt == maxAttempts {
			break
		}

		interval := m.policy.GetBackoffInterval(attempt)
		logger.Debugf("%s: attempt %d/%d for job %s failed, backing off %v: %v", op, attempt, maxAttempts, jobID, interval, err)
		select {
		case <-ctx.Done():
			return nil, exception.NewRecoveryError(op, fmt.Sprintf("context cancelled while polling job %s", jobID), ctx.Err(), false)
		case <-time.After(interval):
		}
	}

	// Attempt budget exhausted on a retryable error: stay retryable so the caller
	// leaves state unchanged and relies on the next scheduled tick.
	return nil, exception.NewRecoveryError(op, fmt.Sprintf("exhausted %d attempts querying job %s", maxAttempts, jobID), lastErr, true)
}

// BuildSnapshot aggregates the remote view into a WaveStatusSnapshot. It is a pure
// function of its inputs: same job status and participants always yield the same
// snapshot, independent of call order or repetition.
func BuildSnapshot(jobStatus model.RemoteJobStatus, participants []ports.JobParticipant, serverIDs []string) (*model.WaveStatusSnapshot, error) {
	const op = "JobMonitor.BuildSnapshot"

	reported := make(map[string]ports.JobParticipant, len(participants))
	for _, p := range participants {
		reported[p.ServerID] = p
	}

	perServer := make(model.ServerStatusList, 0, len(serverIDs))
	launched := 0
	failed := 0
	allTerminal := true
	for _, serverID := range serverIDs {
		status := model.ServerLaunchStatus{
			ServerID:    serverID,
			LaunchState: model.LaunchStatePending, // Unseen servers default to PENDING.
		}
		if p, ok := reported[serverID]; ok {
			status.LaunchState = p.LaunchState
			status.TargetResourceID = p.TargetResourceID
		}
		perServer = append(perServer, status)

		switch status.LaunchState {
		case model.LaunchStateLaunched:
			launched++
		case model.LaunchStateFailed:
			failed++
		}
		if !status.LaunchState.IsTerminal() {
			allTerminal = false
		}
	}

	total := len(serverIDs)
	if launched+failed > total {
		return nil, exception.NewValidationError(op, "remote view reports %d launched and %d failed for %d servers", launched, failed, total)
	}

	// A terminal job with a server still PENDING is not complete; both conditions
	// guard against partial remote-API views.
	waveComplete := jobStatus.IsFinished() && allTerminal

	return &model.WaveStatusSnapshot{
		JobStatus:     jobStatus,
		PerServer:     perServer,
		LaunchedCount: launched,
		FailedCount:   failed,
		TotalCount:    total,
		Progress:      ComputeProgress(launched, failed, total),
		WaveComplete:  waveComplete,
	}, nil
}

// ComputeProgress derives percent-complete and success-rate figures from the counts.
func ComputeProgress(launched, failed, total int) model.WaveProgress {
	var progress model.WaveProgress
	if total > 0 {
		progress.PercentComplete = 100 * float64(launched+failed) / float64(total)
	}
	if launched+failed > 0 {
		progress.SuccessRate = 100 * float64(launched) / float64(launched+failed)
	}
	return progress
}

var _ JobMonitor = (*remoteJobMonitor)(nil)
