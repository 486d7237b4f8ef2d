package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	config "github.com/tigerroll/tidal/pkg/recovery/core/config"
	planconfig "github.com/tigerroll/tidal/pkg/recovery/core/config/plan"
	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	"github.com/tigerroll/tidal/pkg/recovery/core/metrics"
	"github.com/tigerroll/tidal/pkg/recovery/core/ports"
	"github.com/tigerroll/tidal/pkg/recovery/engine/matcher"
	"github.com/tigerroll/tidal/pkg/recovery/engine/monitor"
	"github.com/tigerroll/tidal/pkg/recovery/engine/orchestrator"
	"github.com/tigerroll/tidal/pkg/recovery/engine/persister"
	"github.com/tigerroll/tidal/pkg/recovery/infrastructure/discovery"
	"github.com/tigerroll/tidal/pkg/recovery/infrastructure/remote"
	"github.com/tigerroll/tidal/pkg/recovery/infrastructure/repository/inmemory"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingNotifier records every published event for assertions.
type capturingNotifier struct {
	mu     sync.Mutex
	events []capturedEvent
}

type capturedEvent struct {
	event   ports.NotificationEvent
	payload map[string]string
}

func (n *capturingNotifier) Publish(ctx context.Context, event ports.NotificationEvent, payload map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, capturedEvent{event: event, payload: payload})
}

func (n *capturingNotifier) last(event ports.NotificationEvent) (map[string]string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].event == event {
			return n.events[i].payload, true
		}
	}
	return nil, false
}

// failingJobClient submits successfully and then fails every query the same way.
type failingJobClient struct {
	queryErr error
}

func (c *failingJobClient) SubmitJob(ctx context.Context, serverConfigs []ports.ServerConfig, isDrill bool, idempotencyKey string) (string, error) {
	return "job-" + idempotencyKey, nil
}

func (c *failingJobClient) QueryJob(ctx context.Context, jobID string) (*ports.JobQueryResult, error) {
	return nil, c.queryErr
}

func (c *failingJobClient) ConfigureLaunchTarget(ctx context.Context, sourceID, targetResourceID string) error {
	return nil
}

type harness struct {
	orchestrator orchestrator.WaveOrchestrator
	repo         *inmemory.InMemoryRecoveryRepository
	notifier     *capturingNotifier
	cfg          *config.Config
}

func newHarness(t *testing.T, client ports.RemoteJobClient, serverIDs []string) *harness {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Tidal.Monitor.Retry.MaxAttempts = 2
	cfg.Tidal.Monitor.Retry.InitialInterval = 1
	cfg.Tidal.Monitor.Retry.MaxInterval = 2

	repo := inmemory.NewInMemoryRecoveryRepository()
	recorder := metrics.NewNoOpMetricRecorder()
	notifier := &capturingNotifier{}

	sources, targets := discovery.NewMirroredInventory(serverIDs, cfg.Tidal.Matcher.EligibleTargetTag)

	o := orchestrator.NewWaveOrchestrator(orchestrator.OrchestratorParams{
		Repo:      repo,
		Persister: persister.NewStatePersister(persister.PersisterParams{Repo: repo, Recorder: recorder}),
		Monitor:   monitor.NewJobMonitor(monitor.MonitorParams{Client: client, Cfg: cfg, Recorder: recorder}),
		Matcher:   matcher.NewInstanceMatcher(matcher.MatcherParams{Cfg: cfg}),
		Client:    client,
		Discovery: discovery.NewStaticResourceDiscovery(sources, targets),
		Notifier:  notifier,
		Recorder:  recorder,
		Tracer:    metrics.NewNoOpTracer(),
		Cfg:       cfg,
	})
	return &harness{orchestrator: o, repo: repo, notifier: notifier, cfg: cfg}
}

// tickUntil ticks the execution until the predicate holds or the attempt budget runs out.
func (h *harness) tickUntil(t *testing.T, executionID string, pred func(*model.RecoveryExecution) bool) *model.RecoveryExecution {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		execution, err := h.repo.FindExecutionByID(ctx, executionID)
		require.NoError(t, err)
		if pred(execution) {
			return execution
		}
		require.NoError(t, h.orchestrator.Tick(ctx, executionID))
	}
	execution, err := h.repo.FindExecutionByID(ctx, executionID)
	require.NoError(t, err)
	t.Fatalf("execution %s never reached the expected state, last: %s (wave %d)", executionID, execution.Status, execution.CurrentWaveIndex)
	return nil
}

func twoWavePlan() *planconfig.Plan {
	return &planconfig.Plan{
		ID:   "plan-east-to-west",
		Name: "East to west failover",
		Waves: []planconfig.Wave{
			{Number: 1, Servers: []string{"web-01", "web-02"}},
			{Number: 2, Servers: []string{"db-01"}},
		},
	}
}

func TestLifecycle_TwoWavesRunToCompletion(t *testing.T) {
	client := remote.NewSimulatedJobClient()
	h := newHarness(t, client, []string{"web-01", "web-02", "db-01"})
	ctx := context.Background()

	execution, err := h.orchestrator.StartExecution(ctx, twoWavePlan(), false)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusCreated, execution.Status)

	final := h.tickUntil(t, execution.ID, func(e *model.RecoveryExecution) bool {
		return e.Status == model.ExecutionStatusCompleted
	})

	require.Len(t, final.Waves, 2)
	for _, wave := range final.Waves {
		assert.Equal(t, model.WaveStatusCompleted, wave.Status)
		assert.NotEmpty(t, wave.JobID)
		assert.Equal(t, wave.TotalCount, wave.LaunchedCount)
		assert.Zero(t, wave.FailedCount)
	}
	assert.NotEqual(t, final.Waves[0].JobID, final.Waves[1].JobID)
	assert.NotNil(t, final.EndTime)

	_, ok := h.notifier.last(ports.EventExecutionCompleted)
	assert.True(t, ok)
}

func TestTick_IsIdempotentOnTerminalExecution(t *testing.T) {
	client := remote.NewSimulatedJobClient()
	h := newHarness(t, client, []string{"web-01", "web-02", "db-01"})
	ctx := context.Background()

	execution, err := h.orchestrator.StartExecution(ctx, twoWavePlan(), false)
	require.NoError(t, err)
	final := h.tickUntil(t, execution.ID, func(e *model.RecoveryExecution) bool {
		return e.Status == model.ExecutionStatusCompleted
	})

	require.NoError(t, h.orchestrator.Tick(ctx, execution.ID))
	again, err := h.repo.FindExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, final.Version, again.Version)
}

func TestApprovalGate_PausesThenResumes(t *testing.T) {
	client := remote.NewSimulatedJobClient()
	h := newHarness(t, client, []string{"web-01", "db-01"})
	ctx := context.Background()

	p := &planconfig.Plan{
		ID: "plan-gated",
		Waves: []planconfig.Wave{
			{Number: 1, Servers: []string{"web-01"}, ApprovalGate: true},
			{Number: 2, Servers: []string{"db-01"}},
		},
	}
	execution, err := h.orchestrator.StartExecution(ctx, p, false)
	require.NoError(t, err)

	paused := h.tickUntil(t, execution.ID, func(e *model.RecoveryExecution) bool {
		return e.Status == model.ExecutionStatusPaused
	})
	assert.Equal(t, model.WaveStatusAwaitingApproval, paused.Waves[0].Status)
	assert.Equal(t, 1, paused.Waves[0].LaunchedCount)
	assert.NotEmpty(t, paused.ActiveTokenID)

	// A paused execution ignores further ticks.
	require.NoError(t, h.orchestrator.Tick(ctx, execution.ID))
	still, err := h.repo.FindExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, paused.Version, still.Version)

	payload, ok := h.notifier.last(ports.EventApprovalRequested)
	require.True(t, ok)
	token := payload["token"]
	require.NotEmpty(t, token)
	assert.Equal(t, execution.ID, payload["execution_id"])

	require.NoError(t, h.orchestrator.Resume(ctx, token))

	// The consumed token cannot resume anything a second time.
	err = h.orchestrator.Resume(ctx, token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrTokenConsumed))

	final := h.tickUntil(t, execution.ID, func(e *model.RecoveryExecution) bool {
		return e.Status == model.ExecutionStatusCompleted
	})
	assert.Equal(t, model.WaveStatusCompleted, final.Waves[0].Status)
	assert.Equal(t, model.WaveStatusCompleted, final.Waves[1].Status)
}

func TestApprovalGate_CancelViaToken(t *testing.T) {
	client := remote.NewSimulatedJobClient()
	h := newHarness(t, client, []string{"web-01", "db-01"})
	ctx := context.Background()

	p := &planconfig.Plan{
		ID: "plan-gated-cancel",
		Waves: []planconfig.Wave{
			{Number: 1, Servers: []string{"web-01"}, ApprovalGate: true},
			{Number: 2, Servers: []string{"db-01"}},
		},
	}
	execution, err := h.orchestrator.StartExecution(ctx, p, false)
	require.NoError(t, err)

	h.tickUntil(t, execution.ID, func(e *model.RecoveryExecution) bool {
		return e.Status == model.ExecutionStatusPaused
	})
	payload, ok := h.notifier.last(ports.EventApprovalRequested)
	require.True(t, ok)

	require.NoError(t, h.orchestrator.Cancel(ctx, payload["token"], "wrong region selected"))

	final, err := h.repo.FindExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusCancelled, final.Status)
	assert.Empty(t, final.ActiveTokenID)
	assert.Equal(t, model.WaveStatusPending, final.Waves[1].Status)
	require.Len(t, final.Failures, 1)
	assert.Contains(t, final.Failures[0], "wrong region selected")
}

func TestRequestCancellation_HonoredAfterWaveResolves(t *testing.T) {
	client := remote.NewSimulatedJobClient()
	h := newHarness(t, client, []string{"web-01", "web-02", "db-01"})
	ctx := context.Background()

	execution, err := h.orchestrator.StartExecution(ctx, twoWavePlan(), false)
	require.NoError(t, err)

	// Let wave 1 get in flight, then request cancellation mid-wave.
	inFlight := h.tickUntil(t, execution.ID, func(e *model.RecoveryExecution) bool {
		return e.Waves[0].JobID != ""
	})
	require.NoError(t, h.orchestrator.RequestCancellation(ctx, execution.ID))

	final := h.tickUntil(t, execution.ID, func(e *model.RecoveryExecution) bool {
		return e.Status.IsFinished()
	})

	// The in-flight wave ran to its terminal result; only the next wave was prevented.
	assert.Equal(t, model.ExecutionStatusCancelled, final.Status)
	assert.Equal(t, model.WaveStatusCompleted, final.Waves[0].Status)
	assert.Equal(t, inFlight.Waves[0].TotalCount, final.Waves[0].LaunchedCount)
	assert.Equal(t, model.WaveStatusPending, final.Waves[1].Status)
	assert.Empty(t, final.Waves[1].JobID)
}

func TestExpireSweep_FailsSuspendedExecution(t *testing.T) {
	client := remote.NewSimulatedJobClient()
	h := newHarness(t, client, []string{"web-01"})
	// Zero TTL makes the issued token expired the moment it exists.
	h.cfg.Tidal.Token.TTLMinutes = 0
	ctx := context.Background()

	p := &planconfig.Plan{
		ID:    "plan-expiring",
		Waves: []planconfig.Wave{{Number: 1, Servers: []string{"web-01"}, ApprovalGate: true}},
	}
	execution, err := h.orchestrator.StartExecution(ctx, p, false)
	require.NoError(t, err)

	h.tickUntil(t, execution.ID, func(e *model.RecoveryExecution) bool {
		return e.Status == model.ExecutionStatusPaused
	})

	require.NoError(t, h.orchestrator.ExpireSweep(ctx))

	final, err := h.repo.FindExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusFailed, final.Status)
	require.Len(t, final.Failures, 1)
	assert.Contains(t, final.Failures[0], "expired")

	payload, ok := h.notifier.last(ports.EventExecutionFailed)
	require.True(t, ok)
	assert.Contains(t, payload["reason"], "expired")

	// The sweep is idempotent: a second pass finds nothing actionable.
	require.NoError(t, h.orchestrator.ExpireSweep(ctx))
}

func TestTick_PermanentMonitorFailureFailsExecution(t *testing.T) {
	client := &failingJobClient{
		queryErr: exception.NewRecoveryError("remote", "job descriptor corrupted", nil, false),
	}
	h := newHarness(t, client, []string{"web-01"})
	ctx := context.Background()

	p := &planconfig.Plan{
		ID:    "plan-doomed",
		Waves: []planconfig.Wave{{Number: 1, Servers: []string{"web-01"}}},
	}
	execution, err := h.orchestrator.StartExecution(ctx, p, false)
	require.NoError(t, err)

	final := h.tickUntil(t, execution.ID, func(e *model.RecoveryExecution) bool {
		return e.Status.IsFinished()
	})
	assert.Equal(t, model.ExecutionStatusFailed, final.Status)
	assert.Equal(t, model.WaveStatusFailed, final.Waves[0].Status)
}

func TestTick_TransientMonitorFailureLeavesStateUnchanged(t *testing.T) {
	client := &failingJobClient{
		queryErr: exception.NewRecoveryError("remote", "throttled", nil, true),
	}
	h := newHarness(t, client, []string{"web-01"})
	ctx := context.Background()

	p := &planconfig.Plan{
		ID:    "plan-throttled",
		Waves: []planconfig.Wave{{Number: 1, Servers: []string{"web-01"}}},
	}
	execution, err := h.orchestrator.StartExecution(ctx, p, false)
	require.NoError(t, err)

	// First tick submits the job.
	require.NoError(t, h.orchestrator.Tick(ctx, execution.ID))
	submitted, err := h.repo.FindExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	require.NotEmpty(t, submitted.Waves[0].JobID)

	// Polls keep failing transiently; state must not move.
	for i := 0; i < 3; i++ {
		require.NoError(t, h.orchestrator.Tick(ctx, execution.ID))
	}
	unchanged, err := h.repo.FindExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, submitted.Version, unchanged.Version)
	assert.Equal(t, model.ExecutionStatusRunning, unchanged.Status)
}

func TestTick_WaveTimeoutFailsExecution(t *testing.T) {
	client := &failingJobClient{
		queryErr: exception.NewRecoveryError("remote", "throttled", nil, true),
	}
	h := newHarness(t, client, []string{"web-01"})
	ctx := context.Background()

	p := &planconfig.Plan{
		ID: "plan-slow",
		Waves: []planconfig.Wave{
			{Number: 1, Servers: []string{"web-01"}, Options: planconfig.WaveOptions{TimeoutSeconds: 1}},
		},
	}
	execution, err := h.orchestrator.StartExecution(ctx, p, false)
	require.NoError(t, err)
	require.NoError(t, h.orchestrator.Tick(ctx, execution.ID))

	// Backdate the wave start beyond its timeout.
	stored, err := h.repo.FindExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	stored.Waves[0].StartedAt = &past
	require.NoError(t, h.repo.UpdateExecution(ctx, stored, stored.Version))

	refreshed, err := h.repo.FindExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	require.NoError(t, h.orchestrator.Tick(ctx, refreshed.ID))

	final, err := h.repo.FindExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusFailed, final.Status)
	require.Len(t, final.Failures, 1)
	assert.Contains(t, final.Failures[0], "timed out")
}

func TestResume_RejectsUnknownToken(t *testing.T) {
	h := newHarness(t, remote.NewSimulatedJobClient(), []string{"web-01"})

	err := h.orchestrator.Resume(context.Background(), "never-issued")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrTokenUnknown))
}

func TestStartExecution_RejectsInvalidPlans(t *testing.T) {
	h := newHarness(t, remote.NewSimulatedJobClient(), []string{"web-01"})
	ctx := context.Background()

	_, err := h.orchestrator.StartExecution(ctx, &planconfig.Plan{ID: "empty"}, false)
	assert.True(t, errors.Is(err, exception.ErrValidation))

	_, err = h.orchestrator.StartExecution(ctx, &planconfig.Plan{
		ID:    "no-servers",
		Waves: []planconfig.Wave{{Number: 1}},
	}, false)
	assert.True(t, errors.Is(err, exception.ErrValidation))
}

func TestTickActiveExecutions_CoversEveryActiveRun(t *testing.T) {
	client := remote.NewSimulatedJobClient()
	h := newHarness(t, client, []string{"web-01", "web-02", "db-01"})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 2; i++ {
		p := &planconfig.Plan{
			ID:    fmt.Sprintf("plan-%d", i),
			Waves: []planconfig.Wave{{Number: 1, Servers: []string{"web-01"}}},
		}
		execution, err := h.orchestrator.StartExecution(ctx, p, true)
		require.NoError(t, err)
		ids = append(ids, execution.ID)
	}

	for i := 0; i < 10; i++ {
		require.NoError(t, h.orchestrator.TickActiveExecutions(ctx))
	}
	for _, id := range ids {
		execution, err := h.repo.FindExecutionByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.ExecutionStatusCompleted, execution.Status)
	}
}

func TestGetExecution_ReadsBackWaves(t *testing.T) {
	h := newHarness(t, remote.NewSimulatedJobClient(), []string{"web-01", "web-02", "db-01"})
	ctx := context.Background()

	execution, err := h.orchestrator.StartExecution(ctx, twoWavePlan(), false)
	require.NoError(t, err)

	got, err := h.orchestrator.GetExecution(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.ID, got.ID)
	assert.Len(t, got.Waves, 2)

	active, err := h.orchestrator.ListActiveExecutions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, execution.ID, active[0].ID)
}

func TestStartWave_ConfiguresLaunchTargetsByDefault(t *testing.T) {
	client := remote.NewSimulatedJobClient()
	h := newHarness(t, client, []string{"web-01", "web-02", "db-01"})
	ctx := context.Background()

	// The registered plan carries no per-wave options, so identity preservation
	// stays on and every matched pair becomes a launch-target binding.
	execution, err := h.orchestrator.StartExecution(ctx, twoWavePlan(), false)
	require.NoError(t, err)

	final := h.tickUntil(t, execution.ID, func(e *model.RecoveryExecution) bool {
		return e.Status == model.ExecutionStatusCompleted
	})

	for _, sourceID := range []string{"src-web-01", "src-web-02", "src-db-01"} {
		target, ok := client.LaunchTarget(sourceID)
		require.True(t, ok, "expected a launch target configured for %s", sourceID)
		assert.Equal(t, "tgt-"+sourceID[len("src-"):], target)
	}

	targets := map[string]string{}
	for _, wave := range final.Waves {
		for _, status := range wave.ServerStatuses {
			targets[status.ServerID] = status.TargetResourceID
		}
	}
	assert.Equal(t, "tgt-web-01", targets["web-01"])
	assert.Equal(t, "tgt-web-02", targets["web-02"])
	assert.Equal(t, "tgt-db-01", targets["db-01"])
}

func TestStartWave_IdentityPreservationOptOutSkipsTargets(t *testing.T) {
	client := remote.NewSimulatedJobClient()
	h := newHarness(t, client, []string{"web-01"})
	ctx := context.Background()

	optOut := false
	p := &planconfig.Plan{
		ID:   "plan-no-identity",
		Name: "No identity preservation",
		Waves: []planconfig.Wave{
			{
				Number:  1,
				Servers: []string{"web-01"},
				Options: planconfig.WaveOptions{IdentityPreservation: &optOut},
			},
		},
	}

	execution, err := h.orchestrator.StartExecution(ctx, p, false)
	require.NoError(t, err)

	h.tickUntil(t, execution.ID, func(e *model.RecoveryExecution) bool {
		return e.Status == model.ExecutionStatusCompleted
	})

	_, ok := client.LaunchTarget("src-web-01")
	assert.False(t, ok, "opted-out wave must not configure launch targets")
}
