// Package orchestrator drives the RecoveryExecution state machine. Each tick is
// stateless: it reads the durable execution, decides at most one transition per wave,
// and hands it to the state persister. A version conflict means another tick already
// made the decision, so the stale one is discarded.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	config "github.com/tigerroll/tidal/pkg/recovery/core/config"
	planconfig "github.com/tigerroll/tidal/pkg/recovery/core/config/plan"
	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	repository "github.com/tigerroll/tidal/pkg/recovery/core/domain/repository"
	"github.com/tigerroll/tidal/pkg/recovery/core/metrics"
	"github.com/tigerroll/tidal/pkg/recovery/core/ports"
	"github.com/tigerroll/tidal/pkg/recovery/engine/matcher"
	"github.com/tigerroll/tidal/pkg/recovery/engine/monitor"
	"github.com/tigerroll/tidal/pkg/recovery/engine/persister"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/logger"

	"go.uber.org/fx"
)

const moduleName = "orchestrator"

// WaveOrchestrator is the entry point for everything that moves a recovery execution:
// starting it, ticking it forward, and the callback protocol around approval gates.
type WaveOrchestrator interface {
	// StartExecution materializes a plan into a persisted CREATED execution.
	StartExecution(ctx context.Context, p *planconfig.Plan, isDrill bool) (*model.RecoveryExecution, error)

	// Tick advances one execution by at most one decision. It is safe to call
	// concurrently for the same execution: optimistic concurrency discards the loser.
	Tick(ctx context.Context, executionID string) error

	// TickActiveExecutions ticks every non-terminal execution once.
	TickActiveExecutions(ctx context.Context) error

	// GetExecution reads back one execution with its waves.
	GetExecution(ctx context.Context, executionID string) (*model.RecoveryExecution, error)

	// ListActiveExecutions reads back every non-terminal execution.
	ListActiveExecutions(ctx context.Context) ([]*model.RecoveryExecution, error)

	// Resume consumes a callback token and returns the paused execution to RUNNING.
	Resume(ctx context.Context, tokenValue string) error

	// Cancel consumes a callback token and moves the paused execution to CANCELLED.
	Cancel(ctx context.Context, tokenValue, reason string) error

	// RequestCancellation sets the advisory cancellation flag; the in-flight wave
	// still runs to a terminal or timeout result before the execution cancels.
	RequestCancellation(ctx context.Context, executionID string) error

	// ExpireSweep fails every execution whose unconsumed token is past its expiry.
	ExpireSweep(ctx context.Context) error
}

type waveOrchestrator struct {
	repo      repository.RecoveryRepository
	persister persister.StatePersister
	monitor   monitor.JobMonitor
	matcher   matcher.InstanceMatcher
	client    ports.RemoteJobClient
	discovery ports.ResourceDiscovery
	notifier  ports.Notifier
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
	cfg       *config.Config

	mu    sync.RWMutex
	plans map[string]*planconfig.Plan
}

// OrchestratorParams defines the dependencies for NewWaveOrchestrator.
type OrchestratorParams struct {
	fx.In
	Repo      repository.RecoveryRepository
	Persister persister.StatePersister
	Monitor   monitor.JobMonitor
	Matcher   matcher.InstanceMatcher
	Client    ports.RemoteJobClient
	Discovery ports.ResourceDiscovery
	Notifier  ports.Notifier
	Recorder  metrics.MetricRecorder
	Tracer    metrics.Tracer
	Cfg       *config.Config
}

// NewWaveOrchestrator creates the orchestrator.
func NewWaveOrchestrator(p OrchestratorParams) WaveOrchestrator {
	return &waveOrchestrator{
		repo:      p.Repo,
		persister: p.Persister,
		monitor:   p.Monitor,
		matcher:   p.Matcher,
		client:    p.Client,
		discovery: p.Discovery,
		notifier:  p.Notifier,
		recorder:  p.Recorder,
		tracer:    p.Tracer,
		cfg:       p.Cfg,
		plans:     make(map[string]*planconfig.Plan),
	}
}

func (o *waveOrchestrator) StartExecution(ctx context.Context, p *planconfig.Plan, isDrill bool) (*model.RecoveryExecution, error) {
	const op = "WaveOrchestrator.StartExecution"

	if p == nil || p.ID == "" {
		return nil, exception.NewValidationError(op, "plan must have an ID")
	}
	if len(p.Waves) == 0 {
		return nil, exception.NewValidationError(op, "plan %s has no waves", p.ID)
	}

	execution := model.NewRecoveryExecution(p.ID, isDrill)
	for _, w := range p.Waves {
		if len(w.Servers) == 0 {
			return nil, exception.NewValidationError(op, "plan %s wave %d has no servers", p.ID, w.Number)
		}
		wave := model.NewWaveExecution(execution.ID, w.Number, w.Servers)
		wave.RequiresApproval = w.ApprovalGate
		wave.TimeoutSeconds = w.Options.TimeoutSeconds
		execution.AddWaveExecution(wave)
	}

	if err := o.repo.SaveExecution(ctx, execution); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.plans[p.ID] = p
	o.mu.Unlock()

	o.recorder.RecordExecutionStart(ctx, execution)
	logger.Infof("%s: execution %s created for plan %s with %d waves (drill=%t)", op, execution.ID, p.ID, len(execution.Waves), isDrill)
	return execution, nil
}

func (o *waveOrchestrator) Tick(ctx context.Context, executionID string) error {
	const op = "WaveOrchestrator.Tick"

	execution, err := o.repo.FindExecutionByID(ctx, executionID)
	if err != nil {
		return err
	}

	ctx, endSpan := o.tracer.StartTickSpan(ctx, execution)
	defer endSpan()

	if execution.Status.IsFinished() {
		return nil
	}
	// A paused execution moves only through the callback protocol.
	if execution.Status == model.ExecutionStatusPaused {
		logger.Debugf("%s: execution %s is PAUSED, waiting for callback", op, executionID)
		return nil
	}

	wave := execution.CurrentWave()
	if wave == nil {
		// Empty plan edge: nothing to run, finish immediately.
		return o.applyDiscardingConflict(ctx, execution.ID, execution.Version, model.Complete())
	}

	// The index only rests on a finished wave when it was the last one; the tick that
	// advanced it may have died before persisting the closing transition.
	if wave.Status.IsFinished() {
		if execution.CancellationRequested {
			return o.cancelAfterWave(ctx, execution, execution.Version)
		}
		return o.completeExecution(ctx, execution, execution.Version)
	}

	if wave.JobID == "" {
		if execution.CancellationRequested {
			// Nothing is in flight yet, so cancellation takes effect immediately.
			return o.cancelAfterWave(ctx, execution, execution.Version)
		}
		return o.startWave(ctx, execution, wave)
	}

	if o.waveTimedOut(wave) {
		reason := fmt.Sprintf("wave %d timed out after %s", wave.WaveNumber, o.waveTimeout(wave))
		return o.failExecution(ctx, execution, execution.Version, exception.NewTimeoutError(moduleName, reason))
	}

	snapshot, err := o.monitor.Poll(ctx, wave.JobID, wave.ServerIDs)
	if err != nil {
		if exception.IsTemporary(err) {
			// Leave durable state untouched; the next tick polls again.
			logger.Warnf("%s: transient monitor failure for execution %s wave %d: %v", op, executionID, wave.WaveNumber, err)
			return nil
		}
		o.tracer.RecordError(ctx, "monitor", err)
		return o.failExecution(ctx, execution, execution.Version, err)
	}

	if !snapshot.WaveComplete {
		// Persist interim progress so operators see counts move between ticks.
		return o.applyDiscardingConflict(ctx, execution.ID, execution.Version, model.AdvanceWave(snapshot, ""))
	}

	if wave.RequiresApproval {
		return o.enterApprovalGate(ctx, execution, wave, snapshot)
	}

	newVersion, err := o.persister.Apply(ctx, execution.ID, execution.Version, model.AdvanceWave(snapshot, ""))
	if err != nil {
		return o.discardConflict(op, execution.ID, err)
	}
	o.recorder.RecordWaveEnd(ctx, wave)
	o.recordLaunches(ctx, execution.ID, snapshot)

	if execution.CancellationRequested {
		return o.cancelAfterWave(ctx, execution, newVersion)
	}
	if !execution.HasMoreWaves() {
		return o.completeExecution(ctx, execution, newVersion)
	}
	logger.Infof("%s: execution %s wave %d complete, advancing", op, executionID, wave.WaveNumber)
	return nil
}

func (o *waveOrchestrator) TickActiveExecutions(ctx context.Context) error {
	executions, err := o.repo.ListActiveExecutions(ctx)
	if err != nil {
		return err
	}
	for _, execution := range executions {
		if err := o.Tick(ctx, execution.ID); err != nil {
			logger.Errorf("WaveOrchestrator.TickActiveExecutions: tick failed for execution %s: %v", execution.ID, err)
		}
	}
	return nil
}

func (o *waveOrchestrator) GetExecution(ctx context.Context, executionID string) (*model.RecoveryExecution, error) {
	return o.repo.FindExecutionByID(ctx, executionID)
}

func (o *waveOrchestrator) ListActiveExecutions(ctx context.Context) ([]*model.RecoveryExecution, error) {
	return o.repo.ListActiveExecutions(ctx)
}

// startWave matches instances, configures launch targets, submits the remote job and
// records the job ID. Submission is de-duplicated by executionID:waveNumber, so a tick
// that dies between submit and persist resubmits harmlessly on the next pass.
func (o *waveOrchestrator) startWave(ctx context.Context, execution *model.RecoveryExecution, wave *model.WaveExecution) error {
	const op = "WaveOrchestrator.startWave"

	ctx, endSpan := o.tracer.StartWaveSpan(ctx, wave)
	defer endSpan()

	serverConfigs, err := o.buildServerConfigs(ctx, execution, wave)
	if err != nil {
		return o.failExecution(ctx, execution, execution.Version, err)
	}

	idempotencyKey := fmt.Sprintf("%s:%d", execution.ID, wave.WaveNumber)
	jobID, err := o.client.SubmitJob(ctx, serverConfigs, execution.IsDrill, idempotencyKey)
	if err != nil {
		if exception.IsTemporary(err) {
			logger.Warnf("%s: transient submit failure for execution %s wave %d: %v", op, execution.ID, wave.WaveNumber, err)
			return nil
		}
		o.tracer.RecordError(ctx, "remote", err)
		return o.failExecution(ctx, execution, execution.Version, err)
	}

	if err := o.applyDiscardingConflict(ctx, execution.ID, execution.Version, model.AdvanceWave(nil, jobID)); err != nil {
		return err
	}
	o.recorder.RecordWaveStart(ctx, wave)
	o.tracer.RecordEvent(ctx, "job_submitted", map[string]interface{}{
		"job_id":      jobID,
		"wave_number": wave.WaveNumber,
	})
	logger.Infof("%s: execution %s wave %d submitted as job %s (%d servers)", op, execution.ID, wave.WaveNumber, jobID, len(serverConfigs))
	return nil
}

// buildServerConfigs runs the instance matcher over the wave's servers and binds each
// validated pair to its target before submission.
func (o *waveOrchestrator) buildServerConfigs(ctx context.Context, execution *model.RecoveryExecution, wave *model.WaveExecution) ([]ports.ServerConfig, error) {
	sources, err := o.discovery.ListSourceResources(ctx)
	if err != nil {
		return nil, err
	}
	targets, err := o.discovery.ListCandidateTargets(ctx, o.cfg.Tidal.Matcher.EligibleTargetTag)
	if err != nil {
		return nil, err
	}

	waveSources := make([]ports.Resource, 0, len(wave.ServerIDs))
	sourceServer := make(map[string]string, len(wave.ServerIDs))
	for _, source := range sources {
		switch {
		case wave.ServerIDs.Contains(source.ID):
			sourceServer[source.ID] = source.ID
		case wave.ServerIDs.Contains(source.Name):
			sourceServer[source.ID] = source.Name
		default:
			continue
		}
		waveSources = append(waveSources, source)
	}

	options, hasOptions := o.waveOptions(execution.PlanID, wave.WaveNumber)
	threshold := o.cfg.Tidal.Matcher.FuzzyThreshold
	if hasOptions && options.FuzzyThreshold > 0 {
		threshold = options.FuzzyThreshold
	}
	// Identity preservation is the default for recovery; a plan wave may opt out.
	preserveIdentity := !hasOptions || options.PreserveIdentity()

	result := o.matcher.MatchWithThreshold(waveSources, targets, threshold)
	for _, unmatched := range result.UnmatchedSources {
		logger.Warnf("WaveOrchestrator: wave %d source %s unmatched: %s", wave.WaveNumber, unmatched.Resource.ID, unmatched.Reason)
	}

	sourcesByID := resourcesByID(waveSources)
	targetsByID := resourcesByID(targets)

	targetForServer := make(map[string]string)
	for _, pair := range result.Matched {
		if err := o.matcher.Validate(pair, sourcesByID[pair.SourceID], targetsByID[pair.TargetID]); err != nil {
			logger.Warnf("WaveOrchestrator: wave %d pair %s -> %s failed validation: %v", wave.WaveNumber, pair.SourceID, pair.TargetID, err)
			continue
		}
		if !preserveIdentity {
			continue
		}
		if err := o.client.ConfigureLaunchTarget(ctx, pair.SourceID, pair.TargetID); err != nil {
			return nil, err
		}
		targetForServer[sourceServer[pair.SourceID]] = pair.TargetID
	}

	serverConfigs := make([]ports.ServerConfig, 0, len(wave.ServerIDs))
	for _, serverID := range wave.ServerIDs {
		serverConfigs = append(serverConfigs, ports.ServerConfig{
			ServerID:         serverID,
			TargetResourceID: targetForServer[serverID],
		})
	}
	return serverConfigs, nil
}

// enterApprovalGate issues a fresh token, pauses the execution and notifies the
// approver out of band. Notification failure never rolls back the pause.
func (o *waveOrchestrator) enterApprovalGate(ctx context.Context, execution *model.RecoveryExecution, wave *model.WaveExecution, snapshot *model.WaveStatusSnapshot) error {
	const op = "WaveOrchestrator.enterApprovalGate"

	ttl := time.Duration(o.cfg.Tidal.Token.TTLMinutes) * time.Minute
	token := model.NewCallbackToken(execution.ID, wave.WaveNumber, ttl)

	if err := o.applyDiscardingConflict(ctx, execution.ID, execution.Version, model.EnterApproval(token, snapshot)); err != nil {
		return err
	}

	o.recorder.RecordWaveEnd(ctx, wave)
	o.recordLaunches(ctx, execution.ID, snapshot)
	o.tracer.RecordEvent(ctx, "token_issued", map[string]interface{}{
		"wave_number": wave.WaveNumber,
		"expires_at":  token.ExpiresAt.Format(time.RFC3339),
	})
	o.notifier.Publish(ctx, ports.EventApprovalRequested, map[string]string{
		"execution_id": execution.ID,
		"plan_id":      execution.PlanID,
		"wave_number":  fmt.Sprintf("%d", wave.WaveNumber),
		"token":        token.Token,
		"expires_at":   token.ExpiresAt.Format(time.RFC3339),
	})
	logger.Infof("%s: execution %s paused at wave %d awaiting approval (token expires %s)", op, execution.ID, wave.WaveNumber, token.ExpiresAt.Format(time.RFC3339))
	return nil
}

func (o *waveOrchestrator) Resume(ctx context.Context, tokenValue string) error {
	const op = "WaveOrchestrator.Resume"

	token, err := o.validateToken(ctx, tokenValue)
	if err != nil {
		o.recorder.RecordTokenOutcome(ctx, "rejected")
		return err
	}

	execution, err := o.repo.FindExecutionByID(ctx, token.ExecutionID)
	if err != nil {
		return err
	}
	if execution.ActiveTokenID != token.Token {
		o.recorder.RecordTokenOutcome(ctx, "rejected")
		return exception.NewRecoveryError(op, fmt.Sprintf("token is no longer active for execution %s", token.ExecutionID), exception.ErrTokenUnknown, false)
	}

	if _, err := o.persister.Apply(ctx, execution.ID, execution.Version, model.Resume()); err != nil {
		return err
	}
	o.recorder.RecordTokenOutcome(ctx, "resumed")
	logger.Infof("%s: execution %s resumed past wave %d", op, execution.ID, token.WaveNumber)
	return nil
}

func (o *waveOrchestrator) Cancel(ctx context.Context, tokenValue, reason string) error {
	const op = "WaveOrchestrator.Cancel"

	token, err := o.validateToken(ctx, tokenValue)
	if err != nil {
		o.recorder.RecordTokenOutcome(ctx, "rejected")
		return err
	}

	execution, err := o.repo.FindExecutionByID(ctx, token.ExecutionID)
	if err != nil {
		return err
	}
	if execution.ActiveTokenID != token.Token {
		o.recorder.RecordTokenOutcome(ctx, "rejected")
		return exception.NewRecoveryError(op, fmt.Sprintf("token is no longer active for execution %s", token.ExecutionID), exception.ErrTokenUnknown, false)
	}

	if _, err := o.persister.Apply(ctx, execution.ID, execution.Version, model.Cancel(reason)); err != nil {
		return err
	}
	o.recorder.RecordTokenOutcome(ctx, "cancelled")
	o.notifier.Publish(ctx, ports.EventExecutionCancelled, map[string]string{
		"execution_id": execution.ID,
		"plan_id":      execution.PlanID,
		"reason":       reason,
	})
	logger.Infof("%s: execution %s cancelled at wave %d: %s", op, execution.ID, token.WaveNumber, reason)
	return nil
}

func (o *waveOrchestrator) RequestCancellation(ctx context.Context, executionID string) error {
	const op = "WaveOrchestrator.RequestCancellation"

	execution, err := o.repo.FindExecutionByID(ctx, executionID)
	if err != nil {
		return err
	}
	if execution.Status.IsFinished() {
		return exception.NewValidationError(op, "execution %s is already %s", executionID, execution.Status)
	}
	_, err = o.persister.Apply(ctx, executionID, execution.Version, model.RequestCancellation())
	return err
}

func (o *waveOrchestrator) ExpireSweep(ctx context.Context) error {
	const op = "WaveOrchestrator.ExpireSweep"

	expired, err := o.repo.ListExpiredUnconsumedTokens(ctx, time.Now())
	if err != nil {
		return err
	}

	for _, token := range expired {
		execution, err := o.repo.FindExecutionByID(ctx, token.ExecutionID)
		if err != nil {
			logger.Errorf("%s: execution %s for expired token not found: %v", op, token.ExecutionID, err)
			continue
		}
		// Only the token currently gating the execution may fail it; stale rows from
		// earlier waves are left for bookkeeping.
		if execution.Status.IsFinished() || execution.ActiveTokenID != token.Token {
			continue
		}

		reason := fmt.Sprintf("approval token for wave %d expired at %s", token.WaveNumber, token.ExpiresAt.Format(time.RFC3339))
		if err := o.applyDiscardingConflict(ctx, execution.ID, execution.Version, model.Fail(reason)); err != nil {
			logger.Errorf("%s: failed to fail execution %s: %v", op, execution.ID, err)
			continue
		}
		o.recorder.RecordTokenOutcome(ctx, "expired")
		o.notifier.Publish(ctx, ports.EventExecutionFailed, map[string]string{
			"execution_id": execution.ID,
			"plan_id":      execution.PlanID,
			"reason":       reason,
		})
		logger.Warnf("%s: execution %s failed: %s", op, execution.ID, reason)
	}
	return nil
}

// validateToken resolves a presented token value and rejects the unknown, the
// expired and the already consumed.
func (o *waveOrchestrator) validateToken(ctx context.Context, tokenValue string) (*model.CallbackToken, error) {
	const op = "WaveOrchestrator.validateToken"

	if tokenValue == "" {
		return nil, exception.NewRecoveryError(op, "empty token presented", exception.ErrTokenUnknown, false)
	}
	token, err := o.repo.FindTokenByValue(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, exception.NewRecoveryError(op, "unknown token presented", exception.ErrTokenUnknown, false)
		}
		return nil, err
	}
	if token.Consumed {
		return nil, exception.NewRecoveryError(op, "token was already consumed", exception.ErrTokenConsumed, false)
	}
	if token.IsExpired(time.Now()) {
		return nil, exception.NewRecoveryError(op, fmt.Sprintf("token expired at %s", token.ExpiresAt.Format(time.RFC3339)), exception.ErrTokenExpired, false)
	}
	return token, nil
}

// completeExecution closes out an execution whose final wave has resolved.
func (o *waveOrchestrator) completeExecution(ctx context.Context, execution *model.RecoveryExecution, expectedVersion int) error {
	if err := o.applyDiscardingConflict(ctx, execution.ID, expectedVersion, model.Complete()); err != nil {
		return err
	}
	o.notifier.Publish(ctx, ports.EventExecutionCompleted, map[string]string{
		"execution_id": execution.ID,
		"plan_id":      execution.PlanID,
	})
	if finished, err := o.repo.FindExecutionByID(ctx, execution.ID); err == nil {
		o.recorder.RecordExecutionEnd(ctx, finished)
	}
	logger.Infof("WaveOrchestrator: execution %s completed", execution.ID)
	return nil
}

// cancelAfterWave cancels an execution once its in-flight wave has resolved.
func (o *waveOrchestrator) cancelAfterWave(ctx context.Context, execution *model.RecoveryExecution, expectedVersion int) error {
	if err := o.applyDiscardingConflict(ctx, execution.ID, expectedVersion, model.Cancel("cancellation requested by operator")); err != nil {
		return err
	}
	o.notifier.Publish(ctx, ports.EventExecutionCancelled, map[string]string{
		"execution_id": execution.ID,
		"plan_id":      execution.PlanID,
		"reason":       "cancellation requested by operator",
	})
	logger.Infof("WaveOrchestrator: execution %s cancelled after wave resolution", execution.ID)
	return nil
}

// failExecution moves the execution to FAILED with the cause as reason.
func (o *waveOrchestrator) failExecution(ctx context.Context, execution *model.RecoveryExecution, expectedVersion int, cause error) error {
	reason := exception.ExtractErrorMessage(cause)
	if err := o.applyDiscardingConflict(ctx, execution.ID, expectedVersion, model.Fail(reason)); err != nil {
		return err
	}
	o.notifier.Publish(ctx, ports.EventExecutionFailed, map[string]string{
		"execution_id": execution.ID,
		"plan_id":      execution.PlanID,
		"reason":       reason,
	})
	if finished, err := o.repo.FindExecutionByID(ctx, execution.ID); err == nil {
		o.recorder.RecordExecutionEnd(ctx, finished)
	}
	logger.Errorf("WaveOrchestrator: execution %s failed: %s", execution.ID, reason)
	return nil
}

// applyDiscardingConflict applies a transition and swallows version conflicts: a
// conflict means a concurrent tick already moved the execution, which is not an error
// for the caller.
func (o *waveOrchestrator) applyDiscardingConflict(ctx context.Context, executionID string, expectedVersion int, transition model.Transition) error {
	_, err := o.persister.Apply(ctx, executionID, expectedVersion, transition)
	if err != nil {
		return o.discardConflict("WaveOrchestrator", executionID, err)
	}
	return nil
}

func (o *waveOrchestrator) discardConflict(op, executionID string, err error) error {
	if exception.IsVersionConflict(err) {
		logger.Debugf("%s: discarding stale decision for execution %s: %v", op, executionID, err)
		return nil
	}
	return err
}

func (o *waveOrchestrator) waveTimeout(wave *model.WaveExecution) time.Duration {
	seconds := wave.TimeoutSeconds
	if seconds <= 0 {
		seconds = o.cfg.Tidal.Orchestrator.WaveTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (o *waveOrchestrator) waveTimedOut(wave *model.WaveExecution) bool {
	if wave.StartedAt == nil {
		return false
	}
	timeout := o.waveTimeout(wave)
	return timeout > 0 && time.Since(*wave.StartedAt) > timeout
}

func (o *waveOrchestrator) waveOptions(planID string, waveNumber int) (planconfig.WaveOptions, bool) {
	o.mu.RLock()
	p, ok := o.plans[planID]
	o.mu.RUnlock()
	if !ok {
		return planconfig.WaveOptions{}, false
	}
	for _, w := range p.Waves {
		if w.Number == waveNumber {
			return w.Options, true
		}
	}
	return planconfig.WaveOptions{}, false
}

func (o *waveOrchestrator) recordLaunches(ctx context.Context, executionID string, snapshot *model.WaveStatusSnapshot) {
	for _, status := range snapshot.PerServer {
		if status.LaunchState.IsTerminal() {
			o.recorder.RecordServerLaunch(ctx, executionID, status.LaunchState)
		}
	}
}

func resourcesByID(resources []ports.Resource) map[string]ports.Resource {
	byID := make(map[string]ports.Resource, len(resources))
	for _, r := range resources {
		byID[r.ID] = r
	}
	return byID
}

var _ WaveOrchestrator = (*waveOrchestrator)(nil)

// Module provides the WaveOrchestrator implementation.
var Module = fx.Options(
	fx.Provide(NewWaveOrchestrator),
)
