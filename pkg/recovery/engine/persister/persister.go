// Package persister implements the write-only state persister. It is the single
// writer path for RecoveryExecution: every durable mutation goes through Apply, which
// commits one transition atomically under the execution's optimistic-concurrency
// version.
package persister

import (
	"context"
	"errors"
	"fmt"
	"time"

	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	repository "github.com/tigerroll/tidal/pkg/recovery/core/domain/repository"
	"github.com/tigerroll/tidal/pkg/recovery/core/metrics"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/logger"

	"go.uber.org/fx"
)

// StatePersister applies exactly one transition to a stored execution per call.
type StatePersister interface {
	// Apply commits the transition if the stored version still equals expectedVersion
	// and returns the new version. A stale expectedVersion yields an error wrapping
	// exception.ErrVersionConflict and performs no mutation; a caller seeing the
	// conflict after its own intended state was reached treats it as "already done".
	// Every write inside one Apply call commits or rolls back as a unit, including
	// token persistence and consumption.
	Apply(ctx context.Context, executionID string, expectedVersion int, transition model.Transition) (int, error)
}

// repositoryStatePersister implements StatePersister over a RecoveryRepository.
type repositoryStatePersister struct {
	repo     repository.RecoveryRepository
	recorder metrics.MetricRecorder
}

// PersisterParams defines the dependencies for NewStatePersister.
type PersisterParams struct {
	fx.In
	Repo     repository.RecoveryRepository
	Recorder metrics.MetricRecorder
}

// NewStatePersister creates the repository-backed StatePersister.
func NewStatePersister(p PersisterParams) StatePersister {
	return &repositoryStatePersister{repo: p.Repo, recorder: p.Recorder}
}

func (p *repositoryStatePersister) Apply(ctx context.Context, executionID string, expectedVersion int, transition model.Transition) (int, error) {
	const op = "StatePersister.Apply"

	var newVersion int
	err := p.repo.Transactional(ctx, func(ctx context.Context, txRepo repository.RecoveryRepository) error {
		execution, err := txRepo.FindExecutionByID(ctx, executionID)
		if err != nil {
			return err
		}

		// Reject stale writers before mutating anything. The conditional update below
		// enforces the same predicate against concurrent writers racing this call.
		if execution.Version != expectedVersion {
			return exception.NewVersionConflictError(op,
				fmt.Sprintf("RecoveryExecution (ID: %s): expected version %d but stored version is %d", executionID, expectedVersion, execution.Version), nil)
		}

		if err := applyTransition(ctx, txRepo, execution, transition); err != nil {
			return err
		}

		if err := txRepo.UpdateExecution(ctx, execution, expectedVersion); err != nil {
			return err
		}
		newVersion = execution.Version
		return nil
	})
	if err != nil {
		if exception.IsVersionConflict(err) && p.recorder != nil {
			p.recorder.RecordVersionConflict(ctx, executionID)
		}
		return 0, err
	}

	logger.Debugf("%s: applied %s to execution %s (version %d -> %d)", op, transition.Kind, executionID, expectedVersion, newVersion)
	return newVersion, nil
}

// applyTransition mutates the in-memory execution according to the transition kind.
// The switch is exhaustive over TransitionKind.
func applyTransition(ctx context.Context, txRepo repository.RecoveryRepository, execution *model.RecoveryExecution, t model.Transition) error {
	const op = "StatePersister.applyTransition"

	switch t.Kind {
	case model.TransitionAdvanceWave:
		wave := execution.CurrentWave()
		if wave == nil {
			return exception.NewValidationError(op, "RecoveryExecution (ID: %s) has no current wave to advance", execution.ID)
		}
		if execution.Status == model.ExecutionStatusCreated {
			execution.MarkAsStarted()
		}
		if t.JobID != "" && wave.JobID == "" {
			wave.MarkAsStarted(t.JobID)
		}
		if t.Snapshot != nil {
			if err := wave.ApplySnapshot(*t.Snapshot); err != nil {
				return err
			}
			if t.Snapshot.WaveComplete {
				wave.MarkAsCompleted()
				if execution.HasMoreWaves() {
					execution.CurrentWaveIndex++
				}
			}
		}
		return nil

	case model.TransitionEnterApproval:
		if t.Token == nil {
			return exception.NewValidationError(op, "EnterApproval requires a callback token")
		}
		wave := execution.CurrentWave()
		if wave == nil {
			return exception.NewValidationError(op, "RecoveryExecution (ID: %s) has no current wave to pause", execution.ID)
		}
		if t.Snapshot != nil {
			if err := wave.ApplySnapshot(*t.Snapshot); err != nil {
				return err
			}
		}
		wave.MarkAsAwaitingApproval()
		execution.MarkAsPaused(t.Token.Token)
		// Persisting the token in the same transaction makes issuance and pause atomic.
		return txRepo.SaveToken(ctx, t.Token)

	case model.TransitionResume:
		if execution.Status != model.ExecutionStatusPaused {
			return exception.NewValidationError(op, "RecoveryExecution (ID: %s) is %s, not PAUSED", execution.ID, execution.Status)
		}
		if execution.ActiveTokenID == "" {
			return exception.NewValidationError(op, "RecoveryExecution (ID: %s) is paused without an active token", execution.ID)
		}
		// Consuming inside the transaction linearizes resume against any concurrent
		// consumer of the same token.
		if err := txRepo.MarkTokenConsumed(ctx, execution.ActiveTokenID, time.Now()); err != nil {
			return err
		}
		if wave := execution.CurrentWave(); wave != nil && wave.Status == model.WaveStatusAwaitingApproval {
			wave.MarkAsCompleted()
			if execution.HasMoreWaves() {
				execution.CurrentWaveIndex++
			}
		}
		execution.MarkAsResumed()
		return nil

	case model.TransitionCancel:
		if err := consumeActiveToken(ctx, txRepo, execution); err != nil {
			return err
		}
		if wave := execution.CurrentWave(); wave != nil && !wave.Status.IsFinished() {
			wave.MarkAsCancelled()
		}
		execution.MarkAsCancelled(t.Reason)
		return nil

	case model.TransitionFail:
		if err := consumeActiveToken(ctx, txRepo, execution); err != nil {
			return err
		}
		if wave := execution.CurrentWave(); wave != nil && !wave.Status.IsFinished() {
			wave.MarkAsFailed(t.Reason)
		}
		execution.MarkAsFailed(errors.New(t.Reason))
		return nil

	case model.TransitionComplete:
		execution.MarkAsCompleted()
		return nil

	case model.TransitionRequestCancellation:
		execution.CancellationRequested = true
		return nil

	default:
		return exception.NewValidationError(op, "unknown transition kind %d", int(t.Kind))
	}
}

// consumeActiveToken retires the execution's active token, if any, so a terminal
// execution can never be resumed afterwards.
func consumeActiveToken(ctx context.Context, txRepo repository.RecoveryRepository, execution *model.RecoveryExecution) error {
	if execution.ActiveTokenID == "" {
		return nil
	}
	err := txRepo.MarkTokenConsumed(ctx, execution.ActiveTokenID, time.Now())
	execution.ActiveTokenID = ""
	return err
}

var _ StatePersister = (*repositoryStatePersister)(nil)

// Module provides the StatePersister implementation.
var Module = fx.Options(
	fx.Provide(NewStatePersister),
)
