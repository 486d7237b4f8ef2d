package model_test

import (
	"errors"
	"testing"
	"time"

	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"

	"github.com/stretchr/testify/assert"
)

// Helper function to create a basic RecoveryExecution
func newTestExecution(status model.ExecutionStatus) *model.RecoveryExecution {
	re := model.NewRecoveryExecution("plan-1", false)
	re.Status = status
	return re
}

// Helper function to create a basic WaveExecution
func newTestWave(executionID string, status model.WaveStatus) *model.WaveExecution {
	we := model.NewWaveExecution(executionID, 1, []string{"srv-1", "srv-2", "srv-3"})
	we.Status = status
	return we
}

func TestRecoveryExecution_TransitionTo(t *testing.T) {
	// Test valid transitions
	re := newTestExecution(model.ExecutionStatusCreated)
	assert.NoError(t, re.TransitionTo(model.ExecutionStatusRunning))
	assert.Equal(t, model.ExecutionStatusRunning, re.Status)

	// CREATED -> CANCELLED (cancelled before the first wave starts)
	re = newTestExecution(model.ExecutionStatusCreated)
	assert.NoError(t, re.TransitionTo(model.ExecutionStatusCancelled))
	assert.Equal(t, model.ExecutionStatusCancelled, re.Status)

	// RUNNING -> PAUSED (approval gate reached)
	re = newTestExecution(model.ExecutionStatusRunning)
	assert.NoError(t, re.TransitionTo(model.ExecutionStatusPaused))
	assert.Equal(t, model.ExecutionStatusPaused, re.Status)

	// PAUSED -> RUNNING (resumed via token)
	re = newTestExecution(model.ExecutionStatusPaused)
	assert.NoError(t, re.TransitionTo(model.ExecutionStatusRunning))
	assert.Equal(t, model.ExecutionStatusRunning, re.Status)

	// PAUSED -> FAILED (token expired)
	re = newTestExecution(model.ExecutionStatusPaused)
	assert.NoError(t, re.TransitionTo(model.ExecutionStatusFailed))
	assert.Equal(t, model.ExecutionStatusFailed, re.Status)

	// --- Invalid Transitions ---

	// CREATED -> PAUSED (Invalid: nothing to pause yet)
	re = newTestExecution(model.ExecutionStatusCreated)
	err := re.TransitionTo(model.ExecutionStatusPaused)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid state transition")

	// COMPLETED -> RUNNING (Invalid)
	re = newTestExecution(model.ExecutionStatusCompleted)
	err = re.TransitionTo(model.ExecutionStatusRunning)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid state transition")

	// FAILED -> FAILED (Self-transition is invalid for FAILED)
	re = newTestExecution(model.ExecutionStatusFailed)
	err = re.TransitionTo(model.ExecutionStatusFailed)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid state transition")

	// CANCELLED -> RUNNING (Invalid)
	re = newTestExecution(model.ExecutionStatusCancelled)
	err = re.TransitionTo(model.ExecutionStatusRunning)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid state transition")
}

func TestWaveExecution_TransitionTo(t *testing.T) {
	we := newTestWave("exec-1", model.WaveStatusPending)
	assert.NoError(t, we.TransitionTo(model.WaveStatusInProgress))
	assert.Equal(t, model.WaveStatusInProgress, we.Status)

	we = newTestWave("exec-1", model.WaveStatusInProgress)
	assert.NoError(t, we.TransitionTo(model.WaveStatusAwaitingApproval))
	assert.Equal(t, model.WaveStatusAwaitingApproval, we.Status)

	we = newTestWave("exec-1", model.WaveStatusAwaitingApproval)
	assert.NoError(t, we.TransitionTo(model.WaveStatusCompleted))
	assert.Equal(t, model.WaveStatusCompleted, we.Status)

	// PENDING -> AWAITING_APPROVAL (Invalid: wave must run first)
	we = newTestWave("exec-1", model.WaveStatusPending)
	err := we.TransitionTo(model.WaveStatusAwaitingApproval)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid state transition")

	// COMPLETED -> IN_PROGRESS (Invalid)
	we = newTestWave("exec-1", model.WaveStatusCompleted)
	err = we.TransitionTo(model.WaveStatusInProgress)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid state transition")
}

func TestRecoveryExecution_MarkStatusHelpers(t *testing.T) {
	re := newTestExecution(model.ExecutionStatusCreated)
	initialLastUpdated := re.LastUpdated

	// MarkAsStarted
	time.Sleep(1 * time.Millisecond) // Ensure time advances
	re.MarkAsStarted()
	assert.Equal(t, model.ExecutionStatusRunning, re.Status)
	assert.NotNil(t, re.StartTime)
	assert.True(t, re.LastUpdated.After(initialLastUpdated))

	// MarkAsPaused records the active token
	re.MarkAsPaused("token-abc")
	assert.Equal(t, model.ExecutionStatusPaused, re.Status)
	assert.Equal(t, "token-abc", re.ActiveTokenID)

	// MarkAsResumed clears the active token
	re.MarkAsResumed()
	assert.Equal(t, model.ExecutionStatusRunning, re.Status)
	assert.Empty(t, re.ActiveTokenID)

	// MarkAsCompleted
	re.MarkAsCompleted()
	assert.Equal(t, model.ExecutionStatusCompleted, re.Status)
	assert.NotNil(t, re.EndTime)

	// MarkAsFailed records the failure reason
	re = newTestExecution(model.ExecutionStatusRunning)
	re.MarkAsFailed(errors.New("remote job rejected"))
	assert.Equal(t, model.ExecutionStatusFailed, re.Status)
	assert.NotNil(t, re.EndTime)
	assert.Contains(t, re.Failures, "remote job rejected")

	// MarkAsCancelled records the reason
	re = newTestExecution(model.ExecutionStatusRunning)
	re.MarkAsCancelled("operator request")
	assert.Equal(t, model.ExecutionStatusCancelled, re.Status)
	assert.Contains(t, re.Failures, "cancelled: operator request")
}

func TestRecoveryExecution_AddFailureException_Dedup(t *testing.T) {
	re := newTestExecution(model.ExecutionStatusRunning)
	re.AddFailureException(errors.New("boom"))
	re.AddFailureException(errors.New("boom"))
	re.AddFailureException(errors.New("bang"))
	assert.Len(t, re.Failures, 2)
}

func TestWaveExecution_ApplySnapshot(t *testing.T) {
	we := newTestWave("exec-1", model.WaveStatusInProgress)

	snapshot := model.WaveStatusSnapshot{
		JobStatus: model.RemoteJobStatusInProgress,
		PerServer: model.ServerStatusList{
			{ServerID: "srv-1", LaunchState: model.LaunchStateLaunched},
			{ServerID: "srv-2", LaunchState: model.LaunchStateFailed},
			{ServerID: "srv-3", LaunchState: model.LaunchStatePending},
		},
		LaunchedCount: 1,
		FailedCount:   1,
		TotalCount:    3,
	}
	assert.NoError(t, we.ApplySnapshot(snapshot))
	assert.Equal(t, 1, we.LaunchedCount)
	assert.Equal(t, 1, we.FailedCount)
	assert.Len(t, we.ServerStatuses, 3)

	// launched+failed may never exceed the wave total
	bad := model.WaveStatusSnapshot{LaunchedCount: 3, FailedCount: 1, TotalCount: 3}
	assert.Error(t, we.ApplySnapshot(bad))
	assert.Equal(t, 1, we.LaunchedCount, "counts must be untouched after a rejected snapshot")
}

func TestCallbackToken_Expiry(t *testing.T) {
	token := model.NewCallbackToken("exec-1", 2, 30*time.Minute)
	assert.NotEmpty(t, token.Token)
	assert.Equal(t, "exec-1", token.ExecutionID)
	assert.Equal(t, 2, token.WaveNumber)
	assert.False(t, token.Consumed)

	assert.False(t, token.IsExpired(token.IssuedAt.Add(29*time.Minute)))
	assert.True(t, token.IsExpired(token.IssuedAt.Add(31*time.Minute)))
}

func TestRecoveryExecution_WaveNavigation(t *testing.T) {
	re := model.NewRecoveryExecution("plan-1", true)
	assert.Nil(t, re.CurrentWave())
	assert.False(t, re.HasMoreWaves())

	re.AddWaveExecution(model.NewWaveExecution(re.ID, 1, []string{"a"}))
	re.AddWaveExecution(model.NewWaveExecution(re.ID, 2, []string{"b"}))

	assert.Equal(t, 1, re.CurrentWave().WaveNumber)
	assert.True(t, re.HasMoreWaves())

	re.CurrentWaveIndex = 1
	assert.Equal(t, 2, re.CurrentWave().WaveNumber)
	assert.False(t, re.HasMoreWaves())
}

func TestServerIDList_SerializationRoundTrip(t *testing.T) {
	original := model.ServerIDList{"srv-1", "srv-2"}
	val, err := original.Value()
	assert.NoError(t, err)

	var scanned model.ServerIDList
	assert.NoError(t, scanned.Scan(val))
	assert.Equal(t, original, scanned)
	assert.True(t, scanned.Contains("srv-2"))
	assert.False(t, scanned.Contains("srv-9"))
}

func TestTransitionKind_String(t *testing.T) {
	assert.Equal(t, "ADVANCE_WAVE", model.TransitionAdvanceWave.String())
	assert.Equal(t, "ENTER_APPROVAL", model.TransitionEnterApproval.String())
	assert.Equal(t, "RESUME", model.TransitionResume.String())
	assert.Equal(t, "CANCEL", model.TransitionCancel.String())
	assert.Equal(t, "FAIL", model.TransitionFail.String())
	assert.Equal(t, "COMPLETE", model.TransitionComplete.String())
}
