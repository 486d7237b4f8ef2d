package inmemory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	"github.com/tigerroll/tidal/pkg/recovery/core/domain/repository"
	"github.com/tigerroll/tidal/pkg/recovery/infrastructure/repository/inmemory"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepository_VersionedUpdate(t *testing.T) {
	repo := inmemory.NewInMemoryRecoveryRepository()
	ctx := context.Background()

	execution := model.NewRecoveryExecution("plan-1", false)
	execution.AddWaveExecution(model.NewWaveExecution(execution.ID, 1, []string{"srv-a"}))
	require.NoError(t, repo.SaveExecution(ctx, execution))

	stale, err := repo.FindExecutionByID(ctx, execution.ID)
	require.NoError(t, err)

	execution.MarkAsStarted()
	assert.NoError(t, repo.UpdateExecution(ctx, execution, 0))
	assert.Equal(t, 1, execution.Version)

	stale.MarkAsStarted()
	err = repo.UpdateExecution(ctx, stale, 0)
	assert.Error(t, err)
	assert.True(t, exception.IsVersionConflict(err))

	ghost := model.NewRecoveryExecution("plan-ghost", false)
	assert.ErrorIs(t, repo.UpdateExecution(ctx, ghost, 0), repository.ErrExecutionNotFound)
}

func TestInMemoryRepository_FindReturnsIsolatedCopy(t *testing.T) {
	repo := inmemory.NewInMemoryRecoveryRepository()
	ctx := context.Background()

	execution := model.NewRecoveryExecution("plan-1", false)
	execution.AddWaveExecution(model.NewWaveExecution(execution.ID, 1, []string{"srv-a"}))
	require.NoError(t, repo.SaveExecution(ctx, execution))

	found, err := repo.FindExecutionByID(ctx, execution.ID)
	require.NoError(t, err)

	// Mutating the returned copy must not leak into the stored state.
	found.Status = model.ExecutionStatusFailed
	found.Waves[0].LaunchedCount = 99

	again, err := repo.FindExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusCreated, again.Status)
	assert.Equal(t, 0, again.Waves[0].LaunchedCount)
}

func TestInMemoryRepository_TokenConsumption(t *testing.T) {
	repo := inmemory.NewInMemoryRecoveryRepository()
	ctx := context.Background()

	token := model.NewCallbackToken("exec-1", 1, time.Hour)
	require.NoError(t, repo.SaveToken(ctx, token))

	assert.NoError(t, repo.MarkTokenConsumed(ctx, token.Token, time.Now()))

	err := repo.MarkTokenConsumed(ctx, token.Token, time.Now())
	assert.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrTokenConsumed))

	assert.ErrorIs(t, repo.MarkTokenConsumed(ctx, "unknown", time.Now()), repository.ErrTokenNotFound)
}

func TestInMemoryRepository_ExpiredTokenSweep(t *testing.T) {
	repo := inmemory.NewInMemoryRecoveryRepository()
	ctx := context.Background()

	expired := model.NewCallbackToken("exec-1", 1, -time.Minute)
	live := model.NewCallbackToken("exec-1", 2, time.Hour)
	require.NoError(t, repo.SaveToken(ctx, expired))
	require.NoError(t, repo.SaveToken(ctx, live))

	swept, err := repo.ListExpiredUnconsumedTokens(ctx, time.Now())
	assert.NoError(t, err)
	require.Len(t, swept, 1)
	assert.Equal(t, expired.Token, swept[0].Token)
}

func TestInMemoryRepository_TransactionalRollback(t *testing.T) {
	repo := inmemory.NewInMemoryRecoveryRepository()
	ctx := context.Background()

	execution := model.NewRecoveryExecution("plan-1", false)
	token := model.NewCallbackToken(execution.ID, 1, time.Hour)

	sentinel := errors.New("boom")
	err := repo.Transactional(ctx, func(ctx context.Context, txRepo repository.RecoveryRepository) error {
		if err := txRepo.SaveExecution(ctx, execution); err != nil {
			return err
		}
		if err := txRepo.SaveToken(ctx, token); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	_, err = repo.FindExecutionByID(ctx, execution.ID)
	assert.ErrorIs(t, err, repository.ErrExecutionNotFound)
	_, err = repo.FindTokenByValue(ctx, token.Token)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
}

func TestInMemoryRepository_TransactionalCommit(t *testing.T) {
	repo := inmemory.NewInMemoryRecoveryRepository()
	ctx := context.Background()

	execution := model.NewRecoveryExecution("plan-1", false)
	token := model.NewCallbackToken(execution.ID, 1, time.Hour)

	err := repo.Transactional(ctx, func(ctx context.Context, txRepo repository.RecoveryRepository) error {
		if err := txRepo.SaveExecution(ctx, execution); err != nil {
			return err
		}
		return txRepo.SaveToken(ctx, token)
	})
	assert.NoError(t, err)

	_, err = repo.FindExecutionByID(ctx, execution.ID)
	assert.NoError(t, err)
	_, err = repo.FindTokenByValue(ctx, token.Token)
	assert.NoError(t, err)
}
