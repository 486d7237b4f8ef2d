package sql

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/tidal/pkg/recovery/core/adaptor"
	"github.com/tigerroll/tidal/pkg/recovery/core/config"
	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	repository "github.com/tigerroll/tidal/pkg/recovery/core/domain/repository"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"
	"go.uber.org/fx"
)

// waveUpsertColumns are the wave columns refreshed on every execution update.
var waveUpsertColumns = []string{
	"job_id", "status", "launched_count", "failed_count", "total_count",
	"server_statuses", "failure_reason", "started_at", "ended_at", "last_updated",
}

// nonTerminalStatuses is the set of execution statuses the tick loop still acts on.
var nonTerminalStatuses = []string{
	string(model.ExecutionStatusCreated),
	string(model.ExecutionStatusRunning),
	string(model.ExecutionStatusPaused),
}

// SQLRecoveryRepository implements the repository.RecoveryRepository interface.
type SQLRecoveryRepository struct {
	// conn is the database connection used by this repository (e.g., "metadata").
	// Inside Transactional it is replaced by a transaction-scoped connection.
	conn adaptor.DBConnection
}

// NewSQLRecoveryRepository creates a new instance of SQLRecoveryRepository on top of
// the given DBConnection.
func NewSQLRecoveryRepository(conn adaptor.DBConnection) repository.RecoveryRepository {
	return &SQLRecoveryRepository{conn: conn}
}

// --- RecoveryExecution implementation ---

func (r *SQLRecoveryRepository) SaveExecution(ctx context.Context, execution *model.RecoveryExecution) error {
	const op = "SQLRecoveryRepository.SaveExecution"
	entity := fromDomainRecoveryExecution(execution)

	_, err := r.conn.ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil)
	if err != nil {
		if r.conn.IsTableNotExistError(err) { // If the table does not exist, it means migrations haven't been run yet.
			// In this case, we ignore the error and return nil, as the table will be created later.
			return nil
		}
		return exception.NewRecoveryError(op, fmt.Sprintf("failed to save RecoveryExecution (ID: %s)", execution.ID), err, true)
	}

	for _, wave := range execution.Waves {
		waveEntity := fromDomainWaveExecution(wave)
		_, err = r.conn.ExecuteUpdate(ctx, waveEntity, "CREATE", waveEntity.TableName(), nil)
		if err != nil {
			if r.conn.IsTableNotExistError(err) {
				return nil
			}
			return exception.NewRecoveryError(op, fmt.Sprintf("failed to save WaveExecution (ID: %s, wave: %d)", wave.ID, wave.WaveNumber), err, true)
		}
	}
	return nil
}

// UpdateExecution writes the execution and its waves conditionally on the stored
// version still being expectedVersion. Callers that need the wave writes to be atomic
// with the version bump run this inside Transactional.
func (r *SQLRecoveryRepository) UpdateExecution(ctx context.Context, execution *model.RecoveryExecution, expectedVersion int) error {
	const op = "SQLRecoveryRepository.UpdateExecution"

	originalVersion := execution.Version
	execution.Version = expectedVersion + 1
	execution.LastUpdated = time.Now()
	entity := fromDomainRecoveryExecution(execution)

	// Write the mutable columns as an explicit map: a struct-based update would skip
	// zero values, leaving cleared fields (a consumed ActiveTokenID, a reset
	// cancellation flag) stale in the row.
	rowsAffected, err := r.conn.ExecuteUpdateColumns(
		ctx,
		entity,
		entity.TableName(),
		map[string]interface{}{"id": entity.ID, "version": expectedVersion},
		map[string]interface{}{
			"status":                 entity.Status,
			"current_wave_index":     entity.CurrentWaveIndex,
			"version":                entity.Version,
			"cancellation_requested": entity.CancellationRequested,
			"active_token_id":        entity.ActiveTokenID,
			"failures":               entity.Failures,
			"start_time":             entity.StartTime,
			"end_time":               entity.EndTime,
			"last_updated":           entity.LastUpdated,
		},
	)
	if err != nil {
		if r.conn.IsTableNotExistError(err) { // If table does not exist, ignore.
			execution.Version = originalVersion
			return nil
		}
		execution.Version = originalVersion
		return exception.NewRecoveryError(op, fmt.Sprintf("failed to update RecoveryExecution (ID: %s)", execution.ID), err, true)
	}
	if rowsAffected == 0 {
		execution.Version = originalVersion
		// Distinguish a missing row from a stale version so callers can react differently.
		var existing RecoveryExecutionEntity
		readErr := r.conn.ExecuteQueryAdvanced(ctx, &existing, map[string]interface{}{"id": execution.ID}, "", 1)
		if readErr == nil && existing.ID == "" {
			return repository.ErrExecutionNotFound
		}
		return exception.NewVersionConflictError("repository", fmt.Sprintf("RecoveryExecution (ID: %s) with version %d not found for update", execution.ID, expectedVersion), nil)
	}

	for _, wave := range execution.Waves {
		wave.LastUpdated = execution.LastUpdated
		waveEntity := fromDomainWaveExecution(wave)
		_, err = r.conn.ExecuteUpsert(ctx, waveEntity, waveEntity.TableName(), []string{"id"}, waveUpsertColumns)
		if err != nil {
			if r.conn.IsTableNotExistError(err) {
				return nil
			}
			return exception.NewRecoveryError(op, fmt.Sprintf("failed to upsert WaveExecution (ID: %s, wave: %d)", wave.ID, wave.WaveNumber), err, true)
		}
	}
	return nil
}

func (r *SQLRecoveryRepository) FindExecutionByID(ctx context.Context, executionID string) (*model.RecoveryExecution, error) {
	const op = "SQLRecoveryRepository.FindExecutionByID"
	var entity RecoveryExecutionEntity

	err := r.conn.ExecuteQueryAdvanced(ctx, &entity, map[string]interface{}{"id": executionID}, "", 1)
	if err != nil {
		if r.conn.IsTableNotExistError(err) { // If the table does not exist, treat it as not found.
			return nil, repository.ErrExecutionNotFound
		}
		return nil, exception.NewRecoveryError(op, fmt.Sprintf("failed to find RecoveryExecution by ID: %s", executionID), err, true)
	}

	if entity.ID == "" {
		return nil, repository.ErrExecutionNotFound
	}

	domainExecution := toDomainRecoveryExecution(&entity)

	// The orchestrator drives every decision off the waves, so a partially hydrated
	// execution is worse than an error here.
	waves, err := r.findWavesByExecutionID(ctx, executionID)
	if err != nil {
		return nil, err
	}
	domainExecution.Waves = waves

	return domainExecution, nil
}

// findWavesByExecutionID retrieves all WaveExecutions associated with an execution,
// ordered by wave number.
func (r *SQLRecoveryRepository) findWavesByExecutionID(ctx context.Context, executionID string) ([]*model.WaveExecution, error) {
	const op = "SQLRecoveryRepository.findWavesByExecutionID"
	var entities []WaveExecutionEntity

	err := r.conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"execution_id": executionID}, "wave_number asc", 0)
	if err != nil {
		if r.conn.IsTableNotExistError(err) { // If the table does not exist, return an empty slice.
			return []*model.WaveExecution{}, nil
		}
		return nil, exception.NewRecoveryError(op, fmt.Sprintf("failed to find WaveExecutions by execution ID: %s", executionID), err, true)
	}

	domainWaves := make([]*model.WaveExecution, len(entities))
	for i, entity := range entities {
		domainWaves[i] = toDomainWaveExecution(&entity)
	}
	return domainWaves, nil
}

func (r *SQLRecoveryRepository) ListActiveExecutions(ctx context.Context) ([]*model.RecoveryExecution, error) {
	const op = "SQLRecoveryRepository.ListActiveExecutions"
	var entities []RecoveryExecutionEntity

	err := r.conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"status": nonTerminalStatuses}, "create_time asc", 0)
	if err != nil {
		if r.conn.IsTableNotExistError(err) { // If the table does not exist, return an empty slice.
			return []*model.RecoveryExecution{}, nil
		}
		return nil, exception.NewRecoveryError(op, "failed to list active RecoveryExecutions", err, true)
	}

	if len(entities) == 0 {
		return []*model.RecoveryExecution{}, nil
	}

	executions := make([]*model.RecoveryExecution, len(entities))
	byID := make(map[string]*model.RecoveryExecution, len(entities))
	ids := make([]string, len(entities))
	for i, entity := range entities {
		executions[i] = toDomainRecoveryExecution(&entity)
		byID[entity.ID] = executions[i]
		ids[i] = entity.ID
	}

	// One query for all waves instead of one per execution.
	var waveEntities []WaveExecutionEntity
	err = r.conn.ExecuteQueryAdvanced(ctx, &waveEntities, map[string]interface{}{"execution_id": ids}, "execution_id asc, wave_number asc", 0)
	if err != nil {
		if r.conn.IsTableNotExistError(err) {
			return executions, nil
		}
		return nil, exception.NewRecoveryError(op, "failed to load WaveExecutions for active executions", err, true)
	}
	for i := range waveEntities {
		wave := toDomainWaveExecution(&waveEntities[i])
		if execution, ok := byID[wave.ExecutionID]; ok {
			execution.Waves = append(execution.Waves, wave)
		}
	}

	return executions, nil
}

// --- CallbackToken implementation ---

func (r *SQLRecoveryRepository) SaveToken(ctx context.Context, token *model.CallbackToken) error {
	const op = "SQLRecoveryRepository.SaveToken"
	entity := fromDomainCallbackToken(token)

	_, err := r.conn.ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil)
	if err != nil {
		if r.conn.IsTableNotExistError(err) { // If the table does not exist, ignore the error.
			return nil
		}
		return exception.NewRecoveryError(op, fmt.Sprintf("failed to save CallbackToken for execution %s", token.ExecutionID), err, true)
	}
	return nil
}

func (r *SQLRecoveryRepository) FindTokenByValue(ctx context.Context, token string) (*model.CallbackToken, error) {
	const op = "SQLRecoveryRepository.FindTokenByValue"
	var entity CallbackTokenEntity

	err := r.conn.ExecuteQueryAdvanced(ctx, &entity, map[string]interface{}{"token": token}, "", 1)
	if err != nil {
		if r.conn.IsTableNotExistError(err) { // If the table does not exist, treat it as not found.
			return nil, repository.ErrTokenNotFound
		}
		return nil, exception.NewRecoveryError(op, "failed to find CallbackToken", err, true)
	}

	if entity.Token == "" {
		return nil, repository.ErrTokenNotFound
	}

	return toDomainCallbackToken(&entity), nil
}

// MarkTokenConsumed flips consumed from false to true exactly once. The conditional
// predicate makes concurrent consumers race safely: the loser observes zero affected
// rows and gets an error wrapping ErrTokenConsumed.
func (r *SQLRecoveryRepository) MarkTokenConsumed(ctx context.Context, token string, consumedAt time.Time) error {
	const op = "SQLRecoveryRepository.MarkTokenConsumed"

	entity := &CallbackTokenEntity{
		Token:      token,
		Consumed:   true,
		ConsumedAt: &consumedAt,
	}

	rowsAffected, err := r.conn.ExecuteUpdate(
		ctx,
		entity,
		"UPDATE",
		entity.TableName(),
		map[string]interface{}{"consumed": false},
	)
	if err != nil {
		if r.conn.IsTableNotExistError(err) {
			return repository.ErrTokenNotFound
		}
		return exception.NewRecoveryError(op, "failed to mark CallbackToken consumed", err, true)
	}
	if rowsAffected == 0 {
		// Distinguish an unknown token from one that lost the consumption race.
		var existing CallbackTokenEntity
		readErr := r.conn.ExecuteQueryAdvanced(ctx, &existing, map[string]interface{}{"token": token}, "", 1)
		if readErr == nil && existing.Token == "" {
			return repository.ErrTokenNotFound
		}
		return exception.NewRecoveryError(op, "CallbackToken already consumed", exception.ErrTokenConsumed, false)
	}
	return nil
}

func (r *SQLRecoveryRepository) ListExpiredUnconsumedTokens(ctx context.Context, now time.Time) ([]*model.CallbackToken, error) {
	const op = "SQLRecoveryRepository.ListExpiredUnconsumedTokens"
	var entities []CallbackTokenEntity

	err := r.conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"consumed": false}, "expires_at asc", 0)
	if err != nil {
		if r.conn.IsTableNotExistError(err) {
			return []*model.CallbackToken{}, nil
		}
		return nil, exception.NewRecoveryError(op, "failed to list unconsumed CallbackTokens", err, true)
	}

	// The expiry predicate is evaluated here; unconsumed tokens stay a small set, so
	// pulling them all and filtering keeps the adaptor query surface map-based.
	var expired []*model.CallbackToken
	for i := range entities {
		t := toDomainCallbackToken(&entities[i])
		if t.IsExpired(now) {
			expired = append(expired, t)
		}
	}
	return expired, nil
}

// --- Transaction support ---

// Transactional implements repository.RecoveryRepository. Every repository operation
// performed through the repository handed to fn runs on the same database transaction.
func (r *SQLRecoveryRepository) Transactional(ctx context.Context, fn func(ctx context.Context, repo repository.RecoveryRepository) error) error {
	return r.conn.Transaction(ctx, func(txConn adaptor.DBConnection) error {
		return fn(ctx, &SQLRecoveryRepository{conn: txConn})
	})
}

// Close implements repository.RecoveryRepository.
func (r *SQLRecoveryRepository) Close() error {
	// The underlying DBConnection is managed by the DBProvider and its lifecycle,
	// so it is not closed directly by the repository.
	return nil
}

// Verify that SQLRecoveryRepository implements all embedded interfaces of repository.RecoveryRepository.
var _ repository.RecoveryRepository = (*SQLRecoveryRepository)(nil)

// RecoveryRepositoryParams defines the dependencies required to create a NewRecoveryRepository.
type RecoveryRepositoryParams struct {
	fx.In
	// Provider resolves named database connections.
	Provider adaptor.DBProvider
	// Cfg is the application configuration.
	Cfg *config.Config
}

// NewRecoveryRepository creates and returns a RecoveryRepository instance.
// This function is intended to be used as an Fx provider.
func NewRecoveryRepository(p RecoveryRepositoryParams) (repository.RecoveryRepository, error) {
	// Determine the database connection name for the repository.
	// It defaults to "metadata" if not explicitly configured.
	dbName := p.Cfg.Tidal.Infrastructure.ExecutionRepositoryDBRef
	if dbName == "" {
		dbName = "metadata"
	}

	conn, err := p.Provider.GetConnection(dbName)
	if err != nil {
		return nil, exception.NewRecoveryError("NewRecoveryRepository", fmt.Sprintf("failed to resolve DB connection '%s'", dbName), err, false)
	}
	return NewSQLRecoveryRepository(conn), nil
}
