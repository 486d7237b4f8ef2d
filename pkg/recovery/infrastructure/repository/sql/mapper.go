package sql

import (
	"github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
)

// --- Mapper functions ---

func fromDomainRecoveryExecution(re *model.RecoveryExecution) *RecoveryExecutionEntity {
	if re == nil {
		return nil
	}
	return &RecoveryExecutionEntity{
		ID:                    re.ID,
		PlanID:                re.PlanID,
		IsDrill:               re.IsDrill,
		Status:                re.Status,
		CurrentWaveIndex:      re.CurrentWaveIndex,
		Version:               re.Version,
		CancellationRequested: re.CancellationRequested,
		ActiveTokenID:         re.ActiveTokenID,
		Failures:              re.Failures,
		CreateTime:            re.CreateTime,
		StartTime:             re.StartTime,
		EndTime:               re.EndTime,
		LastUpdated:           re.LastUpdated,
	}
}

func toDomainRecoveryExecution(entity *RecoveryExecutionEntity) *model.RecoveryExecution {
	if entity == nil {
		return nil
	}
	re := &model.RecoveryExecution{
		ID:                    entity.ID,
		PlanID:                entity.PlanID,
		IsDrill:               entity.IsDrill,
		Status:                entity.Status,
		CurrentWaveIndex:      entity.CurrentWaveIndex,
		Version:               entity.Version,
		CancellationRequested: entity.CancellationRequested,
		ActiveTokenID:         entity.ActiveTokenID,
		Failures:              entity.Failures,
		CreateTime:            entity.CreateTime,
		StartTime:             entity.StartTime,
		EndTime:               entity.EndTime,
		LastUpdated:           entity.LastUpdated,
	}
	// Waves are manually loaded in the repository layer, so an empty slice is initialized here.
	re.Waves = make([]*model.WaveExecution, 0)

	return re
}

func fromDomainWaveExecution(we *model.WaveExecution) *WaveExecutionEntity {
	if we == nil {
		return nil
	}
	return &WaveExecutionEntity{
		ID:               we.ID,
		ExecutionID:      we.ExecutionID,
		WaveNumber:       we.WaveNumber,
		ServerIDs:        we.ServerIDs,
		JobID:            we.JobID,
		Status:           we.Status,
		LaunchedCount:    we.LaunchedCount,
		FailedCount:      we.FailedCount,
		TotalCount:       we.TotalCount,
		ServerStatuses:   we.ServerStatuses,
		RequiresApproval: we.RequiresApproval,
		TimeoutSeconds:   we.TimeoutSeconds,
		FailureReason:    we.FailureReason,
		StartedAt:        we.StartedAt,
		EndedAt:          we.EndedAt,
		LastUpdated:      we.LastUpdated,
	}
}

func toDomainWaveExecution(entity *WaveExecutionEntity) *model.WaveExecution {
	if entity == nil {
		return nil
	}
	return &model.WaveExecution{
		ID:               entity.ID,
		ExecutionID:      entity.ExecutionID,
		WaveNumber:       entity.WaveNumber,
		ServerIDs:        entity.ServerIDs,
		JobID:            entity.JobID,
		Status:           entity.Status,
		LaunchedCount:    entity.LaunchedCount,
		FailedCount:      entity.FailedCount,
		TotalCount:       entity.TotalCount,
		ServerStatuses:   entity.ServerStatuses,
		RequiresApproval: entity.RequiresApproval,
		TimeoutSeconds:   entity.TimeoutSeconds,
		FailureReason:    entity.FailureReason,
		StartedAt:        entity.StartedAt,
		EndedAt:          entity.EndedAt,
		LastUpdated:      entity.LastUpdated,
	}
}

func fromDomainCallbackToken(t *model.CallbackToken) *CallbackTokenEntity {
	if t == nil {
		return nil
	}
	return &CallbackTokenEntity{
		Token:       t.Token,
		ExecutionID: t.ExecutionID,
		WaveNumber:  t.WaveNumber,
		IssuedAt:    t.IssuedAt,
		ExpiresAt:   t.ExpiresAt,
		Consumed:    t.Consumed,
		ConsumedAt:  t.ConsumedAt,
	}
}

func toDomainCallbackToken(entity *CallbackTokenEntity) *model.CallbackToken {
	if entity == nil {
		return nil
	}
	return &model.CallbackToken{
		Token:       entity.Token,
		ExecutionID: entity.ExecutionID,
		WaveNumber:  entity.WaveNumber,
		IssuedAt:    entity.IssuedAt,
		ExpiresAt:   entity.ExpiresAt,
		Consumed:    entity.Consumed,
		ConsumedAt:  entity.ConsumedAt,
	}
}
