package sql

import (
	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	"time"
)

// RecoveryExecutionEntity is a schema model used for persistence.
type RecoveryExecutionEntity struct {
	ID                    string
	PlanID                string
	IsDrill               bool
	Status                model.ExecutionStatus
	CurrentWaveIndex      int
	Version               int
	CancellationRequested bool
	ActiveTokenID         string
	Failures              model.FailureList
	CreateTime            time.Time
	StartTime             *time.Time
	EndTime               *time.Time
	LastUpdated           time.Time
	// Waves []*WaveExecutionEntity // Removed to avoid GORM schema parsing errors.
}

func (RecoveryExecutionEntity) TableName() string {
	return "recovery_execution"
}

// WaveExecutionEntity is a schema model used for persistence.
type WaveExecutionEntity struct {
	ID               string
	ExecutionID      string
	WaveNumber       int
	ServerIDs        model.ServerIDList
	JobID            string
	Status           model.WaveStatus
	LaunchedCount    int
	FailedCount      int
	TotalCount       int
	ServerStatuses   model.ServerStatusList
	RequiresApproval bool
	TimeoutSeconds   int
	FailureReason    string
	StartedAt        *time.Time
	EndedAt          *time.Time
	LastUpdated      time.Time
	// Execution *RecoveryExecutionEntity // Removed to avoid GORM schema parsing errors.
}

func (WaveExecutionEntity) TableName() string {
	return "recovery_wave"
}

// CallbackTokenEntity is a schema model used for persistence.
type CallbackTokenEntity struct {
	Token       string `gorm:"primaryKey"`
	ExecutionID string
	WaveNumber  int
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Consumed    bool
	ConsumedAt  *time.Time
}

func (CallbackTokenEntity) TableName() string {
	return "callback_token"
}
