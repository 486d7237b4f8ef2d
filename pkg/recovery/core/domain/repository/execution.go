package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"
)

// ErrExecutionNotFound is the error returned when a RecoveryExecution is not found.
var ErrExecutionNotFound = errors.New("recovery execution not found")

func init() {
	// Register the error type in the registry upon startup
	exception.RegisterErrorType("ErrExecutionNotFound", ErrExecutionNotFound)
}

type ExecutionRepository interface {
	// SaveExecution persists a new RecoveryExecution together with its waves.
	SaveExecution(ctx context.Context, execution *model.RecoveryExecution) error

	// UpdateExecution conditionally updates an existing RecoveryExecution and its waves.
	// The write only commits when the stored version still equals expectedVersion; on
	// success the stored version becomes expectedVersion+1 and execution.Version is
	// advanced to match. A stale expectedVersion returns an error wrapping
	// exception.ErrVersionConflict and performs no mutation.
	UpdateExecution(ctx context.Context, execution *model.RecoveryExecution, expectedVersion int) error

	// FindExecutionByID finds a RecoveryExecution by its ID.
	// It is expected to load the associated WaveExecutions as well.
	FindExecutionByID(ctx context.Context, executionID string) (*model.RecoveryExecution, error)

	// ListActiveExecutions finds all executions that have not reached a terminal status.
	ListActiveExecutions(ctx context.Context) ([]*model.RecoveryExecution, error)
}
