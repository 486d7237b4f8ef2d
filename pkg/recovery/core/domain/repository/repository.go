package repository

import (
	"context"
)

// RecoveryRepository is the interface for persisting and managing recovery execution
// metadata. It embeds the execution and token repositories to separate concerns; the
// durable execution record has exactly one writer path (the state persister), which
// calls these operations through Transactional.
type RecoveryRepository interface {
	ExecutionRepository // Embeds the ExecutionRepository interface (definition in execution.go)
	TokenRepository     // Embeds the TokenRepository interface (definition in token.go)

	// Transactional runs fn atomically: either every write performed through the
	// repository passed to fn commits, or none of them do. Token consumption and the
	// execution-state write it authorizes must go through one Transactional call.
	Transactional(ctx context.Context, fn func(ctx context.Context, repo RecoveryRepository) error) error

	// Close releases resources (such as database connections) used by the repository.
	Close() error
}
