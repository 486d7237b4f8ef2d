// Package inmemory provides an in-memory implementation of the RecoveryRepository interface.
// This module integrates the in-memory repository into the application's dependency graph using Fx.
package inmemory

import (
	"go.uber.org/fx"

	repository "github.com/tigerroll/tidal/pkg/recovery/core/domain/repository"
)

// Module is an Fx module that provides InMemoryRecoveryRepository as a
// repository.RecoveryRepository interface.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemoryRecoveryRepository,
			fx.As(new(repository.RecoveryRepository)),
		),
	),
)
