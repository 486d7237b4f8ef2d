package sql

import (
	"go.uber.org/fx"
)

// Module provides the SQL-backed RecoveryRepository.
var Module = fx.Options(
	fx.Provide(NewRecoveryRepository),
)
