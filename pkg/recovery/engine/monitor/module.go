package monitor

import (
	"go.uber.org/fx"
)

// Module provides the JobMonitor implementation backed by the RemoteJobClient.
var Module = fx.Options(
	fx.Provide(NewJobMonitor),
)
