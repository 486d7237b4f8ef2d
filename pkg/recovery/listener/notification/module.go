package notification

import (
	"go.uber.org/fx"

	"github.com/tigerroll/tidal/pkg/recovery/core/ports"
)

// Module provides notification-related components.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLoggingNotifier,
		fx.As(new(ports.Notifier)),
	)),
)
