package metrics

import (
	"context"

	"go.uber.org/fx"

	config "github.com/tigerroll/tidal/pkg/recovery/core/config"
	metrics "github.com/tigerroll/tidal/pkg/recovery/core/metrics"
)

// Module is an Fx module that provides PrometheusRecorder and OpenTelemetryTracer.
var Module = fx.Options(
	// Provide PrometheusRecorder as a metrics.MetricRecorder interface.
	fx.Provide(fx.Annotate(
		NewPrometheusRecorder,
		fx.As(new(metrics.MetricRecorder)),
	)),
	// Provide OpenTelemetryTracer as a metrics.Tracer interface.
	fx.Provide(fx.Annotate(
		NewOpenTelemetryTracer,
		fx.As(new(metrics.Tracer)),
	)),
	// Install the global tracer provider for the lifetime of the application.
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) {
		var shutdown func(context.Context) error
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				var err error
				shutdown, err = SetupTracerProvider(ctx, cfg)
				return err
			},
			OnStop: func(ctx context.Context) error {
				if shutdown == nil {
					return nil
				}
				return shutdown(ctx)
			},
		})
	}),
)
