package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "embed"

	config "github.com/tigerroll/tidal/pkg/recovery/core/config"
	plan "github.com/tigerroll/tidal/pkg/recovery/core/config/plan"
	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	orchestrator "github.com/tigerroll/tidal/pkg/recovery/engine/orchestrator"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/logger"

	"go.uber.org/fx"
)

// embeddedConfig holds the application YAML configuration.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// embeddedPlan holds the recovery-plan definition executed by this binary.
//
//go:embed resources/plan.yaml
var embeddedPlan []byte

// startRecoveryExecution is the Fx hook that starts the plan execution and drives
// the tick and token-sweep schedulers until the execution reaches a terminal state.
func startRecoveryExecution(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	orch orchestrator.WaveOrchestrator,
	p *plan.Plan,
	cfg *config.Config,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: onStartRecoveryExecution(orch, p, cfg, shutdowner, appCtx),
		OnStop:  onStopApplication(),
	})
}

// onStartRecoveryExecution launches the execution in a goroutine and returns once the
// hook itself has registered; Fx shutdown is requested when the execution finishes.
func onStartRecoveryExecution(
	orch orchestrator.WaveOrchestrator,
	p *plan.Plan,
	cfg *config.Config,
	shutdowner fx.Shutdowner,
	appCtx context.Context,
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Panic recovered in recovery execution: %v", r)
				}
				logger.Infof("Requesting application shutdown after execution completion.")

				if err := shutdowner.Shutdown(); err != nil {
					logger.Errorf("Failed to shutdown application: %v", err)
				}
			}()

			isDrill := strings.EqualFold(os.Getenv("TIDAL_DRILL"), "true")
			logger.Infof("Starting recovery execution for plan '%s' (drill: %t)...", p.ID, isDrill)

			execution, err := orch.StartExecution(appCtx, p, isDrill)
			if err != nil {
				logger.Errorf("Failed to start execution for plan '%s': %v", p.ID, err)
				return
			}
			logger.Infof("Plan '%s' started. Execution ID: %s", p.ID, execution.ID)

			runSchedulers(appCtx, orch, cfg, execution.ID)
		}()
		return nil
	}
}

// runSchedulers ticks the execution and sweeps expired tokens on their configured
// cadences until the execution finishes or the application context is cancelled.
func runSchedulers(
	appCtx context.Context,
	orch orchestrator.WaveOrchestrator,
	cfg *config.Config,
	executionID string,
) {
	tickInterval := time.Duration(cfg.Tidal.Orchestrator.TickIntervalSeconds) * time.Second
	if tickInterval == 0 {
		tickInterval = 10 * time.Second
	}
	sweepInterval := time.Duration(cfg.Tidal.Token.SweepIntervalSeconds) * time.Second
	if sweepInterval == 0 {
		sweepInterval = time.Minute
	}
	logger.Infof("Scheduling ticks every %v and token sweeps every %v for execution %s.", tickInterval, sweepInterval, executionID)

	tick := time.NewTicker(tickInterval)
	defer tick.Stop()
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-appCtx.Done():
			logger.Warnf("Application context cancelled. Requesting cancellation of execution %s.", executionID)
			if err := orch.RequestCancellation(context.Background(), executionID); err != nil {
				logger.Errorf("Failed to request cancellation of execution %s: %v", executionID, err)
			}
			return
		case <-sweep.C:
			if err := orch.ExpireSweep(appCtx); err != nil {
				logger.Errorf("Token expiry sweep failed: %v", err)
			}
		case <-tick.C:
			if err := orch.Tick(appCtx, executionID); err != nil {
				logger.Errorf("Tick failed for execution %s: %v", executionID, err)
				continue
			}

			latest, err := orch.GetExecution(appCtx, executionID)
			if err != nil {
				logger.Errorf("Failed to fetch latest status for execution %s: %v", executionID, err)
				continue
			}
			if latest.Status.IsFinished() {
				logger.Infof("Execution %s finished with status %s.", executionID, latest.Status)
				if latest.Status == model.ExecutionStatusFailed && len(latest.Failures) > 0 {
					logger.Errorf("Execution %s failure: %s", executionID, latest.Failures[0])
				}
				return
			}
			logger.Debugf("Execution %s is still running (status: %s, wave index: %d).", executionID, latest.Status, latest.CurrentWaveIndex)
		}
	}
}

// onStopApplication logs the application shutdown.
func onStopApplication() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logger.Infof("Application is shutting down.")
		return nil
	}
}

// main is the application entry point.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the execution...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	fxApp := fx.New(GetApplicationOptions(ctx, envFilePath, embeddedConfig, embeddedPlan)...)
	fxApp.Run()
	if fxApp.Err() != nil {
		logger.Fatalf("Application run failed: %v", fxApp.Err())
	}
	os.Exit(0)
}
