package main

import (
	"context"

	database "github.com/tigerroll/tidal/pkg/recovery/adaptor/database"
	config "github.com/tigerroll/tidal/pkg/recovery/core/config"
	plan "github.com/tigerroll/tidal/pkg/recovery/core/config/plan"
	ports "github.com/tigerroll/tidal/pkg/recovery/core/ports"
	matcher "github.com/tigerroll/tidal/pkg/recovery/engine/matcher"
	monitor "github.com/tigerroll/tidal/pkg/recovery/engine/monitor"
	orchestrator "github.com/tigerroll/tidal/pkg/recovery/engine/orchestrator"
	persister "github.com/tigerroll/tidal/pkg/recovery/engine/persister"
	discovery "github.com/tigerroll/tidal/pkg/recovery/infrastructure/discovery"
	metricsInfra "github.com/tigerroll/tidal/pkg/recovery/infrastructure/metrics"
	migration "github.com/tigerroll/tidal/pkg/recovery/infrastructure/migration"
	remote "github.com/tigerroll/tidal/pkg/recovery/infrastructure/remote"
	sqlRepo "github.com/tigerroll/tidal/pkg/recovery/infrastructure/repository/sql"
	notification "github.com/tigerroll/tidal/pkg/recovery/listener/notification"
	logger "github.com/tigerroll/tidal/pkg/recovery/support/util/logger"

	"go.uber.org/fx"
)

// newPlanDefinition parses and validates the embedded plan document.
func newPlanDefinition(data plan.PlanDefinitionBytes) (*plan.Plan, error) {
	return plan.LoadPlanDefinitionFromBytes(data)
}

// newStaticInventory derives the discovery inventory from the plan. Every server
// named by a wave gets one replicating source and one stopped, tagged target, which
// is the shape the simulated remote environment expects.
func newStaticInventory(p *plan.Plan, cfg *config.Config) (sources, targets []ports.Resource) {
	var serverIDs []string
	for _, w := range p.Waves {
		serverIDs = append(serverIDs, w.Servers...)
	}
	return discovery.NewMirroredInventory(serverIDs, cfg.Tidal.Matcher.EligibleTargetTag)
}

// GetApplicationOptions builds the uber-fx options for the tidal binary.
func GetApplicationOptions(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, embeddedPlan plan.PlanDefinitionBytes) []fx.Option {
	var options []fx.Option

	options = append(options, fx.Supply(
		embeddedConfig,
		embeddedPlan,
		fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
	))
	options = append(options, logger.Module)
	options = append(options, config.Module)
	options = append(options, fx.Provide(newPlanDefinition))
	options = append(options, fx.Provide(
		fx.Annotate(
			newStaticInventory,
			fx.ResultTags(`name:"discovery_sources"`, `name:"discovery_targets"`),
		),
	))
	options = append(options, database.Module)
	options = append(options, migration.Module)
	options = append(options, sqlRepo.Module)
	options = append(options, metricsInfra.Module)
	options = append(options, remote.Module)
	options = append(options, discovery.Module)
	options = append(options, notification.Module)
	options = append(options, monitor.Module)
	options = append(options, matcher.Module)
	options = append(options, persister.Module)
	options = append(options, orchestrator.Module)
	options = append(options, fx.Invoke(fx.Annotate(startRecoveryExecution, fx.ParamTags("", "", "", "", "", `name:"appCtx"`))))

	return options
}
