// Package database wires the configured DBProvider into the application. The provider
// for the execution repository's connection is chosen by the "type" of the referenced
// database configuration.
package database

import (
	"context"
	"fmt"

	dbconfig "github.com/tigerroll/tidal/pkg/recovery/adaptor/database/config"
	"github.com/tigerroll/tidal/pkg/recovery/adaptor/database/gorm/mysql"
	"github.com/tigerroll/tidal/pkg/recovery/adaptor/database/gorm/postgres"
	"github.com/tigerroll/tidal/pkg/recovery/adaptor/database/gorm/sqlite"
	"github.com/tigerroll/tidal/pkg/recovery/core/adaptor"
	config "github.com/tigerroll/tidal/pkg/recovery/core/config"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/logger"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/fx"
)

// NewDBProviderFromConfig selects the DBProvider matching the type of the database
// configuration the execution repository references.
func NewDBProviderFromConfig(cfg *config.Config) (adaptor.DBProvider, error) {
	dbRef := cfg.Tidal.Infrastructure.ExecutionRepositoryDBRef
	if dbRef == "" {
		dbRef = "metadata"
	}

	rawConfig, ok := cfg.Tidal.AdaptorConfigs[dbRef]
	if !ok {
		return nil, fmt.Errorf("database configuration '%s' not found in adaptor configs", dbRef)
	}
	var dbConfig dbconfig.DatabaseConfig
	if err := mapstructure.Decode(rawConfig, &dbConfig); err != nil {
		return nil, fmt.Errorf("failed to decode database config for '%s': %w", dbRef, err)
	}

	switch dbConfig.Type {
	case "postgres":
		return postgres.NewProvider(cfg), nil
	case "mysql":
		return mysql.NewProvider(cfg), nil
	case "sqlite":
		return sqlite.NewProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported database type '%s' for connection '%s'", dbConfig.Type, dbRef)
	}
}

// Module provides the configured DBProvider and closes its connections on shutdown.
var Module = fx.Options(
	fx.Provide(NewDBProviderFromConfig),
	fx.Invoke(func(lc fx.Lifecycle, provider adaptor.DBProvider) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				logger.Debugf("Closing all %s database connections.", provider.Type())
				return provider.CloseAll()
			},
		})
	}),
)
