package migration

import (
	"context"
	"embed"

	"go.uber.org/fx"

	"github.com/tigerroll/tidal/pkg/recovery/core/adaptor"
	config "github.com/tigerroll/tidal/pkg/recovery/core/config"
	"github.com/tigerroll/tidal/pkg/recovery/infrastructure/migration/drivers"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	migrationsPath = "migrations"
	// migrationsTable is the bookkeeping table golang-migrate maintains.
	migrationsTable = "recovery_schema_migrations"
)

// ApplySchema runs all pending schema migrations against the given connection.
func ApplySchema(ctx context.Context, conn adaptor.DBConnection) error {
	m := NewMigrator(conn)
	defer m.Close()
	return m.Up(ctx, migrationFS, migrationsPath, migrationsTable)
}

// StartupMigrationParams defines the dependencies for runStartupMigration.
type StartupMigrationParams struct {
	fx.In
	Provider adaptor.DBProvider
	Cfg      *config.Config
}

// runStartupMigration brings the metadata schema up to date before any repository
// operation runs.
func runStartupMigration(p StartupMigrationParams) error {
	dbName := p.Cfg.Tidal.Infrastructure.ExecutionRepositoryDBRef
	if dbName == "" {
		dbName = "metadata"
	}
	conn, err := p.Provider.GetConnection(dbName)
	if err != nil {
		return err
	}
	return ApplySchema(context.Background(), conn)
}

// Module applies the metadata schema on application startup.
var Module = fx.Options(
	drivers.Module, // Include the module that registers golang-migrate drivers
	fx.Invoke(runStartupMigration),
)
