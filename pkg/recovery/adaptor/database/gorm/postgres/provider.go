// Package postgres provides a GORM DBProvider implementation for PostgreSQL databases.
package postgres

import (
	dbconfig "github.com/tigerroll/tidal/pkg/recovery/adaptor/database/config"
	gormadaptor "github.com/tigerroll/tidal/pkg/recovery/adaptor/database/gorm"
	"github.com/tigerroll/tidal/pkg/recovery/core/adaptor"
	config "github.com/tigerroll/tidal/pkg/recovery/core/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// init registers the PostgreSQL dialector factory with the gorm adaptor.
func init() {
	gormadaptor.RegisterDialector("postgres", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		p := &gormadaptor.PostgresDBProvider{} // Creates a temporary instance to call the ConnectionString method.
		connStr := p.ConnectionString(cfg)
		return postgres.Open(connStr), nil
	})
}

// NewProvider creates a new PostgreSQL DBProvider.
// This function is intended to be used with fx.Provide.
func NewProvider(cfg *config.Config) adaptor.DBProvider {
	return gormadaptor.NewPostgresProvider(cfg)
}
