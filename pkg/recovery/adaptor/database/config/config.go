// Package config defines the database connection configuration consumed by the
// database adaptors.
package config

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`            // Maximum number of open connections.
	MaxIdleConns           int `yaml:"max_idle_conns"`            // Maximum number of idle connections.
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"` // Maximum lifetime of a connection in minutes.
}

// DatabaseConfig holds the settings for one named database connection.
type DatabaseConfig struct {
	Type     string     `yaml:"type"`             // Database type (e.g., "postgres", "mysql", "sqlite").
	Host     string     `yaml:"host"`             // Database host address.
	Port     int        `yaml:"port"`             // Database port number.
	Database string     `yaml:"database"`         // Database name (or file path for SQLite).
	User     string     `yaml:"user"`             // Database user.
	Password string     `yaml:"password"`         // Database password.
	Schema   string     `yaml:"schema,omitempty"` // Schema name for PostgreSQL.
	Sslmode  string     `yaml:"sslmode"`          // SSL mode for the connection.
	Pool     PoolConfig `yaml:"pool"`             // Connection pool settings.
}
