// Package adaptor provides abstractions for database connections and providers.
// This allows unified access to different database systems (e.g., PostgreSQL, MySQL,
// SQLite) through a consistent interface.
package adaptor

import (
	"context"
	"database/sql"

	dbconfig "github.com/tigerroll/tidal/pkg/recovery/adaptor/database/config"
)

// DBExecutor is an interface that defines common write operations for a database.
// It is intended to be embedded in DBConnection; the same operations run inside a
// transaction when issued through the connection passed to Transaction.
type DBExecutor interface {
	// ExecuteUpdate performs write operations (INSERT, UPDATE, DELETE).
	// model: The target model struct or slice.
	// operation: The type of operation to execute (e.g., "CREATE", "UPDATE", "DELETE").
	// tableName: The name of the table to operate on.
	// query: Query conditions (for UPDATE/DELETE, a map of key-value pairs, combined with AND).
	// Returns: The number of affected rows and an error.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpdateColumns performs an UPDATE writing the given column values verbatim.
	// Unlike a struct-based UPDATE, zero values (empty strings, false, 0) are persisted,
	// so callers clearing a column must use this form.
	// model: The target model struct, used to resolve the schema.
	// tableName: The name of the table to operate on.
	// query: Query conditions (a map of key-value pairs, combined with AND).
	// values: Column-name-to-value map written as the SET clause.
	// Returns: The number of affected rows and an error.
	ExecuteUpdateColumns(ctx context.Context, model interface{}, tableName string, query map[string]interface{}, values map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert performs an UPSERT operation (INSERT OR REPLACE / ON CONFLICT DO UPDATE).
	// model: The target model struct or slice.
	// tableName: The name of the table to operate on.
	// conflictColumns: List of column names used to detect conflicts.
	// updateColumns: List of column names to update on conflict (DO NOTHING if nil or empty).
	// Returns: The number of affected rows and an error.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)
}

// DBConnection represents an abstraction of a database connection.
// It provides database operations, connection management, and access to configuration.
type DBConnection interface {
	DBExecutor // Embeds ExecuteUpdate, ExecuteUpdateColumns, ExecuteUpsert

	// Type returns the type of the database (e.g., "mysql", "postgres").
	Type() string
	// Name returns the connection name (e.g., "metadata").
	Name() string
	// Close closes the database connection.
	Close() error
	// IsTableNotExistError checks if the given error indicates that a table does not exist.
	IsTableNotExistError(err error) bool
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig

	// GetSQLDB returns the underlying *sql.DB connection.
	// This exposes low-level dependencies but is necessary for migration tools and raw SQL access.
	GetSQLDB() (*sql.DB, error)

	// ExecuteQuery executes a read operation (SELECT).
	// target: A pointer to the struct or slice to store the results.
	// query: Query conditions (key-value map, combined with AND).
	ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error

	// ExecuteQueryAdvanced executes a read operation with optional sorting and limiting.
	// orderBy: Sort order, e.g. "created_at DESC". limit: 0 retrieves all records.
	ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error

	// Count counts the number of records matching the query.
	Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error)

	// Transaction runs fn inside one database transaction. The connection handed to fn
	// issues every operation against that transaction; any error rolls the whole unit
	// back. Nested calls reuse the enclosing transaction.
	Transaction(ctx context.Context, fn func(txConn DBConnection) error) error
}

// DBProvider is an interface responsible for providing database connections based on
// configuration. Concrete implementations correspond to different database types.
type DBProvider interface {
	// GetConnection retrieves (establishing if necessary) a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all database connections managed by this provider.
	CloseAll() error
	// Type returns the type of database handled by this provider (e.g., "postgres", "mysql").
	Type() string
}
