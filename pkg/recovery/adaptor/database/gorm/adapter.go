package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	dbconfig "github.com/tigerroll/tidal/pkg/recovery/adaptor/database/config"
	"github.com/tigerroll/tidal/pkg/recovery/core/adaptor"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gorm_logger "gorm.io/gorm/logger"
)

// TableNamer represents a struct that has a TableName() string method.
type TableNamer interface {
	TableName() string
}

// applyTableName applies the table name to the GORM DB session if the model implements
// the TableNamer interface.
func applyTableName(db *gorm.DB, model interface{}) *gorm.DB {
	val := reflect.ValueOf(model)

	// Dereference the pointer
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	// 1. Check if the model itself implements TableNamer (for single entity)
	if namer, ok := model.(TableNamer); ok {
		return db.Table(namer.TableName())
	}

	// 2. For slices, check if the element type implements TableNamer.
	if val.Kind() == reflect.Slice || val.Kind() == reflect.Array {
		elemType := val.Type().Elem()

		// If the element is a pointer type, get its element type.
		if elemType.Kind() == reflect.Ptr {
			elemType = elemType.Elem()
		}

		// Check if the element type implements TableNamer.
		if reflect.New(elemType).Type().Implements(reflect.TypeOf((*TableNamer)(nil)).Elem()) {
			if namer, ok := reflect.New(elemType).Interface().(TableNamer); ok {
				return db.Table(namer.TableName())
			}
		}
	}

	// 3. If unable to resolve, let GORM infer the table name from the model.
	return db.Model(model)
}

// NewGormLogger creates a gorm.Logger instance based on the configured log level.
func NewGormLogger(level string) gorm_logger.Interface {
	var gormLevel gorm_logger.LogLevel
	switch strings.ToUpper(level) {
	case "SILENT":
		gormLevel = gorm_logger.Silent
	case "ERROR":
		gormLevel = gorm_logger.Error
	case "WARN":
		gormLevel = gorm_logger.Warn
	case "INFO":
		gormLevel = gorm_logger.Info
	default:
		// Default to Silent if not explicitly configured or unknown
		gormLevel = gorm_logger.Silent
	}

	writer := NewGormWriter()

	return gorm_logger.New(
		writer,
		gorm_logger.Config{
			SlowThreshold:             200 * time.Millisecond, // Default slow threshold
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// GormWriter is an io.Writer that redirects GORM log output to the shared logger.
type GormWriter struct{}

// NewGormWriter creates a new instance of GormWriter.
func NewGormWriter() *GormWriter {
	return &GormWriter{}
}

// Write implements io.Writer.
func (w *GormWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	// GORM logs are typically in the format [<duration>ms] SELECT ..., so treat them as DEBUG.
	if strings.Contains(msg, "[") && strings.Contains(msg, "]") && (strings.Contains(msg, "SELECT") || strings.Contains(msg, "INSERT") || strings.Contains(msg, "UPDATE") || strings.Contains(msg, "DELETE")) {
		logger.Debugf("[GORM] %s", msg)
	} else {
		// Other GORM logs (connection info, warnings, etc.) are treated as INFO.
		logger.Infof("[GORM] %s", msg)
	}
	return len(p), nil
}

// Printf implements gormLogger.Writer interface.
func (w *GormWriter) Printf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	if strings.Contains(msg, "[") && strings.Contains(msg, "]") && (strings.Contains(msg, "SELECT") || strings.Contains(msg, "INSERT") || strings.Contains(msg, "UPDATE") || strings.Contains(msg, "DELETE")) {
		logger.Debugf("[GORM] %s", strings.TrimSpace(msg))
	} else {
		logger.Infof("[GORM] %s", strings.TrimSpace(msg))
	}
}

// GormDBAdapter implements adaptor.DBConnection
type GormDBAdapter struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	cfg    dbconfig.DatabaseConfig
	dbType string
	name   string
	inTx   bool
}

// NewGormDBAdapter creates a new GormDBAdapter.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) adaptor.DBConnection {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatalf("Failed to get underlying *sql.DB: %v", err)
	}

	return &GormDBAdapter{
		db:     db,
		sqlDB:  sqlDB,
		cfg:    cfg,
		dbType: cfg.Type,
		name:   name,
	}
}

// GetGormDB returns the underlying *gorm.DB instance.
// NOTE: This method is intended for internal use within the 'gorm' adaptor package only.
func (a *GormDBAdapter) GetGormDB() *gorm.DB {
	return a.db
}

func (a *GormDBAdapter) Close() error {
	if a.inTx {
		return nil // The enclosing Transaction owns the connection.
	}
	if a.sqlDB != nil {
		logger.Infof("Closing database connection '%s'...", a.name)
		return a.sqlDB.Close()
	}
	return nil
}

func (a *GormDBAdapter) Type() string {
	return a.dbType
}

func (a *GormDBAdapter) Name() string {
	return a.name
}

// Config implements adaptor.DBConnection.
func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig {
	return a.cfg
}

// GetSQLDB implements adaptor.DBConnection.
func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) {
	if a.sqlDB == nil {
		return nil, fmt.Errorf("underlying sql.DB is nil")
	}
	return a.sqlDB, nil
}

// IsTableNotExistError implements adaptor.DBConnection.
func (a *GormDBAdapter) IsTableNotExistError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	// These checks cover common SQL errors for table not found across different DBs.
	return (strings.Contains(errMsg, "relation \"") && strings.Contains(errMsg, "\" does not exist")) || // PostgreSQL
		(strings.Contains(errMsg, "Error 1146") && strings.Contains(errMsg, "doesn't exist")) || // MySQL
		strings.Contains(errMsg, "no such table:") // SQLite
}

// ExecuteQuery implements adaptor.DBConnection.
// This method executes a read operation using GORM's Find method.
func (a *GormDBAdapter) ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error {
	db := a.db.WithContext(ctx)

	db = applyTableName(db, target)

	result := db.Where(query).Find(target)

	if result.Error != nil {
		return result.Error
	}

	// If no record is found, GORM does not return an error for slices, so the caller
	// needs to handle the empty result.
	return nil
}

// ExecuteQueryAdvanced implements adaptor.DBConnection.
func (a *GormDBAdapter) ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error {
	db := a.db.WithContext(ctx)

	db = applyTableName(db, target)

	if query != nil {
		db = db.Where(query)
	}

	if orderBy != "" {
		db = db.Order(orderBy)
	}

	if limit > 0 {
		db = db.Limit(limit)
	}

	result := db.Find(target)

	if result.Error != nil {
		return result.Error
	}
	return nil
}

// Count implements adaptor.DBConnection.
func (a *GormDBAdapter) Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error) {
	db := a.db.WithContext(ctx)

	db = applyTableName(db, model)

	if query != nil {
		db = db.Where(query)
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExecuteUpdate implements adaptor.DBExecutor.
// This method executes a write operation (CREATE, UPDATE, DELETE) using GORM.
func (a *GormDBAdapter) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error) {
	db := a.db.WithContext(ctx)

	// NOTE: Skip GORM's default transaction.
	db = db.Session(&gorm.Session{SkipDefaultTransaction: true})

	var result *gorm.DB

	// Apply table name if specified (prioritize instructions from the repository layer).
	if tableName != "" {
		db = db.Table(tableName)
	}

	switch operation {
	case "CREATE":
		// For CREATE operations, 'model' must be a pointer to an entity or a slice of entities.
		result = db.Create(model)

	case "UPDATE":
		// For UPDATE operations, 'model' must be a pointer to an entity with fields to be updated.
		// Using db.Model(model) automatically uses the model's primary key as a WHERE clause condition.
		db = db.Model(model)
		result = db.Where(query).Updates(model)

	case "DELETE":
		if query != nil {
			db = db.Where(query)
		}

		result = db.Delete(model)

	default:
		return 0, fmt.Errorf("unsupported update operation: %s", operation)
	}

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteUpdateColumns implements adaptor.DBExecutor.
// The SET clause comes from the values map, so zero values (cleared strings, false
// flags, reset counters) are written; GORM's struct-based Updates would skip them.
func (a *GormDBAdapter) ExecuteUpdateColumns(ctx context.Context, model interface{}, tableName string, query map[string]interface{}, values map[string]interface{}) (rowsAffected int64, err error) {
	db := a.db.WithContext(ctx)

	// NOTE: Skip GORM's default transaction.
	db = db.Session(&gorm.Session{SkipDefaultTransaction: true})

	if tableName != "" {
		db = db.Table(tableName)
	}

	result := db.Model(model).Where(query).Updates(values)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteUpsert implements adaptor.DBExecutor.
func (a *GormDBAdapter) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error) {
	db := a.db.WithContext(ctx)

	// NOTE: Skip GORM's default transaction.
	db = db.Session(&gorm.Session{SkipDefaultTransaction: true})

	var columns []clause.Column

	// Apply table name if specified (prioritize instructions from the repository layer).
	if tableName != "" {
		db = db.Table(tableName)
	}

	for _, col := range conflictColumns {
		columns = append(columns, clause.Column{Name: col})
	}

	onConflict := clause.OnConflict{
		Columns: columns,
	}

	if len(updateColumns) > 0 {
		// DO UPDATE
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	} else {
		// DO NOTHING
		onConflict.DoNothing = true
	}

	result := db.Clauses(onConflict).Create(model)

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Transaction implements adaptor.DBConnection. The connection handed to fn routes every
// operation through the GORM transaction; nested calls reuse the enclosing transaction.
func (a *GormDBAdapter) Transaction(ctx context.Context, fn func(txConn adaptor.DBConnection) error) error {
	if a.inTx {
		// Already inside a transaction: reuse it.
		return fn(a)
	}
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txAdapter := &GormDBAdapter{
			db:     tx,
			sqlDB:  a.sqlDB,
			cfg:    a.cfg,
			dbType: a.dbType,
			name:   a.name,
			inTx:   true,
		}
		return fn(txAdapter)
	})
}
