// Package mysql runs query statements on MySQL and MariaDB through
// go-sql-driver/mysql.
package mysql

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/alephtav/go-ddd/sqldb"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// Dialect binds statements for MySQL, which only understands "?" placeholders.
var Dialect = sqldb.NewDialect("mysql", sqldb.BindQuestion)

const errDuplicateEntry = 1062

// Config parses dsn and enables the settings the executor relies on.
func Config(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg, nil
}

// Open returns an executor for dsn. No connection is made until the first
// statement runs.
func Open(dsn string, logger *zap.Logger, options *sqldb.Options) (*sqldb.Executor, error) {
	cfg, err := Config(dsn)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if options == nil {
		options = sqldb.DefaultOptions()
	}
	options.Configure(db)
	return sqldb.NewExecutor(db, Dialect, logger, options), nil
}

// IsUniqueViolation reports whether err is a duplicate entry error.
func IsUniqueViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}
