// Package sqlite runs query statements on SQLite through mattn/go-sqlite3.
// SQLite understands ":name" placeholders natively, so params are passed as
// sql.NamedArg values without rewriting the statement.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alephtav/go-ddd/sqldb"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DriverName is the database/sql driver registered by go-sqlite3.
const DriverName = "sqlite3"

// Dialect binds statements for SQLite.
var Dialect = sqldb.NewDialect("sqlite", sqldb.BindNamed)

// Open opens dsn and returns an executor bound to the SQLite dialect. In-memory
// databases are limited to one connection, since every connection would
// otherwise see its own empty database.
func Open(dsn string, logger *zap.Logger, options *sqldb.Options) (*sqldb.Executor, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	if options == nil {
		options = sqldb.DefaultOptions()
	}
	options.Configure(db)
	if isMemory(dsn) {
		db.SetMaxOpenConns(1)
	}
	return sqldb.NewExecutor(db, Dialect, logger, options), nil
}

func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// IsUniqueViolation reports whether err was caused by a UNIQUE or PRIMARY KEY
// constraint.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
