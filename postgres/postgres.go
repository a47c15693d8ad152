// Package postgres runs query statements on PostgreSQL through lib/pq.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/alephtav/go-ddd/core/query"
	"github.com/alephtav/go-ddd/sqldb"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

type dialect struct{}

// Dialect binds statements for PostgreSQL with "$N" placeholders. Inserted ids
// are read with currval, since the driver does not report them.
var Dialect sqldb.Dialect = dialect{}

func (dialect) Name() string { return "postgres" }

func (dialect) Bind(sql string, params query.Params) (string, []any, error) {
	return sqldb.BindDollar(sql, params)
}

func (dialect) SequenceSQL(sequence string) string {
	return "SELECT currval(" + pq.QuoteLiteral(sequence) + ")"
}

// Open returns an executor for dsn, which may be a URL or a key=value
// connection string.
func Open(dsn string, logger *zap.Logger, options *sqldb.Options) (*sqldb.Executor, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if options == nil {
		options = sqldb.DefaultOptions()
	}
	options.Configure(db)
	return sqldb.NewExecutor(db, Dialect, logger, options), nil
}

// IsUniqueViolation reports whether err is a unique_violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
