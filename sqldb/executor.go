// Package sqldb runs statements rendered by the query package on a
// database/sql pool. Drivers plug in through a Dialect that rewrites the named
// placeholders into the form the driver understands.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alephtav/go-ddd/core/query"
	"github.com/alephtav/go-ddd/core/record"
	"go.uber.org/zap"
)

// dbRunner abstracts the methods shared by *sql.DB and *sql.Tx so the same
// code serves both transactional and plain executors.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Executor implements query.Executor on top of database/sql. It runs on the
// pool, or on a transaction when created by BeginTx.
type Executor struct {
	db      *sql.DB
	tx      *sql.Tx
	dialect Dialect
	logger  *zap.Logger
	log     StatementLogger
}

var _ query.Executor = (*Executor)(nil)

// NewExecutor returns an Executor running on db. A nil logger disables
// logging; nil options fall back to DefaultOptions.
func NewExecutor(db *sql.DB, dialect Dialect, logger *zap.Logger, options *Options) *Executor {
	log := NewStatementLogger(logger, options)
	log.Logger = log.Logger.With(zap.String("dialect", dialect.Name()))
	return &Executor{
		db:      db,
		dialect: dialect,
		logger:  log.Logger,
		log:     log,
	}
}

// DB returns the underlying pool.
func (e *Executor) DB() *sql.DB { return e.db }

// Dialect returns the dialect statements are bound with.
func (e *Executor) Dialect() Dialect { return e.dialect }

// InTransaction reports whether the executor is scoped to a transaction.
func (e *Executor) InTransaction() bool { return e.tx != nil }

func (e *Executor) runner() dbRunner {
	if e.tx != nil {
		return e.tx
	}
	return e.db
}

func (e *Executor) bind(sqlText string, params query.Params) (string, []any, error) {
	bound, args, err := e.dialect.Bind(sqlText, params)
	if err != nil {
		e.logger.Error("Failed to bind statement", zap.Error(err), zap.String("sql", sqlText))
		return "", nil, err
	}
	return bound, args, nil
}

// Execute runs a statement and returns the number of affected rows.
func (e *Executor) Execute(ctx context.Context, sqlText string, params query.Params) (affected int64, err error) {
	bound, args, err := e.bind(sqlText, params)
	if err != nil {
		return 0, err
	}

	started := time.Now()
	defer func() { e.log.Log("execute", sqlText, params, started, err) }()

	result, err := e.runner().ExecContext(ctx, bound, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute statement: %w", err)
	}
	return result.RowsAffected()
}

// Insert runs an INSERT and returns the inserted id. With a sequence, the id
// is read from it when the dialect is a Sequencer.
func (e *Executor) Insert(ctx context.Context, sqlText string, params query.Params, sequence string) (id any, err error) {
	bound, args, err := e.bind(sqlText, params)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	defer func() { e.log.Log("insert", sqlText, params, started, err) }()

	result, err := e.runner().ExecContext(ctx, bound, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute insert: %w", err)
	}

	if seq, ok := e.dialect.(Sequencer); ok && sequence != "" {
		rows, err := e.runner().QueryContext(ctx, seq.SequenceSQL(sequence))
		if err != nil {
			return nil, fmt.Errorf("failed to read sequence %q: %w", sequence, err)
		}
		defer rows.Close()
		values, err := readColumn(rows)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, nil
		}
		return values[0], nil
	}

	last, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read last insert id: %w", err)
	}
	return last, nil
}

// Rows returns every row of the result set.
func (e *Executor) Rows(ctx context.Context, sqlText string, params query.Params) (out []record.Row, err error) {
	bound, args, err := e.bind(sqlText, params)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	defer func() { e.log.Log("rows", sqlText, params, started, err) }()

	rows, err := e.runner().QueryContext(ctx, bound, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()
	return readRows(rows)
}

// Row returns the first row, or nil when the result set is empty.
func (e *Executor) Row(ctx context.Context, sqlText string, params query.Params) (record.Row, error) {
	rows, err := e.Rows(ctx, sqlText, params)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Column returns the first column of every row.
func (e *Executor) Column(ctx context.Context, sqlText string, params query.Params) (out []any, err error) {
	bound, args, err := e.bind(sqlText, params)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	defer func() { e.log.Log("column", sqlText, params, started, err) }()

	rows, err := e.runner().QueryContext(ctx, bound, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()
	return readColumn(rows)
}

// Scalar returns the first column of the first row, or nil for an empty
// result set.
func (e *Executor) Scalar(ctx context.Context, sqlText string, params query.Params) (any, error) {
	values, err := e.Column(ctx, sqlText, params)
	if err != nil || len(values) == 0 {
		return nil, err
	}
	return values[0], nil
}

// BeginTx starts a transaction and returns an executor scoped to it.
func (e *Executor) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Executor, error) {
	if e.tx != nil {
		return nil, errors.New("cannot start a new transaction from an existing transactional executor")
	}
	tx, err := e.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	e.logger.Debug("Transaction initiated")
	return &Executor{
		db:      e.db,
		tx:      tx,
		dialect: e.dialect,
		logger:  e.logger,
		log:     e.log,
	}, nil
}

// Commit commits the current transaction.
func (e *Executor) Commit() error {
	if e.tx == nil {
		return errors.New("commit not applicable: not in a transactional context")
	}
	e.logger.Debug("Committing transaction")
	return e.tx.Commit()
}

// Rollback rolls back the current transaction.
func (e *Executor) Rollback() error {
	if e.tx == nil {
		return errors.New("rollback not applicable: not in a transactional context")
	}
	e.logger.Debug("Rolling back transaction")
	return e.tx.Rollback()
}

// Transaction runs fn inside a transaction. The transaction is committed when
// fn returns nil and rolled back otherwise, including on panic.
func (e *Executor) Transaction(ctx context.Context, opts *sql.TxOptions, fn func(tx *Executor) error) (err error) {
	tx, err := e.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				e.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
			}
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

// Close closes the pool. Closing a transactional executor is a no-op.
func (e *Executor) Close() error {
	if e.tx != nil {
		return nil
	}
	return e.db.Close()
}

// readRows reads every row into a record.Row. Text columns come back as
// strings; binary columns keep their []byte.
func readRows(rows *sql.Rows) ([]record.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	binary := binaryColumns(rows, len(columns))

	results := []record.Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(record.Row, len(columns))
		for i, col := range columns {
			row[col] = normalize(values[i], binary[i])
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}

func readColumn(rows *sql.Rows) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, errors.New("result set has no columns")
	}
	binary := binaryColumns(rows, len(columns))

	results := []any{}
	for rows.Next() {
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, normalize(values[0], binary[0]))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}

func binaryColumns(rows *sql.Rows, n int) []bool {
	out := make([]bool, n)
	types, err := rows.ColumnTypes()
	if err != nil {
		return out
	}
	for i, ct := range types {
		switch name := strings.ToUpper(ct.DatabaseTypeName()); {
		case strings.Contains(name, "BLOB"), strings.Contains(name, "BINARY"), name == "BYTEA":
			out[i] = true
		}
	}
	return out
}

func normalize(value any, binary bool) any {
	if b, ok := value.([]byte); ok && !binary {
		return string(b)
	}
	return value
}
