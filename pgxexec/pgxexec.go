// Package pgxexec runs query statements on PostgreSQL through the native pgx
// interface, without database/sql.
package pgxexec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alephtav/go-ddd/core/query"
	"github.com/alephtav/go-ddd/core/record"
	"github.com/alephtav/go-ddd/sqldb"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

// runner is implemented by *pgxpool.Pool and pgx.Tx.
type runner interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Executor implements query.Executor on a pgx pool or transaction. It is safe
// for concurrent use when running on a pool.
type Executor struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
	log  sqldb.StatementLogger
}

var _ query.Executor = (*Executor)(nil)

// Connect creates a pool for dsn. Connections are established lazily.
func Connect(ctx context.Context, dsn string, logger *zap.Logger, options *sqldb.Options) (*Executor, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	if options != nil {
		if options.MaxOpenConns > 0 {
			config.MaxConns = int32(options.MaxOpenConns)
		}
		if options.ConnMaxLifetime > 0 {
			config.MaxConnLifetime = options.ConnMaxLifetime
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return New(pool, logger, options), nil
}

// New returns an Executor running on pool.
func New(pool *pgxpool.Pool, logger *zap.Logger, options *sqldb.Options) *Executor {
	log := sqldb.NewStatementLogger(logger, options)
	log.Logger = log.Logger.With(zap.String("dialect", "pgx"))
	return &Executor{pool: pool, log: log}
}

// Pool returns the underlying pool.
func (e *Executor) Pool() *pgxpool.Pool { return e.pool }

func (e *Executor) runner() runner {
	if e.tx != nil {
		return e.tx
	}
	return e.pool
}

func bind(sql string, params query.Params) (string, []any, error) {
	return sqldb.BindDollar(sql, params)
}

// Execute runs a statement and returns the number of affected rows.
func (e *Executor) Execute(ctx context.Context, sql string, params query.Params) (affected int64, err error) {
	bound, args, err := bind(sql, params)
	if err != nil {
		return 0, err
	}

	started := time.Now()
	defer func() { e.log.Log("execute", sql, params, started, err) }()

	tag, err := e.runner().Exec(ctx, bound, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute statement: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Insert runs an INSERT. PostgreSQL does not report inserted ids, so the id is
// the current value of sequence, or nil without one.
func (e *Executor) Insert(ctx context.Context, sql string, params query.Params, sequence string) (id any, err error) {
	bound, args, err := bind(sql, params)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	defer func() { e.log.Log("insert", sql, params, started, err) }()

	if _, err := e.runner().Exec(ctx, bound, args...); err != nil {
		return nil, fmt.Errorf("failed to execute insert: %w", err)
	}
	if sequence == "" {
		return nil, nil
	}
	if err := e.runner().QueryRow(ctx, "SELECT currval($1::regclass)", sequence).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to read sequence %q: %w", sequence, err)
	}
	return id, nil
}

// Rows returns every row of the result set.
func (e *Executor) Rows(ctx context.Context, sql string, params query.Params) (out []record.Row, err error) {
	bound, args, err := bind(sql, params)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	defer func() { e.log.Log("rows", sql, params, started, err) }()

	rows, err := e.runner().Query(ctx, bound, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("failed to collect rows: %w", err)
	}
	out = make([]record.Row, len(maps))
	for i, m := range maps {
		out[i] = record.Row(m)
	}
	return out, nil
}

// Row returns the first row, or nil when the result set is empty.
func (e *Executor) Row(ctx context.Context, sql string, params query.Params) (record.Row, error) {
	rows, err := e.Rows(ctx, sql, params)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Column returns the first column of every row.
func (e *Executor) Column(ctx context.Context, sql string, params query.Params) (out []any, err error) {
	bound, args, err := bind(sql, params)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	defer func() { e.log.Log("column", sql, params, started, err) }()

	rows, err := e.runner().Query(ctx, bound, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (any, error) {
		values, err := row.Values()
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, errors.New("result set has no columns")
		}
		return values[0], nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect column: %w", err)
	}
	return out, nil
}

// Scalar returns the first column of the first row, or nil for an empty
// result set.
func (e *Executor) Scalar(ctx context.Context, sql string, params query.Params) (any, error) {
	values, err := e.Column(ctx, sql, params)
	if err != nil || len(values) == 0 {
		return nil, err
	}
	return values[0], nil
}

// Transaction runs fn in a transaction with the given options, committing
// when fn returns nil and rolling back otherwise. Nested transactions are not
// supported.
func (e *Executor) Transaction(ctx context.Context, opts pgx.TxOptions, fn func(tx *Executor) error) (err error) {
	if e.tx != nil {
		return errors.New("cannot start a new transaction from an existing transactional executor")
	}
	tx, err := e.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	e.log.Logger.Debug("Transaction initiated", zap.String("isolation", string(opts.IsoLevel)))

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				e.log.Logger.Error("Failed to roll back transaction", zap.Error(rbErr))
			}
			return
		}
		err = tx.Commit(ctx)
	}()
	return fn(&Executor{pool: e.pool, tx: tx, log: e.log})
}

// Close closes the pool. Closing a transactional executor is a no-op.
func (e *Executor) Close() {
	if e.tx == nil {
		e.pool.Close()
	}
}

// IsUniqueViolation reports whether err is a unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
