// Package query builds SQL statements as trees of clause expressions and
// renders them into SQL text with named placeholders (":p1", ":p2", ...) plus
// an ordered parameter set. Rendered statements are handed to an Executor,
// which owns the connection and the driver-specific parameter binding.
package query

import (
	"context"

	"github.com/alephtav/go-ddd/core/record"
)

// Executor runs rendered SQL. Implementations translate the named placeholders
// to whatever their driver expects.
type Executor interface {
	// Execute runs a statement and returns the number of affected rows.
	Execute(ctx context.Context, sql string, params Params) (int64, error)

	// Insert runs an INSERT and returns the inserted id, or the current value
	// of sequence when one is given.
	Insert(ctx context.Context, sql string, params Params, sequence string) (any, error)

	// Rows returns every row of the result set.
	Rows(ctx context.Context, sql string, params Params) ([]record.Row, error)

	// Row returns the first row of the result set, or nil when it is empty.
	Row(ctx context.Context, sql string, params Params) (record.Row, error)

	// Column returns the first column of every row.
	Column(ctx context.Context, sql string, params Params) ([]any, error)

	// Scalar returns the first column of the first row, or nil when the result
	// set is empty.
	Scalar(ctx context.Context, sql string, params Params) (any, error)
}
