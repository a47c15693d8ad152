package query

import (
	"context"

	"github.com/alephtav/go-ddd/core/record"
)

// Statement is a buildable SQL statement. All statement builders of this
// package implement it, and any Statement passed as an operand is rendered as
// a parenthesised sub-query.
type Statement interface {
	// ToSQL returns the rendered SQL, building it if the statement changed.
	ToSQL() string
	// Params returns the parameters referenced by ToSQL.
	Params() Params
	// Build returns the rendered SQL, its parameters and any build error.
	Build() (string, Params, error)

	renderStatement(b *builder) string
	copyStatement() Statement
}

type buildState int

const (
	stateDirty buildState = iota
	stateBuilt
)

// base holds what every statement builder shares: the executor and the cache
// of the last build. A mutation marks the cache dirty; reading the SQL or the
// params rebuilds it when needed.
type base struct {
	executor Executor
	state    buildState
	sql      string
	params   Params
	err      error
	render   func(b *builder) string
}

func (s *base) touch() {
	s.state = stateDirty
}

func (s *base) build() {
	if s.state == stateBuilt {
		return
	}
	b := newBuilder()
	s.sql = s.render(b)
	s.params = b.params
	s.err = b.err
	s.state = stateBuilt
}

// ToSQL returns the rendered SQL. Build errors are reported by Build, Err and
// every terminal operation.
func (s *base) ToSQL() string {
	s.build()
	return s.sql
}

// Params returns the ordered parameters of the rendered SQL.
func (s *base) Params() Params {
	s.build()
	return s.params.clone()
}

// Build renders the statement if needed and returns the cached result.
func (s *base) Build() (string, Params, error) {
	s.build()
	return s.sql, s.params.clone(), s.err
}

// Err returns the build error of the statement, if any.
func (s *base) Err() error {
	s.build()
	return s.err
}

// String implements fmt.Stringer.
func (s *base) String() string {
	return s.ToSQL()
}

// Executor returns the executor bound to the statement.
func (s *base) Executor() Executor {
	return s.executor
}

func (s *base) renderStatement(b *builder) string {
	return s.render(b)
}

// prepare checks the executor and builds the statement for a terminal
// operation.
func (s *base) prepare(while string) (string, Params, error) {
	if s.executor == nil {
		return "", Params{}, errNoExecutor(while)
	}
	s.build()
	if s.err != nil {
		return "", Params{}, s.err
	}
	return s.sql, s.params.clone(), nil
}

// Exec runs the statement and returns the number of affected rows.
func (s *base) Exec(ctx context.Context) (int64, error) {
	sql, params, err := s.prepare("executing statement")
	if err != nil {
		return 0, err
	}
	return s.executor.Execute(ctx, sql, params)
}

// Rows runs the statement and returns every row.
func (s *base) Rows(ctx context.Context) ([]record.Row, error) {
	sql, params, err := s.prepare("fetching rows")
	if err != nil {
		return nil, err
	}
	return s.executor.Rows(ctx, sql, params)
}

// Row runs the statement and returns the first row, or nil.
func (s *base) Row(ctx context.Context) (record.Row, error) {
	sql, params, err := s.prepare("fetching row")
	if err != nil {
		return nil, err
	}
	return s.executor.Row(ctx, sql, params)
}

// Column runs the statement and returns the first column of every row.
func (s *base) Column(ctx context.Context) ([]any, error) {
	sql, params, err := s.prepare("fetching column")
	if err != nil {
		return nil, err
	}
	return s.executor.Column(ctx, sql, params)
}

// Scalar runs the statement and returns the first column of the first row.
func (s *base) Scalar(ctx context.Context) (any, error) {
	sql, params, err := s.prepare("fetching scalar")
	if err != nil {
		return nil, err
	}
	return s.executor.Scalar(ctx, sql, params)
}

func joinSQL(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}
