package query

import (
	"context"
	"testing"

	"github.com/alephtav/go-ddd/core/record"
	"github.com/mitranim/sqlp"
	"github.com/stretchr/testify/assert"
)

// assertPlaceholders checks that the placeholders of sql, in order of first
// use, are exactly the names of params.
func assertPlaceholders(t *testing.T, sql string, params Params) {
	t.Helper()
	names := []string{}
	seen := map[string]bool{}
	tokenizer := sqlp.Tokenizer{Source: sql}
	for node := tokenizer.Next(); node != nil; node = tokenizer.Next() {
		if name, ok := node.(sqlp.NodeNamedParam); ok && !seen[string(name)] {
			seen[string(name)] = true
			names = append(names, string(name))
		}
	}
	assert.Equal(t, names, params.Names())
}

type fakeCall struct {
	method   string
	sql      string
	params   Params
	sequence string
}

// fakeExecutor records every call and serves canned results. Successive Rows
// calls consume pages in order.
type fakeExecutor struct {
	calls    []fakeCall
	pages    [][]record.Row
	scalar   any
	affected int64
	insertID any
	err      error
}

var _ Executor = (*fakeExecutor)(nil)

func (f *fakeExecutor) record(method, sql string, params Params, sequence string) {
	f.calls = append(f.calls, fakeCall{method: method, sql: sql, params: params, sequence: sequence})
}

func (f *fakeExecutor) Execute(_ context.Context, sql string, params Params) (int64, error) {
	f.record("execute", sql, params, "")
	return f.affected, f.err
}

func (f *fakeExecutor) Insert(_ context.Context, sql string, params Params, sequence string) (any, error) {
	f.record("insert", sql, params, sequence)
	return f.insertID, f.err
}

func (f *fakeExecutor) Rows(_ context.Context, sql string, params Params) ([]record.Row, error) {
	f.record("rows", sql, params, "")
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) == 0 {
		return nil, nil
	}
	rows := f.pages[0]
	f.pages = f.pages[1:]
	return rows, nil
}

func (f *fakeExecutor) Row(ctx context.Context, sql string, params Params) (record.Row, error) {
	rows, err := f.Rows(ctx, sql, params)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (f *fakeExecutor) Column(_ context.Context, sql string, params Params) ([]any, error) {
	f.record("column", sql, params, "")
	return []any{f.scalar}, f.err
}

func (f *fakeExecutor) Scalar(_ context.Context, sql string, params Params) (any, error) {
	f.record("scalar", sql, params, "")
	return f.scalar, f.err
}

func rowsOf(n, start int) []record.Row {
	rows := make([]record.Row, n)
	for i := range rows {
		rows[i] = record.Row{"id": int64(start + i)}
	}
	return rows
}
