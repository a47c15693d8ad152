package sqldb

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/alephtav/go-ddd/core/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinders(t *testing.T) {
	params := query.Params{}
	params.Set("p1", 10)
	params.Set("p2", "bob")

	const src = `SELECT * FROM users WHERE age > :p1 AND (name = :p2 OR nick = :p2) AND created_at::date = '2024-01-01'`

	tests := []struct {
		name     string
		bind     BindFunc
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "named",
			bind:     BindNamed,
			wantSQL:  src,
			wantArgs: []any{sql.Named("p1", 10), sql.Named("p2", "bob")},
		},
		{
			name:     "dollar reuses ordinals",
			bind:     BindDollar,
			wantSQL:  `SELECT * FROM users WHERE age > $1 AND (name = $2 OR nick = $2) AND created_at::date = '2024-01-01'`,
			wantArgs: []any{10, "bob"},
		},
		{
			name:     "question repeats arguments",
			bind:     BindQuestion,
			wantSQL:  `SELECT * FROM users WHERE age > ? AND (name = ? OR nick = ?) AND created_at::date = '2024-01-01'`,
			wantArgs: []any{10, "bob", "bob"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs, err := tt.bind(src, params)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, gotSQL)
			assert.Equal(t, tt.wantArgs, gotArgs)
		})
	}
}

func TestBindersIgnoreQuotedText(t *testing.T) {
	params := query.Params{}
	params.Set("p1", 1)

	got, args, err := BindDollar(`SELECT ':p9' AS label, "col:x" FROM t WHERE id = :p1 -- :p7`, params)
	require.NoError(t, err)
	assert.Equal(t, `SELECT ':p9' AS label, "col:x" FROM t WHERE id = $1 -- :p7`, got)
	assert.Equal(t, []any{1}, args)
}

func TestBindersMissingArgument(t *testing.T) {
	_, _, err := BindQuestion(`SELECT :missing`, query.Params{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, query.ErrMissingArgument))

	_, _, err = BindDollar(`SELECT $1`, query.Params{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, query.ErrUsage))
}

func TestBindNamedChecksReferences(t *testing.T) {
	params := query.Params{}
	params.Set("p1", 1)
	params.Set("p2", 2)

	got, args, err := BindNamed(`SELECT * FROM t WHERE a = :p2 OR b = :p2`, params)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM t WHERE a = :p2 OR b = :p2`, got)
	assert.Equal(t, []any{sql.Named("p2", 2)}, args)

	_, _, err = BindNamed(`SELECT * FROM t WHERE id = :id`, params)
	require.Error(t, err)
	assert.True(t, errors.Is(err, query.ErrMissingArgument))

	_, _, err = BindNamed(`SELECT * FROM t WHERE id = $1`, params)
	require.Error(t, err)
	assert.True(t, errors.Is(err, query.ErrUsage))
}

func TestNewDialect(t *testing.T) {
	d := NewDialect("mysql", BindQuestion)
	assert.Equal(t, "mysql", d.Name())

	params := query.Params{}
	params.Set("p1", true)
	got, args, err := d.Bind(`SELECT :p1`, params)
	require.NoError(t, err)
	assert.Equal(t, `SELECT ?`, got)
	assert.Equal(t, []any{true}, args)
}
