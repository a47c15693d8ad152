package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/alephtav/go-ddd/core/query"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func setupExecutor(t *testing.T, options *Options) (*Executor, *observer.ObservedLogs) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		age INTEGER,
		avatar BLOB
	)`)
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	return NewExecutor(db, NewDialect("sqlite", BindNamed), zap.New(core), options), logs
}

func insertUser(t *testing.T, e *Executor, name string, age int) int64 {
	t.Helper()
	params := query.Params{}
	params.Set("name", name)
	params.Set("age", age)
	id, err := e.Insert(context.Background(), `INSERT INTO users (name, age) VALUES (:name, :age)`, params, "")
	require.NoError(t, err)
	return id.(int64)
}

func TestExecutorRoundTrip(t *testing.T) {
	ctx := context.Background()
	e, logs := setupExecutor(t, nil)

	assert.Equal(t, int64(1), insertUser(t, e, "alice", 30))
	assert.Equal(t, int64(2), insertUser(t, e, "bob", 25))

	rows, err := e.Rows(ctx, `SELECT id, name, age FROM users ORDER BY id`, query.Params{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0]["name"])
	assert.Equal(t, int64(25), rows[1]["age"])

	params := query.Params{}
	params.Set("p1", "bob")
	row, err := e.Row(ctx, `SELECT name FROM users WHERE name = :p1`, params)
	require.NoError(t, err)
	assert.Equal(t, "bob", row["name"])

	names, err := e.Column(ctx, `SELECT name FROM users ORDER BY name DESC`, query.Params{})
	require.NoError(t, err)
	assert.Equal(t, []any{"bob", "alice"}, names)

	count, err := e.Scalar(ctx, `SELECT COUNT(*) FROM users`, query.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	affected, err := e.Execute(ctx, `UPDATE users SET age = age + 1`, query.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	assert.NotZero(t, logs.FilterMessage("Executed statement").Len())
}

func TestExecutorEmptyResults(t *testing.T) {
	ctx := context.Background()
	e, _ := setupExecutor(t, nil)

	rows, err := e.Rows(ctx, `SELECT * FROM users`, query.Params{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	row, err := e.Row(ctx, `SELECT * FROM users`, query.Params{})
	require.NoError(t, err)
	assert.Nil(t, row)

	value, err := e.Scalar(ctx, `SELECT name FROM users`, query.Params{})
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestExecutorKeepsBinaryColumns(t *testing.T) {
	ctx := context.Background()
	e, _ := setupExecutor(t, nil)

	params := query.Params{}
	params.Set("avatar", []byte{0x01, 0x02})
	_, err := e.Execute(ctx, `INSERT INTO users (name, avatar) VALUES ('carol', :avatar)`, params)
	require.NoError(t, err)

	row, err := e.Row(ctx, `SELECT name, avatar FROM users`, query.Params{})
	require.NoError(t, err)
	assert.Equal(t, "carol", row["name"])
	assert.Equal(t, []byte{0x01, 0x02}, row["avatar"])
}

func TestExecutorLogsFailures(t *testing.T) {
	e, logs := setupExecutor(t, &Options{LogParams: true})

	params := query.Params{}
	params.Set("p1", 1)
	_, err := e.Execute(context.Background(), `UPDATE missing SET x = :p1`, params)
	require.Error(t, err)

	failed := logs.FilterMessage("Statement failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "execute", failed[0].ContextMap()["operation"])
	assert.Equal(t, map[string]any{"p1": 1}, failed[0].ContextMap()["params"])
}

func TestExecutorLogsSlowStatements(t *testing.T) {
	e, logs := setupExecutor(t, &Options{SlowStatementThreshold: time.Nanosecond})

	_, err := e.Scalar(context.Background(), `SELECT 1`, query.Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("Slow statement").Len())
}

func TestExecutorBindFailure(t *testing.T) {
	e, _ := setupExecutor(t, nil)

	_, err := e.Rows(context.Background(), `SELECT * FROM users WHERE id = :id`, query.Params{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, query.ErrMissingArgument))
}

func TestExecutorTransaction(t *testing.T) {
	ctx := context.Background()
	e, _ := setupExecutor(t, nil)

	err := e.Transaction(ctx, nil, func(tx *Executor) error {
		assert.True(t, tx.InTransaction())
		insertUser(t, tx, "alice", 30)
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = e.Transaction(ctx, nil, func(tx *Executor) error {
		insertUser(t, tx, "bob", 25)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := e.Scalar(ctx, `SELECT COUNT(*) FROM users`, query.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.Panics(t, func() {
		_ = e.Transaction(ctx, nil, func(tx *Executor) error {
			insertUser(t, tx, "carol", 40)
			panic("boom")
		})
	})
	count, err = e.Scalar(ctx, `SELECT COUNT(*) FROM users`, query.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestExecutorTransactionState(t *testing.T) {
	ctx := context.Background()
	e, _ := setupExecutor(t, nil)

	assert.Error(t, e.Commit())
	assert.Error(t, e.Rollback())

	tx, err := e.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.BeginTx(ctx, nil)
	assert.Error(t, err)
	assert.NoError(t, tx.Close())
	require.NoError(t, tx.Rollback())
}

func TestExecutorWithBuilders(t *testing.T) {
	ctx := context.Background()
	e, _ := setupExecutor(t, nil)

	insert := query.NewInsertQuery(e).Into("users").Values(map[string]any{"name": "dave", "age": 41})
	id, err := insert.Insert(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	sel := query.NewSelectQuery(e).From("users").Where("age", ">", 40)
	row, err := sel.Row(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dave", row["name"])
}
