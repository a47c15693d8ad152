package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alephtav/go-ddd/core/query"
	"github.com/alephtav/go-ddd/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"render", "exec"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

const selectDefinition = `
kind: select
table: users
columns: [id, name]
where:
  - column: age
    op: ">="
    value: 18
order_by:
  - column: id
`

func TestRender(t *testing.T) {
	path := writeFile(t, t.TempDir(), "select.yaml", selectDefinition)

	tests := []struct {
		name   string
		format string
		want   string
	}{
		{
			name:   "text",
			format: "text",
			want:   "SELECT id, name FROM users WHERE age >= :p1 ORDER BY id\n{\"p1\":18}\n",
		},
		{
			name:   "json",
			format: "json",
			want:   `{"status":"ok","data":{"sql":"SELECT id, name FROM users WHERE age >= :p1 ORDER BY id","params":{"p1":18}}}` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, "render", path, "--format", tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRenderErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := run(t, "render", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	bad := writeFile(t, dir, "bad.yaml", "kind: select\ntable: t\nwhere: [{column: a, op: BETWEEN, value: [1]}]")
	_, _, err = run(t, "render", bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, query.ErrInvalidOperand)

	_, _, err = run(t, "render", bad, "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func setupDatabase(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	dbPath := filepath.Join(dir, "app.db")

	exec, err := sqlite.Open(dbPath, nil, nil)
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, age INTEGER)`, query.Params{})
	require.NoError(t, err)
	_, err = query.NewInsertQuery(exec).Into("users").Values([]map[string]any{
		{"id": 1, "name": "ana", "age": 34},
		{"id": 2, "name": "ben", "age": 12},
		{"id": 3, "name": "cid", "age": 51},
	}).Exec(context.Background())
	require.NoError(t, err)
	require.NoError(t, exec.Close())

	configPath = writeFile(t, dir, "conn.yaml", "driver: sqlite\ndsn: "+dbPath+"\n")
	return dir, configPath
}

func TestExecSelect(t *testing.T) {
	dir, config := setupDatabase(t)
	path := writeFile(t, dir, "select.yaml", selectDefinition)

	out, _, err := run(t, "exec", path, "--config", config)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, map[string]any{"id": float64(1), "name": "ana"}, first)
}

func TestExecUpdate(t *testing.T) {
	dir, config := setupDatabase(t)
	path := writeFile(t, dir, "update.yaml", "kind: update\ntable: users\nset: {age: 0}\nwhere: [{column: age, op: '<', value: 18}]")

	out, stderr, err := run(t, "exec", path, "--config", config, "--verbose")
	require.NoError(t, err)
	assert.Equal(t, "1 row(s) affected\n", out)
	assert.Contains(t, stderr, "Executed statement")

	out, _, err = run(t, "exec", path, "--config", config, "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, `{"status":"ok","data":{"affected":1}}`+"\n", out)
}

func TestExecErrors(t *testing.T) {
	dir, config := setupDatabase(t)
	path := writeFile(t, dir, "select.yaml", "kind: select\ntable: missing_table")

	out, _, err := run(t, "exec", path, "--config", config, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `"status":"error"`)

	badConfig := writeFile(t, dir, "bad.yaml", "driver: oracle\ndsn: x\n")
	_, _, err = run(t, "exec", path, "--config", badConfig)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = run(t, "exec", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(writeFile(t, dir, "ok.yaml", "driver: pgx\ndsn: postgres://localhost/db\noptions:\n  log_params: true\n  slow_statement_threshold: 250ms\n"))
	require.NoError(t, err)
	assert.Equal(t, "pgx", cfg.Driver)
	assert.True(t, cfg.Options.LogParams)
	assert.Equal(t, 250*time.Millisecond, cfg.Options.SlowStatementThreshold)
	assert.Equal(t, 2, cfg.Options.MaxIdleConns)

	_, err = LoadConfig(writeFile(t, dir, "unknown.yaml", "driver: pgx\ndsn: x\nhost: y\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, dir, "nodsn.yaml", "driver: pgx\n"))
	assert.Error(t, err)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "x", nil)))
	assert.Equal(t, ExitCommandError, GetExitCode(assert.AnError))
}
