package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/alephtav/go-ddd/core/query"
)

// QuoteIdentifier quotes a table or column name.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableExists reports whether a table named table exists.
func TableExists(ctx context.Context, exec query.Executor, table string) (bool, error) {
	name, err := query.NewSelectQuery(exec).
		Select("name").
		From("sqlite_master").
		Where(query.Pairs{{Key: "type", Value: "table"}, {Key: "name", Value: table}}).
		Scalar(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	return name != nil, nil
}

// DropTable drops table if it exists.
func DropTable(ctx context.Context, exec query.Executor, table string) error {
	stmt := "DROP TABLE IF EXISTS " + QuoteIdentifier(table)
	if _, err := exec.Execute(ctx, stmt, query.Params{}); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}
