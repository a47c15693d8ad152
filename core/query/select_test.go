package query

import (
	"context"
	"errors"
	"testing"

	"github.com/alephtav/go-ddd/core/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectQuery_ToSQL(t *testing.T) {
	tests := []struct {
		name           string
		build          func() *SelectQuery
		expectedSQL    string
		expectedParams map[string]any
	}{
		{
			name:           "empty select",
			build:          func() *SelectQuery { return NewSelectQuery(nil) },
			expectedSQL:    "SELECT *",
			expectedParams: map[string]any{},
		},
		{
			name: "simple where",
			build: func() *SelectQuery {
				return NewSelectQuery(nil).From("t").Where("f", "=", 1)
			},
			expectedSQL:    "SELECT * FROM t WHERE f = :p1",
			expectedParams: map[string]any{"p1": 1},
		},
		{
			name: "raw boolean condition",
			build: func() *SelectQuery {
				return NewSelectQuery(nil).From("t").Where("NOT false")
			},
			expectedSQL:    "SELECT * FROM t WHERE NOT false",
			expectedParams: map[string]any{},
		},
		{
			name: "clauses render in canonical order",
			build: func() *SelectQuery {
				return NewSelectQuery(nil).
					Offset(5).
					Limit(10).
					OrderBy("name", "DESC").
					Having("COUNT(*)", ">", 1).
					GroupBy("dept").
					Where("active", true).
					LeftJoin("d", "d.id = t.dept_id").
					FromAs("t", "x").
					Select("dept", "COUNT(*)").
					With("w", Raw("SELECT 1"))
			},
			expectedSQL:    "WITH w AS (SELECT 1) SELECT dept, COUNT(*) FROM t x LEFT JOIN d ON d.id = t.dept_id WHERE active = :p1 GROUP BY dept HAVING COUNT(*) > :p2 ORDER BY name DESC LIMIT 10 OFFSET 5",
			expectedParams: map[string]any{"p1": true, "p2": 1},
		},
		{
			name: "aliases",
			build: func() *SelectQuery {
				return NewSelectQuery(nil).
					Select(Pairs{{"total", "SUM(x)"}, {"", "y"}}).
					SelectAs("z", "zz").
					From(Pairs{{"a", "accounts"}, {"", "b"}})
			},
			expectedSQL:    "SELECT SUM(x) total, y, z zz FROM accounts a, b",
			expectedParams: map[string]any{},
		},
		{
			name: "sub-query source",
			build: func() *SelectQuery {
				inner := NewSelectQuery(nil).From("u").Where("age", ">", 18)
				return NewSelectQuery(nil).FromAs(inner, "s").Where("s.org", 3)
			},
			expectedSQL:    "SELECT * FROM (SELECT * FROM u WHERE age > :p1) s WHERE s.org = :p2",
			expectedParams: map[string]any{"p1": 18, "p2": 3},
		},
		{
			name: "nested groups",
			build: func() *SelectQuery {
				return NewSelectQuery(nil).From("t").
					Where(func(c *Conditional) {
						c.And("a", 1).Or("b", 2)
					}).
					OrWhere("c", 3)
			},
			expectedSQL:    "SELECT * FROM t WHERE (a = :p1 OR b = :p2) OR c = :p3",
			expectedParams: map[string]any{"p1": 1, "p2": 2, "p3": 3},
		},
		{
			name: "join forms",
			build: func() *SelectQuery {
				return NewSelectQuery(nil).From("t").
					Join("u", []string{"id", "org"}).
					InnerJoin("v", func(c *Conditional) {
						c.And("v.id = t.vid").And("v.kind", "x")
					}).
					RightJoin("w", Pairs{{"w.id", "t.wid"}, {"w.org", "t.org"}}).
					CrossJoin("z").
					NaturalJoin("n")
			},
			expectedSQL:    "SELECT * FROM t JOIN u USING (id, org) INNER JOIN v ON v.id = t.vid AND v.kind = :p1 RIGHT JOIN w ON w.id = t.wid AND w.org = t.org CROSS JOIN z NATURAL JOIN n",
			expectedParams: map[string]any{"p1": "x"},
		},
		{
			name: "values list",
			build: func() *SelectQuery {
				return NewSelectQuery(nil).Values([]any{1, 2}, []any{3, 4})
			},
			expectedSQL:    "VALUES (:p1, :p2), (:p3, :p4)",
			expectedParams: map[string]any{"p1": 1, "p2": 2, "p3": 3, "p4": 4},
		},
		{
			name: "recursive cte",
			build: func() *SelectQuery {
				tree := NewSelectQuery(nil).Select("id").From("nodes").Where("parent_id", "IS", nil)
				return NewSelectQuery(nil).WithRecursive("tree(id)", tree).From("tree")
			},
			expectedSQL:    "WITH RECURSIVE tree(id) AS (SELECT id FROM nodes WHERE parent_id IS NULL) SELECT * FROM tree",
			expectedParams: map[string]any{},
		},
		{
			name: "sub-queries share the placeholder sequence",
			build: func() *SelectQuery {
				inner := NewSelectQuery(nil).Select("id").From("u").Where("b", 2)
				return NewSelectQuery(nil).From("t").Where("a", 1).Where("id", "IN", inner).Where("c", 3)
			},
			expectedSQL:    "SELECT * FROM t WHERE a = :p1 AND id IN (SELECT id FROM u WHERE b = :p2) AND c = :p3",
			expectedParams: map[string]any{"p1": 1, "p2": 2, "p3": 3},
		},
		{
			name: "order by pairs",
			build: func() *SelectQuery {
				return NewSelectQuery(nil).From("t").OrderBy(Pairs{{"a", "ASC"}, {"b", "DESC"}, {"", "c"}})
			},
			expectedSQL:    "SELECT * FROM t ORDER BY a ASC, b DESC, c",
			expectedParams: map[string]any{},
		},
		{
			name: "paginate",
			build: func() *SelectQuery {
				return NewSelectQuery(nil).From("t").Paginate(3, 7)
			},
			expectedSQL:    "SELECT * FROM t LIMIT 7 OFFSET 21",
			expectedParams: map[string]any{},
		},
		{
			name: "negative limit removes the clause",
			build: func() *SelectQuery {
				return NewSelectQuery(nil).From("t").Limit(5).Offset(2).Limit(-1)
			},
			expectedSQL:    "SELECT * FROM t OFFSET 2",
			expectedParams: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := tt.build().Build()
			require.NoError(t, err)
			assert.Equal(t, tt.expectedSQL, sql)
			assert.Equal(t, tt.expectedParams, params.Map())
			assertPlaceholders(t, sql, params)
		})
	}
}

func TestSelectQuery_BuildCache(t *testing.T) {
	q := NewSelectQuery(nil).From("t").Where("a", 1)
	assert.Equal(t, stateDirty, q.state)

	first := q.ToSQL()
	assert.Equal(t, stateBuilt, q.state)
	assert.Equal(t, first, q.ToSQL())
	assert.Equal(t, q.Params(), q.Params())

	q.Where("b", 2)
	assert.Equal(t, stateDirty, q.state)
	assert.Equal(t, "SELECT * FROM t WHERE a = :p1 AND b = :p2", q.ToSQL())

	// params handed out are copies
	params := q.Params()
	params.Set("p1", 100)
	assert.Equal(t, map[string]any{"p1": 1, "p2": 2}, q.Params().Map())
}

func TestSelectQuery_Paginate(t *testing.T) {
	for _, tc := range []struct{ page, size int }{{0, 10}, {1, 10}, {3, 7}, {12, 1}} {
		q := NewSelectQuery(nil).From("t").Paginate(tc.page, tc.size)
		require.NotNil(t, q.limit)
		require.NotNil(t, q.offset)
		assert.Equal(t, tc.size, *q.limit)
		assert.Equal(t, tc.size*tc.page, *q.offset)
	}
}

func TestSelectQuery_Union(t *testing.T) {
	t.Run("two parts", func(t *testing.T) {
		q := NewSelectQuery(nil).From("t1").Union(NewSelectQuery(nil).From("t2"))
		assert.Equal(t, "(SELECT * FROM t1) UNION (SELECT * FROM t2)", q.ToSQL())
	})

	t.Run("params continue across parts", func(t *testing.T) {
		q := NewSelectQuery(nil).From("t1").Where("a", 1).
			Union(NewSelectQuery(nil).From("t2").Where("b", 2)).
			ExceptAll(NewSelectQuery(nil).From("t3").Where("c", 3))

		sql, params, err := q.Build()
		require.NoError(t, err)
		assert.Equal(t, "(SELECT * FROM t1 WHERE a = :p1) UNION (SELECT * FROM t2 WHERE b = :p2) EXCEPT ALL (SELECT * FROM t3 WHERE c = :p3)", sql)
		assert.Equal(t, []string{"p1", "p2", "p3"}, params.Names())
	})

	t.Run("ordering applies to the combined result", func(t *testing.T) {
		q := NewSelectQuery(nil).From("t1").OrderBy("x").
			UnionAll(NewSelectQuery(nil).From("t2")).
			OrderBy("id").Limit(5)
		assert.Equal(t, "(SELECT * FROM t1 ORDER BY x) UNION ALL (SELECT * FROM t2) ORDER BY id LIMIT 5", q.ToSQL())
	})

	t.Run("snapshots are isolated", func(t *testing.T) {
		other := NewSelectQuery(nil).From("t2")
		q := NewSelectQuery(nil).From("t1").Intersect(other)
		expected := q.ToSQL()

		other.Where("x", 1)
		q.touch()
		assert.Equal(t, expected, q.ToSQL())
		assert.Equal(t, "(SELECT * FROM t1) INTERSECT (SELECT * FROM t2)", expected)
	})

	t.Run("mutating the original leaves the first part unchanged", func(t *testing.T) {
		q := NewSelectQuery(nil).From("t1").Where("a", 1)
		q.Union(NewSelectQuery(nil).From("t2"))
		expected := q.ToSQL()

		q.Where("b", 2).From("t9").OrderBy("id")
		assert.Equal(t, "(SELECT * FROM t1 WHERE a = :p1) UNION (SELECT * FROM t2)", expected)
		assert.Equal(t, expected+" ORDER BY id", q.ToSQL())
	})

	t.Run("sub-queries are captured by value", func(t *testing.T) {
		sub := NewSelectQuery(nil).Select("id").From("u")
		q := NewSelectQuery(nil).From("t").Where("id", "IN", sub).
			Union(NewSelectQuery(nil).From("v").Where("id", "IN", sub))
		expected := "(SELECT * FROM t WHERE id IN (SELECT id FROM u)) UNION (SELECT * FROM v WHERE id IN (SELECT id FROM u))"
		assert.Equal(t, expected, q.ToSQL())

		sub.Where("x", 1)
		q.touch()
		assert.Equal(t, expected, q.ToSQL())
	})

	t.Run("union with itself", func(t *testing.T) {
		q := NewSelectQuery(nil).From("t1")
		q.Union(q)
		assert.Equal(t, "(SELECT * FROM t1) UNION (SELECT * FROM t1)", q.ToSQL())
	})

	t.Run("every combinator", func(t *testing.T) {
		combinators := map[string]func(*SelectQuery, *SelectQuery) *SelectQuery{
			CombineUnion:        (*SelectQuery).Union,
			CombineUnionAll:     (*SelectQuery).UnionAll,
			CombineIntersect:    (*SelectQuery).Intersect,
			CombineIntersectAll: (*SelectQuery).IntersectAll,
			CombineExcept:       (*SelectQuery).Except,
			CombineExceptAll:    (*SelectQuery).ExceptAll,
		}
		for keyword, combine := range combinators {
			q := combine(NewSelectQuery(nil).From("a"), NewSelectQuery(nil).From("b"))
			assert.Equal(t, "(SELECT * FROM a) "+keyword+" (SELECT * FROM b)", q.ToSQL())
		}
	})
}

func TestSelectQuery_Copy(t *testing.T) {
	q := NewSelectQuery(nil).From("t").Where("a", 1).OrderBy("id").Limit(3)
	c := q.Copy()
	c.Where("b", 2).Limit(9)

	assert.Equal(t, "SELECT * FROM t WHERE a = :p1 ORDER BY id LIMIT 3", q.ToSQL())
	assert.Equal(t, "SELECT * FROM t WHERE a = :p1 AND b = :p2 ORDER BY id LIMIT 9", c.ToSQL())
}

func TestCopy_SubQueries(t *testing.T) {
	sub := NewSelectQuery(nil).Select("id").From("u")

	sel := NewSelectQuery(nil).From("t").Where("id", "IN", sub).Copy()
	upd := NewUpdateQuery(nil).Table("t").Assign("n", 1).Where("id", "IN", sub).Copy()
	del := NewDeleteQuery(nil).From("t").Where("id", "IN", sub).Copy()
	ins := NewInsertQuery(nil).Into("archive").Columns("id").Select(sub).Copy()

	sub.Where("x", 1)

	assert.Equal(t, "SELECT * FROM t WHERE id IN (SELECT id FROM u)", sel.ToSQL())
	assert.Equal(t, "UPDATE t SET n = :p1 WHERE id IN (SELECT id FROM u)", upd.ToSQL())
	assert.Equal(t, "DELETE FROM t WHERE id IN (SELECT id FROM u)", del.ToSQL())
	assert.Equal(t, "INSERT INTO archive (id) SELECT id FROM u", ins.ToSQL())
}

func TestSelectQuery_WithoutExecutor(t *testing.T) {
	ctx := context.Background()
	q := NewSelectQuery(nil).From("t")

	_, err := q.Rows(ctx)
	assert.True(t, errors.Is(err, ErrConfiguration))
	_, err = q.Row(ctx)
	assert.True(t, errors.Is(err, ErrConfiguration))
	_, err = q.Column(ctx)
	assert.True(t, errors.Is(err, ErrConfiguration))
	_, err = q.Scalar(ctx)
	assert.True(t, errors.Is(err, ErrConfiguration))
	_, err = q.Exec(ctx)
	assert.True(t, errors.Is(err, ErrConfiguration))
	_, err = q.Count(ctx, nil, true)
	assert.True(t, errors.Is(err, ErrConfiguration))
	_, err = q.RowsByKey(ctx, "id", false)
	assert.True(t, errors.Is(err, ErrConfiguration))
	_, err = q.RowsByGroup(ctx, "id", false)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestSelectQuery_BuildErrorStopsExecution(t *testing.T) {
	exec := &fakeExecutor{}
	q := NewSelectQuery(exec).From("t").Where("f", "BETWEEN", []int{1})

	_, err := q.Rows(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidOperand))
	assert.Empty(t, exec.calls)
}

func TestSelectQuery_Terminals(t *testing.T) {
	ctx := context.Background()
	exec := &fakeExecutor{
		pages:  [][]record.Row{rowsOf(2, 1)},
		scalar: "x",
	}
	q := NewSelectQuery(exec).From("t").Where("a", 1)

	rows, err := q.Rows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	v, err := q.Scalar(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	require.Len(t, exec.calls, 2)
	assert.Equal(t, "SELECT * FROM t WHERE a = :p1", exec.calls[0].sql)
	assert.Equal(t, map[string]any{"p1": 1}, exec.calls[0].params.Map())
}

func TestSelectQuery_Count(t *testing.T) {
	ctx := context.Background()

	t.Run("clears non-conditional clauses on a copy", func(t *testing.T) {
		exec := &fakeExecutor{scalar: int64(42)}
		q := NewSelectQuery(exec).Select("id").From("t").Where("a", 1).GroupBy("id").OrderBy("id").Limit(10).Offset(20)
		before := q.ToSQL()

		n, err := q.Count(ctx, nil, true)
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
		assert.Equal(t, "SELECT COUNT(*) FROM t WHERE a = :p1", exec.calls[0].sql)
		assert.Equal(t, stateBuilt, q.state)
		assert.Equal(t, before, q.ToSQL())
	})

	t.Run("keeps clauses when asked", func(t *testing.T) {
		exec := &fakeExecutor{scalar: "7"}
		q := NewSelectQuery(exec).From("t").OrderBy("id").Limit(10)

		n, err := q.Count(ctx, "id", false)
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
		assert.Equal(t, "SELECT COUNT(id) FROM t ORDER BY id LIMIT 10", exec.calls[0].sql)
	})

	t.Run("wraps union chains", func(t *testing.T) {
		exec := &fakeExecutor{scalar: int64(3)}
		q := NewSelectQuery(exec).From("t1").Union(NewSelectQuery(nil).From("t2")).OrderBy("id")

		_, err := q.Count(ctx, nil, true)
		require.NoError(t, err)
		assert.Equal(t, "SELECT COUNT(*) FROM ((SELECT * FROM t1) UNION (SELECT * FROM t2)) t", exec.calls[0].sql)
	})

	t.Run("rejects non numeric results", func(t *testing.T) {
		exec := &fakeExecutor{scalar: "many"}
		_, err := NewSelectQuery(exec).From("t").Count(ctx, nil, true)
		assert.Error(t, err)
	})
}

func TestSelectQuery_RowsByKey(t *testing.T) {
	ctx := context.Background()
	rows := []record.Row{
		{"id": int64(1), "team": "a", "name": "x"},
		{"id": int64(2), "team": "b", "name": "y"},
		{"id": int64(3), "team": "a", "name": "z"},
	}

	t.Run("by key", func(t *testing.T) {
		exec := &fakeExecutor{pages: [][]record.Row{rows}}
		byKey, err := NewSelectQuery(exec).From("t").RowsByKey(ctx, "id", true)
		require.NoError(t, err)
		assert.Len(t, byKey, 3)
		assert.Equal(t, record.Row{"team": "b", "name": "y"}, byKey["2"])
	})

	t.Run("by group", func(t *testing.T) {
		exec := &fakeExecutor{pages: [][]record.Row{rows}}
		groups, err := NewSelectQuery(exec).From("t").RowsByGroup(ctx, "team", false)
		require.NoError(t, err)
		require.Len(t, groups["a"], 2)
		assert.Equal(t, "x", groups["a"][0]["name"])
		assert.Equal(t, "z", groups["a"][1]["name"])
		assert.Len(t, groups["b"], 1)
	})

	t.Run("missing key", func(t *testing.T) {
		exec := &fakeExecutor{pages: [][]record.Row{rows}}
		_, err := NewSelectQuery(exec).From("t").RowsByKey(ctx, "missing", false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUsage))
		assert.Contains(t, err.Error(), `"missing"`)
	})
}
