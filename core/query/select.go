package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/alephtav/go-ddd/core/record"
)

// Combinators of a union chain.
const (
	CombineUnion        = "UNION"
	CombineUnionAll     = "UNION ALL"
	CombineIntersect    = "INTERSECT"
	CombineIntersectAll = "INTERSECT ALL"
	CombineExcept       = "EXCEPT"
	CombineExceptAll    = "EXCEPT ALL"
)

type unionPart struct {
	combinator string
	query      *SelectQuery
}

// SelectQuery builds SELECT statements. Clauses are rendered in the order
//
//	WITH, SELECT list or VALUES, FROM, JOIN, WHERE, GROUP BY, HAVING,
//	ORDER BY, LIMIT, OFFSET
//
// regardless of the order in which the builder methods were called.
type SelectQuery struct {
	base
	with    *WithExpression
	values  *ValueListExpression
	columns *SelectExpression
	from    *FromExpression
	join    *JoinExpression
	where   *Conditional
	group   *GroupExpression
	having  *Conditional
	order   *OrderExpression
	limit   *int
	offset  *int
	unions  []unionPart
}

// NewSelectQuery creates an empty SELECT builder. The executor may be nil when
// the statement is only rendered.
func NewSelectQuery(executor Executor) *SelectQuery {
	q := &SelectQuery{}
	q.executor = executor
	q.render = q.renderSelect
	return q
}

// Copy returns an independent deep copy of the builder, sharing the executor.
func (q *SelectQuery) Copy() *SelectQuery {
	out := &SelectQuery{
		with:    q.with.clone(),
		values:  q.values.clone(),
		columns: q.columns.clone(),
		from:    q.from.clone(),
		join:    q.join.clone(),
		where:   q.where.clone(),
		group:   q.group.clone(),
		having:  q.having.clone(),
		order:   q.order.clone(),
		limit:   copyInt(q.limit),
		offset:  copyInt(q.offset),
		unions:  append([]unionPart(nil), q.unions...),
	}
	out.executor = q.executor
	out.render = out.renderSelect
	return out
}

func (q *SelectQuery) copyStatement() Statement { return q.Copy() }

// With adds a common table expression.
func (q *SelectQuery) With(name any, query any) *SelectQuery {
	q.withExpr().Append(name, query, false)
	q.touch()
	return q
}

// WithRecursive adds a recursive common table expression.
func (q *SelectQuery) WithRecursive(name any, query any) *SelectQuery {
	q.withExpr().Append(name, query, true)
	q.touch()
	return q
}

func (q *SelectQuery) withExpr() *WithExpression {
	if q.with == nil {
		q.with = &WithExpression{}
	}
	return q.with
}

// Values turns the statement into a VALUES list. It takes the place of the
// SELECT list.
func (q *SelectQuery) Values(rows ...any) *SelectQuery {
	if q.values == nil {
		q.values = &ValueListExpression{}
	}
	for _, row := range rows {
		q.values.Append(row)
	}
	q.touch()
	return q
}

// Select adds columns to the SELECT list. Pairs and maps alias their values
// with their keys. Without any column the list renders as "*".
func (q *SelectQuery) Select(columns ...any) *SelectQuery {
	for _, column := range columns {
		q.selectExpr().Append(column, "")
	}
	q.touch()
	return q
}

// SelectAs adds an aliased column to the SELECT list.
func (q *SelectQuery) SelectAs(column any, alias string) *SelectQuery {
	q.selectExpr().Append(column, alias)
	q.touch()
	return q
}

func (q *SelectQuery) selectExpr() *SelectExpression {
	if q.columns == nil {
		q.columns = &SelectExpression{}
	}
	return q.columns
}

// From adds a table, a sub-query or a list of tables to the FROM clause.
func (q *SelectQuery) From(table any) *SelectQuery {
	return q.FromAs(table, "")
}

// FromAs adds an aliased table or sub-query to the FROM clause.
func (q *SelectQuery) FromAs(table any, alias string) *SelectQuery {
	if q.from == nil {
		q.from = &FromExpression{}
	}
	q.from.Append(table, alias)
	q.touch()
	return q
}

func (q *SelectQuery) addJoin(kind string, table any, condition any) *SelectQuery {
	if q.join == nil {
		q.join = &JoinExpression{}
	}
	q.join.Append(kind, table, condition)
	q.touch()
	return q
}

// Join adds a JOIN. See JoinExpression.Append for the accepted conditions.
func (q *SelectQuery) Join(table any, condition any) *SelectQuery {
	return q.addJoin("JOIN", table, condition)
}

// InnerJoin adds an INNER JOIN.
func (q *SelectQuery) InnerJoin(table any, condition any) *SelectQuery {
	return q.addJoin("INNER JOIN", table, condition)
}

// LeftJoin adds a LEFT JOIN.
func (q *SelectQuery) LeftJoin(table any, condition any) *SelectQuery {
	return q.addJoin("LEFT JOIN", table, condition)
}

// RightJoin adds a RIGHT JOIN.
func (q *SelectQuery) RightJoin(table any, condition any) *SelectQuery {
	return q.addJoin("RIGHT JOIN", table, condition)
}

// FullJoin adds a FULL JOIN.
func (q *SelectQuery) FullJoin(table any, condition any) *SelectQuery {
	return q.addJoin("FULL JOIN", table, condition)
}

// CrossJoin adds a CROSS JOIN.
func (q *SelectQuery) CrossJoin(table any) *SelectQuery {
	return q.addJoin("CROSS JOIN", table, nil)
}

// NaturalJoin adds a NATURAL JOIN.
func (q *SelectQuery) NaturalJoin(table any) *SelectQuery {
	return q.addJoin("NATURAL JOIN", table, nil)
}

// Where adds a WHERE predicate joined with AND. See Conditional.With for the
// accepted forms.
func (q *SelectQuery) Where(operand any, args ...any) *SelectQuery {
	return q.AndWhere(operand, args...)
}

// AndWhere adds a WHERE predicate joined with AND.
func (q *SelectQuery) AndWhere(operand any, args ...any) *SelectQuery {
	q.conditions().And(operand, args...)
	q.touch()
	return q
}

// OrWhere adds a WHERE predicate joined with OR.
func (q *SelectQuery) OrWhere(operand any, args ...any) *SelectQuery {
	q.conditions().Or(operand, args...)
	q.touch()
	return q
}

func (q *SelectQuery) conditions() *Conditional {
	if q.where == nil {
		q.where = &Conditional{}
	}
	return q.where
}

// GroupBy adds grouping columns.
func (q *SelectQuery) GroupBy(columns ...any) *SelectQuery {
	if q.group == nil {
		q.group = &GroupExpression{}
	}
	q.group.Append(columns...)
	q.touch()
	return q
}

// Having adds a HAVING predicate joined with AND.
func (q *SelectQuery) Having(operand any, args ...any) *SelectQuery {
	return q.AndHaving(operand, args...)
}

// AndHaving adds a HAVING predicate joined with AND.
func (q *SelectQuery) AndHaving(operand any, args ...any) *SelectQuery {
	q.havingExpr().And(operand, args...)
	q.touch()
	return q
}

// OrHaving adds a HAVING predicate joined with OR.
func (q *SelectQuery) OrHaving(operand any, args ...any) *SelectQuery {
	q.havingExpr().Or(operand, args...)
	q.touch()
	return q
}

func (q *SelectQuery) havingExpr() *Conditional {
	if q.having == nil {
		q.having = &Conditional{}
	}
	return q.having
}

// OrderBy adds a sort column with an optional direction ("ASC", "DESC",
// "DESC NULLS LAST").
func (q *SelectQuery) OrderBy(column any, direction ...string) *SelectQuery {
	if q.order == nil {
		q.order = &OrderExpression{}
	}
	q.order.Append(column, strings.Join(direction, " "))
	q.touch()
	return q
}

// Limit sets the LIMIT clause. A negative limit removes it.
func (q *SelectQuery) Limit(limit int) *SelectQuery {
	q.limit = optionalInt(limit)
	q.touch()
	return q
}

// Offset sets the OFFSET clause. A negative offset removes it.
func (q *SelectQuery) Offset(offset int) *SelectQuery {
	q.offset = optionalInt(offset)
	q.touch()
	return q
}

// Paginate sets LIMIT to size and OFFSET to size*page. Pages start at zero.
func (q *SelectQuery) Paginate(page, size int) *SelectQuery {
	q.limit = optionalInt(size)
	q.offset = optionalInt(size * page)
	q.touch()
	return q
}

// Union combines the statement with other using UNION.
func (q *SelectQuery) Union(other *SelectQuery) *SelectQuery {
	return q.combine(CombineUnion, other)
}

// UnionAll combines the statement with other using UNION ALL.
func (q *SelectQuery) UnionAll(other *SelectQuery) *SelectQuery {
	return q.combine(CombineUnionAll, other)
}

// Intersect combines the statement with other using INTERSECT.
func (q *SelectQuery) Intersect(other *SelectQuery) *SelectQuery {
	return q.combine(CombineIntersect, other)
}

// IntersectAll combines the statement with other using INTERSECT ALL.
func (q *SelectQuery) IntersectAll(other *SelectQuery) *SelectQuery {
	return q.combine(CombineIntersectAll, other)
}

// Except combines the statement with other using EXCEPT.
func (q *SelectQuery) Except(other *SelectQuery) *SelectQuery {
	return q.combine(CombineExcept, other)
}

// ExceptAll combines the statement with other using EXCEPT ALL.
func (q *SelectQuery) ExceptAll(other *SelectQuery) *SelectQuery {
	return q.combine(CombineExceptAll, other)
}

// combine starts or extends a union chain. The first call moves the current
// clauses into a frozen first part and resets the builder; ORDER BY, LIMIT,
// OFFSET and WITH set afterwards apply to the combined result. Both the
// receiver's clauses and other are copied, so later changes to either do not
// reach the chain.
func (q *SelectQuery) combine(combinator string, other *SelectQuery) *SelectQuery {
	snapshot := other.Copy()
	snapshot.executor = nil
	if len(q.unions) == 0 {
		first := q.Copy()
		first.executor = nil
		*q = SelectQuery{base: base{executor: q.executor}}
		q.render = q.renderSelect
		q.unions = append(q.unions, unionPart{query: first})
	}
	q.unions = append(q.unions, unionPart{combinator: combinator, query: snapshot})
	q.touch()
	return q
}

func (q *SelectQuery) renderSelect(b *builder) string {
	var with string
	if !q.with.IsEmpty() {
		with = q.with.renderFragment(b)
	}

	if len(q.unions) > 0 {
		parts := make([]string, 0, 2*len(q.unions))
		for _, part := range q.unions {
			if part.combinator != "" {
				parts = append(parts, part.combinator)
			}
			parts = append(parts, "("+part.query.renderSelect(b)+")")
		}
		return joinSQL(with, strings.Join(parts, " "), q.renderTail(b))
	}

	var head string
	switch {
	case !q.values.IsEmpty():
		head = "VALUES " + q.values.renderFragment(b)
	case !q.columns.IsEmpty():
		head = "SELECT " + q.columns.renderFragment(b)
	default:
		head = "SELECT *"
	}

	var from, join, where, group, having string
	if !q.from.IsEmpty() {
		from = "FROM " + q.from.renderFragment(b)
	}
	if !q.join.IsEmpty() {
		join = q.join.renderFragment(b)
	}
	where = renderPredicate(b, "WHERE", q.where)
	if !q.group.IsEmpty() {
		group = "GROUP BY " + q.group.renderFragment(b)
	}
	having = renderPredicate(b, "HAVING", q.having)
	return joinSQL(with, head, from, join, where, group, having, q.renderTail(b))
}

func (q *SelectQuery) renderTail(b *builder) string {
	var order, limit, offset string
	if !q.order.IsEmpty() {
		order = "ORDER BY " + q.order.renderFragment(b)
	}
	if q.limit != nil {
		limit = "LIMIT " + itoa(*q.limit)
	}
	if q.offset != nil {
		offset = "OFFSET " + itoa(*q.offset)
	}
	return joinSQL(order, limit, offset)
}

// Count returns the number of rows matched by the statement, counting column
// (nil means "*"). When clearNonConditional is set, LIMIT, OFFSET, ORDER BY and
// GROUP BY are left out. The count runs on a copy; the builder is unchanged.
func (q *SelectQuery) Count(ctx context.Context, column any, clearNonConditional bool) (int64, error) {
	if q.executor == nil {
		return 0, errNoExecutor("counting rows")
	}
	if column == nil {
		column = "*"
	}
	counter := q.Copy()
	if clearNonConditional {
		counter.limit, counter.offset, counter.order, counter.group = nil, nil, nil, nil
	}

	var stmt *SelectQuery
	if len(counter.unions) > 0 {
		stmt = NewSelectQuery(q.executor).FromAs(counter, "t")
	} else {
		stmt = counter
		stmt.columns = nil
		stmt.values = nil
	}
	count := &SelectExpression{}
	count.items = append(count.items, aliasedItem{operand: countOperand(column)})
	stmt.columns = count
	stmt.touch()

	value, err := stmt.Scalar(ctx)
	if err != nil {
		return 0, err
	}
	n, ok := record.ToInt64(value)
	if !ok {
		return 0, fmt.Errorf("unexpected count value %v (%T)", value, value)
	}
	return n, nil
}

func countOperand(column any) Operand {
	op := OperandOf(column)
	return rawOperand{fragment: countFragment{column: op}}
}

type countFragment struct {
	column Operand
}

func (f countFragment) renderFragment(b *builder) string {
	return "COUNT(" + b.name(f.column) + ")"
}

// RowsByKey runs the statement and indexes the rows by the value of key. A
// later row with the same key replaces an earlier one. With removeKey the key
// column is dropped from the returned rows.
func (q *SelectQuery) RowsByKey(ctx context.Context, key string, removeKey bool) (map[string]record.Row, error) {
	rows, err := q.Rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]record.Row, len(rows))
	for _, row := range rows {
		k, err := rowKey(row, key)
		if err != nil {
			return nil, err
		}
		if removeKey {
			row = row.Without(key)
		}
		out[k] = row
	}
	return out, nil
}

// RowsByGroup runs the statement and groups the rows by the value of key,
// keeping their order within each group.
func (q *SelectQuery) RowsByGroup(ctx context.Context, key string, removeKey bool) (map[string][]record.Row, error) {
	rows, err := q.Rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]record.Row)
	for _, row := range rows {
		k, err := rowKey(row, key)
		if err != nil {
			return nil, err
		}
		if removeKey {
			row = row.Without(key)
		}
		out[k] = append(out[k], row)
	}
	return out, nil
}

func rowKey(row record.Row, key string) (string, error) {
	if !row.Has(key) {
		return "", Err{
			Code:  ErrCodeUsage,
			While: "indexing rows",
			Cause: fmt.Errorf("key %q is not a column of the result set", key),
		}
	}
	return row.String(key), nil
}

func optionalInt(n int) *int {
	if n < 0 {
		return nil
	}
	return &n
}

func copyInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
