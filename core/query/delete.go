package query

import "strings"

// DeleteQuery builds DELETE statements:
//
//	WITH, DELETE FROM table, USING, JOIN, WHERE, ORDER BY, LIMIT, RETURNING
type DeleteQuery struct {
	base
	with      *WithExpression
	from      *FromExpression
	using     *FromExpression
	join      *JoinExpression
	where     *Conditional
	order     *OrderExpression
	limit     *int
	returning *ReturningExpression
}

// NewDeleteQuery creates an empty DELETE builder.
func NewDeleteQuery(executor Executor) *DeleteQuery {
	q := &DeleteQuery{}
	q.executor = executor
	q.render = q.renderDelete
	return q
}

// Copy returns an independent deep copy of the builder, sharing the executor.
func (q *DeleteQuery) Copy() *DeleteQuery {
	out := &DeleteQuery{
		with:      q.with.clone(),
		from:      q.from.clone(),
		using:     q.using.clone(),
		join:      q.join.clone(),
		where:     q.where.clone(),
		order:     q.order.clone(),
		limit:     copyInt(q.limit),
		returning: q.returning.clone(),
	}
	out.executor = q.executor
	out.render = out.renderDelete
	return out
}

func (q *DeleteQuery) copyStatement() Statement { return q.Copy() }

// With adds a common table expression.
func (q *DeleteQuery) With(name any, query any) *DeleteQuery {
	if q.with == nil {
		q.with = &WithExpression{}
	}
	q.with.Append(name, query, false)
	q.touch()
	return q
}

// From adds a table to delete from.
func (q *DeleteQuery) From(table any) *DeleteQuery {
	return q.FromAs(table, "")
}

// FromAs adds an aliased table to delete from.
func (q *DeleteQuery) FromAs(table any, alias string) *DeleteQuery {
	if q.from == nil {
		q.from = &FromExpression{}
	}
	q.from.Append(table, alias)
	q.touch()
	return q
}

// Using adds a table to the USING clause.
func (q *DeleteQuery) Using(table any) *DeleteQuery {
	if q.using == nil {
		q.using = &FromExpression{}
	}
	q.using.Append(table, "")
	q.touch()
	return q
}

func (q *DeleteQuery) addJoin(kind string, table any, condition any) *DeleteQuery {
	if q.join == nil {
		q.join = &JoinExpression{}
	}
	q.join.Append(kind, table, condition)
	q.touch()
	return q
}

// Join adds a JOIN.
func (q *DeleteQuery) Join(table any, condition any) *DeleteQuery {
	return q.addJoin("JOIN", table, condition)
}

// InnerJoin adds an INNER JOIN.
func (q *DeleteQuery) InnerJoin(table any, condition any) *DeleteQuery {
	return q.addJoin("INNER JOIN", table, condition)
}

// LeftJoin adds a LEFT JOIN.
func (q *DeleteQuery) LeftJoin(table any, condition any) *DeleteQuery {
	return q.addJoin("LEFT JOIN", table, condition)
}

// Where adds a WHERE predicate joined with AND.
func (q *DeleteQuery) Where(operand any, args ...any) *DeleteQuery {
	return q.AndWhere(operand, args...)
}

// AndWhere adds a WHERE predicate joined with AND.
func (q *DeleteQuery) AndWhere(operand any, args ...any) *DeleteQuery {
	q.conditions().And(operand, args...)
	q.touch()
	return q
}

// OrWhere adds a WHERE predicate joined with OR.
func (q *DeleteQuery) OrWhere(operand any, args ...any) *DeleteQuery {
	q.conditions().Or(operand, args...)
	q.touch()
	return q
}

func (q *DeleteQuery) conditions() *Conditional {
	if q.where == nil {
		q.where = &Conditional{}
	}
	return q.where
}

// OrderBy adds a sort column.
func (q *DeleteQuery) OrderBy(column any, direction ...string) *DeleteQuery {
	if q.order == nil {
		q.order = &OrderExpression{}
	}
	q.order.Append(column, strings.Join(direction, " "))
	q.touch()
	return q
}

// Limit sets the LIMIT clause. A negative limit removes it.
func (q *DeleteQuery) Limit(limit int) *DeleteQuery {
	q.limit = optionalInt(limit)
	q.touch()
	return q
}

// Returning adds columns to the RETURNING clause.
func (q *DeleteQuery) Returning(columns ...any) *DeleteQuery {
	if q.returning == nil {
		q.returning = &ReturningExpression{}
	}
	for _, column := range columns {
		q.returning.Append(column, "")
	}
	q.touch()
	return q
}

func (q *DeleteQuery) renderDelete(b *builder) string {
	var with, using, join, where, order, limit, returning string
	if !q.with.IsEmpty() {
		with = q.with.renderFragment(b)
	}
	head := "DELETE FROM"
	if !q.from.IsEmpty() {
		head += " " + q.from.renderFragment(b)
	}
	if !q.using.IsEmpty() {
		using = "USING " + q.using.renderFragment(b)
	}
	if !q.join.IsEmpty() {
		join = q.join.renderFragment(b)
	}
	where = renderPredicate(b, "WHERE", q.where)
	if !q.order.IsEmpty() {
		order = "ORDER BY " + q.order.renderFragment(b)
	}
	if q.limit != nil {
		limit = "LIMIT " + itoa(*q.limit)
	}
	if !q.returning.IsEmpty() {
		returning = "RETURNING " + q.returning.renderFragment(b)
	}
	return joinSQL(with, head, using, join, where, order, limit, returning)
}
