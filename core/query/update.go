package query

import "strings"

// UpdateQuery builds UPDATE statements:
//
//	WITH, UPDATE table, JOIN, SET, WHERE, ORDER BY, LIMIT, RETURNING
type UpdateQuery struct {
	base
	with      *WithExpression
	table     *FromExpression
	join      *JoinExpression
	set       *AssignmentExpression
	where     *Conditional
	order     *OrderExpression
	limit     *int
	returning *ReturningExpression
	errs      []error
}

// NewUpdateQuery creates an empty UPDATE builder.
func NewUpdateQuery(executor Executor) *UpdateQuery {
	q := &UpdateQuery{}
	q.executor = executor
	q.render = q.renderUpdate
	return q
}

// Copy returns an independent deep copy of the builder, sharing the executor.
func (q *UpdateQuery) Copy() *UpdateQuery {
	out := &UpdateQuery{
		with:      q.with.clone(),
		table:     q.table.clone(),
		join:      q.join.clone(),
		set:       q.set.clone(),
		where:     q.where.clone(),
		order:     q.order.clone(),
		limit:     copyInt(q.limit),
		returning: q.returning.clone(),
		errs:      append([]error(nil), q.errs...),
	}
	out.executor = q.executor
	out.render = out.renderUpdate
	return out
}

func (q *UpdateQuery) copyStatement() Statement { return q.Copy() }

// With adds a common table expression.
func (q *UpdateQuery) With(name any, query any) *UpdateQuery {
	if q.with == nil {
		q.with = &WithExpression{}
	}
	q.with.Append(name, query, false)
	q.touch()
	return q
}

// Table adds a target table.
func (q *UpdateQuery) Table(table any) *UpdateQuery {
	return q.TableAs(table, "")
}

// TableAs adds an aliased target table.
func (q *UpdateQuery) TableAs(table any, alias string) *UpdateQuery {
	if q.table == nil {
		q.table = &FromExpression{}
	}
	q.table.Append(table, alias)
	q.touch()
	return q
}

func (q *UpdateQuery) addJoin(kind string, table any, condition any) *UpdateQuery {
	if q.join == nil {
		q.join = &JoinExpression{}
	}
	q.join.Append(kind, table, condition)
	q.touch()
	return q
}

// Join adds a JOIN.
func (q *UpdateQuery) Join(table any, condition any) *UpdateQuery {
	return q.addJoin("JOIN", table, condition)
}

// InnerJoin adds an INNER JOIN.
func (q *UpdateQuery) InnerJoin(table any, condition any) *UpdateQuery {
	return q.addJoin("INNER JOIN", table, condition)
}

// LeftJoin adds a LEFT JOIN.
func (q *UpdateQuery) LeftJoin(table any, condition any) *UpdateQuery {
	return q.addJoin("LEFT JOIN", table, condition)
}

// Assign adds SET assignments. See AssignmentExpression.Append.
func (q *UpdateQuery) Assign(column any, value ...any) *UpdateQuery {
	if q.set == nil {
		q.set = &AssignmentExpression{}
	}
	q.set.Append(column, value...)
	q.touch()
	return q
}

// AssignRecord adds one assignment per db-tagged field of record.
func (q *UpdateQuery) AssignRecord(record any) *UpdateQuery {
	row, err := keyedRow(record)
	if err != nil {
		q.errs = append(q.errs, err)
		q.touch()
		return q
	}
	return q.Assign(row)
}

// Where adds a WHERE predicate joined with AND.
func (q *UpdateQuery) Where(operand any, args ...any) *UpdateQuery {
	return q.AndWhere(operand, args...)
}

// AndWhere adds a WHERE predicate joined with AND.
func (q *UpdateQuery) AndWhere(operand any, args ...any) *UpdateQuery {
	q.conditions().And(operand, args...)
	q.touch()
	return q
}

// OrWhere adds a WHERE predicate joined with OR.
func (q *UpdateQuery) OrWhere(operand any, args ...any) *UpdateQuery {
	q.conditions().Or(operand, args...)
	q.touch()
	return q
}

func (q *UpdateQuery) conditions() *Conditional {
	if q.where == nil {
		q.where = &Conditional{}
	}
	return q.where
}

// OrderBy adds a sort column.
func (q *UpdateQuery) OrderBy(column any, direction ...string) *UpdateQuery {
	if q.order == nil {
		q.order = &OrderExpression{}
	}
	q.order.Append(column, strings.Join(direction, " "))
	q.touch()
	return q
}

// Limit sets the LIMIT clause. A negative limit removes it.
func (q *UpdateQuery) Limit(limit int) *UpdateQuery {
	q.limit = optionalInt(limit)
	q.touch()
	return q
}

// Returning adds columns to the RETURNING clause.
func (q *UpdateQuery) Returning(columns ...any) *UpdateQuery {
	if q.returning == nil {
		q.returning = &ReturningExpression{}
	}
	for _, column := range columns {
		q.returning.Append(column, "")
	}
	q.touch()
	return q
}

func (q *UpdateQuery) renderUpdate(b *builder) string {
	for _, err := range q.errs {
		b.fail(err)
	}

	var with, join, set, where, order, limit, returning string
	if !q.with.IsEmpty() {
		with = q.with.renderFragment(b)
	}
	head := "UPDATE"
	if !q.table.IsEmpty() {
		head += " " + q.table.renderFragment(b)
	}
	if !q.join.IsEmpty() {
		join = q.join.renderFragment(b)
	}
	if !q.set.IsEmpty() {
		set = "SET " + q.set.renderFragment(b)
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
	return joinSQL(with, head, join, set, where, order, limit, returning)
}

// renderPredicate renders "<keyword> <conditions>", or nothing when no
// condition was added.
func renderPredicate(b *builder, keyword string, cond *Conditional) string {
	if cond == nil {
		return ""
	}
	if cond.IsEmpty() {
		if cond.err != nil {
			b.fail(cond.err)
		}
		return ""
	}
	return keyword + " " + cond.renderFragment(b)
}
