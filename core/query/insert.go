package query

import (
	"context"
	"database/sql/driver"
	"reflect"
	"strings"

	"github.com/alephtav/go-ddd/utils"
)

// InsertQuery builds INSERT statements:
//
//	WITH, INSERT INTO table (columns), VALUES rows or a SELECT,
//	ON CONFLICT or ON DUPLICATE KEY UPDATE, RETURNING
type InsertQuery struct {
	base
	with      *WithExpression
	table     *FromExpression
	columns   []Operand
	values    *ValueListExpression
	query     Statement
	conflict  bool
	index     []Operand
	updates   *AssignmentExpression
	returning *ReturningExpression
	errs      []error
}

// NewInsertQuery creates an empty INSERT builder.
func NewInsertQuery(executor Executor) *InsertQuery {
	q := &InsertQuery{}
	q.executor = executor
	q.render = q.renderInsert
	return q
}

// Copy returns an independent deep copy of the builder, sharing the executor.
func (q *InsertQuery) Copy() *InsertQuery {
	out := &InsertQuery{
		with:      q.with.clone(),
		table:     q.table.clone(),
		columns:   cloneOperands(q.columns),
		values:    q.values.clone(),
		conflict:  q.conflict,
		index:     cloneOperands(q.index),
		updates:   q.updates.clone(),
		returning: q.returning.clone(),
		errs:      append([]error(nil), q.errs...),
	}
	if q.query != nil {
		out.query = q.query.copyStatement()
	}
	out.executor = q.executor
	out.render = out.renderInsert
	return out
}

func (q *InsertQuery) copyStatement() Statement { return q.Copy() }

// With adds a common table expression.
func (q *InsertQuery) With(name any, query any) *InsertQuery {
	if q.with == nil {
		q.with = &WithExpression{}
	}
	q.with.Append(name, query, false)
	q.touch()
	return q
}

// Into sets the target table.
func (q *InsertQuery) Into(table any) *InsertQuery {
	return q.IntoAs(table, "")
}

// IntoAs sets the target table with an alias.
func (q *InsertQuery) IntoAs(table any, alias string) *InsertQuery {
	q.table = (&FromExpression{}).Append(table, alias)
	q.touch()
	return q
}

// Columns sets the column list. Explicit columns take precedence over the
// columns derived from keyed rows.
func (q *InsertQuery) Columns(columns ...any) *InsertQuery {
	q.columns = nil
	for _, column := range columns {
		if list, ok := OperandOf(column).(List); ok {
			q.columns = append(q.columns, list...)
			continue
		}
		q.columns = append(q.columns, OperandOf(column))
	}
	q.touch()
	return q
}

// Values adds rows. It accepts a single row (Pairs, map, struct with db tags
// or a slice of values) or a slice of such rows. Keyed rows derive the column
// list from the first row, and later rows are aligned to it by key.
func (q *InsertQuery) Values(values any) *InsertQuery {
	if q.values == nil {
		q.values = &ValueListExpression{}
	}
	rows, err := insertRows(values)
	if err != nil {
		q.errs = append(q.errs, err)
	}
	for _, row := range rows {
		q.values.Append(row)
	}
	q.touch()
	return q
}

// Select makes the statement insert the result of query.
func (q *InsertQuery) Select(query Statement) *InsertQuery {
	q.query = query
	q.touch()
	return q
}

// OnDuplicateKeyUpdate adds an ON DUPLICATE KEY UPDATE assignment. See
// AssignmentExpression.Append for the accepted forms.
func (q *InsertQuery) OnDuplicateKeyUpdate(column any, value ...any) *InsertQuery {
	q.updateExpr().Append(column, value...)
	q.touch()
	return q
}

// OnConflictDoNothing renders ON CONFLICT (indexColumns) DO NOTHING. A nil
// indexColumns leaves the conflict target out.
func (q *InsertQuery) OnConflictDoNothing(indexColumns any) *InsertQuery {
	return q.OnConflictDoUpdate(indexColumns, nil)
}

// OnConflictDoUpdate renders ON CONFLICT (indexColumns) DO UPDATE SET
// assignments. Without assignments it renders DO NOTHING.
func (q *InsertQuery) OnConflictDoUpdate(indexColumns any, assignments any) *InsertQuery {
	q.conflict = true
	q.index = nil
	if indexColumns != nil {
		switch op := OperandOf(indexColumns).(type) {
		case List:
			q.index = append(q.index, op...)
		default:
			q.index = append(q.index, op)
		}
	}
	if assignments != nil {
		q.updateExpr().Append(assignments)
	}
	q.touch()
	return q
}

func (q *InsertQuery) updateExpr() *AssignmentExpression {
	if q.updates == nil {
		q.updates = &AssignmentExpression{}
	}
	return q.updates
}

// Returning adds columns to the RETURNING clause.
func (q *InsertQuery) Returning(columns ...any) *InsertQuery {
	if q.returning == nil {
		q.returning = &ReturningExpression{}
	}
	for _, column := range columns {
		q.returning.Append(column, "")
	}
	q.touch()
	return q
}

// Insert runs the statement and returns the inserted id, or the current value
// of sequence when one is given.
func (q *InsertQuery) Insert(ctx context.Context, sequence string) (any, error) {
	sql, params, err := q.prepare("inserting rows")
	if err != nil {
		return nil, err
	}
	return q.executor.Insert(ctx, sql, params, sequence)
}

func (q *InsertQuery) renderInsert(b *builder) string {
	for _, err := range q.errs {
		b.fail(err)
	}

	var with, into, columns, source, conflict, returning string
	if !q.with.IsEmpty() {
		with = q.with.renderFragment(b)
	}
	into = "INSERT INTO"
	if !q.table.IsEmpty() {
		into += " " + q.table.renderFragment(b)
	}

	align := q.values.Keys()
	switch {
	case len(q.columns) > 0:
		columns = "(" + b.name(List(q.columns)) + ")"
		if names, ok := plainNames(q.columns); ok {
			align = names
		}
	case len(align) > 0:
		columns = "(" + strings.Join(align, ", ") + ")"
	}

	switch {
	case !q.values.IsEmpty():
		source = "VALUES " + q.values.render(b, align)
	case q.query != nil:
		source = q.query.renderStatement(b)
	}

	switch {
	case q.conflict:
		conflict = "ON CONFLICT"
		if len(q.index) > 0 {
			conflict += " (" + b.name(List(q.index)) + ")"
		}
		if q.updates.IsEmpty() {
			conflict += " DO NOTHING"
		} else {
			conflict += " DO UPDATE SET " + q.updates.renderFragment(b)
		}
	case !q.updates.IsEmpty():
		conflict = "ON DUPLICATE KEY UPDATE " + q.updates.renderFragment(b)
	}

	if !q.returning.IsEmpty() {
		returning = "RETURNING " + q.returning.renderFragment(b)
	}
	return joinSQL(with, into, columns, source, conflict, returning)
}

func plainNames(columns []Operand) ([]string, bool) {
	names := make([]string, len(columns))
	for i, column := range columns {
		v, ok := column.(Value)
		if !ok {
			return nil, false
		}
		s, ok := v.V.(string)
		if !ok {
			return nil, false
		}
		names[i] = s
	}
	return names, true
}

// insertRows splits values into rows. Structs become keyed rows through their
// db tags.
func insertRows(values any) ([]any, error) {
	if values == nil {
		return nil, nil
	}
	switch values.(type) {
	case Pairs, map[string]any:
		return []any{values}, nil
	}

	rval := reflect.ValueOf(values)
	switch rval.Kind() {
	case reflect.Slice, reflect.Array:
		if _, ok := values.([]byte); ok || rval.Len() == 0 || !isRow(rval.Index(0).Interface()) {
			return []any{values}, nil
		}
		rows := make([]any, 0, rval.Len())
		for i := 0; i < rval.Len(); i++ {
			row, err := keyedRow(rval.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return rows, nil
	}

	row, err := keyedRow(values)
	if err != nil {
		return nil, err
	}
	return []any{row}, nil
}

// isRow reports whether v is a whole row rather than a single value: a keyed
// mapping, a struct record or a nested slice.
func isRow(v any) bool {
	switch v.(type) {
	case nil, []byte:
		return false
	case Pairs, List, map[string]any:
		return true
	case Operand, Statement, Fragment:
		return false
	}
	rval := reflect.ValueOf(v)
	rtype := rval.Type()
	if rtype.Implements(valuerType) || rtype == timeType {
		return false
	}
	switch rtype.Kind() {
	case reflect.Map:
		return rtype.Key().Kind() == reflect.String
	case reflect.Slice, reflect.Array:
		return true
	case reflect.Struct:
		return true
	case reflect.Ptr:
		elem := rtype.Elem()
		return elem.Kind() == reflect.Struct && elem != timeType && !elem.Implements(valuerType) && !rtype.Implements(valuerType)
	}
	return false
}

func keyedRow(v any) (any, error) {
	if v == nil {
		return v, nil
	}
	rtype := reflect.TypeOf(v)
	if rtype.Kind() == reflect.Ptr {
		rtype = rtype.Elem()
	}
	if rtype.Kind() != reflect.Struct || rtype == timeType {
		return v, nil
	}
	if _, ok := v.(driver.Valuer); ok {
		return v, nil
	}
	columns, values, err := utils.RecordColumns(v)
	if err != nil {
		return nil, Err{Code: ErrCodeInvalidOperand, While: "reading record", Cause: err}
	}
	row := make(Pairs, len(columns))
	for i, column := range columns {
		row[i] = Pair{Key: column, Value: values[i]}
	}
	return row, nil
}
