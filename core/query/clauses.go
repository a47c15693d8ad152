package query

import (
	"slices"
	"strconv"
	"strings"
)

type aliasedItem struct {
	operand Operand
	alias   string
}

func cloneAliased(items []aliasedItem) []aliasedItem {
	out := make([]aliasedItem, len(items))
	for i, item := range items {
		out[i] = aliasedItem{operand: cloneOperand(item.operand), alias: item.alias}
	}
	return out
}

func renderAliased(b *builder, items []aliasedItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = b.name(item.operand)
		if item.alias != "" {
			parts[i] += " " + item.alias
		}
	}
	return strings.Join(parts, ", ")
}

// FromExpression is the table list of a FROM or USING clause.
type FromExpression struct {
	items []aliasedItem
}

// Append adds a table, optionally aliased. Pairs render their keys as aliases.
func (e *FromExpression) Append(table any, alias string) *FromExpression {
	e.items = append(e.items, aliasedItem{operand: OperandOf(table), alias: alias})
	return e
}

// IsEmpty reports whether no table has been added.
func (e *FromExpression) IsEmpty() bool { return e == nil || len(e.items) == 0 }

func (e *FromExpression) clone() *FromExpression {
	if e == nil {
		return nil
	}
	return &FromExpression{items: cloneAliased(e.items)}
}

func (e *FromExpression) renderFragment(b *builder) string {
	return renderAliased(b, e.items)
}

// SelectExpression is the column list of a SELECT clause.
type SelectExpression struct {
	items []aliasedItem
}

// Append adds a column or expression, optionally aliased.
func (e *SelectExpression) Append(column any, alias string) *SelectExpression {
	e.items = append(e.items, aliasedItem{operand: OperandOf(column), alias: alias})
	return e
}

// IsEmpty reports whether no column has been added.
func (e *SelectExpression) IsEmpty() bool { return e == nil || len(e.items) == 0 }

func (e *SelectExpression) clone() *SelectExpression {
	if e == nil {
		return nil
	}
	return &SelectExpression{items: cloneAliased(e.items)}
}

func (e *SelectExpression) renderFragment(b *builder) string {
	return renderAliased(b, e.items)
}

// ReturningExpression is the column list of a RETURNING clause.
type ReturningExpression struct {
	items []aliasedItem
}

// Append adds a returned column, optionally aliased.
func (e *ReturningExpression) Append(column any, alias string) *ReturningExpression {
	e.items = append(e.items, aliasedItem{operand: OperandOf(column), alias: alias})
	return e
}

// IsEmpty reports whether no column has been added.
func (e *ReturningExpression) IsEmpty() bool { return e == nil || len(e.items) == 0 }

func (e *ReturningExpression) clone() *ReturningExpression {
	if e == nil {
		return nil
	}
	return &ReturningExpression{items: cloneAliased(e.items)}
}

func (e *ReturningExpression) renderFragment(b *builder) string {
	return renderAliased(b, e.items)
}

type joinItem struct {
	kind  string
	table Operand
	on    Operand
	using List
}

// JoinExpression is a sequence of JOIN clauses.
type JoinExpression struct {
	items []joinItem
}

// Append adds a join of the given kind ("JOIN", "LEFT JOIN", ...). The
// condition selects the join form:
//
//	nil                   no condition (CROSS JOIN, NATURAL JOIN)
//	[]string              USING (a, b)
//	func(*Conditional)    ON <conditions>
//	Pairs or map          ON k1 = v1 AND k2 = v2, both sides as names
//	anything else         ON <operand rendered as a name>
func (e *JoinExpression) Append(kind string, table any, condition any) *JoinExpression {
	item := joinItem{kind: kind, table: OperandOf(table)}
	switch c := condition.(type) {
	case nil:
	case []string:
		item.using = OperandOf(c).(List)
	case func(*Conditional):
		cond := &Conditional{}
		c(cond)
		item.on = rawOperand{fragment: cond}
	default:
		item.on = OperandOf(c)
	}
	e.items = append(e.items, item)
	return e
}

// IsEmpty reports whether no join has been added.
func (e *JoinExpression) IsEmpty() bool { return e == nil || len(e.items) == 0 }

func (e *JoinExpression) clone() *JoinExpression {
	if e == nil {
		return nil
	}
	out := &JoinExpression{items: make([]joinItem, len(e.items))}
	for i, item := range e.items {
		out.items[i] = joinItem{
			kind:  item.kind,
			table: cloneOperand(item.table),
			on:    cloneOperand(item.on),
			using: cloneOperands(item.using),
		}
	}
	return out
}

func (e *JoinExpression) renderFragment(b *builder) string {
	parts := make([]string, len(e.items))
	for i, item := range e.items {
		sql := item.kind + " " + b.name(item.table)
		switch {
		case item.using != nil:
			sql += " USING (" + b.name(item.using) + ")"
		case item.on != nil:
			sql += " ON " + renderJoinCondition(b, item.on)
		}
		parts[i] = sql
	}
	return strings.Join(parts, " ")
}

func renderJoinCondition(b *builder, on Operand) string {
	pairs, ok := on.(Pairs)
	if !ok {
		return b.name(on)
	}
	parts := make([]string, len(pairs))
	for i, pair := range pairs {
		parts[i] = b.name(OperandOf(pair.Value))
		if pair.Key != "" {
			parts[i] = pair.Key + " = " + parts[i]
		}
	}
	return strings.Join(parts, " "+connectorAnd+" ")
}

// GroupExpression is the column list of a GROUP BY clause.
type GroupExpression struct {
	items []Operand
}

// Append adds grouping columns.
func (e *GroupExpression) Append(columns ...any) *GroupExpression {
	e.items = append(e.items, operands(columns)...)
	return e
}

// IsEmpty reports whether no grouping column has been added.
func (e *GroupExpression) IsEmpty() bool { return e == nil || len(e.items) == 0 }

func (e *GroupExpression) clone() *GroupExpression {
	if e == nil {
		return nil
	}
	return &GroupExpression{items: cloneOperands(e.items)}
}

func (e *GroupExpression) renderFragment(b *builder) string {
	parts := make([]string, len(e.items))
	for i, item := range e.items {
		parts[i] = b.name(item)
	}
	return strings.Join(parts, ", ")
}

type orderItem struct {
	column    Operand
	direction string
}

// OrderExpression is the column list of an ORDER BY clause.
type OrderExpression struct {
	items []orderItem
}

// Append adds a sort column with an optional direction. A Pairs or map column
// lists several columns at once, keyed by column with the direction as value.
func (e *OrderExpression) Append(column any, direction string) *OrderExpression {
	op := OperandOf(column)
	if pairs, ok := op.(Pairs); ok {
		for _, pair := range pairs {
			if pair.Key == "" {
				e.items = append(e.items, orderItem{column: OperandOf(pair.Value)})
				continue
			}
			e.items = append(e.items, orderItem{column: Value{V: pair.Key}, direction: text(pair.Value)})
		}
		return e
	}
	e.items = append(e.items, orderItem{column: op, direction: direction})
	return e
}

// IsEmpty reports whether no sort column has been added.
func (e *OrderExpression) IsEmpty() bool { return e == nil || len(e.items) == 0 }

func (e *OrderExpression) clone() *OrderExpression {
	if e == nil {
		return nil
	}
	out := &OrderExpression{items: make([]orderItem, len(e.items))}
	for i, item := range e.items {
		out.items[i] = orderItem{column: cloneOperand(item.column), direction: item.direction}
	}
	return out
}

func (e *OrderExpression) renderFragment(b *builder) string {
	parts := make([]string, len(e.items))
	for i, item := range e.items {
		parts[i] = b.name(item.column)
		if item.direction != "" {
			parts[i] += " " + item.direction
		}
	}
	return strings.Join(parts, ", ")
}

type assignment struct {
	column Operand
	value  Operand
	bare   bool
}

// AssignmentExpression is the assignment list of SET, ON CONFLICT DO UPDATE
// SET and ON DUPLICATE KEY UPDATE clauses.
type AssignmentExpression struct {
	items []assignment
}

// Append adds "column = value". Called without a value, a Pairs or map column
// adds one assignment per keyed entry and any other column is inserted
// verbatim ("count = count + 1").
func (e *AssignmentExpression) Append(column any, value ...any) *AssignmentExpression {
	if len(value) > 0 {
		e.items = append(e.items, assignment{column: OperandOf(column), value: OperandOf(value[0])})
		return e
	}
	op := OperandOf(column)
	if pairs, ok := op.(Pairs); ok {
		for _, pair := range pairs {
			if pair.Key == "" {
				e.items = append(e.items, assignment{column: OperandOf(pair.Value), bare: true})
				continue
			}
			e.items = append(e.items, assignment{column: Value{V: pair.Key}, value: OperandOf(pair.Value)})
		}
		return e
	}
	e.items = append(e.items, assignment{column: op, bare: true})
	return e
}

// IsEmpty reports whether no assignment has been added.
func (e *AssignmentExpression) IsEmpty() bool { return e == nil || len(e.items) == 0 }

func (e *AssignmentExpression) clone() *AssignmentExpression {
	if e == nil {
		return nil
	}
	out := &AssignmentExpression{items: make([]assignment, len(e.items))}
	for i, item := range e.items {
		out.items[i] = assignment{column: cloneOperand(item.column), value: cloneOperand(item.value), bare: item.bare}
	}
	return out
}

func (e *AssignmentExpression) renderFragment(b *builder) string {
	parts := make([]string, len(e.items))
	for i, item := range e.items {
		if item.bare {
			parts[i] = b.name(item.column)
			continue
		}
		parts[i] = b.name(item.column) + " = " + b.value(item.value, "=")
	}
	return strings.Join(parts, ", ")
}

type valueRow struct {
	keys   []string
	values []Operand
}

func (r valueRow) lookup(key string) Operand {
	for i, k := range r.keys {
		if k == key {
			return r.values[i]
		}
	}
	return Null
}

// ValueListExpression is the row list of a VALUES clause.
type ValueListExpression struct {
	rows []valueRow
}

// Append adds a row. Pairs and maps make keyed rows whose keys may serve as
// column names; slices make positional rows; anything else is a one-value row.
func (e *ValueListExpression) Append(row any) *ValueListExpression {
	switch op := OperandOf(row).(type) {
	case Pairs:
		r := valueRow{}
		for _, pair := range op {
			r.keys = append(r.keys, pair.Key)
			r.values = append(r.values, OperandOf(pair.Value))
		}
		e.rows = append(e.rows, r)
	case List:
		e.rows = append(e.rows, valueRow{values: op})
	default:
		e.rows = append(e.rows, valueRow{values: []Operand{op}})
	}
	return e
}

// IsEmpty reports whether no row has been added.
func (e *ValueListExpression) IsEmpty() bool { return e == nil || len(e.rows) == 0 }

// Keys returns the keys of the first row when it is keyed.
func (e *ValueListExpression) Keys() []string {
	if e.IsEmpty() || !e.rows[0].keyed() {
		return nil
	}
	return append([]string(nil), e.rows[0].keys...)
}

func (r valueRow) keyed() bool {
	for _, k := range r.keys {
		if k != "" {
			return true
		}
	}
	return false
}

func (e *ValueListExpression) clone() *ValueListExpression {
	if e == nil {
		return nil
	}
	out := &ValueListExpression{rows: make([]valueRow, len(e.rows))}
	for i, row := range e.rows {
		out.rows[i] = valueRow{keys: append([]string(nil), row.keys...), values: cloneOperands(row.values)}
	}
	return out
}

func (e *ValueListExpression) renderFragment(b *builder) string {
	return e.render(b, nil)
}

// render writes the rows. When columns is set, keyed rows are aligned to it
// and keys missing from a row render as NULL. A key outside columns is an
// invalid operand.
func (e *ValueListExpression) render(b *builder, columns []string) string {
	rows := make([]string, len(e.rows))
	for i, row := range e.rows {
		values := row.values
		if columns != nil && row.keyed() {
			for _, key := range row.keys {
				if key != "" && !slices.Contains(columns, key) {
					b.fail(errInvalidOperand("row %d has column %q outside the column list %v", i+1, key, columns))
				}
			}
			values = make([]Operand, len(columns))
			for j, column := range columns {
				values[j] = row.lookup(column)
			}
		}
		parts := make([]string, len(values))
		for j, v := range values {
			parts[j] = b.value(v, "")
		}
		rows[i] = "(" + strings.Join(parts, ", ") + ")"
	}
	return strings.Join(rows, ", ")
}

type cte struct {
	name  Operand
	query Operand
}

// WithExpression is the list of common table expressions of a WITH clause.
type WithExpression struct {
	items     []cte
	recursive bool
}

// Append adds "name AS (query)". The name may carry a column list
// ("tree(id, parent)"). Any recursive entry makes the whole clause
// WITH RECURSIVE.
func (e *WithExpression) Append(name any, query any, recursive bool) *WithExpression {
	e.items = append(e.items, cte{name: OperandOf(name), query: OperandOf(query)})
	e.recursive = e.recursive || recursive
	return e
}

// IsEmpty reports whether no common table expression has been added.
func (e *WithExpression) IsEmpty() bool { return e == nil || len(e.items) == 0 }

func (e *WithExpression) clone() *WithExpression {
	if e == nil {
		return nil
	}
	out := &WithExpression{items: make([]cte, len(e.items)), recursive: e.recursive}
	for i, item := range e.items {
		out.items[i] = cte{name: cloneOperand(item.name), query: cloneOperand(item.query)}
	}
	return out
}

func (e *WithExpression) renderFragment(b *builder) string {
	parts := make([]string, len(e.items))
	for i, item := range e.items {
		body := b.name(item.query)
		if _, ok := item.query.(subQuery); !ok {
			body = "(" + body + ")"
		}
		parts[i] = b.name(item.name) + " AS " + body
	}
	sql := "WITH "
	if e.recursive {
		sql += "RECURSIVE "
	}
	return sql + strings.Join(parts, ", ")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
