package query

import (
	"strings"
)

const (
	connectorAnd = "AND"
	connectorOr  = "OR"
)

type conditionForm int

const (
	formUnary conditionForm = iota
	formEquals
	formBinary
)

type condition struct {
	connector string
	operand   Operand
	operator  string
	value     Operand
	form      conditionForm
}

// Conditional is a chain of predicates joined by AND/OR connectors. It backs
// WHERE, HAVING and JOIN ... ON clauses and is what predicate builders
// (func(*Conditional)) receive.
type Conditional struct {
	items []condition
	err   error
}

// And appends a predicate joined with AND.
func (c *Conditional) And(operand any, args ...any) *Conditional {
	return c.With(connectorAnd, operand, args...)
}

// Or appends a predicate joined with OR.
func (c *Conditional) Or(operand any, args ...any) *Conditional {
	return c.With(connectorOr, operand, args...)
}

// With appends a predicate joined with connector. The predicate shape depends
// on the number of args:
//
//	With("AND", "NOT deleted")            NOT deleted
//	With("AND", "f", 1)                   f = :p1
//	With("AND", "f", "IN", []int{1, 2})   f IN (:p1, :p2)
//
// A func(*Conditional) operand renders as a parenthesised group. The operator
// is inserted verbatim.
func (c *Conditional) With(connector string, operand any, args ...any) *Conditional {
	item := condition{connector: connector, operand: OperandOf(operand)}
	switch len(args) {
	case 0:
		item.form = formUnary
	case 1:
		item.form = formEquals
		item.operator = "="
		item.value = OperandOf(args[0])
	case 2:
		operator, ok := args[0].(string)
		if !ok {
			c.setErr(errInvalidOperand("operator must be a string, got %T", args[0]))
			return c
		}
		item.form = formBinary
		item.operator = operator
		item.value = OperandOf(args[1])
	default:
		c.setErr(errInvalidOperand("a condition takes at most an operator and a value, got %d arguments", len(args)))
		return c
	}
	c.items = append(c.items, item)
	return c
}

// IsEmpty reports whether no predicate has been appended.
func (c *Conditional) IsEmpty() bool {
	return c == nil || len(c.items) == 0
}

func (c *Conditional) setErr(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Conditional) clone() *Conditional {
	if c == nil {
		return nil
	}
	out := &Conditional{err: c.err, items: make([]condition, len(c.items))}
	for i, item := range c.items {
		item.operand = cloneOperand(item.operand)
		item.value = cloneOperand(item.value)
		out.items[i] = item
	}
	return out
}

func (c *Conditional) renderFragment(b *builder) string {
	if c.err != nil {
		b.fail(c.err)
	}
	var sb strings.Builder
	for i, item := range c.items {
		if i > 0 {
			sb.WriteString(" " + item.connector + " ")
		}
		sb.WriteString(item.render(b))
	}
	return sb.String()
}

func (item condition) render(b *builder) string {
	switch item.form {
	case formEquals, formBinary:
		left := b.name(item.operand)
		return left + " " + item.operator + " " + b.value(item.value, item.operator)
	}
	if pairs, ok := item.operand.(Pairs); ok {
		return b.equalities(pairs, " "+connectorAnd+" ")
	}
	return b.name(item.operand)
}

// equalities renders keyed entries as "<key> = <value>" and positional ones
// verbatim.
func (b *builder) equalities(pairs Pairs, sep string) string {
	parts := make([]string, len(pairs))
	for i, pair := range pairs {
		if pair.Key == "" {
			parts[i] = b.name(OperandOf(pair.Value))
			continue
		}
		parts[i] = pair.Key + " = " + b.value(OperandOf(pair.Value), "=")
	}
	return strings.Join(parts, sep)
}
