package query

import (
	"fmt"

	"github.com/mitranim/sqlp"
)

// Expression is a raw SQL fragment. It is inserted verbatim wherever an operand
// is accepted.
type Expression struct {
	sql    string
	params map[string]any
}

// Raw wraps sql as a verbatim fragment without parameters.
func Raw(sql string) *Expression {
	return &Expression{sql: sql}
}

// RawNamed wraps sql as a verbatim fragment carrying its own named parameters.
// Every ":name" placeholder in sql must have an entry in params and every entry
// must be referenced.
func RawNamed(sql string, params map[string]any) *Expression {
	return &Expression{sql: sql, params: params}
}

// SQL returns the fragment text.
func (e *Expression) SQL() string {
	return e.sql
}

func (e *Expression) renderFragment(b *builder) string {
	if e.params == nil {
		return e.sql
	}

	used := make(map[string]bool, len(e.params))
	tokenizer := sqlp.Tokenizer{Source: e.sql}
	for {
		node := tokenizer.Next()
		if node == nil {
			break
		}
		param, ok := node.(sqlp.NodeNamedParam)
		if !ok || used[string(param)] {
			continue
		}
		value, found := e.params[string(param)]
		if !found {
			b.fail(Err{
				Code:  ErrCodeMissingArgument,
				While: "building raw expression",
				Cause: fmt.Errorf("missing named argument %q", param),
			})
			continue
		}
		used[string(param)] = true
		b.bindNamed(string(param), value)
	}

	for _, name := range sortedKeys(e.params) {
		if !used[name] {
			b.fail(Err{
				Code:  ErrCodeUnusedArgument,
				While: "building raw expression",
				Cause: fmt.Errorf("unused named argument %q", name),
			})
		}
	}
	return e.sql
}

// Condition starts a standalone Conditional. See Conditional.With for the
// meaning of args.
func Condition(operand any, args ...any) *Conditional {
	return new(Conditional).And(operand, args...)
}

// ValueList builds a VALUES row list. Each row is a slice, a Pairs mapping or
// a map; scalar rows are treated as single-column rows.
func ValueList(rows ...any) *ValueListExpression {
	v := &ValueListExpression{}
	for _, row := range rows {
		v.Append(row)
	}
	return v
}

// Render builds a standalone fragment or statement with a fresh placeholder
// sequence.
func Render(f Fragment) (string, Params, error) {
	b := newBuilder()
	sql := f.renderFragment(b)
	return sql, b.params, b.err
}
