package query

import (
	"fmt"
	"strings"
)

// name renders an operand in name position: table and column references,
// aliases, raw text and nested groups.
func (b *builder) name(op Operand) string {
	switch o := op.(type) {
	case nil, nullOperand:
		return "NULL"
	case subQuery:
		return "(" + o.stmt.renderStatement(b) + ")"
	case rawOperand:
		return o.fragment.renderFragment(b)
	case group:
		return "(" + o.cond.renderFragment(b) + ")"
	case List:
		parts := make([]string, len(o))
		for i, item := range o {
			parts[i] = b.name(item)
		}
		return strings.Join(parts, ", ")
	case Pairs:
		return b.aliased(o)
	case Value:
		return text(o.V)
	}
	b.fail(errInvalidOperand("unknown operand %T", op))
	return ""
}

// aliased renders a mapping as "<value> <alias>" for keyed entries and
// "<value>" for positional ones, joined with commas.
func (b *builder) aliased(pairs Pairs) string {
	parts := make([]string, len(pairs))
	for i, pair := range pairs {
		parts[i] = b.name(OperandOf(pair.Value))
		if pair.Key != "" {
			parts[i] += " " + pair.Key
		}
	}
	return strings.Join(parts, ", ")
}

// value renders an operand in value position. Scalars become placeholders.
// The operator decides how lists are rendered: BETWEEN takes exactly two
// values joined with AND, everything else takes a parenthesised list.
func (b *builder) value(op Operand, operator string) string {
	switch o := op.(type) {
	case nil, nullOperand:
		return "NULL"
	case subQuery, rawOperand, group:
		return b.name(o)
	case List:
		if isBetween(operator) {
			if len(o) != 2 {
				b.fail(errInvalidOperand("%s expects exactly 2 values, got %d", strings.ToUpper(strings.TrimSpace(operator)), len(o)))
			}
			return b.values(o, " AND ")
		}
		if len(o) == 0 {
			b.fail(errInvalidOperand("empty value list"))
		}
		return "(" + b.values(o, ", ") + ")"
	case Pairs:
		return b.assignments(o)
	case Value:
		return b.placeholder(o.V)
	}
	b.fail(errInvalidOperand("unknown operand %T", op))
	return ""
}

func (b *builder) values(list List, sep string) string {
	parts := make([]string, len(list))
	for i, item := range list {
		parts[i] = b.value(item, "")
	}
	return strings.Join(parts, sep)
}

// assignments renders keyed entries as "<key> = <value>" and positional ones
// verbatim, joined with commas.
func (b *builder) assignments(pairs Pairs) string {
	return b.equalities(pairs, ", ")
}

func isBetween(operator string) bool {
	switch strings.ToUpper(strings.Join(strings.Fields(operator), " ")) {
	case "BETWEEN", "NOT BETWEEN":
		return true
	}
	return false
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
