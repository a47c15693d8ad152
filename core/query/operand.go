package query

import (
	"database/sql/driver"
	"reflect"
	"sort"
	"time"
)

// Operand is anything that may stand on either side of a clause: a column or
// table name, a bound value, a list, a key/value mapping, a sub-query, a raw
// fragment or a nested condition group. The set of implementations is closed;
// use OperandOf to convert arbitrary Go values.
type Operand interface {
	isOperand()
}

type nullOperand struct{}

// Value is a scalar operand. In value position it becomes a bound placeholder;
// in name position its text is inserted verbatim.
type Value struct {
	V any
}

// List is an ordered sequence of operands.
type List []Operand

// Pair is one entry of a Pairs mapping. An empty Key marks a positional entry.
type Pair struct {
	Key   string
	Value any
}

// Pairs is an ordered key/value mapping. Keyed entries render as aliases in
// naming clauses and as assignments or equalities elsewhere; positional
// entries render their value alone.
type Pairs []Pair

type subQuery struct {
	stmt Statement
}

type rawOperand struct {
	fragment Fragment
}

type group struct {
	cond *Conditional
}

func (nullOperand) isOperand() {}
func (Value) isOperand()       {}
func (List) isOperand()        {}
func (Pairs) isOperand()       {}
func (subQuery) isOperand()    {}
func (rawOperand) isOperand()  {}
func (group) isOperand()       {}

// Null renders as the SQL NULL literal.
var Null Operand = nullOperand{}

// Bind forces v to be treated as a single bound value, even when it is a slice
// or a map that would otherwise be expanded.
func Bind(v any) Value {
	return Value{V: v}
}

// Fragment is a pre-built piece of SQL: raw expressions and clause expressions.
// Fragments are inserted verbatim and contribute their params.
type Fragment interface {
	renderFragment(b *builder) string
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// OperandOf converts a Go value to an Operand:
//
//	nil                     Null
//	Operand                 itself
//	Statement               sub-query, rendered in parentheses
//	Fragment                raw fragment, rendered verbatim
//	func(*Conditional)      nested group, invoked immediately on a fresh Conditional
//	map[string]V            Pairs ordered by key
//	slices and arrays       List (except []byte)
//	anything else           Value
func OperandOf(v any) Operand {
	switch x := v.(type) {
	case nil:
		return Null
	case Pairs:
		out := make(Pairs, len(x))
		copy(out, x)
		return out
	case List:
		out := make(List, len(x))
		copy(out, x)
		return out
	case Operand:
		return x
	case Statement:
		return subQuery{stmt: x}
	case Fragment:
		return rawOperand{fragment: x}
	case func(*Conditional):
		cond := &Conditional{}
		x(cond)
		return group{cond: cond}
	case []byte, time.Time, driver.Valuer:
		return Value{V: x}
	case []any:
		list := make(List, len(x))
		for i, item := range x {
			list[i] = OperandOf(item)
		}
		return list
	case []string:
		list := make(List, len(x))
		for i, item := range x {
			list[i] = Value{V: item}
		}
		return list
	case map[string]any:
		return pairsOf(x)
	}
	return reflectOperand(v)
}

func reflectOperand(v any) Operand {
	rval := reflect.ValueOf(v)
	if rval.Type() == timeType || rval.Type().Implements(valuerType) {
		return Value{V: v}
	}
	switch rval.Kind() {
	case reflect.Slice, reflect.Array:
		list := make(List, rval.Len())
		for i := range list {
			list[i] = OperandOf(rval.Index(i).Interface())
		}
		return list
	case reflect.Map:
		if rval.Type().Key().Kind() != reflect.String {
			return Value{V: v}
		}
		keys := make([]string, 0, rval.Len())
		for _, k := range rval.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		out := make(Pairs, len(keys))
		for i, k := range keys {
			out[i] = Pair{Key: k, Value: rval.MapIndex(reflect.ValueOf(k).Convert(rval.Type().Key())).Interface()}
		}
		return out
	}
	return Value{V: v}
}

func pairsOf(m map[string]any) Pairs {
	out := make(Pairs, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, Pair{Key: k, Value: m[k]})
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// operands converts each argument with OperandOf.
func operands(values []any) []Operand {
	out := make([]Operand, 0, len(values))
	for _, v := range values {
		out = append(out, OperandOf(v))
	}
	return out
}
