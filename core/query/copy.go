package query

// cloneOperand returns a copy of op that shares no mutable state with it.
// Sub-queries are copied as well, so a snapshot keeps rendering the same SQL
// when the original sub-query is mutated later.
func cloneOperand(op Operand) Operand {
	switch o := op.(type) {
	case List:
		return cloneOperands(o)
	case Pairs:
		out := make(Pairs, len(o))
		for i, pair := range o {
			out[i] = Pair{Key: pair.Key, Value: cloneAny(pair.Value)}
		}
		return out
	case subQuery:
		return subQuery{stmt: o.stmt.copyStatement()}
	case rawOperand:
		if cond, ok := o.fragment.(*Conditional); ok {
			return rawOperand{fragment: cond.clone()}
		}
		return o
	case group:
		return group{cond: o.cond.clone()}
	}
	return op
}

func cloneOperands(ops []Operand) List {
	if ops == nil {
		return nil
	}
	out := make(List, len(ops))
	for i, op := range ops {
		out[i] = cloneOperand(op)
	}
	return out
}

// cloneAny copies the statements and operands held in Pairs values. Plain
// values are returned as is.
func cloneAny(v any) any {
	switch x := v.(type) {
	case Operand:
		return cloneOperand(x)
	case Statement:
		return x.copyStatement()
	}
	return v
}
