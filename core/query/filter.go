package query

import "time"

type filterable interface {
	conditions() *Conditional
	touch()
}

// FilterDateRange restricts stmt to rows whose column lies within [from, to].
// A zero bound is left open; two zero bounds add nothing. Statements without a
// WHERE clause return an ErrUnsupported error.
func FilterDateRange(stmt Statement, column any, from, to time.Time) error {
	target, ok := stmt.(filterable)
	if !ok {
		return errUnsupported("filtering by date range", stmt)
	}
	switch {
	case from.IsZero() && to.IsZero():
		return nil
	case to.IsZero():
		target.conditions().And(column, ">=", from)
	case from.IsZero():
		target.conditions().And(column, "<=", to)
	default:
		target.conditions().And(column, "BETWEEN", []any{from, to})
	}
	target.touch()
	return nil
}
