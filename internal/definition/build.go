package definition

import (
	"github.com/alephtav/go-ddd/core/query"
)

// Statement builds the statement described by d, bound to exec. exec may be
// nil when the statement is only rendered.
func (d *Definition) Statement(exec query.Executor) (query.Statement, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	switch d.Kind {
	case KindSelect:
		return d.selectQuery(exec), nil
	case KindInsert:
		return d.insertQuery(exec), nil
	case KindUpdate:
		return d.updateQuery(exec), nil
	default:
		return d.deleteQuery(exec), nil
	}
}

// whereFuncs adapts the AND/OR methods of the builders and of Conditional.
type whereFuncs struct {
	and func(operand any, args ...any)
	or  func(operand any, args ...any)
}

func applyPredicates(preds []Predicate, w whereFuncs) {
	for _, p := range preds {
		add := w.and
		if p.Or {
			add = w.or
		}
		switch {
		case len(p.Any) > 0:
			add(anyGroup(p.Any))
		case p.Raw != "" && len(p.Params) > 0:
			add(query.RawNamed(p.Raw, p.Params))
		case p.Raw != "":
			add(query.Raw(p.Raw))
		case p.Op != "":
			add(p.Column, p.Op, predicateValue(p.Value))
		case p.Value == nil:
			add(p.Column, "IS", nil)
		default:
			add(p.Column, predicateValue(p.Value))
		}
	}
}

// anyGroup joins the predicates with OR inside parentheses. An explicit or
// flag is redundant there; every member after the first is OR-ed.
func anyGroup(preds []Predicate) func(*query.Conditional) {
	return func(c *query.Conditional) {
		for i, p := range preds {
			p.Or = i > 0
			applyPredicates([]Predicate{p}, whereFuncs{
				and: func(o any, a ...any) { c.And(o, a...) },
				or:  func(o any, a ...any) { c.Or(o, a...) },
			})
		}
	}
}

func predicateValue(v any) any {
	if m, ok := v.(map[string]any); ok && len(m) == 1 {
		if sql, ok := m["raw"].(string); ok {
			return query.Raw(sql)
		}
	}
	return v
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func (d *Definition) selectQuery(exec query.Executor) *query.SelectQuery {
	q := query.NewSelectQuery(exec)
	if len(d.Columns) > 0 {
		q.Select(stringsToAny(d.Columns)...)
	}
	if d.Table != "" {
		q.FromAs(d.Table, d.Alias)
	}
	for _, j := range d.Joins {
		switch j.Type {
		case "join":
			q.Join(j.Table, j.condition())
		case "left":
			q.LeftJoin(j.Table, j.condition())
		case "right":
			q.RightJoin(j.Table, j.condition())
		case "full":
			q.FullJoin(j.Table, j.condition())
		case "cross":
			q.CrossJoin(j.Table)
		case "natural":
			q.NaturalJoin(j.Table)
		default:
			q.InnerJoin(j.Table, j.condition())
		}
	}
	applyPredicates(d.Where, whereFuncs{
		and: func(o any, a ...any) { q.AndWhere(o, a...) },
		or:  func(o any, a ...any) { q.OrWhere(o, a...) },
	})
	if len(d.GroupBy) > 0 {
		q.GroupBy(stringsToAny(d.GroupBy)...)
	}
	applyPredicates(d.Having, whereFuncs{
		and: func(o any, a ...any) { q.AndHaving(o, a...) },
		or:  func(o any, a ...any) { q.OrHaving(o, a...) },
	})
	for _, o := range d.OrderBy {
		q.OrderBy(o.Column, o.Direction)
	}
	if d.Limit != nil {
		q.Limit(*d.Limit)
	}
	if d.Offset != nil {
		q.Offset(*d.Offset)
	}
	if d.Page != nil {
		q.Paginate(d.Page.Number, d.Page.Size)
	}
	return q
}

func (j Join) condition() any {
	switch {
	case len(j.Using) > 0:
		return j.Using
	case j.On != "":
		return j.On
	}
	return nil
}

func (d *Definition) insertQuery(exec query.Executor) *query.InsertQuery {
	q := query.NewInsertQuery(exec).IntoAs(d.Table, d.Alias)
	if len(d.Columns) > 0 {
		q.Columns(stringsToAny(d.Columns)...)
	}
	rows := make([]query.Pairs, len(d.Values))
	for i, row := range d.Values {
		rows[i] = row.Pairs()
	}
	q.Values(rows)

	switch {
	case d.OnConflict != nil:
		var index any
		if len(d.OnConflict.Columns) > 0 {
			index = stringsToAny(d.OnConflict.Columns)
		}
		if len(d.OnConflict.Update) > 0 {
			q.OnConflictDoUpdate(index, d.OnConflict.Update.Pairs())
		} else {
			q.OnConflictDoNothing(index)
		}
	case len(d.OnDuplicate) > 0:
		q.OnDuplicateKeyUpdate(d.OnDuplicate.Pairs())
	}
	if len(d.Returning) > 0 {
		q.Returning(stringsToAny(d.Returning)...)
	}
	return q
}

func (d *Definition) updateQuery(exec query.Executor) *query.UpdateQuery {
	q := query.NewUpdateQuery(exec).TableAs(d.Table, d.Alias)
	for _, j := range d.Joins {
		switch j.Type {
		case "join":
			q.Join(j.Table, j.condition())
		case "left":
			q.LeftJoin(j.Table, j.condition())
		default:
			q.InnerJoin(j.Table, j.condition())
		}
	}
	q.Assign(d.Set.Pairs())
	applyPredicates(d.Where, whereFuncs{
		and: func(o any, a ...any) { q.AndWhere(o, a...) },
		or:  func(o any, a ...any) { q.OrWhere(o, a...) },
	})
	for _, o := range d.OrderBy {
		q.OrderBy(o.Column, o.Direction)
	}
	if d.Limit != nil {
		q.Limit(*d.Limit)
	}
	if len(d.Returning) > 0 {
		q.Returning(stringsToAny(d.Returning)...)
	}
	return q
}

func (d *Definition) deleteQuery(exec query.Executor) *query.DeleteQuery {
	q := query.NewDeleteQuery(exec).FromAs(d.Table, d.Alias)
	for _, j := range d.Joins {
		switch j.Type {
		case "join":
			q.Join(j.Table, j.condition())
		case "left":
			q.LeftJoin(j.Table, j.condition())
		default:
			q.InnerJoin(j.Table, j.condition())
		}
	}
	applyPredicates(d.Where, whereFuncs{
		and: func(o any, a ...any) { q.AndWhere(o, a...) },
		or:  func(o any, a ...any) { q.OrWhere(o, a...) },
	})
	for _, o := range d.OrderBy {
		q.OrderBy(o.Column, o.Direction)
	}
	if d.Limit != nil {
		q.Limit(*d.Limit)
	}
	if len(d.Returning) > 0 {
		q.Returning(stringsToAny(d.Returning)...)
	}
	return q
}
