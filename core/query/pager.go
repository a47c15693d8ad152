package query

import (
	"context"
	"iter"

	"github.com/alephtav/go-ddd/core/record"
)

// Pages lazily fetches the result set page by page, starting at firstPage. Each
// page is fetched on demand by re-paginating a copy of the statement, so the
// builder itself is not modified. Iteration stops after the first page that
// holds fewer than size rows, or on the first error. A size of zero or less
// yields nothing. Ranging over the sequence again starts over.
//
//	for rows, err := range q.Pages(ctx, 100, 0) {
//		if err != nil {
//			return err
//		}
//		...
//	}
func (q *SelectQuery) Pages(ctx context.Context, size, firstPage int) iter.Seq2[[]record.Row, error] {
	return func(yield func([]record.Row, error) bool) {
		if size <= 0 {
			return
		}
		if q.executor == nil {
			yield(nil, errNoExecutor("paging rows"))
			return
		}
		pager := q.Copy()
		for page := firstPage; ; page++ {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			rows, err := pager.Paginate(page, size).Rows(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(rows) == 0 {
				return
			}
			if !yield(rows, nil) || len(rows) < size {
				return
			}
		}
	}
}

// Each lazily yields single rows, fetching them in batches of size rows.
func (q *SelectQuery) Each(ctx context.Context, size int) iter.Seq2[record.Row, error] {
	return func(yield func(record.Row, error) bool) {
		for rows, err := range q.Pages(ctx, size, 0) {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, row := range rows {
				if !yield(row, nil) {
					return
				}
			}
		}
	}
}
