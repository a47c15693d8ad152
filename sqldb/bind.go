package sqldb

import (
	"database/sql"
	"fmt"

	"github.com/alephtav/go-ddd/core/query"
	"github.com/mitranim/sqlp"
)

// BindNamed keeps the ":name" placeholders and passes each referenced param
// once as a sql.NamedArg, for drivers that resolve names themselves (SQLite).
func BindNamed(src string, params query.Params) (string, []any, error) {
	seen := make(map[string]bool, params.Len())
	return rewrite(src, params, func(buf *[]byte, name string, value any, args *[]any) {
		if !seen[name] {
			seen[name] = true
			*args = append(*args, sql.Named(name, value))
		}
		sqlp.NodeNamedParam(name).Append(buf)
	})
}

// BindDollar rewrites ":name" placeholders to "$1", "$2", ... Repeated names
// reuse their ordinal (PostgreSQL).
func BindDollar(src string, params query.Params) (string, []any, error) {
	ordinals := make(map[string]sqlp.NodeOrdinalParam, params.Len())
	return rewrite(src, params, func(buf *[]byte, name string, value any, args *[]any) {
		ord, ok := ordinals[name]
		if !ok {
			*args = append(*args, value)
			ord = sqlp.NodeOrdinalParam(len(*args))
			ordinals[name] = ord
		}
		ord.Append(buf)
	})
}

// BindQuestion rewrites ":name" placeholders to "?". Repeated names repeat
// their argument (MySQL, ClickHouse).
func BindQuestion(src string, params query.Params) (string, []any, error) {
	return rewrite(src, params, func(buf *[]byte, _ string, value any, args *[]any) {
		*args = append(*args, value)
		*buf = append(*buf, '?')
	})
}

func rewrite(src string, params query.Params, emit func(buf *[]byte, name string, value any, args *[]any)) (string, []any, error) {
	tokenizer := sqlp.Tokenizer{Source: src}
	buf := make([]byte, 0, len(src))
	args := make([]any, 0, params.Len())

	for {
		node := tokenizer.Next()
		if node == nil {
			break
		}
		switch node := node.(type) {
		case sqlp.NodeOrdinalParam:
			return "", nil, query.Err{
				Code:  query.ErrCodeUsage,
				While: "binding statement",
				Cause: fmt.Errorf("unexpected ordinal parameter %q in named statement", node),
			}
		case sqlp.NodeNamedParam:
			value, ok := params.Get(string(node))
			if !ok {
				return "", nil, query.Err{
					Code:  query.ErrCodeMissingArgument,
					While: "binding statement",
					Cause: fmt.Errorf("missing named argument %q", string(node)),
				}
			}
			emit(&buf, string(node), value, &args)
		default:
			node.Append(&buf)
		}
	}
	return string(buf), args, nil
}
