package sqldb

import "github.com/alephtav/go-ddd/core/query"

// Dialect adapts rendered statements to a database/sql driver.
type Dialect interface {
	// Name identifies the dialect in logs.
	Name() string
	// Bind converts the named placeholders of sql into the driver's form and
	// returns the matching arguments.
	Bind(sql string, params query.Params) (string, []any, error)
}

// Sequencer is implemented by dialects that cannot report the last inserted id
// and read it from a sequence instead.
type Sequencer interface {
	SequenceSQL(sequence string) string
}

// BindFunc is the signature shared by BindNamed, BindDollar and BindQuestion.
type BindFunc func(sql string, params query.Params) (string, []any, error)

type dialect struct {
	name string
	bind BindFunc
}

// NewDialect returns a Dialect with the given name and binding.
func NewDialect(name string, bind BindFunc) Dialect {
	return dialect{name: name, bind: bind}
}

func (d dialect) Name() string { return d.name }

func (d dialect) Bind(sql string, params query.Params) (string, []any, error) {
	return d.bind(sql, params)
}
