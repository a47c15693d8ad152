package query

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
)

// Params is an ordered mapping of placeholder names (without the leading colon)
// to bound values. Names are kept in first-use order, which matches the order in
// which the placeholders appear in the rendered SQL.
type Params struct {
	names  []string
	values map[string]any
}

// NewParams returns Params holding the given values. Keys are ordered by name,
// so callers that care about ordering should use Set instead.
func NewParams(values map[string]any) Params {
	var p Params
	for _, name := range sortedKeys(values) {
		p.Set(name, values[name])
	}
	return p
}

// Set binds a value to name, keeping the original position of existing names.
func (p *Params) Set(name string, value any) {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = value
}

// Get returns the value bound to name.
func (p Params) Get(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Has reports whether name is bound.
func (p Params) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Len returns the number of bound names.
func (p Params) Len() int {
	return len(p.names)
}

// Names returns the bound names in first-use order.
func (p Params) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Map returns a copy of the bindings as a plain map.
func (p Params) Map() map[string]any {
	out := make(map[string]any, len(p.names))
	for _, name := range p.names {
		out[name] = p.values[name]
	}
	return out
}

// Each calls fn for every binding in first-use order.
func (p Params) Each(fn func(name string, value any)) {
	for _, name := range p.names {
		fn(name, p.values[name])
	}
}

// Merge appends the bindings of other, overwriting values of names that are
// already present.
func (p *Params) Merge(other Params) {
	other.Each(p.Set)
}

func (p Params) clone() Params {
	var out Params
	out.Merge(p)
	return out
}

// MarshalJSON encodes the bindings as a JSON object preserving first-use order.
func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range p.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.values[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// builder carries the state of a single render pass: the accumulated params,
// the placeholder counter and the first error met. Every nested expression and
// sub-query of one top-level build shares the same builder, so placeholder
// names stay unique within the statement without any global state.
type builder struct {
	params    Params
	generated map[string]bool
	counter   int
	err       error
}

func newBuilder() *builder {
	return &builder{generated: map[string]bool{}}
}

// placeholder binds value under the next free generated name and returns the
// placeholder token.
func (b *builder) placeholder(value any) string {
	for {
		b.counter++
		name := "p" + strconv.Itoa(b.counter)
		if b.params.Has(name) {
			continue
		}
		b.generated[name] = true
		b.params.Set(name, value)
		return ":" + name
	}
}

// bindNamed binds a caller-named parameter coming from a raw fragment.
func (b *builder) bindNamed(name string, value any) {
	if b.generated[name] {
		b.fail(errInvalidOperand("parameter %q collides with a generated placeholder", name))
		return
	}
	if prev, ok := b.params.Get(name); ok && !reflect.DeepEqual(prev, value) {
		b.fail(errInvalidOperand("parameter %q is bound to conflicting values %v and %v", name, prev, value))
		return
	}
	b.params.Set(name, value)
}

func (b *builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
