// Package definition decodes statement definitions from YAML and turns them
// into query builders.
//
// A definition describes one SELECT, INSERT, UPDATE or DELETE:
//
//	kind: select
//	table: orders
//	alias: o
//	columns: [o.id, o.total]
//	joins:
//	  - type: left
//	    table: customers c
//	    on: c.id = o.customer_id
//	where:
//	  - column: o.status
//	    op: IN
//	    value: [paid, shipped]
//	  - any:
//	      - column: o.total
//	        op: ">"
//	        value: 100
//	      - raw: o.flagged
//	order_by:
//	  - column: o.created_at
//	    direction: desc
//	page:
//	  number: 2
//	  size: 20
package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alephtav/go-ddd/core/query"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation error returned by Load and Validate.
var ErrInvalid = errors.New("invalid definition")

// Statement kinds.
const (
	KindSelect = "select"
	KindInsert = "insert"
	KindUpdate = "update"
	KindDelete = "delete"
)

// Definition is the YAML form of a statement.
type Definition struct {
	Kind        string      `yaml:"kind"`
	Table       string      `yaml:"table"`
	Alias       string      `yaml:"alias"`
	Columns     []string    `yaml:"columns"`
	Joins       []Join      `yaml:"joins"`
	Where       []Predicate `yaml:"where"`
	GroupBy     []string    `yaml:"group_by"`
	Having      []Predicate `yaml:"having"`
	OrderBy     []Order     `yaml:"order_by"`
	Limit       *int        `yaml:"limit"`
	Offset      *int        `yaml:"offset"`
	Page        *Page       `yaml:"page"`
	Values      []Record    `yaml:"values"`
	Set         Record      `yaml:"set"`
	OnConflict  *Conflict   `yaml:"on_conflict"`
	OnDuplicate Record      `yaml:"on_duplicate"`
	Returning   []string    `yaml:"returning"`
}

// Join is one JOIN clause. Type is one of join, inner, left, right, full,
// cross and natural; it defaults to inner.
type Join struct {
	Type  string   `yaml:"type"`
	Table string   `yaml:"table"`
	On    string   `yaml:"on"`
	Using []string `yaml:"using"`
}

// Predicate is one WHERE or HAVING condition. Exactly one of Column, Raw and
// Any is set. Or joins the predicate to the previous one with OR.
type Predicate struct {
	Column string         `yaml:"column"`
	Op     string         `yaml:"op"`
	Value  any            `yaml:"value"`
	Raw    string         `yaml:"raw"`
	Params map[string]any `yaml:"params"`
	Any    []Predicate    `yaml:"any"`
	Or     bool           `yaml:"or"`
}

type Order struct {
	Column    string `yaml:"column"`
	Direction string `yaml:"direction"`
}

// Page selects a zero-based page of Size rows.
type Page struct {
	Number int `yaml:"number"`
	Size   int `yaml:"size"`
}

// Conflict renders ON CONFLICT (Columns) DO UPDATE SET Update, or DO NOTHING
// when Update is empty.
type Conflict struct {
	Columns []string `yaml:"columns"`
	Update  Record   `yaml:"update"`
}

// Load decodes a single definition from r. Unknown fields are rejected.
func Load(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	def.normalize()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads a definition from path; "-" reads standard input.
func LoadFile(path string) (*Definition, error) {
	if path == "-" {
		return Load(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// identifier trims an identifier and brings it into Unicode NFC form, so that
// visually equal names written with different code points render the same.
func identifier(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func identifiers(in []string) []string {
	for i, s := range in {
		in[i] = identifier(s)
	}
	return in
}

func (d *Definition) normalize() {
	d.Kind = strings.ToLower(strings.TrimSpace(d.Kind))
	d.Table = identifier(d.Table)
	d.Alias = identifier(d.Alias)
	identifiers(d.Columns)
	identifiers(d.GroupBy)
	identifiers(d.Returning)
	for i := range d.Joins {
		d.Joins[i].Type = strings.ToLower(strings.TrimSpace(d.Joins[i].Type))
		d.Joins[i].Table = identifier(d.Joins[i].Table)
		identifiers(d.Joins[i].Using)
	}
	normalizePredicates(d.Where)
	normalizePredicates(d.Having)
	for i := range d.OrderBy {
		d.OrderBy[i].Column = identifier(d.OrderBy[i].Column)
		d.OrderBy[i].Direction = strings.ToUpper(strings.TrimSpace(d.OrderBy[i].Direction))
	}
	for i := range d.Values {
		d.Values[i].normalize()
	}
	d.Set.normalize()
	d.OnDuplicate.normalize()
	if d.OnConflict != nil {
		identifiers(d.OnConflict.Columns)
		d.OnConflict.Update.normalize()
	}
}

func normalizePredicates(preds []Predicate) {
	for i := range preds {
		preds[i].Column = identifier(preds[i].Column)
		preds[i].Op = strings.ToUpper(strings.TrimSpace(preds[i].Op))
		normalizePredicates(preds[i].Any)
	}
}

// Validate checks the fields required and allowed by the definition's kind.
func (d *Definition) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
	}

	switch d.Kind {
	case KindSelect:
		if d.Table == "" && len(d.Columns) == 0 {
			return invalid("select needs a table or columns")
		}
	case KindInsert:
		if d.Table == "" {
			return invalid("insert needs a table")
		}
		if len(d.Values) == 0 {
			return invalid("insert needs values")
		}
	case KindUpdate:
		if d.Table == "" {
			return invalid("update needs a table")
		}
		if len(d.Set) == 0 {
			return invalid("update needs set")
		}
	case KindDelete:
		if d.Table == "" {
			return invalid("delete needs a table")
		}
	case "":
		return invalid("kind is required")
	default:
		return invalid("unknown kind %q", d.Kind)
	}

	if d.Kind != KindSelect {
		if len(d.GroupBy) > 0 || len(d.Having) > 0 || d.Offset != nil || d.Page != nil {
			return invalid("group_by, having, offset and page only apply to select")
		}
	}
	if d.Kind != KindInsert && (len(d.Values) > 0 || d.OnConflict != nil || len(d.OnDuplicate) > 0) {
		return invalid("values, on_conflict and on_duplicate only apply to insert")
	}
	if d.Kind != KindUpdate && len(d.Set) > 0 {
		return invalid("set only applies to update")
	}
	if d.OnConflict != nil && len(d.OnDuplicate) > 0 {
		return invalid("on_conflict and on_duplicate are mutually exclusive")
	}
	if d.Page != nil && (d.Limit != nil || d.Offset != nil) {
		return invalid("page cannot be combined with limit or offset")
	}
	if d.Page != nil && (d.Page.Size <= 0 || d.Page.Number < 0) {
		return invalid("page needs a positive size and a non-negative number")
	}

	for _, j := range d.Joins {
		if !joinKinds[j.Type] {
			return invalid("unknown join type %q", j.Type)
		}
		if j.Table == "" {
			return invalid("join needs a table")
		}
		if j.On != "" && len(j.Using) > 0 {
			return invalid("join on %s has both on and using", j.Table)
		}
		if d.Kind == KindUpdate || d.Kind == KindDelete {
			switch j.Type {
			case "", "join", "inner", "left":
			default:
				return invalid("%s join is not supported in %s", j.Type, d.Kind)
			}
		}
	}
	if err := validatePredicates(d.Where); err != nil {
		return err
	}
	if err := validatePredicates(d.Having); err != nil {
		return err
	}
	for _, o := range d.OrderBy {
		if o.Column == "" {
			return invalid("order_by needs a column")
		}
		if o.Direction != "" && o.Direction != "ASC" && o.Direction != "DESC" {
			return invalid("unknown order direction %q", o.Direction)
		}
	}
	return nil
}

func validatePredicates(preds []Predicate) error {
	for _, p := range preds {
		set := 0
		for _, ok := range []bool{p.Column != "", p.Raw != "", len(p.Any) > 0} {
			if ok {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("%w: a predicate needs exactly one of column, raw and any", ErrInvalid)
		}
		if p.Raw == "" && len(p.Params) > 0 {
			return fmt.Errorf("%w: params only apply to raw predicates", ErrInvalid)
		}
		if err := validatePredicates(p.Any); err != nil {
			return err
		}
	}
	return nil
}

var joinKinds = map[string]bool{
	"":        true,
	"join":    true,
	"inner":   true,
	"left":    true,
	"right":   true,
	"full":    true,
	"cross":   true,
	"natural": true,
}

// Record is an ordered mapping decoded from a YAML mapping. A value written as
// {raw: <sql>} is inserted verbatim instead of being bound.
type Record query.Pairs

func (r *Record) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	out := make(Record, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key string
		if err := node.Content[i].Decode(&key); err != nil {
			return err
		}
		value, err := decodeValue(node.Content[i+1])
		if err != nil {
			return err
		}
		out = append(out, query.Pair{Key: key, Value: value})
	}
	*r = out
	return nil
}

func decodeValue(node *yaml.Node) (any, error) {
	if node.Kind == yaml.MappingNode && len(node.Content) == 2 && node.Content[0].Value == "raw" {
		var sql string
		if err := node.Content[1].Decode(&sql); err != nil {
			return nil, err
		}
		return query.Raw(sql), nil
	}
	var value any
	if err := node.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

func (r Record) normalize() {
	for i := range r {
		r[i].Key = identifier(r[i].Key)
	}
}

// Pairs returns the record as query pairs.
func (r Record) Pairs() query.Pairs {
	return query.Pairs(r)
}
