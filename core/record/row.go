// Package record holds the row type returned by query executors together with
// typed accessors for reading column values.
package record

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Row is a single result row keyed by column name.
type Row map[string]any

// Has reports whether the row holds column, even with a NULL value.
func (r Row) Has(column string) bool {
	_, ok := r[column]
	return ok
}

// Without returns a copy of the row lacking column.
func (r Row) Without(column string) Row {
	out := make(Row, len(r))
	for k, v := range r {
		if k != column {
			out[k] = v
		}
	}
	return out
}

// String returns the column value as text. NULL reads as "".
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the column value as an integer.
func (r Row) Int64(column string) (int64, bool) {
	return ToInt64(r[column])
}

// Float64 returns the column value as a float.
func (r Row) Float64(column string) (float64, bool) {
	return ToFloat64(r[column])
}

// Bool returns the column value as a boolean. Integer columns, as used by
// SQLite and MySQL, read as true when non-zero.
func (r Row) Bool(column string) (bool, bool) {
	switch v := r[column].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	case []byte:
		b, err := strconv.ParseBool(string(v))
		return b, err == nil
	}
	if n, ok := ToInt64(r[column]); ok {
		return n != 0, true
	}
	return false, false
}

// Time returns the column value as a time. Text values are parsed as RFC 3339
// or as "2006-01-02 15:04:05".
func (r Row) Time(column string) (time.Time, bool) {
	switch v := r[column].(type) {
	case time.Time:
		return v, true
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	}
	return time.Time{}, false
}

// Decimal returns the column value as an arbitrary precision decimal.
func (r Row) Decimal(column string) (decimal.Decimal, bool) {
	switch v := r[column].(type) {
	case decimal.Decimal:
		return v, true
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	case []byte:
		d, err := decimal.NewFromString(string(v))
		return d, err == nil
	case float32:
		return decimal.NewFromFloat32(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	}
	if n, ok := ToInt64(r[column]); ok {
		return decimal.NewFromInt(n), true
	}
	return decimal.Decimal{}, false
}

// UUID returns the column value as a UUID, accepting both the textual and the
// 16-byte binary forms.
func (r Row) UUID(column string) (uuid.UUID, bool) {
	switch v := r[column].(type) {
	case uuid.UUID:
		return v, true
	case [16]byte:
		return uuid.UUID(v), true
	case string:
		id, err := uuid.Parse(v)
		return id, err == nil
	case []byte:
		if len(v) == 16 {
			id, err := uuid.FromBytes(v)
			return id, err == nil
		}
		id, err := uuid.ParseBytes(v)
		return id, err == nil
	}
	return uuid.Nil, false
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
