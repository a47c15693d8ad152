// Package utils converts between Go structs and database records. Struct
// fields are mapped to columns through their `db` tags; fields without a tag,
// or tagged `db:"-"`, are skipped. Embedded structs are flattened.
package utils

import (
	"database/sql"
	"fmt"
	"reflect"

	"github.com/mitranim/refut"
)

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// RecordColumns lists the db-tagged columns of record and their values, in
// field declaration order.
//
// The input must be a struct or a pointer to a struct. A nil pointer yields no
// columns.
//
// Example:
//
//	type User struct {
//		ID    string `db:"id"`
//		Email string `db:"email"`
//		Cache []byte
//	}
//	columns, values, err := RecordColumns(User{ID: "u1", Email: "a@b.c"})
//	// columns == []string{"id", "email"}, values == []any{"u1", "a@b.c"}
func RecordColumns(record any) ([]string, []any, error) {
	if record == nil {
		return nil, nil, fmt.Errorf("RecordColumns: input record cannot be nil")
	}
	rval := reflect.ValueOf(record)
	rtype := refut.RtypeDeref(rval.Type())
	if rtype.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("RecordColumns: input record must be a struct or a pointer to a struct, got %s", rtype.Kind())
	}
	if refut.IsRvalNil(rval) {
		return nil, nil, nil
	}

	var columns []string
	var values []any
	err := refut.TraverseStructRval(rval, func(field reflect.Value, sfield reflect.StructField, _ []int) error {
		column := refut.TagIdent(sfield.Tag.Get("db"))
		if column == "" || sfield.PkgPath != "" {
			return nil
		}
		columns = append(columns, column)
		values = append(values, field.Interface())
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("RecordColumns: %w", err)
	}
	return columns, values, nil
}

// RecordToMap is RecordColumns in map form.
func RecordToMap(record any) (map[string]any, error) {
	columns, values, err := RecordColumns(record)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(columns))
	for i, column := range columns {
		out[column] = values[i]
	}
	return out, nil
}

// MapToRecord creates a new T and fills its db-tagged fields from row. It is
// the inverse of RecordToMap.
//
// Values are assigned directly when their type matches, then through sql.Scanner
// when the field implements it, and otherwise converted (int64 to int, []byte
// to string, ...). NULL leaves the field at its zero value. Columns without a
// matching field are ignored.
//
// T must be a struct type. If T is a pointer type the function allocates the
// struct and returns a pointer to it.
func MapToRecord[T any](row map[string]any) (T, error) {
	var zero T
	if row == nil {
		return zero, fmt.Errorf("MapToRecord: input row cannot be nil")
	}

	typ := reflect.TypeOf(zero)
	isPtr := typ.Kind() == reflect.Ptr
	if isPtr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("MapToRecord: generic type T must be a struct type (or pointer to struct), got %s", typ.Kind())
	}

	target := reflect.New(typ)
	err := refut.TraverseStructRval(target.Elem(), func(field reflect.Value, sfield reflect.StructField, _ []int) error {
		column := refut.TagIdent(sfield.Tag.Get("db"))
		if column == "" {
			return nil
		}
		value, ok := row[column]
		if !ok || value == nil {
			return nil
		}
		if err := assign(field, value); err != nil {
			return fmt.Errorf("column %q: %w", column, err)
		}
		return nil
	})
	if err != nil {
		return zero, fmt.Errorf("MapToRecord: %w", err)
	}

	if isPtr {
		return target.Interface().(T), nil
	}
	return target.Elem().Interface().(T), nil
}

func assign(field reflect.Value, value any) error {
	if !field.CanSet() {
		return nil
	}
	rval := reflect.ValueOf(value)
	if rval.Type().AssignableTo(field.Type()) {
		field.Set(rval)
		return nil
	}
	if field.CanAddr() && field.Addr().Type().Implements(scannerType) {
		return field.Addr().Interface().(sql.Scanner).Scan(value)
	}
	if bytes, ok := value.([]byte); ok && field.Kind() == reflect.String {
		field.SetString(string(bytes))
		return nil
	}
	if field.Kind() == reflect.Ptr {
		elem := reflect.New(field.Type().Elem())
		if err := assign(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}
	if rval.Type().ConvertibleTo(field.Type()) && convertible(rval.Kind(), field.Kind()) {
		field.Set(rval.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// convertible rejects reflect conversions that compile but change meaning,
// such as int to string.
func convertible(from, to reflect.Kind) bool {
	if to == reflect.String {
		return from == reflect.String
	}
	return true
}
