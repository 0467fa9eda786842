package datarecording

import (
	"reflect"

	"github.com/pkg/errors"
)

// ErrInvalidEntry is returned for entries that are not flat structs of basic
// types.
var ErrInvalidEntry = errors.New("entry must be a struct of basic fields")

type column struct {
	name string
	kind reflect.Kind
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func columnsOf(entry any) ([]column, error) {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrInvalidEntry, "%T", entry)
	}

	cols := make([]column, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !isAllowedKind(f.Type.Kind()) {
			return nil, errors.Wrapf(ErrInvalidEntry, "%s.%s is %s",
				t.Name(), f.Name, f.Type)
		}

		cols = append(cols, column{name: f.Name, kind: f.Type.Kind()})
	}

	return cols, nil
}

// valuesOf returns the fields of entry converted to their underlying basic
// types, so named types such as timing.VTime can be stored.
func valuesOf(entry any) []any {
	v := reflect.ValueOf(entry)
	values := make([]any, v.NumField())

	for i := range values {
		f := v.Field(i)

		switch f.Kind() {
		case reflect.Bool:
			values[i] = f.Bool()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
			reflect.Int64:
			values[i] = f.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
			reflect.Uint64:
			values[i] = f.Uint()
		case reflect.Float32, reflect.Float64:
			values[i] = f.Float()
		default:
			values[i] = f.String()
		}
	}

	return values
}
