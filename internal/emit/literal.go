package emit

import (
	"fmt"
	"reflect"

	"github.com/dave/jennifer/jen"

	"pipegen/internal/frame"
	"pipegen/internal/types"
)

// literal renders v as a Go constant expression. Named basic types are
// written as conversions, e.g. ledger.Currency("EUR").
func literal(tbl *types.Table, v any) (*jen.Statement, error) {
	switch v.(type) {
	case nil:
		return jen.Nil(), nil
	case bool, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return jen.Lit(v), nil
	}
	rv := reflect.ValueOf(v)
	typ := rv.Type()
	if typ.PkgPath() == "" || typ.Name() == "" {
		return nil, fmt.Errorf("literal of type %s cannot be written as source", typ)
	}
	var base any
	switch rv.Kind() {
	case reflect.Bool:
		base = rv.Bool()
	case reflect.String:
		base = rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		base = rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		base = rv.Uint()
	case reflect.Float32, reflect.Float64:
		base = rv.Float()
	default:
		return nil, fmt.Errorf("literal of type %s cannot be written as source", typ)
	}
	return frame.TypeCode(tbl, tbl.Of(typ)).Call(jen.Lit(base)), nil
}
