package frame

import (
	"github.com/dave/jennifer/jen"

	"pipegen/internal/types"
)

// TypeCode renders id as a Go type expression. Named types are qualified by
// import path so the file keeps its imports complete.
func TypeCode(tbl *types.Table, id types.TypeID) *jen.Statement {
	d, ok := tbl.Lookup(id)
	if !ok {
		return jen.Id("any")
	}
	switch d.Kind {
	case types.KindPointer:
		return jen.Op("*").Add(TypeCode(tbl, d.Elem))
	case types.KindSlice:
		return jen.Index().Add(TypeCode(tbl, d.Elem))
	case types.KindMap:
		return jen.Map(TypeCode(tbl, d.Key)).Add(TypeCode(tbl, d.Elem))
	case types.KindBasic, types.KindNamed, types.KindInterface:
		if d.PkgPath == "" {
			return jen.Id(d.Name)
		}
		return jen.Qual(d.PkgPath, d.Name)
	case types.KindOpaque, types.KindInvalid:
		return jen.Id("any")
	}
	return jen.Id("any")
}
