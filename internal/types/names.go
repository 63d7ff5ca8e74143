package types

import (
	"go/token"
	"strings"
)

// VarName proposes an identifier for a value of type id. The result is not
// unique; callers deduplicate within their scope.
func (t *Table) VarName(id TypeID) string {
	d, ok := t.Lookup(id)
	if !ok {
		return "v"
	}
	var name string
	switch d.Kind {
	case KindPointer:
		return t.VarName(d.Elem)
	case KindSlice:
		name = t.VarName(d.Elem) + "s"
	case KindMap:
		name = t.VarName(d.Elem) + "ByKey"
	case KindBasic:
		name = basicVarName(d.Name)
	case KindInterface:
		switch d.Name {
		case "error":
			name = "cause"
		case "any":
			name = "value"
		default:
			name = LowerCamel(d.Name)
		}
	case KindNamed:
		name = LowerCamel(d.Name)
	default:
		name = "v"
	}
	if token.IsKeyword(name) {
		name += "Value"
	}
	return name
}

func basicVarName(name string) string {
	switch {
	case name == "bool":
		return "ok"
	case name == "string":
		return "str"
	case strings.HasPrefix(name, "int"), strings.HasPrefix(name, "uint"):
		return "n"
	case strings.HasPrefix(name, "float"):
		return "f"
	default:
		return "v"
	}
}
