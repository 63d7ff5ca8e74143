package types

import "fmt"

// TypeID uniquely identifies a type inside the table.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates the shapes a described type can take.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindBasic covers predeclared non-interface types (bool, string, int, ...).
	KindBasic
	// KindNamed is a defined non-interface type (struct, named int, ...).
	KindNamed
	// KindInterface covers named interfaces plus the predeclared error and any.
	KindInterface
	KindPointer
	KindSlice
	KindMap
	// KindOpaque is a type that cannot be written in generated source (unnamed struct, func, chan).
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBasic:
		return "basic"
	case KindNamed:
		return "named"
	case KindInterface:
		return "interface"
	case KindPointer:
		return "pointer"
	case KindSlice:
		return "slice"
	case KindMap:
		return "map"
	case KindOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Field describes an exported struct field.
type Field struct {
	Name string
	// Key is the binding key taken from the `pipe` struct tag, or the
	// lower-camel field name when the tag is absent.
	Key  string
	Type TypeID
}

// Descriptor is the static description of one type.
type Descriptor struct {
	Kind    Kind
	Name    string
	PkgPath string
	Elem    TypeID // pointer, slice, map value
	Key     TypeID // map key
	Fields  []Field
	// Closer is set when the type implements io.Closer.
	Closer bool
	// Error is set when the type implements error.
	Error bool
}

// Named reports whether the descriptor refers to a package-level declaration.
func (d Descriptor) Named() bool {
	return d.PkgPath != "" && d.Name != ""
}
