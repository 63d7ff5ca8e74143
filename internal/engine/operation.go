package engine

import (
	"maps"

	"pipegen/internal/types"
)

// Property is a declared input of an operation. Generated code reads it
// from the invocation context under Name.
type Property struct {
	Name string
	Type types.TypeID
}

// Operation describes one operation type the engine can build.
type Operation struct {
	Name       string
	Properties []Property
	// Result is the declared result type; NoTypeID means any.
	Result types.TypeID
	Attrs  map[string]string
}

// Attr returns the attribute key, or "".
func (o *Operation) Attr(key string) string {
	if o == nil {
		return ""
	}
	return o.Attrs[key]
}

// Property returns the declared property name.
func (o *Operation) Property(name string) (Property, bool) {
	for _, p := range o.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

func (o Operation) clone() *Operation {
	o.Properties = append([]Property(nil), o.Properties...)
	o.Attrs = maps.Clone(o.Attrs)
	if o.Attrs == nil {
		o.Attrs = map[string]string{}
	}
	return &o
}

func (o *Operation) keys() map[string]types.TypeID {
	keys := make(map[string]types.TypeID, len(o.Properties))
	for _, p := range o.Properties {
		keys[p.Name] = p.Type
	}
	return keys
}
