package types

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"fortio.org/safecast"

	"pipegen/runtime/rt"
)

// RuntimePath is the import path of the runtime support package used by generated code.
const RuntimePath = "pipegen/runtime/rt"

// Builtins stores TypeIDs for types every table knows about.
type Builtins struct {
	Invalid TypeID
	Any     TypeID
	Error   TypeID
	Bool    TypeID
	String  TypeID
	Int     TypeID
	Int64   TypeID
	Float64 TypeID
	Context TypeID
	Runtime TypeID // *rt.Context
	Future  TypeID // rt.Future
}

var (
	closerType = reflect.TypeFor[io.Closer]()
	errorType  = reflect.TypeFor[error]()
)

// Table is the type-descriptor table. Types enter it once, at registration,
// from reflect metadata; resolution and emission only consult descriptors.
type Table struct {
	mu       sync.RWMutex
	descs    []Descriptor
	rtypes   []reflect.Type
	index    map[reflect.Type]TypeID
	assign   map[[2]TypeID]struct{}
	builtins Builtins

	funcs    []*Func
	globals  []*Global
	pkgNames map[string]string
	exports  map[string]map[string]reflect.Value
}

// NewTable constructs a table seeded with the builtin types.
func NewTable() *Table {
	t := &Table{
		descs:    []Descriptor{{Kind: KindInvalid}},
		rtypes:   []reflect.Type{nil},
		index:    make(map[reflect.Type]TypeID, 64),
		assign:   make(map[[2]TypeID]struct{}, 64),
		pkgNames: make(map[string]string),
		exports:  make(map[string]map[string]reflect.Value),
	}
	t.builtins = Builtins{
		Invalid: NoTypeID,
		Any:     t.Of(reflect.TypeFor[any]()),
		Error:   t.Of(errorType),
		Bool:    t.Of(reflect.TypeFor[bool]()),
		String:  t.Of(reflect.TypeFor[string]()),
		Int:     t.Of(reflect.TypeFor[int]()),
		Int64:   t.Of(reflect.TypeFor[int64]()),
		Float64: t.Of(reflect.TypeFor[float64]()),
		Context: t.Of(reflect.TypeFor[context.Context]()),
		Runtime: t.Of(reflect.TypeFor[*rt.Context]()),
		Future:  t.Of(reflect.TypeFor[rt.Future]()),
	}
	t.pkgNames[RuntimePath] = "rt"
	return t
}

// Builtins returns TypeIDs for the builtin types.
func (t *Table) Builtins() Builtins {
	return t.builtins
}

// TypeFor registers T and returns its TypeID.
func TypeFor[T any](t *Table) TypeID {
	return t.Of(reflect.TypeFor[T]())
}

// Of returns the TypeID for rt, registering it (and the types it refers to) on first use.
func (t *Table) Of(typ reflect.Type) TypeID {
	if typ == nil {
		return NoTypeID
	}
	t.mu.RLock()
	id, ok := t.index[typ]
	t.mu.RUnlock()
	if ok {
		return id
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.register(typ)
}

// register must be called with mu held.
func (t *Table) register(typ reflect.Type) TypeID {
	if id, ok := t.index[typ]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(t.descs))
	if err != nil {
		panic(fmt.Errorf("types: table overflow: %w", err))
	}
	id := TypeID(n)
	// Reserve the slot before recursing so self-referential types terminate.
	t.index[typ] = id
	t.descs = append(t.descs, Descriptor{})
	t.rtypes = append(t.rtypes, typ)

	d := Descriptor{
		Name:    typ.Name(),
		PkgPath: typ.PkgPath(),
		Closer:  typ.Implements(closerType),
		Error:   typ.Implements(errorType),
	}
	switch {
	case typ.Kind() == reflect.Interface:
		d.Kind = KindInterface
		if d.Name == "" && typ.NumMethod() == 0 {
			d.Name = "any"
		}
		if d.Name == "" {
			d.Kind = KindOpaque
		}
	case typ.Name() != "" && typ.PkgPath() == "":
		d.Kind = KindBasic
	case typ.Name() != "":
		d.Kind = KindNamed
	case typ.Kind() == reflect.Pointer:
		d.Kind = KindPointer
		d.Elem = t.register(typ.Elem())
	case typ.Kind() == reflect.Slice:
		d.Kind = KindSlice
		d.Elem = t.register(typ.Elem())
	case typ.Kind() == reflect.Map:
		d.Kind = KindMap
		d.Key = t.register(typ.Key())
		d.Elem = t.register(typ.Elem())
	default:
		d.Kind = KindOpaque
	}
	if d.Kind == KindNamed && typ.Kind() == reflect.Struct {
		d.Fields = t.structFields(typ)
	}
	t.descs[id] = d
	if d.Named() {
		t.exportLocked(d.PkgPath, d.Name, reflect.Zero(reflect.PointerTo(typ)))
	}
	t.linkAssignable(id, typ)
	return id
}

func (t *Table) structFields(typ reflect.Type) []Field {
	fields := make([]Field, 0, typ.NumField())
	for i := range typ.NumField() {
		sf := typ.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		key := sf.Tag.Get("pipe")
		if key == "-" {
			continue
		}
		if key == "" {
			key = LowerCamel(sf.Name)
		}
		fields = append(fields, Field{Name: sf.Name, Key: key, Type: t.register(sf.Type)})
	}
	return fields
}

// linkAssignable records interface satisfaction between id and every known type.
func (t *Table) linkAssignable(id TypeID, typ reflect.Type) {
	for other := 1; other < len(t.rtypes); other++ {
		otherID := TypeID(other) //nolint:gosec // bounded by len(descs), checked at registration
		if otherID == id {
			continue
		}
		ot := t.rtypes[other]
		if ot.Kind() == reflect.Interface && typ.Implements(ot) {
			t.assign[[2]TypeID{id, otherID}] = struct{}{}
		}
		if typ.Kind() == reflect.Interface && ot.Implements(typ) {
			t.assign[[2]TypeID{otherID, id}] = struct{}{}
		}
	}
}

// Lookup returns the descriptor for id.
func (t *Table) Lookup(id TypeID) (Descriptor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id == NoTypeID || int(id) >= len(t.descs) {
		return Descriptor{}, false
	}
	return t.descs[id], true
}

// MustLookup panics when id is unknown.
func (t *Table) MustLookup(id TypeID) Descriptor {
	d, ok := t.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return d
}

// Assignable reports whether a value of type src may be used where dst is expected.
func (t *Table) Assignable(src, dst TypeID) bool {
	if src == NoTypeID || dst == NoTypeID {
		return false
	}
	if src == dst || dst == t.builtins.Any {
		return true
	}
	t.mu.RLock()
	_, ok := t.assign[[2]TypeID{src, dst}]
	t.mu.RUnlock()
	return ok
}

// Pointer returns the TypeID of *id.
func (t *Table) Pointer(id TypeID) TypeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == NoTypeID || int(id) >= len(t.rtypes) {
		return NoTypeID
	}
	return t.register(reflect.PointerTo(t.rtypes[id]))
}

// Fields returns the struct fields of id, looking through one pointer.
func (t *Table) Fields(id TypeID) []Field {
	d, ok := t.Lookup(id)
	if !ok {
		return nil
	}
	if d.Kind == KindPointer {
		d, ok = t.Lookup(d.Elem)
		if !ok {
			return nil
		}
	}
	return d.Fields
}

// String renders id the way it would appear in Go source with package names.
func (t *Table) String(id TypeID) string {
	d, ok := t.Lookup(id)
	if !ok {
		return "<invalid>"
	}
	switch d.Kind {
	case KindPointer:
		return "*" + t.String(d.Elem)
	case KindSlice:
		return "[]" + t.String(d.Elem)
	case KindMap:
		return "map[" + t.String(d.Key) + "]" + t.String(d.Elem)
	case KindOpaque:
		if typ := t.reflectType(id); typ != nil {
			return typ.String()
		}
		return "<opaque>"
	}
	if d.PkgPath == "" {
		return d.Name
	}
	return t.PackageName(d.PkgPath) + "." + d.Name
}

func (t *Table) reflectType(id TypeID) reflect.Type {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.rtypes) {
		return nil
	}
	return t.rtypes[id]
}

// ServiceKey is the container key used for services of type id.
func (t *Table) ServiceKey(id TypeID) string {
	d, ok := t.Lookup(id)
	if !ok {
		return ""
	}
	if d.Kind == KindPointer {
		return "*" + t.ServiceKey(d.Elem)
	}
	if d.PkgPath == "" {
		return d.Name
	}
	return d.PkgPath + "." + d.Name
}

// ServiceKeyFor returns the container key for T.
func ServiceKeyFor[T any](t *Table) string {
	return t.ServiceKey(TypeFor[T](t))
}

// LowerCamel lowercases the leading run of upper-case letters of s.
func LowerCamel(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	i := 0
	for i < len(runes) && runes[i] >= 'A' && runes[i] <= 'Z' {
		i++
	}
	switch {
	case i == 0:
		return s
	case i == 1 || i == len(runes):
		return strings.ToLower(string(runes[:i])) + string(runes[i:])
	default:
		// keep the last capital of an initialism: "HTTPServer" -> "httpServer"
		return strings.ToLower(string(runes[:i-1])) + string(runes[i-1:])
	}
}
