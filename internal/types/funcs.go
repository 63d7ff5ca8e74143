package types

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// Func describes a callable the generated code may invoke: a package-level
// function or a method on a registered type.
type Func struct {
	PkgPath string
	Name    string
	// Recv is the receiver type for methods, NoTypeID for functions.
	Recv   TypeID
	Params []TypeID
	// Results excludes a trailing error. For async functions it holds the
	// yielded type instead of rt.Future.
	Results  []TypeID
	Errors   bool
	Async    bool
	Variadic bool
}

// String renders the callee as it appears in diagnostics.
func (f *Func) String() string {
	if f == nil {
		return "<nil func>"
	}
	if f.Recv != NoTypeID {
		return "(method)." + f.Name
	}
	return f.PkgPath + "." + f.Name
}

// FuncOption adjusts a Func during registration.
type FuncOption func(*Func)

// Yields marks a function returning rt.Future as async and declares the type
// its future resolves to.
func Yields(id TypeID) FuncOption {
	return func(f *Func) {
		f.Async = true
		if len(f.Results) == 1 {
			f.Results[0] = id
		}
	}
}

// Global describes an exported package-level variable such as a sentinel error.
type Global struct {
	PkgPath string
	Name    string
	Type    TypeID
}

// Func registers fn as pkgPath.name and exports it to interpreted units.
func (t *Table) Func(pkgPath, name string, fn any, opts ...FuncOption) (*Func, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("types: %s.%s is %T, not a function", pkgPath, name, fn)
	}
	f, err := t.signature(v.Type(), 0)
	if err != nil {
		return nil, fmt.Errorf("types: %s.%s: %w", pkgPath, name, err)
	}
	f.PkgPath = pkgPath
	f.Name = name
	for _, opt := range opts {
		opt(f)
	}
	t.mu.Lock()
	t.funcs = append(t.funcs, f)
	t.exportLocked(pkgPath, name, v)
	t.mu.Unlock()
	return f, nil
}

// MustFunc is Func that panics on error. Intended for static registration.
func (t *Table) MustFunc(pkgPath, name string, fn any, opts ...FuncOption) *Func {
	f, err := t.Func(pkgPath, name, fn, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// Method describes method name of the registered type recv.
func (t *Table) Method(recv TypeID, name string, opts ...FuncOption) (*Func, error) {
	typ := t.reflectType(recv)
	if typ == nil {
		return nil, fmt.Errorf("types: unknown receiver type %d", recv)
	}
	m, ok := typ.MethodByName(name)
	if !ok {
		return nil, fmt.Errorf("types: %s has no method %s", typ, name)
	}
	skip := 1
	if typ.Kind() == reflect.Interface {
		skip = 0
	}
	f, err := t.signature(m.Type, skip)
	if err != nil {
		return nil, fmt.Errorf("types: %s.%s: %w", typ, name, err)
	}
	f.Name = name
	f.Recv = recv
	for _, opt := range opts {
		opt(f)
	}
	t.mu.Lock()
	t.funcs = append(t.funcs, f)
	t.mu.Unlock()
	return f, nil
}

// MustMethod is Method that panics on error.
func (t *Table) MustMethod(recv TypeID, name string, opts ...FuncOption) *Func {
	f, err := t.Method(recv, name, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

func (t *Table) signature(ft reflect.Type, skip int) (*Func, error) {
	f := &Func{Variadic: ft.IsVariadic()}
	for i := skip; i < ft.NumIn(); i++ {
		f.Params = append(f.Params, t.Of(ft.In(i)))
	}
	n := ft.NumOut()
	if n > 0 && ft.Out(n-1) == errorType {
		f.Errors = true
		n--
	}
	for i := range n {
		f.Results = append(f.Results, t.Of(ft.Out(i)))
	}
	if len(f.Results) == 1 && f.Results[0] == t.builtins.Future {
		f.Async = true
		f.Results[0] = t.builtins.Any
	}
	if f.Async && f.Errors {
		return nil, fmt.Errorf("async functions report errors through the future")
	}
	return f, nil
}

// Var registers the package-level variable pointed to by ptr as pkgPath.name.
func (t *Table) Var(pkgPath, name string, ptr any) (*Global, error) {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, fmt.Errorf("types: %s.%s must be registered through a non-nil pointer", pkgPath, name)
	}
	g := &Global{PkgPath: pkgPath, Name: name, Type: t.Of(v.Type().Elem())}
	t.mu.Lock()
	t.globals = append(t.globals, g)
	t.exportLocked(pkgPath, name, v.Elem())
	t.mu.Unlock()
	return g, nil
}

// MustVar is Var that panics on error.
func (t *Table) MustVar(pkgPath, name string, ptr any) *Global {
	g, err := t.Var(pkgPath, name, ptr)
	if err != nil {
		panic(err)
	}
	return g
}

// SetPackageName overrides the package name derived from path.
func (t *Table) SetPackageName(path, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old := t.pkgNames[path]; old != "" && old != name {
		if syms, ok := t.exports[path+"/"+old]; ok {
			delete(t.exports, path+"/"+old)
			t.exports[path+"/"+name] = syms
		}
	}
	t.pkgNames[path] = name
}

// PackageName returns the package name used for path.
func (t *Table) PackageName(path string) string {
	t.mu.RLock()
	name, ok := t.pkgNames[path]
	t.mu.RUnlock()
	if ok {
		return name
	}
	return guessPackageName(path)
}

// PackageNames returns a copy of every known path → name mapping.
func (t *Table) PackageNames() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.pkgNames))
	for k, v := range t.pkgNames {
		out[k] = v
	}
	return out
}

// Exports returns the host symbols in the "importpath/pkgname" keyed shape
// expected by interpreters.
func (t *Table) Exports() map[string]map[string]reflect.Value {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]map[string]reflect.Value, len(t.exports))
	for key, syms := range t.exports {
		cp := make(map[string]reflect.Value, len(syms))
		for name, v := range syms {
			cp[name] = v
		}
		out[key] = cp
	}
	return out
}

// Packages lists the import paths with exported symbols, sorted.
func (t *Table) Packages() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	paths := make([]string, 0, len(t.pkgNames))
	for path := range t.pkgNames {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// exportLocked must be called with mu held.
func (t *Table) exportLocked(path, name string, v reflect.Value) {
	if path == RuntimePath {
		return
	}
	pkg, ok := t.pkgNames[path]
	if !ok {
		pkg = guessPackageName(path)
		t.pkgNames[path] = pkg
	}
	key := path + "/" + pkg
	syms := t.exports[key]
	if syms == nil {
		syms = make(map[string]reflect.Value)
		t.exports[key] = syms
	}
	syms[name] = v
}

var (
	majorVersion = regexp.MustCompile(`^v[0-9]+$`)
	nonIdent     = regexp.MustCompile(`[^a-z0-9_]`)
)

func guessPackageName(path string) string {
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	name := parts[len(parts)-1]
	if majorVersion.MatchString(name) && len(parts) > 1 {
		name = parts[len(parts)-2]
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	name = strings.TrimPrefix(name, "go-")
	name = nonIdent.ReplaceAllString(strings.ToLower(name), "")
	if name == "" {
		return "pkg"
	}
	return name
}
