package frame

import (
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"fortio.org/safecast"

	"pipegen/internal/types"
)

// Names the emitter uses for its own identifiers; variables never take them.
var reservedNames = []string{
	"ctx", "rc", "err", "result", "raw", "caught", "res", "errors", "context",
	"any", "bool", "error", "string", "int", "int64", "float64", "byte", "rune",
	"nil", "true", "false", "len", "cap", "new", "make", "append", "panic", "recover",
}

// Graph is the arena of frames and variables built for one operation.
type Graph struct {
	tbl    *types.Table
	frames []Frame
	vars   []Variable
	hints  []string
	used   map[string]struct{}
	errs   []error
}

// NewGraph creates an empty arena bound to tbl. Package names known to tbl
// are reserved so variables never shadow an import.
func NewGraph(tbl *types.Table) *Graph {
	g := &Graph{
		tbl:    tbl,
		frames: make([]Frame, 1, 32),
		vars:   make([]Variable, 1, 32),
		hints:  make([]string, 1, 32),
		used:   make(map[string]struct{}, 64),
	}
	for _, name := range reservedNames {
		g.used[name] = struct{}{}
	}
	for _, name := range tbl.PackageNames() {
		g.used[name] = struct{}{}
	}
	for _, path := range tbl.Packages() {
		g.used[tbl.PackageName(path)] = struct{}{}
	}
	return g
}

// Types returns the descriptor table the graph was built against.
func (g *Graph) Types() *types.Table { return g.tbl }

// Frame returns the frame with id, or nil.
func (g *Graph) Frame(id ID) *Frame {
	if id == NoFrame || int(id) >= len(g.frames) {
		return nil
	}
	return &g.frames[id]
}

// Var returns the variable with id, or nil.
func (g *Graph) Var(id VarID) *Variable {
	if id == NoVar || int(id) >= len(g.vars) {
		return nil
	}
	return &g.vars[id]
}

// Hint returns the name originally requested for v, before deduplication.
func (g *Graph) Hint(v VarID) string {
	if v == NoVar || int(v) >= len(g.hints) {
		return ""
	}
	return g.hints[v]
}

// Len returns the number of frames in the arena.
func (g *Graph) Len() int { return len(g.frames) - 1 }

// Err returns every construction error recorded so far.
func (g *Graph) Err() error { return errors.Join(g.errs...) }

func (g *Graph) fail(err error) { g.errs = append(g.errs, err) }

// NewVar allocates an unclaimed variable of type typ. The emitted name is
// derived from hint (or the type) and is unique within the graph.
func (g *Graph) NewVar(typ types.TypeID, hint string) VarID {
	if hint == "" {
		hint = g.tbl.VarName(typ)
	}
	n, err := safecast.Conv[uint32](len(g.vars))
	if err != nil {
		panic(fmt.Errorf("frame: variable arena overflow: %w", err))
	}
	id := VarID(n)
	g.vars = append(g.vars, Variable{ID: id, Type: typ, Name: g.uniqueName(hint)})
	g.hints = append(g.hints, hint)
	return id
}

// Argument declares a parameter of the generated method.
func (g *Graph) Argument(typ types.TypeID, name string) VarID {
	n, err := safecast.Conv[uint32](len(g.vars))
	if err != nil {
		panic(fmt.Errorf("frame: variable arena overflow: %w", err))
	}
	id := VarID(n)
	g.vars = append(g.vars, Variable{ID: id, Type: typ, Name: name, Origin: OriginArgument})
	g.hints = append(g.hints, name)
	return id
}

func (g *Graph) uniqueName(hint string) string {
	base := identifier(hint)
	name := base
	for i := 2; ; i++ {
		if _, taken := g.used[name]; !taken && !token.IsKeyword(name) {
			break
		}
		name = base + strconv.Itoa(i)
	}
	g.used[name] = struct{}{}
	return name
}

func identifier(hint string) string {
	var b strings.Builder
	upper := false
	for _, r := range hint {
		switch {
		case unicode.IsLetter(r) || r == '_' || (unicode.IsDigit(r) && b.Len() > 0):
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			b.WriteRune(r)
		default:
			upper = b.Len() > 0
		}
	}
	if b.Len() == 0 {
		return "v"
	}
	return types.LowerCamel(b.String())
}

func (g *Graph) add(f Frame) ID {
	n, err := safecast.Conv[uint32](len(g.frames))
	if err != nil {
		panic(fmt.Errorf("frame: frame arena overflow: %w", err))
	}
	f.ID = ID(n)
	g.frames = append(g.frames, f)
	for _, v := range f.Creates {
		g.claim(f.ID, v)
	}
	return f.ID
}

// claim records id as the single creator of v.
func (g *Graph) claim(id ID, v VarID) {
	vr := g.Var(v)
	if vr == nil {
		g.fail(&BuildError{Kind: ErrInvalidCallMode, Frame: id, Label: g.frames[id].Label, Detail: fmt.Sprintf("unknown variable %d", v)})
		return
	}
	if vr.Origin != OriginFrame || vr.Creator != NoFrame {
		g.fail(&BuildError{Kind: ErrMultipleCreators, Frame: id, Label: g.frames[id].Label, Name: vr.Name})
		return
	}
	vr.Creator = id
}

func (g *Graph) invalid(id ID, format string, args ...any) {
	g.fail(&BuildError{Kind: ErrInvalidCallMode, Frame: id, Label: g.frames[id].Label, Detail: fmt.Sprintf(format, args...)})
}

// Code adds a frame whose statements are written by render.
func (g *Graph) Code(label string, render Renderer, uses []Request, creates ...VarID) ID {
	return g.add(Frame{Kind: KindCode, Label: label, Creates: creates, Code: CodeFrame{Uses: uses, Render: render}})
}

// Literal adds a frame binding value to a new variable called name.
func (g *Graph) Literal(name string, value any) (ID, VarID) {
	v := g.NewVar(g.tbl.Of(reflect.TypeOf(value)), name)
	id := g.add(Frame{Kind: KindLiteral, Label: "literal " + name, Creates: []VarID{v}, Literal: LiteralFrame{Value: value}})
	return id, v
}

// CallOption configures a call frame.
type CallOption func(*callConfig)

type callConfig struct {
	args    []Request
	recv    Request
	mode    CallMode
	dispose DisposeMode
	names   []string
	label   string
}

// Args supplies the argument requests positionally. Zero requests fall back to lookup by parameter type.
func Args(reqs ...Request) CallOption { return func(c *callConfig) { c.args = reqs } }

// Recv supplies the receiver request for method calls.
func Recv(req Request) CallOption { return func(c *callConfig) { c.recv = req } }

// Returning makes the call's single result the method's return value.
func Returning() CallOption { return func(c *callConfig) { c.mode = CallReturn } }

// Discarding evaluates the call without binding its results.
func Discarding() CallOption { return func(c *callConfig) { c.mode = CallDiscard } }

// Disposing releases the closable result when the method returns.
func Disposing() CallOption { return func(c *callConfig) { c.dispose = DisposeDefer } }

// ResultNames names the result variables positionally.
func ResultNames(names ...string) CallOption { return func(c *callConfig) { c.names = names } }

// Label overrides the frame label used in diagnostics.
func Label(label string) CallOption { return func(c *callConfig) { c.label = label } }

// Call adds a frame invoking fn.
func (g *Graph) Call(fn *types.Func, opts ...CallOption) ID {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	label := cfg.label
	if label == "" {
		label = "call " + fn.String()
	}
	id := g.add(Frame{Kind: KindCall, Label: label})
	if fn == nil {
		g.invalid(id, "call without a function")
		return id
	}
	args := append([]Request(nil), cfg.args...)
	if cfg.args == nil {
		args = make([]Request, len(fn.Params))
	}
	switch {
	case len(args) != len(fn.Params) && !fn.Variadic:
		g.invalid(id, "%s takes %d arguments, got %d", fn, len(fn.Params), len(args))
	case fn.Variadic && len(args) < len(fn.Params)-1:
		g.invalid(id, "%s takes at least %d arguments, got %d", fn, len(fn.Params)-1, len(args))
	}
	for i := range args {
		if args[i].IsZero() && i < len(fn.Params) {
			args[i] = Want(fn.Params[i])
		}
	}
	recv := cfg.recv
	if fn.Recv != types.NoTypeID && recv.IsZero() {
		recv = Want(fn.Recv)
	}
	if fn.Recv == types.NoTypeID && !recv.IsZero() {
		g.invalid(id, "%s is not a method", fn)
	}
	if cfg.mode == CallReturn && len(fn.Results) != 1 {
		g.invalid(id, "%s returns %d values, cannot become the method result", fn, len(fn.Results))
	}
	if cfg.dispose == DisposeDefer {
		switch {
		case cfg.mode != CallBind:
			g.invalid(id, "disposal requires a bound result")
		case len(fn.Results) == 0 || !g.tbl.MustLookup(fn.Results[0]).Closer:
			g.invalid(id, "result of %s is not closable", fn)
		case fn.Async:
			g.invalid(id, "async result of %s cannot be disposed", fn)
		}
	}
	var creates []VarID
	if cfg.mode == CallBind {
		for i, res := range fn.Results {
			hint := ""
			if i < len(cfg.names) {
				hint = cfg.names[i]
			}
			creates = append(creates, g.NewVar(res, hint))
		}
	}
	f := &g.frames[id]
	f.Call = CallFrame{Func: fn, Recv: recv, Args: args, Mode: cfg.mode, Dispose: cfg.dispose}
	f.Creates = creates
	for _, v := range creates {
		g.claim(id, v)
	}
	return id
}

// ConstructOption configures a construct frame.
type ConstructOption func(*constructConfig)

type constructConfig struct {
	args  []Request
	mode  ConstructMode
	inner []ID
	name  string
}

// ConstructArgs supplies constructor parameters or struct fields positionally.
func ConstructArgs(reqs ...Request) ConstructOption {
	return func(c *constructConfig) { c.args = reqs }
}

// AsReturn makes the constructed value the method's return value.
func AsReturn() ConstructOption { return func(c *constructConfig) { c.mode = ConstructReturn } }

// Scoped guards inner with the constructed resource and releases it afterwards.
func Scoped(inner ...ID) ConstructOption {
	return func(c *constructConfig) {
		c.mode = ConstructScoped
		c.inner = inner
	}
}

// As names the constructed variable.
func As(name string) ConstructOption { return func(c *constructConfig) { c.name = name } }

// Construct adds a frame building a value of type typ, through ctor when it
// is non-nil and through a struct literal otherwise.
func (g *Graph) Construct(typ types.TypeID, ctor *types.Func, opts ...ConstructOption) ID {
	var cfg constructConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	id := g.add(Frame{Kind: KindConstruct, Label: "construct " + g.tbl.String(typ)})
	payload := ConstructFrame{Type: typ, Func: ctor, Mode: cfg.mode, Inner: cfg.inner}
	var params []types.TypeID
	hints := map[int]string{}
	if ctor != nil {
		switch {
		case len(ctor.Results) != 1:
			g.invalid(id, "constructor %s must return exactly one value", ctor)
		case ctor.Async:
			g.invalid(id, "constructor %s cannot be async", ctor)
		case !g.tbl.Assignable(ctor.Results[0], typ):
			g.invalid(id, "constructor %s does not produce %s", ctor, g.tbl.String(typ))
		}
		params = ctor.Params
	} else {
		payload.Fields = g.tbl.Fields(typ)
		if !literalType(g.tbl, typ) {
			g.invalid(id, "%s cannot be built as a struct literal", g.tbl.String(typ))
		}
		for i, field := range payload.Fields {
			params = append(params, field.Type)
			hints[i] = field.Key
		}
	}
	args := append([]Request(nil), cfg.args...)
	if cfg.args == nil {
		args = make([]Request, len(params))
	}
	if len(args) != len(params) {
		g.invalid(id, "%s expects %d arguments, got %d", g.tbl.String(typ), len(params), len(args))
	}
	for i := range args {
		if args[i].IsZero() && i < len(params) {
			args[i] = Named(params[i], hints[i])
		}
	}
	payload.Args = args
	if cfg.mode == ConstructScoped && !g.tbl.MustLookup(typ).Closer {
		g.invalid(id, "scoped resource %s is not closable", g.tbl.String(typ))
	}
	f := &g.frames[id]
	f.Construct = payload
	if cfg.mode != ConstructReturn {
		v := g.NewVar(typ, cfg.name)
		f.Creates = []VarID{v}
		g.claim(id, v)
	}
	return id
}

// literalType reports whether typ is a named type or a pointer to one.
func literalType(tbl *types.Table, typ types.TypeID) bool {
	d, ok := tbl.Lookup(typ)
	if !ok {
		return false
	}
	if d.Kind == types.KindPointer {
		d, ok = tbl.Lookup(d.Elem)
	}
	return ok && d.Kind == types.KindNamed
}

// Return adds a frame exiting the method with the value satisfying req.
func (g *Graph) Return(req Request) ID {
	return g.add(Frame{Kind: KindReturn, Label: "return", Return: ReturnFrame{Value: req}})
}

// ReturnNothing adds a frame exiting the method with rt.NoResult.
func (g *Graph) ReturnNothing() ID {
	return g.add(Frame{Kind: KindReturn, Label: "return", Return: ReturnFrame{NoResult: true}})
}

// If adds a runtime conditional around inner.
func (g *Graph) If(cond Request, inner ...ID) ID {
	label := "if"
	if cond.Name != "" {
		label = "if " + cond.Name
	}
	return g.add(Frame{Kind: KindIf, Label: label, If: IfFrame{Cond: cond, Inner: inner}})
}

// IfNot adds a runtime conditional around inner that runs when cond is false.
func (g *Graph) IfNot(cond Request, inner ...ID) ID {
	id := g.If(cond, inner...)
	g.frames[id].If.Not = true
	g.frames[id].Label = "if not " + cond.Name
	return id
}

// Composite adds a frame whose children are spliced in place.
func (g *Graph) Composite(label string, children ...ID) ID {
	return g.add(Frame{Kind: KindComposite, Label: label, Composite: CompositeFrame{Children: children}})
}

// Conditional adds a frame whose children are kept only when pred holds at arrangement.
func (g *Graph) Conditional(label string, pred Predicate, children ...ID) ID {
	return g.add(Frame{Kind: KindConditional, Label: label, Conditional: ConditionalFrame{Predicate: pred, Children: children}})
}

// Async reports whether the frame, or any frame it contains, suspends.
func (g *Graph) Async(id ID) bool {
	f := g.Frame(id)
	if f == nil {
		return false
	}
	switch f.Kind {
	case KindCall:
		return f.Call.Func != nil && f.Call.Func.Async
	case KindComposite:
		return g.anyAsync(f.Composite.Children)
	case KindConditional:
		return g.anyAsync(f.Conditional.Children)
	case KindIf:
		return g.anyAsync(f.If.Inner)
	case KindConstruct:
		return g.anyAsync(f.Construct.Inner)
	case KindCode, KindLiteral, KindReturn, KindInvalid:
		return false
	}
	return false
}

func (g *Graph) anyAsync(ids []ID) bool {
	for _, id := range ids {
		if g.Async(id) {
			return true
		}
	}
	return false
}
