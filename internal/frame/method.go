package frame

import (
	"pipegen/internal/types"
)

// AsyncMode is the execution shape of a generated method.
type AsyncMode uint8

const (
	// AsyncNone methods return (any, error) directly.
	AsyncNone AsyncMode = iota
	// AsyncTail methods return the future of their final call without awaiting it.
	AsyncTail
	// AsyncAwaitEach methods run in a task and await every suspending call in order.
	AsyncAwaitEach
)

func (m AsyncMode) String() string {
	switch m {
	case AsyncNone:
		return "none"
	case AsyncTail:
		return "suspend-tail"
	case AsyncAwaitEach:
		return "suspend-await-each"
	default:
		return "unknown"
	}
}

// CatchKind selects how a handler matches an error.
type CatchKind uint8

const (
	// CatchSentinel matches with errors.Is against a registered package variable.
	CatchSentinel CatchKind = iota
	// CatchType matches with errors.As against a registered error type.
	CatchType
	// CatchAny matches every error; it always runs after the others.
	CatchAny
)

// Catch describes the error kind a handler converts.
type Catch struct {
	Kind     CatchKind
	Sentinel *types.Global
	Type     types.TypeID
}

// Sentinel matches errors wrapping g.
func Sentinel(g *types.Global) Catch { return Catch{Kind: CatchSentinel, Sentinel: g} }

// ErrorType matches errors of type id anywhere in the chain.
func ErrorType(id types.TypeID) Catch { return Catch{Kind: CatchType, Type: id} }

// AnyError matches every error.
func AnyError() Catch { return Catch{Kind: CatchAny} }

// Handler replaces the method's outcome when a matching error escapes the body.
type Handler struct {
	Catch  Catch
	Frames []ID
	// Caught holds the matched error inside Frames.
	Caught VarID
}

// Method is the generated method of one operation: a flattened frame chain,
// its exception regions and its execution shape.
type Method struct {
	Name   string
	Graph  *Graph
	Result types.TypeID
	Attrs  map[string]string

	// Ctx and RC are the arguments every generated method receives.
	Ctx VarID
	RC  VarID

	// Chain, Finally and Handlers are valid after Arrange.
	Chain    []ID
	Finally  []ID
	Handlers []Handler
	// Prologue is filled by the resolver with frames hoisted from sources.
	Prologue []ID
	Mode     AsyncMode

	roots    []ID
	finally  []ID
	handlers []Handler
	arranged bool
}

// NewMethod creates a method named name that returns values of type result.
func NewMethod(g *Graph, name string, result types.TypeID) *Method {
	b := g.Types().Builtins()
	if result == types.NoTypeID {
		result = b.Any
	}
	return &Method{
		Name:   name,
		Graph:  g,
		Result: result,
		Attrs:  map[string]string{},
		Ctx:    g.Argument(b.Context, "ctx"),
		RC:     g.Argument(b.Runtime, "rc"),
	}
}

// Append adds frames to the end of the top-level chain.
func (m *Method) Append(ids ...ID) { m.roots = append(m.roots, ids...) }

// AddFinally registers frames that run on every exit path.
func (m *Method) AddFinally(ids ...ID) { m.finally = append(m.finally, ids...) }

// AddHandler registers frames that replace the outcome when c matches an
// escaping error. The returned variable holds the matched error.
func (m *Method) AddHandler(c Catch, ids ...ID) VarID {
	g := m.Graph
	typ := g.Types().Builtins().Error
	hint := "cause"
	if c.Kind == CatchType {
		typ = c.Type
		hint = ""
	}
	v := g.NewVar(typ, hint)
	g.vars[v].Origin = OriginCaught
	m.handlers = append(m.handlers, Handler{Catch: c, Frames: ids, Caught: v})
	return v
}

// Arranged reports whether Arrange has run.
func (m *Method) Arranged() bool { return m.arranged }

// Arrange flattens composites, evaluates build-time conditionals, links the
// chains and decides the execution shape. A frame reached twice is recorded as
// ErrFrameRechain. Arrange runs once; later calls only report the graph errors.
func (m *Method) Arrange() error {
	if m.arranged {
		return m.Graph.Err()
	}
	m.arranged = true
	m.Chain = m.flatten(m.roots)
	m.Finally = m.flatten(m.finally)
	m.Handlers = m.Handlers[:0]
	for _, h := range orderHandlers(m.Graph.Types(), m.handlers) {
		h.Frames = m.flatten(h.Frames)
		m.Handlers = append(m.Handlers, h)
	}
	m.Mode = m.shape()
	return m.Graph.Err()
}

func (m *Method) flatten(ids []ID) []ID {
	g := m.Graph
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		f := g.Frame(id)
		if f == nil {
			continue
		}
		if f.chained {
			g.fail(&BuildError{Kind: ErrFrameRechain, Frame: id, Label: f.Label})
			continue
		}
		f.chained = true
		switch f.Kind {
		case KindComposite:
			out = append(out, m.flatten(f.Composite.Children)...)
		case KindConditional:
			if f.Conditional.Predicate == nil || f.Conditional.Predicate(m) {
				out = append(out, m.flatten(f.Conditional.Children)...)
			}
		case KindIf:
			f.If.Inner = m.flatten(f.If.Inner)
			out = append(out, id)
		case KindConstruct:
			if f.Construct.Mode == ConstructScoped {
				f.Construct.Inner = m.flatten(f.Construct.Inner)
			}
			out = append(out, id)
		case KindCode, KindLiteral, KindCall, KindReturn, KindInvalid:
			out = append(out, id)
		}
	}
	for i := range out {
		next := NoFrame
		if i+1 < len(out) {
			next = out[i+1]
		}
		g.frames[out[i]].Next = next
	}
	return out
}

// orderHandlers puts more specific catches first and CatchAny last, keeping
// registration order otherwise.
func orderHandlers(tbl *types.Table, hs []Handler) []Handler {
	out := make([]Handler, 0, len(hs))
	for _, h := range hs {
		at := len(out)
		for i, e := range out {
			if moreSpecific(tbl, h.Catch, e.Catch) {
				at = i
				break
			}
		}
		out = append(out, Handler{})
		copy(out[at+1:], out[at:])
		out[at] = h
	}
	return out
}

func moreSpecific(tbl *types.Table, a, b Catch) bool {
	if b.Kind == CatchAny {
		return a.Kind != CatchAny
	}
	if a.Kind == CatchType && b.Kind == CatchType {
		return a.Type != b.Type && tbl.Assignable(a.Type, b.Type)
	}
	return false
}

func (m *Method) shape() AsyncMode {
	g := m.Graph
	async := 0
	for _, id := range m.Chain {
		if g.Async(id) {
			async++
		}
	}
	for _, id := range m.Finally {
		if g.Async(id) {
			async++
		}
	}
	for _, h := range m.Handlers {
		for _, id := range h.Frames {
			if g.Async(id) {
				async++
			}
		}
	}
	if async == 0 {
		return AsyncNone
	}
	if async > 1 || len(m.Handlers) > 0 || len(m.Finally) > 0 || len(m.Chain) == 0 {
		return AsyncAwaitEach
	}
	last := g.Frame(m.Chain[len(m.Chain)-1])
	if last.Kind != KindCall || last.Call.Mode != CallReturn || !g.Async(last.ID) {
		return AsyncAwaitEach
	}
	for _, id := range m.Chain {
		if f := g.Frame(id); f.Kind == KindConstruct && f.Construct.Mode == ConstructScoped {
			return AsyncAwaitEach
		}
	}
	return AsyncTail
}

// Async reports whether the method has a suspension-capable signature.
func (m *Method) Async() bool { return m.Mode != AsyncNone }
