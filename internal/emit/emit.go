// Package emit renders a resolved method to Go source with jennifer.
//
// The generated file declares one function:
//
//	func Execute(ctx context.Context, rc *rt.Context) (any, error)  // AsyncNone
//	func Execute(ctx context.Context, rc *rt.Context) rt.Future     // AsyncTail, AsyncAwaitEach
//
// Every frame is preceded by a "// frame N: label" marker. The markers build
// the SourceMap and are stripped from release output.
package emit

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dave/jennifer/jen"

	"pipegen/internal/frame"
	"pipegen/internal/resolve"
	"pipegen/internal/types"
)

const (
	// DefaultPackage is the package clause of generated units.
	DefaultPackage = "unit"
	// EntryPoint is the name of the generated function.
	EntryPoint = "Execute"
)

// Options control rendering.
type Options struct {
	Package string
	// Debug keeps the frame markers in the output.
	Debug bool
}

// Output is a rendered unit.
type Output struct {
	Source []byte
	Map    *SourceMap
	Mode   frame.AsyncMode
}

type emitter struct {
	r    *resolve.Resolver
	m    *frame.Method
	g    *frame.Graph
	tbl  *types.Table
	used map[frame.VarID]bool
	stop *Error
}

// Emit renders the method resolved by r. Resolution must have run. A frame
// that failed resolution stops rendering; the returned *Error carries the
// source produced up to that frame.
func Emit(r *resolve.Resolver, opts Options) (*Output, error) {
	if opts.Package == "" {
		opts.Package = DefaultPackage
	}
	m := r.Method()
	e := &emitter{r: r, m: m, g: m.Graph, tbl: m.Graph.Types()}
	e.used = e.usedVars()

	file := jen.NewFile(opts.Package)
	file.HeaderComment("Code generated by pipegen. DO NOT EDIT.")
	file.HeaderComment("operation: " + oneLine(m.Name))
	file.ImportNames(e.tbl.PackageNames())
	file.ImportName("context", "context")
	file.ImportName("errors", "errors")
	file.Add(e.function())

	src, err := render(file)
	if err != nil {
		return nil, &Error{Method: m.Name, Err: err, Source: src}
	}
	clean, smap := buildSourceMap(src, e.labels(), opts.Debug)
	if e.stop != nil {
		e.stop.Source = clean
		if rerr := r.Err(); rerr != nil {
			e.stop.Err = rerr
		}
		return nil, e.stop
	}
	return &Output{Source: clean, Map: smap, Mode: m.Mode}, nil
}

// render formats the file. On failure it returns the unformatted source.
func render(file *jen.File) ([]byte, error) {
	var buf bytes.Buffer
	err := file.Render(&buf)
	if err == nil {
		return buf.Bytes(), nil
	}
	buf.Reset()
	file.NoFormat = true
	if rerr := file.Render(&buf); rerr != nil {
		return nil, err
	}
	return buf.Bytes(), err
}

func (e *emitter) usedVars() map[frame.VarID]bool {
	used := make(map[frame.VarID]bool)
	for i := 1; i <= e.g.Len(); i++ {
		id := frame.ID(i) //nolint:gosec // bounded by Graph.Len
		for _, v := range e.r.Uses(id) {
			if v != frame.NoVar {
				used[v] = true
			}
		}
	}
	return used
}

func (e *emitter) labels() map[frame.ID]string {
	out := make(map[frame.ID]string, e.g.Len())
	for i := 1; i <= e.g.Len(); i++ {
		id := frame.ID(i) //nolint:gosec // bounded by Graph.Len
		out[id] = e.g.Frame(id).Label
	}
	return out
}

func (e *emitter) function() *jen.Statement {
	b := e.tbl.Builtins()
	params := jen.List(
		jen.Id(e.g.Var(e.m.Ctx).Name).Add(frame.TypeCode(e.tbl, b.Context)),
		jen.Id(e.g.Var(e.m.RC).Name).Add(frame.TypeCode(e.tbl, b.Runtime)),
	)
	fn := jen.Func().Id(EntryPoint).Params(params)
	switch e.m.Mode {
	case frame.AsyncNone:
		w := newWriter(regionResult)
		e.body(w)
		return fn.Parens(jen.List(jen.Any(), jen.Error())).Block(w.stmts...)
	case frame.AsyncTail:
		w := newWriter(regionFuture)
		e.body(w)
		return fn.Qual(types.RuntimePath, "Future").Block(w.stmts...)
	default:
		w := newWriter(regionResult)
		e.body(w)
		task := jen.Func().Params(jen.Id(e.g.Var(e.m.Ctx).Name).Add(frame.TypeCode(e.tbl, b.Context))).
			Parens(jen.List(jen.Any(), jen.Error())).Block(w.stmts...)
		return fn.Qual(types.RuntimePath, "Future").Block(
			jen.Return(jen.Qual(types.RuntimePath, "Go").Call(jen.Id(e.g.Var(e.m.Ctx).Name), task)),
		)
	}
}

// body writes prologue, finally region, handlers and the chain.
func (e *emitter) body(w *writer) {
	e.chain(w, e.m.Prologue)
	if len(e.m.Finally) > 0 && e.stop == nil {
		fin := newWriter(regionFinally)
		e.chain(fin, e.m.Finally)
		w.Add(jen.Defer().Func().Params().Block(fin.stmts...).Call())
	}
	if len(e.m.Handlers) == 0 {
		e.chain(w, e.m.Chain)
		if !e.terminates(e.m.Chain) {
			w.Exit(noResult())
		}
		return
	}
	e.guarded(w)
}

// guarded runs the chain inside a closure and converts matching errors.
func (e *emitter) guarded(w *writer) {
	inner := newWriter(regionResult)
	e.chain(inner, e.m.Chain)
	if !e.terminates(e.m.Chain) {
		inner.Exit(noResult())
	}
	res, err := jen.Id("res"), jen.Id("err")
	w.Add(jen.List(res, err).Op(":=").Func().Params().Parens(jen.List(jen.Any(), jen.Error())).Block(inner.stmts...).Call())
	w.Block(jen.If(err.Clone().Op("!=").Nil()), func() {
		for _, h := range e.m.Handlers {
			if e.stop != nil {
				return
			}
			e.handler(w, h)
		}
	})
	w.propagate(res, err)
}

func (e *emitter) handler(w *writer, h frame.Handler) {
	err := jen.Id("err")
	caught := e.g.Var(h.Caught)
	body := func() {
		if h.Catch.Kind != frame.CatchType && e.used[h.Caught] {
			w.Add(jen.Id(caught.Name).Op(":=").Add(err.Clone()))
		}
		e.chain(w, h.Frames)
		if !e.terminates(h.Frames) {
			w.Exit(noResult())
		}
	}
	switch h.Catch.Kind {
	case frame.CatchSentinel:
		s := h.Catch.Sentinel
		w.Block(jen.If(jen.Qual("errors", "Is").Call(err, jen.Qual(s.PkgPath, s.Name))), body)
	case frame.CatchType:
		w.Add(jen.Var().Id(caught.Name).Add(frame.TypeCode(e.tbl, h.Catch.Type)))
		w.Block(jen.If(jen.Qual("errors", "As").Call(err, jen.Op("&").Id(caught.Name))), body)
	case frame.CatchAny:
		w.Block(nil, body)
	}
}

// terminates reports whether the chain always leaves the function.
func (e *emitter) terminates(ids []frame.ID) bool {
	if len(ids) == 0 {
		return false
	}
	f := e.g.Frame(ids[len(ids)-1])
	switch f.Kind {
	case frame.KindReturn:
		return true
	case frame.KindCall:
		return f.Call.Mode == frame.CallReturn
	case frame.KindConstruct:
		return f.Construct.Mode == frame.ConstructReturn
	}
	return false
}

// chain generates ids in order; each frame splices the rest through next.
func (e *emitter) chain(w *writer, ids []frame.ID) {
	if len(ids) == 0 || e.stop != nil {
		return
	}
	e.generate(w, ids[0], func() { e.chain(w, ids[1:]) })
}

func (e *emitter) generate(w *writer, id frame.ID, next func()) {
	f := e.g.Frame(id)
	if !e.r.Resolved(id) {
		w.Add(jen.Comment(fmt.Sprintf("unresolved frame %d: %s", id, oneLine(f.Label))))
		e.stop = &Error{Method: e.m.Name, Frame: id, Label: f.Label}
		return
	}
	w.Add(jen.Comment(marker(id, f.Label)))
	in, err := e.args(f)
	if err != nil {
		e.stop = &Error{Method: e.m.Name, Frame: id, Label: f.Label, Err: err}
		return
	}
	switch f.Kind {
	case frame.KindCode:
		if f.Code.Render != nil {
			f.Code.Render(w, in, e.names(f.Creates))
		}
	case frame.KindLiteral:
		lit, err := literal(e.tbl, f.Literal.Value)
		if err != nil {
			e.stop = &Error{Method: e.m.Name, Frame: id, Label: f.Label, Err: err}
			return
		}
		w.Add(e.name(f.Creates[0]).Op(":=").Add(lit))
	case frame.KindCall:
		e.call(w, f, in)
	case frame.KindConstruct:
		e.construct(w, f, in)
	case frame.KindReturn:
		if f.Return.NoResult {
			w.Exit(noResult())
		} else {
			w.Exit(in[0])
		}
	case frame.KindIf:
		cond := jen.Add(in[0])
		if f.If.Not {
			cond = jen.Op("!").Add(in[0])
		}
		w.Block(jen.If(cond), func() { e.chain(w, f.If.Inner) })
	case frame.KindComposite:
		e.chain(w, f.Composite.Children)
	case frame.KindConditional:
		if f.Conditional.Predicate == nil || f.Conditional.Predicate(e.m) {
			e.chain(w, f.Conditional.Children)
		}
	case frame.KindInvalid:
	}
	for _, v := range f.Creates {
		if !e.used[v] && !e.disposed(f) {
			w.Add(jen.Id("_").Op("=").Add(e.name(v)))
		}
	}
	next()
}

func (e *emitter) disposed(f *frame.Frame) bool {
	switch f.Kind {
	case frame.KindCall:
		return f.Call.Dispose == frame.DisposeDefer
	case frame.KindConstruct:
		return f.Construct.Mode == frame.ConstructScoped
	}
	return false
}

// args renders the frame's requests as expressions, aligned with Requests.
func (e *emitter) args(f *frame.Frame) ([]jen.Code, error) {
	reqs := f.Requests()
	uses := e.r.Uses(f.ID)
	out := make([]jen.Code, len(reqs))
	for i, req := range reqs {
		if req.HasConst {
			lit, err := literal(e.tbl, req.Const)
			if err != nil {
				return nil, err
			}
			out[i] = lit
			continue
		}
		out[i] = e.name(uses[i])
	}
	return out, nil
}

func (e *emitter) name(v frame.VarID) *jen.Statement {
	if vr := e.g.Var(v); vr != nil {
		return jen.Id(vr.Name)
	}
	return jen.Id("_")
}

func (e *emitter) names(vs []frame.VarID) []jen.Code {
	out := make([]jen.Code, len(vs))
	for i, v := range vs {
		out[i] = e.name(v)
	}
	return out
}

func (e *emitter) callee(fn *types.Func, in []jen.Code) (*jen.Statement, []jen.Code) {
	if fn.Recv != types.NoTypeID {
		return jen.Add(in[0]).Dot(fn.Name), in[1:]
	}
	return jen.Qual(fn.PkgPath, fn.Name), in
}

func (e *emitter) call(w *writer, f *frame.Frame, in []jen.Code) {
	fn := f.Call.Func
	head, args := e.callee(fn, in)
	expr := head.Call(args...)
	if fn.Async {
		e.await(w, f, expr)
		return
	}
	switch {
	case f.Call.Mode == frame.CallReturn && fn.Errors:
		w.returnCall(expr)
	case f.Call.Mode == frame.CallReturn:
		w.Exit(expr)
	case len(f.Creates) == 0 && fn.Errors:
		lhs := blanks(len(fn.Results))
		lhs = append(lhs, jen.Id("err"))
		w.Block(jen.If(jen.List(lhs...).Op(":=").Add(expr), jen.Err().Op("!=").Nil()), func() { w.Fail(jen.Err()) })
	case len(f.Creates) == 0:
		w.Add(expr)
	case fn.Errors:
		lhs := append(e.names(f.Creates), jen.Err())
		w.Add(jen.List(lhs...).Op(":=").Add(expr))
		w.check(jen.Err())
	default:
		w.Add(jen.List(e.names(f.Creates)...).Op(":=").Add(expr))
	}
	if f.Call.Dispose == frame.DisposeDefer && len(f.Creates) > 0 {
		w.Add(jen.Defer().Add(e.name(f.Creates[0])).Dot("Close").Call())
	}
}

// await writes a suspending call. Tail methods return the future itself;
// every other shape awaits it in place.
func (e *emitter) await(w *writer, f *frame.Frame, expr *jen.Statement) {
	fn := f.Call.Func
	if w.region == regionFuture && f.Call.Mode == frame.CallReturn {
		w.Add(jen.Return(expr))
		return
	}
	ctx := jen.Id(e.g.Var(e.m.Ctx).Name)
	awaited := expr.Dot("Await").Call(ctx)
	switch {
	case f.Call.Mode == frame.CallReturn:
		w.returnCall(awaited)
	case len(f.Creates) == 0:
		w.Block(jen.If(jen.List(jen.Id("_"), jen.Err()).Op(":=").Add(awaited), jen.Err().Op("!=").Nil()), func() { w.Fail(jen.Err()) })
	case fn.Results[0] == e.tbl.Builtins().Any:
		w.Add(jen.List(e.name(f.Creates[0]), jen.Err()).Op(":=").Add(awaited))
		w.check(jen.Err())
	default:
		raw := e.g.NewVar(e.tbl.Builtins().Any, "raw")
		w.Add(jen.List(e.name(raw), jen.Err()).Op(":=").Add(awaited))
		w.check(jen.Err())
		typ := frame.TypeCode(e.tbl, fn.Results[0])
		w.Add(jen.List(e.name(f.Creates[0]), jen.Id("_")).Op(":=").Add(e.name(raw)).Assert(typ))
	}
}

func (e *emitter) construct(w *writer, f *frame.Frame, in []jen.Code) {
	c := f.Construct
	var value *jen.Statement
	errs := false
	if c.Func != nil {
		head, args := e.callee(c.Func, in)
		value = head.Call(args...)
		errs = c.Func.Errors
	} else {
		value = e.structLiteral(c, in)
	}
	bind := func(w *writer) {
		v := e.name(f.Creates[0])
		if errs {
			w.Add(jen.List(v, jen.Err()).Op(":=").Add(value))
			w.check(jen.Err())
			return
		}
		w.Add(v.Op(":=").Add(value))
	}
	switch c.Mode {
	case frame.ConstructReturn:
		if errs {
			w.returnCall(value)
		} else {
			w.Exit(value)
		}
	case frame.ConstructBind:
		bind(w)
	case frame.ConstructScoped:
		inner := newWriter(regionResult)
		bind(inner)
		inner.Add(jen.Defer().Add(e.name(f.Creates[0])).Dot("Close").Call())
		e.chain(inner, c.Inner)
		if !e.terminates(c.Inner) {
			inner.Add(jen.Return(jen.Qual(types.RuntimePath, "Continue"), jen.Nil()))
		}
		res, err := jen.Id("res"), jen.Err()
		scope := jen.Func().Params().Parens(jen.List(jen.Any(), jen.Error())).Block(inner.stmts...).Call()
		cond := jen.Err().Op("!=").Nil().Op("||").Add(res.Clone()).Op("!=").Qual(types.RuntimePath, "Continue")
		w.Block(jen.If(jen.List(res, err).Op(":=").Add(scope), cond), func() { w.propagate(jen.Id("res"), jen.Err()) })
	}
}

func (e *emitter) structLiteral(c frame.ConstructFrame, in []jen.Code) *jen.Statement {
	d := e.tbl.MustLookup(c.Type)
	elem := c.Type
	ptr := d.Kind == types.KindPointer
	if ptr {
		elem = d.Elem
	}
	fields := jen.Dict{}
	for i, field := range c.Fields {
		fields[jen.Id(field.Name)] = in[i]
	}
	lit := frame.TypeCode(e.tbl, elem).Values(fields)
	if ptr {
		return jen.Op("&").Add(lit)
	}
	return lit
}

func blanks(n int) []jen.Code {
	out := make([]jen.Code, n)
	for i := range out {
		out[i] = jen.Id("_")
	}
	return out
}

func noResult() *jen.Statement { return jen.Qual(types.RuntimePath, "NoResult") }

func marker(id frame.ID, label string) string {
	return fmt.Sprintf("frame %d: %s", id, oneLine(label))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
