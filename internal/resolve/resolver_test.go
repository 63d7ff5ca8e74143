package resolve_test

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"pipegen/internal/frame"
	"pipegen/internal/resolve"
	"pipegen/internal/types"
)

type widget struct{ ID int }

type store struct{}

func (*store) Close() error { return nil }

func setup() (*types.Table, *frame.Graph, *frame.Method) {
	tbl := types.NewTable()
	g := frame.NewGraph(tbl)
	return tbl, g, frame.NewMethod(g, "op", types.NoTypeID)
}

func TestResolve_SingleCreator(t *testing.T) {
	tbl, g, m := setup()
	lit, x := g.Literal("x", 5)
	ret := g.Return(frame.Want(tbl.Builtins().Int))
	m.Append(lit, ret)

	r := resolve.New(m)
	if err := r.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := r.Uses(ret); !reflect.DeepEqual(got, []frame.VarID{x}) {
		t.Fatalf("Uses(return) = %v, want [%d]", got, x)
	}
	if !r.Resolved(ret) {
		t.Fatal("return frame should be resolved")
	}
}

func TestResolve_Unresolved(t *testing.T) {
	tbl, g, m := setup()
	wid := types.TypeFor[*widget](tbl)
	ret := g.Return(frame.Want(wid))
	m.Append(ret)

	err := resolve.New(m, resolve.ContextSource{}).Run()
	if !errors.Is(err, frame.ErrUnresolvedVariable) {
		t.Fatalf("Run() = %v, want unresolved variable", err)
	}
	var be *frame.BuildError
	if !errors.As(err, &be) {
		t.Fatalf("error %T is not a BuildError", err)
	}
	if be.Frame != ret || !strings.Contains(be.Type, "widget") {
		t.Fatalf("BuildError = %+v, want frame %d and type widget", be, ret)
	}
}

func TestResolve_Ambiguous(t *testing.T) {
	tbl, g, m := setup()
	a, _ := g.Literal("a", 1)
	b, _ := g.Literal("b", 2)
	ret := g.Return(frame.Want(tbl.Builtins().Int))
	m.Append(a, b, ret)

	err := resolve.New(m).Run()
	if !errors.Is(err, frame.ErrAmbiguousVariable) {
		t.Fatalf("Run() = %v, want ambiguous variable", err)
	}
	var be *frame.BuildError
	if errors.As(err, &be) && len(be.Candidates) != 2 {
		t.Fatalf("Candidates = %v, want 2", be.Candidates)
	}
}

func TestResolve_NameHintDisambiguates(t *testing.T) {
	tbl, g, m := setup()
	a, _ := g.Literal("a", 1)
	b, bv := g.Literal("b", 2)
	ret := g.Return(frame.Named(tbl.Builtins().Int, "b"))
	m.Append(a, b, ret)

	r := resolve.New(m)
	if err := r.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := r.Uses(ret); got[0] != bv {
		t.Fatalf("Uses(return) = %v, want [%d]", got, bv)
	}
}

func TestResolve_ExactBeforeAssignable(t *testing.T) {
	tbl, g, m := setup()
	st := types.TypeFor[*store](tbl)
	closer := types.TypeFor[io.Closer](tbl)
	open := tbl.MustFunc("example.com/db", "Open", func() *store { return &store{} })
	wrap := tbl.MustFunc("example.com/db", "Wrap", func() io.Closer { return &store{} })
	use := tbl.MustFunc("example.com/db", "Use", func(io.Closer) {})
	useStore := tbl.MustFunc("example.com/db", "UseStore", func(*store) {})

	c1 := g.Call(open)
	c2 := g.Call(wrap)
	u1 := g.Call(use)
	u2 := g.Call(useStore)
	m.Append(c1, c2, u1, u2)

	r := resolve.New(m)
	if err := r.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := g.Var(r.Uses(u1)[0]).Type; got != closer {
		t.Fatalf("Use got %s, want the exact io.Closer", tbl.String(got))
	}
	if got := g.Var(r.Uses(u2)[0]).Type; got != st {
		t.Fatalf("UseStore got %s, want *store", tbl.String(got))
	}
}

func TestResolve_Idempotent(t *testing.T) {
	tbl, g, m := setup()
	lit, _ := g.Literal("x", 5)
	flag := g.If(frame.Named(tbl.Builtins().Bool, "flag"), g.Return(frame.Want(tbl.Builtins().Int)))
	m.Append(lit, flag, g.ReturnNothing())

	r := resolve.New(m, resolve.ContextSource{})
	if err := r.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	first := append([]frame.VarID(nil), r.Uses(flag)...)
	prologue := len(m.Prologue)
	again := r.FindVariables(flag, nil)
	if err := r.Run(); err != nil {
		t.Fatalf("second Run() = %v", err)
	}
	if !reflect.DeepEqual(first, again) || !reflect.DeepEqual(first, r.Uses(flag)) {
		t.Fatalf("uses changed: %v, %v, %v", first, again, r.Uses(flag))
	}
	if len(m.Prologue) != prologue {
		t.Fatalf("prologue grew from %d to %d", prologue, len(m.Prologue))
	}
}

func TestResolve_SourcesAreMemoisedAndHoisted(t *testing.T) {
	tbl, g, m := setup()
	b := tbl.Builtins()
	r1 := g.If(frame.Named(b.Bool, "flag"), g.ReturnNothing())
	r2 := g.IfNot(frame.Named(b.Bool, "flag"), g.ReturnNothing())
	m.Append(r1, r2)

	r := resolve.New(m, resolve.ContextSource{})
	if err := r.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if r.Uses(r1)[0] != r.Uses(r2)[0] {
		t.Fatal("both conditions should share one context lookup")
	}
	if len(m.Prologue) != 1 {
		t.Fatalf("Prologue = %v, want one hoisted frame", m.Prologue)
	}
	hoisted := g.Frame(m.Prologue[0])
	if got := r.Uses(hoisted.ID); !reflect.DeepEqual(got, []frame.VarID{m.RC}) {
		t.Fatalf("hoisted frame uses %v, want rc", got)
	}
}

func TestResolve_ContextSourceKeys(t *testing.T) {
	tbl, g, m := setup()
	b := tbl.Builtins()
	ret := g.Return(frame.Named(b.String, "name"))
	m.Append(ret)
	src := resolve.ContextSource{Keys: map[string]types.TypeID{"name": b.Int}}
	if err := resolve.New(m, src).Run(); !errors.Is(err, frame.ErrUnresolvedVariable) {
		t.Fatalf("Run() = %v, want unresolved for a mistyped key", err)
	}
}

func TestResolve_ServiceSource(t *testing.T) {
	tbl, g, m := setup()
	st := types.TypeFor[*store](tbl)
	use := tbl.MustFunc("example.com/db", "UseStore", func(*store) {})
	call := g.Call(use)
	m.Append(call)

	r := resolve.New(m, resolve.NewServiceSource(st))
	if err := r.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	v := g.Var(r.Uses(call)[0])
	if v.Type != st || v.Creator != m.Prologue[0] {
		t.Fatalf("service variable = %+v", v)
	}
}

func TestResolve_ArgumentSource(t *testing.T) {
	tbl, g, m := setup()
	b := tbl.Builtins()
	code := g.Code("uses args", nil, []frame.Request{frame.Want(b.Context), frame.Want(b.Runtime)})
	m.Append(code)
	r := resolve.New(m)
	if err := r.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := r.Uses(code); !reflect.DeepEqual(got, []frame.VarID{m.Ctx, m.RC}) {
		t.Fatalf("Uses = %v, want [ctx rc]", got)
	}
}

func TestResolve_NestedCreatesDoNotLeak(t *testing.T) {
	tbl, g, m := setup()
	b := tbl.Builtins()
	inner, _ := g.Literal("y", 1)
	cond := g.If(frame.Const(true), inner)
	after := g.Return(frame.Want(b.Int))
	m.Append(cond, after)

	err := resolve.New(m).Run()
	if !errors.Is(err, frame.ErrUnresolvedVariable) {
		t.Fatalf("Run() = %v, want the inner variable to stay inside the block", err)
	}
}

func TestResolve_ScopedResourceVisibleInside(t *testing.T) {
	tbl, g, m := setup()
	st := types.TypeFor[*store](tbl)
	open := tbl.MustFunc("example.com/db", "Open", func() *store { return &store{} })
	use := tbl.MustFunc("example.com/db", "UseStore", func(*store) {})
	call := g.Call(use)
	scoped := g.Construct(st, open, frame.Scoped(call))
	m.Append(scoped)

	r := resolve.New(m)
	if err := r.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if r.Uses(call)[0] != g.Frame(scoped).Creates[0] {
		t.Fatal("inner call should use the scoped resource")
	}
}

func TestResolve_HandlerSeesCaughtError(t *testing.T) {
	tbl, g, m := setup()
	b := tbl.Builtins()
	ret := g.Return(frame.Want(b.Error))
	caught := m.AddHandler(frame.AnyError(), ret)
	m.Append(g.ReturnNothing())

	r := resolve.New(m)
	if err := r.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if r.Uses(ret)[0] != caught {
		t.Fatal("handler should bind the caught error")
	}
}

func TestResolve_DependenciesRecorded(t *testing.T) {
	tbl, g, m := setup()
	add := tbl.MustFunc("example.com/calc", "Add", func(a, b int) int { return a + b })
	lit, x := g.Literal("x", 2)
	call := g.Call(add, frame.Args(frame.Use(x), frame.Const(3)), frame.ResultNames("sum"))
	m.Append(lit, call)

	if err := resolve.New(m).Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	sum := g.Var(g.Frame(call).Creates[0])
	if !reflect.DeepEqual(sum.Deps, []frame.VarID{x}) {
		t.Fatalf("Deps = %v, want [%d]", sum.Deps, x)
	}
}

func TestResolve_ReportsGraphErrors(t *testing.T) {
	tbl, g, m := setup()
	add := tbl.MustFunc("example.com/calc", "Add", func(a, b int) int { return a + b })
	// disposing a non-closer result
	m.Append(g.Call(add, frame.Args(frame.Const(1), frame.Const(2)), frame.Disposing()))

	err := resolve.New(m).Run()
	if !errors.Is(err, frame.ErrInvalidCallMode) {
		t.Fatalf("Run() = %v, want invalid call mode", err)
	}
}
