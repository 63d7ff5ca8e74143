package frame_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"pipegen/internal/frame"
	"pipegen/internal/types"
	"pipegen/runtime/rt"
)

type notFound struct{}

func (notFound) Error() string { return "not found" }

type rejected interface {
	error
	Rejected() bool
}

type quota struct{}

func (quota) Error() string  { return "quota" }
func (quota) Rejected() bool { return true }

var errClosed = errors.New("closed")

func TestMethod_ArrangeFlattensComposites(t *testing.T) {
	_, g := fixture()
	a, _ := g.Literal("a", 1)
	b, _ := g.Literal("b", 2)
	c, _ := g.Literal("c", 3)
	m := frame.NewMethod(g, "op", types.NoTypeID)
	m.Append(g.Composite("group", a, g.Composite("inner", b)), c)
	if err := m.Arrange(); err != nil {
		t.Fatalf("Arrange() = %v", err)
	}
	want := []frame.ID{a, b, c}
	if !reflect.DeepEqual(m.Chain, want) {
		t.Fatalf("Chain = %v, want %v", m.Chain, want)
	}
	if g.Frame(a).Next != b || g.Frame(b).Next != c || g.Frame(c).Next != frame.NoFrame {
		t.Fatal("chain links are wrong")
	}
}

func TestMethod_ArrangeEvaluatesConditionals(t *testing.T) {
	_, g := fixture()
	kept, _ := g.Literal("kept", 1)
	dropped, _ := g.Literal("dropped", 2)
	m := frame.NewMethod(g, "op", types.NoTypeID)
	m.Attrs["audit"] = "on"
	m.Append(
		g.Conditional("audit", func(m *frame.Method) bool { return m.Attrs["audit"] == "on" }, kept),
		g.Conditional("debug", func(m *frame.Method) bool { return m.Attrs["debug"] == "on" }, dropped),
	)
	if err := m.Arrange(); err != nil {
		t.Fatalf("Arrange() = %v", err)
	}
	if !reflect.DeepEqual(m.Chain, []frame.ID{kept}) {
		t.Fatalf("Chain = %v, want only the kept frame", m.Chain)
	}
}

func TestMethod_RechainIsBuildError(t *testing.T) {
	_, g := fixture()
	a, _ := g.Literal("a", 1)
	comp := g.Composite("group", a)
	m := frame.NewMethod(g, "op", types.NoTypeID)
	m.Append(comp, comp)
	err := m.Arrange()
	if !errors.Is(err, frame.ErrFrameRechain) {
		t.Fatalf("Arrange() = %v, want frame rechain", err)
	}
	if frame.KindOf(err) != frame.ErrFrameRechain {
		t.Fatalf("KindOf = %v", frame.KindOf(err))
	}
}

func TestMethod_NestedChainsAreFlattened(t *testing.T) {
	tbl, g := fixture()
	a, _ := g.Literal("a", 1)
	ret := g.ReturnNothing()
	cond := g.If(frame.Named(tbl.Builtins().Bool, "flag"), g.Composite("body", a, ret))
	m := frame.NewMethod(g, "op", types.NoTypeID)
	m.Append(cond)
	if err := m.Arrange(); err != nil {
		t.Fatalf("Arrange() = %v", err)
	}
	if got := g.Frame(cond).Inner(); !reflect.DeepEqual(got, []frame.ID{a, ret}) {
		t.Fatalf("If.Inner = %v, want [%d %d]", got, a, ret)
	}
}

func TestMethod_HandlerOrder(t *testing.T) {
	tbl, g := fixture()
	closed := tbl.MustVar(calcPkg, "ErrClosed", &errClosed)
	m := frame.NewMethod(g, "op", types.NoTypeID)
	m.AddHandler(frame.AnyError(), g.ReturnNothing())
	m.AddHandler(frame.ErrorType(types.TypeFor[rejected](tbl)), g.ReturnNothing())
	m.AddHandler(frame.ErrorType(types.TypeFor[quota](tbl)), g.ReturnNothing())
	m.AddHandler(frame.Sentinel(closed), g.ReturnNothing())
	m.AddHandler(frame.ErrorType(types.TypeFor[notFound](tbl)), g.ReturnNothing())
	if err := m.Arrange(); err != nil {
		t.Fatalf("Arrange() = %v", err)
	}
	var got []string
	for _, h := range m.Handlers {
		switch h.Catch.Kind {
		case frame.CatchAny:
			got = append(got, "any")
		case frame.CatchSentinel:
			got = append(got, h.Catch.Sentinel.Name)
		case frame.CatchType:
			got = append(got, tbl.MustLookup(h.Catch.Type).Name)
		}
	}
	want := []string{"quota", "rejected", "ErrClosed", "notFound", "any"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("handler order = %v, want %v", got, want)
	}
	caught := g.Var(m.Handlers[0].Caught)
	if caught.Origin != frame.OriginCaught || caught.Type != types.TypeFor[quota](tbl) {
		t.Fatalf("caught variable = %+v", caught)
	}
}

func TestMethod_AsyncMode(t *testing.T) {
	tbl := types.NewTable()
	b := tbl.Builtins()
	fetch := tbl.MustFunc(calcPkg, "Fetch", func(context.Context) rt.Future { return nil }, types.Yields(b.Int))
	open := tbl.MustFunc(calcPkg, "Open", newResource)

	cases := []struct {
		name  string
		build func(g *frame.Graph, m *frame.Method)
		want  frame.AsyncMode
	}{
		{"sync", func(g *frame.Graph, m *frame.Method) {
			id, _ := g.Literal("x", 1)
			m.Append(id)
		}, frame.AsyncNone},
		{"tail", func(g *frame.Graph, m *frame.Method) {
			id, _ := g.Literal("x", 1)
			m.Append(id, g.Call(fetch, frame.Returning()))
		}, frame.AsyncTail},
		{"bound result", func(g *frame.Graph, m *frame.Method) {
			m.Append(g.Call(fetch), g.Return(frame.Want(b.Int)))
		}, frame.AsyncAwaitEach},
		{"two suspensions", func(g *frame.Graph, m *frame.Method) {
			m.Append(g.Call(fetch, frame.Discarding()), g.Call(fetch, frame.Returning()))
		}, frame.AsyncAwaitEach},
		{"with handler", func(g *frame.Graph, m *frame.Method) {
			m.Append(g.Call(fetch, frame.Returning()))
			m.AddHandler(frame.AnyError(), g.ReturnNothing())
		}, frame.AsyncAwaitEach},
		{"with finally", func(g *frame.Graph, m *frame.Method) {
			m.Append(g.Call(fetch, frame.Returning()))
			m.AddFinally(g.Code("cleanup", nil, nil))
		}, frame.AsyncAwaitEach},
		{"with scope", func(g *frame.Graph, m *frame.Method) {
			lit, _ := g.Literal("x", 1)
			m.Append(g.Construct(types.TypeFor[*resource](tbl), open, frame.Scoped(lit)), g.Call(fetch, frame.Returning()))
		}, frame.AsyncAwaitEach},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := frame.NewGraph(tbl)
			m := frame.NewMethod(g, "op", types.NoTypeID)
			tc.build(g, m)
			if err := m.Arrange(); err != nil {
				t.Fatalf("Arrange() = %v", err)
			}
			if m.Mode != tc.want {
				t.Fatalf("Mode = %v, want %v", m.Mode, tc.want)
			}
		})
	}
}

func TestMethod_ArrangeOnce(t *testing.T) {
	_, g := fixture()
	a, _ := g.Literal("a", 1)
	m := frame.NewMethod(g, "op", types.NoTypeID)
	m.Append(a)
	if err := m.Arrange(); err != nil {
		t.Fatalf("Arrange() = %v", err)
	}
	if err := m.Arrange(); err != nil {
		t.Fatalf("second Arrange() = %v", err)
	}
	if len(m.Chain) != 1 {
		t.Fatalf("Chain = %v", m.Chain)
	}
}
