package compile_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dave/jennifer/jen"

	"pipegen/internal/compile"
	"pipegen/internal/emit"
	"pipegen/internal/frame"
	"pipegen/internal/resolve"
	"pipegen/internal/types"
	"pipegen/runtime/rt"
)

const calcPkg = "example.com/calc"

var (
	errMissing = errors.New("missing")
	errBoom    = errors.New("boom")
	closed     atomic.Int32
)

type Resource struct{}

func (*Resource) Close() error {
	closed.Add(1)
	return nil
}

type fixture struct {
	tbl *types.Table
	g   *frame.Graph
	m   *frame.Method
}

func newFixture(name string) *fixture {
	tbl := types.NewTable()
	g := frame.NewGraph(tbl)
	return &fixture{tbl: tbl, g: g, m: frame.NewMethod(g, name, types.NoTypeID)}
}

func (fx *fixture) unit(t *testing.T, opt compile.Optimization, sources ...resolve.Source) compile.Unit {
	t.Helper()
	r := resolve.New(fx.m, sources...)
	if err := r.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	out, err := emit.Emit(r, emit.Options{Package: emit.DefaultPackage, Debug: opt == compile.Debug})
	if err != nil {
		t.Fatalf("Emit() = %v", err)
	}
	return compile.Unit{
		Name:         fx.m.Name,
		Package:      emit.DefaultPackage,
		Source:       out.Source,
		Map:          out.Map,
		Mode:         out.Mode,
		Optimization: opt,
	}
}

func (fx *fixture) executor(t *testing.T, sources ...resolve.Source) compile.Executor {
	t.Helper()
	u := fx.unit(t, compile.Release, sources...)
	art, err := compile.NewInterpreter(fx.tbl).Compile(context.Background(), u)
	if err != nil {
		t.Fatalf("Compile() = %v\n%s", err, u.Source)
	}
	exec, err := compile.Load(art)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	return exec
}

func run(t *testing.T, exec compile.Executor, values map[string]any) any {
	t.Helper()
	got, err := exec.Execute(context.Background(), rt.NewContext(values))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	return got
}

func TestInterpreter_ReturnsLiteral(t *testing.T) {
	fx := newFixture("literal")
	lit, _ := fx.g.Literal("x", 5)
	fx.m.Append(lit, fx.g.Return(frame.Want(fx.tbl.Builtins().Int)))
	if got := run(t, fx.executor(t), nil); got != 5 {
		t.Fatalf("Execute() = %v, want 5", got)
	}
}

func TestInterpreter_CallsHostFunction(t *testing.T) {
	fx := newFixture("add")
	add := fx.tbl.MustFunc(calcPkg, "Add", func(a, b int) int { return a + b })
	fx.m.Append(
		fx.g.Call(add, frame.Args(frame.Const(2), frame.Const(3)), frame.ResultNames("sum")),
		fx.g.Return(frame.Want(fx.tbl.Builtins().Int)),
	)
	if got := run(t, fx.executor(t), nil); got != 5 {
		t.Fatalf("Execute() = %v, want 5", got)
	}
}

func TestInterpreter_IfBlock(t *testing.T) {
	fx := newFixture("flagged")
	b := fx.tbl.Builtins()
	fx.m.Append(
		fx.g.If(frame.Named(b.Bool, "flag"), fx.g.Return(frame.Const("A"))),
		fx.g.Return(frame.Const("B")),
	)
	exec := fx.executor(t, resolve.ContextSource{})
	if got := run(t, exec, map[string]any{"flag": true}); got != "A" {
		t.Fatalf("Execute(flag=true) = %v, want A", got)
	}
	if got := run(t, exec, map[string]any{"flag": false}); got != "B" {
		t.Fatalf("Execute(flag=false) = %v, want B", got)
	}
}

func TestInterpreter_NoResult(t *testing.T) {
	fx := newFixture("nothing")
	fx.m.Append(fx.g.ReturnNothing())
	if got := run(t, fx.executor(t), nil); !rt.IsNoResult(got) {
		t.Fatalf("Execute() = %v, want rt.NoResult", got)
	}
}

func TestInterpreter_HandlerConvertsError(t *testing.T) {
	fx := newFixture("handled")
	missing := fx.tbl.MustVar(calcPkg, "ErrMissing", &errMissing)
	fail := fx.tbl.MustFunc(calcPkg, "Fail", func() (int, error) { return 0, errMissing })
	boom := fx.tbl.MustFunc(calcPkg, "Boom", func() (int, error) { return 0, errBoom })
	b := fx.tbl.Builtins()
	fx.m.Append(
		fx.g.IfNot(frame.Named(b.Bool, "boom"), fx.g.Call(fail, frame.Returning())),
		fx.g.Call(boom, frame.Returning()),
	)
	fx.m.AddHandler(frame.Sentinel(missing), fx.g.Return(frame.Const("missing")))

	exec := fx.executor(t, resolve.ContextSource{})
	if got := run(t, exec, nil); got != "missing" {
		t.Fatalf("Execute() = %v, want missing", got)
	}
	_, err := exec.Execute(context.Background(), rt.NewContext(map[string]any{"boom": true}))
	if !errors.Is(err, errBoom) {
		t.Fatalf("Execute(boom) error = %v, want unmatched errBoom", err)
	}
}

var calcLimit = 7

func TestInterpreter_ReadsPackageVariables(t *testing.T) {
	tbl := types.NewTable()
	tbl.MustVar(calcPkg, "ErrMissing", &errMissing)
	tbl.MustVar(calcPkg, "Limit", &calcLimit)
	tbl.MustFunc(calcPkg, "Fail", func() error { return errMissing })
	src := `package unit

import (
	"context"
	"errors"

	"example.com/calc"
	"pipegen/runtime/rt"
)

func Execute(ctx context.Context, c *rt.Context) (any, error) {
	if errors.Is(calc.Fail(), calc.ErrMissing) {
		return calc.Limit, nil
	}
	return nil, nil
}
`
	u := compile.Unit{Name: "globals", Package: emit.DefaultPackage, Source: []byte(src), Optimization: compile.Release}
	art, err := compile.NewInterpreter(tbl).Compile(context.Background(), u)
	if err != nil {
		t.Fatalf("Compile() = %v", err)
	}
	exec, err := compile.Load(art)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	calcLimit = 9
	defer func() { calcLimit = 7 }()
	if got := run(t, exec, nil); got != 9 {
		t.Fatalf("Execute() = %v, want the live value 9", got)
	}
}

func TestInterpreter_ScopedResourceReleasedOnError(t *testing.T) {
	fx := newFixture("scoped")
	res := types.TypeFor[*Resource](fx.tbl)
	open := fx.tbl.MustFunc(calcPkg, "Open", func() *Resource { return &Resource{} })
	use := fx.tbl.MustFunc(calcPkg, "Use", func(*Resource) error { return errBoom })
	fx.m.Append(
		fx.g.Construct(res, open, frame.Scoped(fx.g.Call(use))),
		fx.g.Return(frame.Const(1)),
	)
	exec := fx.executor(t)

	before := closed.Load()
	_, err := exec.Execute(context.Background(), rt.NewContext(nil))
	if !errors.Is(err, errBoom) {
		t.Fatalf("Execute() error = %v, want errBoom", err)
	}
	if got := closed.Load() - before; got != 1 {
		t.Fatalf("Close() called %d times, want 1", got)
	}
}

func TestInterpreter_AsyncShapes(t *testing.T) {
	t.Run("tail", func(t *testing.T) {
		fx := newFixture("tail")
		b := fx.tbl.Builtins()
		fetch := fx.tbl.MustFunc(calcPkg, "Fetch", func(_ context.Context, n int) rt.Future {
			return rt.Completed(n*2, nil)
		}, types.Yields(b.Int))
		fx.m.Append(fx.g.Call(fetch, frame.Args(frame.Want(b.Context), frame.Const(21)), frame.Returning()))
		if got := run(t, fx.executor(t), nil); got != 42 {
			t.Fatalf("Execute() = %v, want 42", got)
		}
	})
	t.Run("await each", func(t *testing.T) {
		fx := newFixture("await")
		b := fx.tbl.Builtins()
		fetch := fx.tbl.MustFunc(calcPkg, "Fetch", func(ctx context.Context, n int) rt.Future {
			return rt.Go(ctx, func(context.Context) (any, error) { return n + 1, nil })
		}, types.Yields(b.Int))
		add := fx.tbl.MustFunc(calcPkg, "Add", func(a, b int) int { return a + b })
		fx.m.Append(
			fx.g.Call(fetch, frame.Args(frame.Want(b.Context), frame.Const(1)), frame.ResultNames("n")),
			fx.g.Call(add, frame.Args(frame.Want(b.Int), frame.Const(10)), frame.Returning()),
		)
		if got := run(t, fx.executor(t), nil); got != 12 {
			t.Fatalf("Execute() = %v, want 12", got)
		}
	})
}

func TestInterpreter_FailureTracesFrame(t *testing.T) {
	fx := newFixture("broken op")
	broken := fx.g.Code("broken step", func(w frame.Writer, _, _ []jen.Code) {
		w.Add(jen.Id("undefinedThing").Call())
	}, nil)
	fx.m.Append(broken, fx.g.ReturnNothing())
	u := fx.unit(t, compile.Debug)

	_, err := compile.NewInterpreter(fx.tbl).Compile(context.Background(), u)
	var failure *compile.Failure
	if !errors.As(err, &failure) || !errors.Is(err, compile.ErrCompile) {
		t.Fatalf("Compile() error = %v, want *compile.Failure", err)
	}
	if len(failure.Diagnostics) == 0 {
		t.Fatalf("Failure has no diagnostics")
	}
	d := failure.Diagnostics[0]
	if d.Location.File != "broken_op.go" || d.Location.Line == 0 {
		t.Fatalf("Location = %v, want broken_op.go with a line", d.Location)
	}
	if len(d.Notes) == 0 || !strings.Contains(d.Notes[0].Msg, "broken step") {
		t.Fatalf("Notes = %+v, want the originating frame", d.Notes)
	}
	if string(failure.Source) != string(u.Source) {
		t.Fatalf("Failure.Source differs from the unit source")
	}
}

func TestInterpreter_Canceled(t *testing.T) {
	fx := newFixture("canceled")
	fx.m.Append(fx.g.ReturnNothing())
	u := fx.unit(t, compile.Release)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := compile.NewInterpreter(fx.tbl).Compile(ctx, u); !errors.Is(err, context.Canceled) {
		t.Fatalf("Compile() error = %v, want context.Canceled", err)
	}
}
