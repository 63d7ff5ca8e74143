package types_test

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"pipegen/internal/types"
	"pipegen/runtime/rt"
)

type widget struct {
	Name  string
	Count int `pipe:"qty"`
	skip  bool
}

type handle struct{}

func (*handle) Close() error { return nil }

type failure struct{ msg string }

func (f *failure) Error() string { return f.msg }

var errSentinel = errors.New("sentinel")

func TestTable_BuiltinsAreStable(t *testing.T) {
	tbl := types.NewTable()
	b := tbl.Builtins()
	if got := types.TypeFor[int](tbl); got != b.Int {
		t.Fatalf("TypeFor[int] = %d, want %d", got, b.Int)
	}
	if got := types.TypeFor[context.Context](tbl); got != b.Context {
		t.Fatalf("TypeFor[context.Context] = %d, want %d", got, b.Context)
	}
	if got := types.TypeFor[*rt.Context](tbl); got != b.Runtime {
		t.Fatalf("TypeFor[*rt.Context] = %d, want %d", got, b.Runtime)
	}
	if tbl.String(b.Runtime) != "*rt.Context" {
		t.Fatalf("String(Runtime) = %q", tbl.String(b.Runtime))
	}
}

func TestTable_StructFields(t *testing.T) {
	tbl := types.NewTable()
	id := types.TypeFor[widget](tbl)
	fields := tbl.Fields(id)
	if len(fields) != 2 {
		t.Fatalf("Fields() = %v, want 2 exported fields", fields)
	}
	if fields[0].Key != "name" || fields[1].Key != "qty" {
		t.Fatalf("field keys = %q, %q", fields[0].Key, fields[1].Key)
	}
	if got := tbl.Fields(tbl.Pointer(id)); len(got) != 2 {
		t.Fatalf("Fields(*widget) = %v, want fields through the pointer", got)
	}
}

func TestTable_AssignableAndFlags(t *testing.T) {
	tbl := types.NewTable()
	b := tbl.Builtins()
	h := types.TypeFor[*handle](tbl)
	closer := types.TypeFor[io.Closer](tbl)
	f := types.TypeFor[*failure](tbl)

	if !tbl.Assignable(h, closer) {
		t.Fatal("*handle should be assignable to io.Closer")
	}
	if tbl.Assignable(closer, h) {
		t.Fatal("io.Closer must not be assignable to *handle")
	}
	if !tbl.Assignable(f, b.Error) {
		t.Fatal("*failure should be assignable to error")
	}
	if !tbl.Assignable(b.Int, b.Any) {
		t.Fatal("everything is assignable to any")
	}
	if !tbl.MustLookup(h).Closer {
		t.Fatal("*handle descriptor should be marked Closer")
	}
	if !tbl.MustLookup(f).Error {
		t.Fatal("*failure descriptor should be marked Error")
	}
}

func TestTable_FuncSignatures(t *testing.T) {
	tbl := types.NewTable()
	b := tbl.Builtins()

	add := tbl.MustFunc("example.com/calc", "Add", func(a, b int) int { return a + b })
	if len(add.Params) != 2 || len(add.Results) != 1 || add.Errors || add.Async {
		t.Fatalf("Add = %+v", add)
	}

	div := tbl.MustFunc("example.com/calc", "Div", func(a, b int) (int, error) { return a / b, nil })
	if !div.Errors || len(div.Results) != 1 {
		t.Fatalf("Div = %+v, want one result and an error", div)
	}

	fetch := tbl.MustFunc("example.com/calc", "Fetch", func(context.Context) rt.Future { return rt.Completed(1, nil) }, types.Yields(b.Int))
	if !fetch.Async || fetch.Results[0] != b.Int {
		t.Fatalf("Fetch = %+v, want async yielding int", fetch)
	}

	if _, err := tbl.Func("example.com/calc", "Bad", func() (rt.Future, error) { return nil, nil }); err == nil {
		t.Fatal("async function with error result should be rejected")
	}
	if _, err := tbl.Func("example.com/calc", "NotFunc", 42); err == nil {
		t.Fatal("non-function should be rejected")
	}

	exports := tbl.Exports()
	syms := exports["example.com/calc/calc"]
	if _, ok := syms["Add"]; !ok {
		t.Fatalf("exports = %v, want calc.Add", exports)
	}
}

func TestTable_Methods(t *testing.T) {
	tbl := types.NewTable()
	h := types.TypeFor[*handle](tbl)
	m := tbl.MustMethod(h, "Close")
	if m.Recv != h || len(m.Params) != 0 || !m.Errors {
		t.Fatalf("Close = %+v", m)
	}
	closer := types.TypeFor[io.Closer](tbl)
	if im := tbl.MustMethod(closer, "Close"); len(im.Params) != 0 {
		t.Fatalf("interface Close params = %v", im.Params)
	}
	if _, err := tbl.Method(h, "Open"); err == nil {
		t.Fatal("missing method should fail")
	}
}

func TestTable_VarAndPackageNames(t *testing.T) {
	tbl := types.NewTable()
	g := tbl.MustVar("example.com/go-ledger/v2", "ErrSentinel", &errSentinel)
	if g.Type != tbl.Builtins().Error {
		t.Fatalf("Var type = %s, want error", tbl.String(g.Type))
	}
	v, ok := tbl.Exports()["example.com/go-ledger/v2/ledger"]["ErrSentinel"]
	if !ok {
		t.Fatal("ErrSentinel should be exported")
	}
	if v.Kind() != reflect.Interface || !v.CanSet() {
		t.Fatalf("export kind = %s settable=%v, want an addressable error value", v.Kind(), v.CanSet())
	}
	if got, _ := v.Interface().(error); got != errSentinel {
		t.Fatalf("export value = %v, want %v", got, errSentinel)
	}
	if got := tbl.PackageName("example.com/go-ledger/v2"); got != "ledger" {
		t.Fatalf("PackageName = %q, want ledger", got)
	}
	tbl.SetPackageName("example.com/go-ledger/v2", "books")
	if _, ok := tbl.Exports()["example.com/go-ledger/v2/books"]["ErrSentinel"]; !ok {
		t.Fatal("exports should move to the renamed package key")
	}
}

func TestVarName(t *testing.T) {
	tbl := types.NewTable()
	b := tbl.Builtins()
	cases := []struct {
		id   types.TypeID
		want string
	}{
		{b.Int, "n"},
		{b.String, "str"},
		{b.Bool, "ok"},
		{b.Error, "cause"},
		{b.Any, "value"},
		{types.TypeFor[*widget](tbl), "widget"},
		{types.TypeFor[[]widget](tbl), "widgets"},
		{types.TypeFor[map[string]int](tbl), "nByKey"},
	}
	for _, tc := range cases {
		if got := tbl.VarName(tc.id); got != tc.want {
			t.Fatalf("VarName(%s) = %q, want %q", tbl.String(tc.id), got, tc.want)
		}
	}
}

func TestLowerCamel(t *testing.T) {
	cases := map[string]string{
		"":           "",
		"Name":       "name",
		"ID":         "id",
		"HTTPServer": "httpServer",
		"already":    "already",
	}
	for in, want := range cases {
		if got := types.LowerCamel(in); got != want {
			t.Fatalf("LowerCamel(%q) = %q, want %q", in, got, want)
		}
	}
}
