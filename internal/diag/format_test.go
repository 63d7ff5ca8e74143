package diag_test

import (
	"testing"

	"pipegen/internal/diag"
)

func TestFormatShort(t *testing.T) {
	diags := []diag.Diagnostic{
		diag.NewError(diag.CompileError, diag.At("./unit/checkout.go", 4, 9), "undefined: total\nsecond").
			WithNote(diag.Location{}, "frame 7: call ledger.Total"),
		diag.New(diag.SevWarning, diag.BuildInfo, diag.At("unit/checkout.go", 2, 1), "another"),
	}

	want := "warning BLD1000 unit/checkout.go:2:1 another\n" +
		"error CMP3001 unit/checkout.go:4:9 undefined: total second\n" +
		"note CMP3001 unit/checkout.go:4:9 frame 7: call ledger.Total"

	if got := diag.FormatShort(diags, true); got != want {
		t.Fatalf("FormatShort() =\n%s\nwant:\n%s", got, want)
	}
	if got := diag.FormatShort(nil, true); got != "" {
		t.Fatalf("FormatShort(nil) = %q, want empty", got)
	}
}

func TestLocation(t *testing.T) {
	tests := []struct {
		loc  diag.Location
		want string
	}{
		{diag.At("checkout", 0, 0), "checkout"},
		{diag.At("unit.go", 3, 0), "unit.go:3"},
		{diag.At("unit.go", 3, 14), "unit.go:3:14"},
		{diag.At("unit.go", -1, 2), "unit.go"},
	}
	for _, tt := range tests {
		if got := tt.loc.String(); got != tt.want {
			t.Fatalf("Location.String() = %q, want %q", got, tt.want)
		}
	}
}

func TestBag_LimitSortDedup(t *testing.T) {
	b := diag.NewBag(3)
	loc := diag.At("u.go", 5, 1)
	b.Add(diag.NewError(diag.CompileError, loc, "dup"))
	b.Add(diag.NewError(diag.CompileError, loc, "dup"))
	b.Add(diag.New(diag.SevWarning, diag.CompileInfo, diag.At("u.go", 1, 1), "first"))
	if b.Add(diag.NewError(diag.CompileError, loc, "dropped")) {
		t.Fatalf("Add() = true past the limit, want false")
	}
	if b.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", b.Dropped())
	}
	if !b.HasErrors() {
		t.Fatalf("HasErrors() = false, want true")
	}
	b.Dedup()
	b.Sort()
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	if got := b.Items()[0].Message; got != "first" {
		t.Fatalf("Items()[0] = %q, want %q", got, "first")
	}
}

func TestReporters(t *testing.T) {
	bag := diag.NewBag(10)
	r := diag.NewDedupReporter(diag.BagReporter{Bag: bag})
	for range 2 {
		diag.ReportError(r, diag.BuildUnresolvedVariable, diag.At("checkout", 0, 0), "no widget").
			WithNote(diag.Location{}, "frame 3: call calc.Use").
			Emit()
	}
	if bag.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", bag.Len())
	}
	d := bag.Items()[0]
	if d.Code.ID() != "BLD1001" || len(d.Notes) != 1 {
		t.Fatalf("diagnostic = %+v, want BLD1001 with one note", d)
	}
}
