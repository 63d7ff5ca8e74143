package diag

import (
	"cmp"
	"slices"

	"fortio.org/safecast"
)

// identity is what makes two diagnostics duplicates of each other.
type identity struct {
	code Code
	loc  Location
	msg  string
}

func identityOf(d Diagnostic) identity {
	return identity{code: d.Code, loc: d.Location, msg: d.Message}
}

// Bag collects diagnostics up to a limit and counts the ones it drops.
type Bag struct {
	items   []Diagnostic
	max     uint16
	dropped int
}

// NewBag returns a Bag holding at most max diagnostics, clamped to
// [0, 65535].
func NewBag(max int) *Bag {
	limit, err := safecast.Conv[uint16](max)
	if err != nil {
		limit = ^uint16(0)
		if max < 0 {
			limit = 0
		}
	}
	return &Bag{items: make([]Diagnostic, 0, min(int(limit), 16)), max: limit}
}

// Add keeps d unless the bag is full. It reports whether d was kept.
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= int(b.max) {
		b.dropped++
		return false
	}
	b.items = append(b.items, d)
	return true
}

// Dropped is the number of diagnostics refused by Add.
func (b *Bag) Dropped() int { return b.dropped }

// HasErrors reports whether any kept diagnostic is an error.
func (b *Bag) HasErrors() bool {
	return slices.ContainsFunc(b.items, func(d Diagnostic) bool { return d.Severity >= SevError })
}

func (b *Bag) Len() int { return len(b.items) }

// Items aliases the bag's storage.
func (b *Bag) Items() []Diagnostic { return b.items }

// Sort orders by file, line and column, then errors before warnings, then
// code. Equal entries keep their order.
func (b *Bag) Sort() {
	slices.SortStableFunc(b.items, func(x, y Diagnostic) int {
		return cmp.Or(
			cmp.Compare(x.Location.File, y.Location.File),
			cmp.Compare(x.Location.Line, y.Location.Line),
			cmp.Compare(x.Location.Col, y.Location.Col),
			cmp.Compare(y.Severity, x.Severity),
			cmp.Compare(x.Code, y.Code),
		)
	})
}

// Dedup drops diagnostics repeating an earlier one.
func (b *Bag) Dedup() {
	seen := make(map[identity]struct{}, len(b.items))
	b.items = slices.DeleteFunc(b.items, func(d Diagnostic) bool {
		id := identityOf(d)
		if _, dup := seen[id]; dup {
			return true
		}
		seen[id] = struct{}{}
		return false
	})
}
