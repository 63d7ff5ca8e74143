package diag

// Reporter receives diagnostics from a build phase.
type Reporter interface {
	Report(d Diagnostic)
}

// ReportBuilder assembles one diagnostic and sends it to a Reporter.
type ReportBuilder struct {
	r    Reporter
	d    Diagnostic
	sent bool
}

// ReportError starts an error diagnostic for r.
func ReportError(r Reporter, code Code, loc Location, msg string) *ReportBuilder {
	return &ReportBuilder{r: r, d: NewError(code, loc, msg)}
}

// WithNote appends a note.
func (b *ReportBuilder) WithNote(loc Location, msg string) *ReportBuilder {
	b.d = b.d.WithNote(loc, msg)
	return b
}

// Emit sends the diagnostic. Later calls do nothing.
func (b *ReportBuilder) Emit() {
	if b.sent || b.r == nil {
		return
	}
	b.sent = true
	b.r.Report(b.d)
}

// BagReporter adds every diagnostic to Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) {
	if r.Bag != nil {
		r.Bag.Add(d)
	}
}

// DedupReporter forwards each distinct code, location and message once.
type DedupReporter struct {
	next Reporter
	seen map[identity]struct{}
}

func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{next: next, seen: make(map[identity]struct{})}
}

func (r *DedupReporter) Report(d Diagnostic) {
	id := identityOf(d)
	if _, dup := r.seen[id]; dup {
		return
	}
	r.seen[id] = struct{}{}
	r.next.Report(d)
}
