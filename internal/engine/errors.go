package engine

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"pipegen/internal/compile"
	"pipegen/internal/diag"
	"pipegen/internal/emit"
	"pipegen/internal/frame"
)

// ErrUnknownOperation is returned for names no operation was registered under.
var ErrUnknownOperation = errors.New("unknown operation")

// ErrBuild is matched by every *BuildError.
var ErrBuild = errors.New("operation build failed")

var errBuilderPanic = errors.New("builder panicked")

// BuildError is the captured failure of one operation build. A poisoned
// executor returns it from every call.
type BuildError struct {
	Operation string
	// Phase is the build phase that failed: contribute, resolve, emit, compile or load.
	Phase       string
	Source      []byte
	Diagnostics []diag.Diagnostic
	// Omitted counts diagnostics beyond the configured limit.
	Omitted int
	Err     error
}

func (e *BuildError) Error() string {
	if len(e.Diagnostics) > 0 {
		d := e.Diagnostics[0]
		msg := fmt.Sprintf("build %s: %s: %s", e.Operation, e.Phase, d.Message)
		if n := len(e.Diagnostics) - 1 + e.Omitted; n > 0 {
			msg += fmt.Sprintf(" (and %d more)", n)
		}
		return msg
	}
	return fmt.Sprintf("build %s: %s: %v", e.Operation, e.Phase, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Is matches ErrBuild.
func (e *BuildError) Is(target error) bool { return target == ErrBuild }

// Report renders the diagnostics followed by the numbered generated source.
func (e *BuildError) Report() string {
	var buf bytes.Buffer
	_ = e.WriteReport(&buf, false)
	return buf.String()
}

// WriteReport writes Report to w, coloured when styled is set.
func (e *BuildError) WriteReport(w io.Writer, styled bool) error {
	paint := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if styled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	head := paint(color.Bold)
	sevColor := map[diag.Severity]*color.Color{
		diag.SevError:   paint(color.FgRed, color.Bold),
		diag.SevWarning: paint(color.FgYellow, color.Bold),
		diag.SevInfo:    paint(color.FgCyan),
	}
	dim := paint(color.Faint)
	mark := paint(color.FgRed)

	bw := bufio.NewWriter(w)
	head.Fprintf(bw, "operation %s failed to build (%s)\n", e.Operation, e.Phase)

	marked := map[uint32]bool{}
	diags := append([]diag.Diagnostic(nil), e.Diagnostics...)
	if len(diags) == 0 && e.Err != nil {
		diags = append(diags, diag.NewError(diag.UnknownCode, diag.Location{File: e.Operation}, e.Err.Error()))
	}
	for _, d := range diags {
		sev, ok := sevColor[d.Severity]
		if !ok {
			sev = sevColor[diag.SevInfo]
		}
		fmt.Fprintf(bw, "  %s %s %s %s\n", sev.Sprint(d.Severity.String()), d.Code.ID(), d.Location, d.Message)
		for _, n := range d.Notes {
			dim.Fprintf(bw, "      note: %s\n", n.Msg)
		}
		if d.Location.Line > 0 {
			marked[d.Location.Line] = true
		}
	}
	if e.Omitted > 0 {
		dim.Fprintf(bw, "  ... %d more diagnostics omitted\n", e.Omitted)
	}

	if len(e.Source) > 0 {
		head.Fprintln(bw, "generated source:")
		sc := bufio.NewScanner(bytes.NewReader(e.Source))
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		var line uint32
		for sc.Scan() {
			line++
			prefix := "  "
			if marked[line] {
				prefix = mark.Sprint("> ")
			}
			fmt.Fprintf(bw, "%s%s %s\n", prefix, dim.Sprintf("%4d", line), sc.Text())
		}
	}
	return bw.Flush()
}

// buildFailure turns a phase error into a *BuildError keeping at most limit
// distinct diagnostics.
func buildFailure(op, file, phase string, source []byte, err error, limit int) *BuildError {
	be := &BuildError{Operation: op, Phase: phase, Source: source, Err: err}
	bag := diag.NewBag(limit)
	r := diag.NewDedupReporter(diag.BagReporter{Bag: bag})
	var failure *compile.Failure
	if errors.As(err, &failure) {
		for _, d := range failure.Diagnostics {
			r.Report(d)
		}
		if len(be.Source) == 0 {
			be.Source = failure.Source
		}
	} else {
		diagnose(r, file, phase, err)
	}
	bag.Sort()
	be.Diagnostics = bag.Items()
	be.Omitted = bag.Dropped()
	return be
}

// diagnose reports frame and emit errors. Frames are named in notes since
// their lines may not exist yet.
func diagnose(r diag.Reporter, file, phase string, err error) {
	fallback := diag.UnknownCode
	if phase == "contribute" {
		fallback = diag.BuildContribution
	}
	loc := diag.Location{File: file}
	for _, e := range flatten(err) {
		var be *frame.BuildError
		var ee *emit.Error
		switch {
		case errors.As(e, &be):
			diag.ReportError(r, codeFor(be.Kind), loc, be.Error()).
				WithNote(loc, fmt.Sprintf("frame %d: %s", be.Frame, be.Label)).
				Emit()
		case errors.As(e, &ee):
			code := diag.EmitFailed
			if ee.Err == nil {
				code = diag.EmitUnresolved
			}
			diag.ReportError(r, code, loc, ee.Error()).Emit()
		default:
			diag.ReportError(r, fallback, loc, e.Error()).Emit()
		}
	}
}

// flatten unpacks errors.Join trees, stopping at the first non-joined error.
func flatten(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range j.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	var ee *emit.Error
	if errors.As(err, &ee) && ee.Err != nil {
		if inner := flatten(ee.Err); len(inner) > 1 || frame.KindOf(ee.Err) != 0 {
			return inner
		}
	}
	return []error{err}
}

func codeFor(k frame.BuildErrorKind) diag.Code {
	switch k {
	case frame.ErrUnresolvedVariable:
		return diag.BuildUnresolvedVariable
	case frame.ErrAmbiguousVariable:
		return diag.BuildAmbiguousVariable
	case frame.ErrFrameRechain:
		return diag.BuildFrameRechain
	case frame.ErrInvalidCallMode:
		return diag.BuildInvalidCallMode
	case frame.ErrMultipleCreators:
		return diag.BuildMultipleCreators
	default:
		return diag.UnknownCode
	}
}
