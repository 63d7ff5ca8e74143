package compile

import (
	"errors"
	"fmt"
	"go/scanner"
	"path/filepath"
	"regexp"
	"strings"

	"pipegen/internal/diag"
)

// ErrCompile is matched by every *Failure.
var ErrCompile = errors.New("compilation failed")

// Failure reports that a unit did not compile. It is cached: the same
// source fails the same way.
type Failure struct {
	Unit        string
	Backend     string
	Source      []byte
	Diagnostics []diag.Diagnostic
	// Cached is set when the failure was replayed from a durable record.
	Cached bool
}

func (f *Failure) Error() string {
	switch len(f.Diagnostics) {
	case 0:
		return fmt.Sprintf("compile %s (%s): failed", f.Unit, f.Backend)
	case 1:
		return fmt.Sprintf("compile %s (%s): %s", f.Unit, f.Backend, f.Diagnostics[0].Error())
	default:
		return fmt.Sprintf("compile %s (%s): %s (and %d more)", f.Unit, f.Backend,
			f.Diagnostics[0].Error(), len(f.Diagnostics)-1)
	}
}

// Is matches ErrCompile.
func (f *Failure) Is(target error) bool { return target == ErrCompile }

var diagLine = regexp.MustCompile(`^(?:(.*?):)?(\d+):(\d+): (.+)$`)

// Diagnose converts compiler output into diagnostics attributed to u.
// Positions in files named like the unit (or any of aliases) are reported
// under u.FileName() and annotated with the frame that produced the line.
func Diagnose(u Unit, code diag.Code, output string, aliases ...string) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "\t") && len(out) > 0 {
			last := &out[len(out)-1]
			last.Message += " " + strings.TrimSpace(line)
			continue
		}
		m := diagLine.FindStringSubmatch(line)
		if m == nil {
			out = append(out, diag.NewError(code, diag.Location{File: u.FileName()}, strings.TrimSpace(line)))
			continue
		}
		var ln, col int
		_, _ = fmt.Sscan(m[2], &ln)
		_, _ = fmt.Sscan(m[3], &col)
		out = append(out, located(u, code, m[1], ln, col, m[4], aliases))
	}
	if len(out) == 0 && strings.TrimSpace(output) != "" {
		out = append(out, diag.NewError(code, diag.Location{File: u.FileName()}, strings.TrimSpace(output)))
	}
	return out
}

// diagnoseError is Diagnose for errors that may carry scanner positions.
func diagnoseError(u Unit, code diag.Code, err error, aliases ...string) []diag.Diagnostic {
	var list scanner.ErrorList
	if errors.As(err, &list) {
		out := make([]diag.Diagnostic, 0, len(list))
		for _, e := range list {
			out = append(out, located(u, code, e.Pos.Filename, e.Pos.Line, e.Pos.Column, e.Msg, aliases))
		}
		return out
	}
	var se scanner.Error
	if errors.As(err, &se) {
		return []diag.Diagnostic{located(u, code, se.Pos.Filename, se.Pos.Line, se.Pos.Column, se.Msg, aliases)}
	}
	return Diagnose(u, code, err.Error(), aliases...)
}

func located(u Unit, code diag.Code, file string, line, col int, msg string, aliases []string) diag.Diagnostic {
	own := file == "" || filepath.Base(file) == u.FileName()
	for _, a := range aliases {
		own = own || file == a
	}
	if !own {
		return diag.NewError(code, diag.At(filepath.ToSlash(file), line, col), msg)
	}
	d := diag.NewError(code, diag.At(u.FileName(), line, col), msg)
	if id, label, ok := u.Map.Frame(line); ok {
		d = d.WithNote(diag.At(u.FileName(), line, 0), fmt.Sprintf("frame %d: %s", id, label))
	}
	return d
}
