package diag

import (
	"fmt"

	"fortio.org/safecast"
)

// Location points into a generated unit. Line and Col are 1-based; zero
// means unknown.
type Location struct {
	File string
	Line uint32
	Col  uint32
}

// At builds a Location from the int positions reported by compilers.
// Negative or oversized values collapse to zero.
func At(file string, line, col int) Location {
	l, err := safecast.Conv[uint32](line)
	if err != nil {
		l = 0
	}
	c, err := safecast.Conv[uint32](col)
	if err != nil {
		c = 0
	}
	return Location{File: file, Line: l, Col: c}
}

// IsZero reports whether the location carries no information.
func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0 && l.Col == 0
}

func (l Location) String() string {
	switch {
	case l.Line == 0:
		return l.File
	case l.Col == 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
	}
}

type Note struct {
	Loc Location
	Msg string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Location Location
	Notes    []Note
}

// Error makes a Diagnostic usable as an error value.
func (d Diagnostic) Error() string {
	if d.Location.IsZero() {
		return fmt.Sprintf("%s %s: %s", d.Severity, d.Code.ID(), d.Message)
	}
	return fmt.Sprintf("%s: %s %s: %s", d.Location, d.Severity, d.Code.ID(), d.Message)
}

func New(sev Severity, code Code, loc Location, msg string) Diagnostic {
	return Diagnostic{Severity: sev, Code: code, Location: loc, Message: msg}
}

func NewError(code Code, loc Location, msg string) Diagnostic {
	return New(SevError, code, loc, msg)
}

// WithNote returns d with a note appended.
func (d Diagnostic) WithNote(loc Location, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Loc: loc, Msg: msg})
	return d
}
