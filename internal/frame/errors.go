package frame

import (
	"errors"
	"fmt"
	"strings"
)

// BuildErrorKind enumerates build-time failures of a generated method.
type BuildErrorKind uint8

const (
	// ErrUnresolvedVariable means no variable or source could satisfy a request.
	ErrUnresolvedVariable BuildErrorKind = iota + 1
	// ErrAmbiguousVariable means two or more candidates matched without a disambiguating name.
	ErrAmbiguousVariable
	// ErrFrameRechain means a frame was linked into a chain twice.
	ErrFrameRechain
	// ErrInvalidCallMode means a call or construct frame was configured inconsistently.
	ErrInvalidCallMode
	// ErrMultipleCreators means a variable was claimed by more than one frame.
	ErrMultipleCreators
)

func (k BuildErrorKind) String() string {
	switch k {
	case ErrUnresolvedVariable:
		return "unresolved variable"
	case ErrAmbiguousVariable:
		return "ambiguous variable"
	case ErrFrameRechain:
		return "frame rechain"
	case ErrInvalidCallMode:
		return "invalid call mode"
	case ErrMultipleCreators:
		return "multiple creators"
	default:
		return fmt.Sprintf("BuildErrorKind(%d)", k)
	}
}

// Error makes a kind usable as an errors.Is target.
func (k BuildErrorKind) Error() string { return k.String() }

// BuildError reports a failure attributable to one frame.
type BuildError struct {
	Kind       BuildErrorKind
	Frame      ID
	Label      string
	Type       string   // requested type, for resolution errors
	Name       string   // requested name hint or variable name
	Candidates []string // for ErrAmbiguousVariable
	Detail     string
}

func (e *BuildError) Error() string {
	if e == nil {
		return "<nil>"
	}
	where := fmt.Sprintf("frame#%d", e.Frame)
	if e.Label != "" {
		where = fmt.Sprintf("frame#%d (%s)", e.Frame, e.Label)
	}
	switch e.Kind {
	case ErrUnresolvedVariable:
		if e.Name != "" {
			return fmt.Sprintf("%s: unresolved variable of type %s named %q", where, e.Type, e.Name)
		}
		return fmt.Sprintf("%s: unresolved variable of type %s", where, e.Type)
	case ErrAmbiguousVariable:
		return fmt.Sprintf("%s: ambiguous variable of type %s, candidates: %s", where, e.Type, strings.Join(e.Candidates, ", "))
	case ErrFrameRechain:
		return fmt.Sprintf("%s: frame is already chained", where)
	case ErrMultipleCreators:
		return fmt.Sprintf("%s: variable %q already has a creator", where, e.Name)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", where, e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s", where, e.Kind)
}

// Is lets errors.Is match a BuildError against its kind, as in
// errors.Is(err, frame.ErrAmbiguousVariable).
func (e *BuildError) Is(target error) bool {
	k, ok := target.(BuildErrorKind)
	return ok && e != nil && e.Kind == k
}

// KindOf extracts the BuildErrorKind from err, or 0.
func KindOf(err error) BuildErrorKind {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}
