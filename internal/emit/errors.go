package emit

import (
	"errors"
	"fmt"

	"pipegen/internal/frame"
)

// ErrEmit is matched by every *Error.
var ErrEmit = errors.New("emit failed")

// Error aborts rendering of one method. Source holds what was rendered
// before the failure.
type Error struct {
	Method string
	Frame  frame.ID
	Label  string
	Source []byte
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Frame != frame.NoFrame:
		return fmt.Sprintf("emit %s: frame#%d (%s): %v", e.Method, e.Frame, e.Label, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("emit %s: %v", e.Method, e.Err)
	default:
		return fmt.Sprintf("emit %s: frame#%d (%s) is unresolved", e.Method, e.Frame, e.Label)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches ErrEmit.
func (e *Error) Is(target error) bool { return target == ErrEmit }
