// Package compile turns emitted units into invocable artifacts.
//
// A Strategy compiles one Unit. Interpreter evaluates the source in memory
// with yaegi, Plugin builds a Go plugin inside the host module, and Durable
// wraps either one with a content-addressed on-disk record so that known
// results survive restarts. Load adapts the compiled entry point to the
// uniform Executor contract.
package compile

import (
	"fmt"
	"strings"

	"pipegen/internal/emit"
	"pipegen/internal/frame"
)

// Optimization selects how a unit is compiled.
type Optimization uint8

const (
	// Debug keeps frame markers in the source and disables compiler optimisations.
	Debug Optimization = iota
	Release
)

func (o Optimization) String() string {
	switch o {
	case Debug:
		return "debug"
	case Release:
		return "release"
	default:
		return fmt.Sprintf("Optimization(%d)", o)
	}
}

// ParseOptimization converts a string to an Optimization.
func ParseOptimization(s string) (Optimization, error) {
	switch strings.ToLower(s) {
	case "debug", "":
		return Debug, nil
	case "release":
		return Release, nil
	default:
		return Debug, fmt.Errorf("invalid optimization: %q (expected: debug|release)", s)
	}
}

// Unit is one rendered operation ready for compilation.
type Unit struct {
	// Name is the operation the unit was generated for.
	Name         string
	Package      string
	Source       []byte
	Map          *emit.SourceMap
	Mode         frame.AsyncMode
	Optimization Optimization
}

// FileName is the file name under which the unit's source is compiled and
// reported in diagnostics.
func (u Unit) FileName() string {
	return Stem(u.Name) + ".go"
}

// Stem turns an operation name into a file-system and identifier friendly stem.
func Stem(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "unit"
	}
	return b.String()
}

// UnmarshalText lets configuration files spell the level as text.
func (o *Optimization) UnmarshalText(text []byte) error {
	v, err := ParseOptimization(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

func (o Optimization) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
