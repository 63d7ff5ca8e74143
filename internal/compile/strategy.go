package compile

import (
	"context"

	"pipegen/internal/cachekey"
)

// Strategy is a compile backend.
type Strategy interface {
	// Name identifies the backend in cache records and diagnostics.
	Name() string
	// Package is the package clause the backend expects for unit.
	Package(unit string) string
	// Compile turns u into an artifact. Compiler diagnostics are reported as
	// *Failure; any other error is environmental.
	Compile(ctx context.Context, u Unit) (*Artifact, error)
}

// Reopener is implemented by backends whose artifacts persist as files.
type Reopener interface {
	Reopen(ctx context.Context, u Unit, path string) (*Artifact, error)
}

// Artifact is a compiled unit. It is immutable and safe to share.
type Artifact struct {
	Unit    string
	Backend string
	// Path is the persisted artifact, empty for in-memory backends.
	Path string
	// Key is set when the artifact went through a Durable cache.
	Key    cachekey.Digest
	Cached bool

	entry any
}

// NewArtifact wraps an entry point produced outside this package.
func NewArtifact(unit, backend string, entry any) *Artifact {
	return &Artifact{Unit: unit, Backend: backend, entry: entry}
}

// Entry returns the compiled entry point as an untyped value.
func (a *Artifact) Entry() any {
	if a == nil {
		return nil
	}
	return a.entry
}
