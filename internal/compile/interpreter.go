package compile

import (
	"context"
	"errors"
	"fmt"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"pipegen/internal/diag"
	"pipegen/internal/emit"
	"pipegen/internal/types"
)

// Interpreter evaluates units in memory with yaegi. Artifacts live only as
// long as the process.
type Interpreter struct {
	// Types supplies the host symbols generated code refers to.
	Types *types.Table
}

// NewInterpreter returns an in-memory backend exporting tbl's symbols.
func NewInterpreter(tbl *types.Table) *Interpreter {
	return &Interpreter{Types: tbl}
}

func (*Interpreter) Name() string { return "memory" }

// Package is the same for every unit: each one gets its own interpreter.
func (*Interpreter) Package(string) string { return emit.DefaultPackage }

func (in *Interpreter) Compile(ctx context.Context, u Unit) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("compile: load stdlib symbols: %w", err)
	}
	if err := i.Use(rtSymbols); err != nil {
		return nil, fmt.Errorf("compile: load runtime symbols: %w", err)
	}
	if in.Types != nil {
		if err := i.Use(hostSymbols(in.Types)); err != nil {
			return nil, fmt.Errorf("compile: load host symbols: %w", err)
		}
	}

	if _, err := i.EvalWithContext(ctx, string(u.Source)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, in.failure(u, diag.CompileError, err)
	}
	pkg := u.Package
	if pkg == "" {
		pkg = emit.DefaultPackage
	}
	v, err := i.Eval(pkg + "." + emit.EntryPoint)
	if err != nil {
		return nil, in.failure(u, diag.LoadMissingEntry, err)
	}
	if !v.IsValid() || !v.CanInterface() {
		return nil, in.failure(u, diag.LoadMissingEntry, errors.New("entry point is not a value"))
	}
	return &Artifact{Unit: u.Name, Backend: in.Name(), entry: v.Interface()}, nil
}

func (in *Interpreter) failure(u Unit, code diag.Code, err error) *Failure {
	return &Failure{
		Unit:        u.Name,
		Backend:     in.Name(),
		Source:      u.Source,
		Diagnostics: diagnoseError(u, code, err, interp.DefaultSourceName),
	}
}
