package compile

import (
	"context"
	"errors"
	"fmt"

	"pipegen/internal/diag"
	"pipegen/runtime/rt"
)

// Executor runs one compiled operation.
type Executor interface {
	Execute(ctx context.Context, rc *rt.Context) (any, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, rc *rt.Context) (any, error)

func (f ExecutorFunc) Execute(ctx context.Context, rc *rt.Context) (any, error) {
	return f(ctx, rc)
}

// Load adapts the artifact's entry point to Executor. Both the synchronous
// and the future-returning shapes are accepted; futures are awaited.
func Load(a *Artifact) (Executor, error) {
	if a == nil {
		return nil, errors.New("compile: load nil artifact")
	}
	switch fn := a.entry.(type) {
	case func(context.Context, *rt.Context) (any, error):
		return ExecutorFunc(fn), nil
	case func(context.Context, *rt.Context) rt.Future:
		return ExecutorFunc(func(ctx context.Context, rc *rt.Context) (any, error) {
			fut := fn(ctx, rc)
			if fut == nil {
				return nil, fmt.Errorf("%s: nil future", a.Unit)
			}
			return fut.Await(ctx)
		}), nil
	case Executor:
		return fn, nil
	default:
		return nil, &Failure{
			Unit:    a.Unit,
			Backend: a.Backend,
			Diagnostics: []diag.Diagnostic{diag.NewError(diag.LoadBadSignature, diag.Location{File: a.Unit},
				fmt.Sprintf("entry point has type %T", a.entry))},
		}
	}
}
