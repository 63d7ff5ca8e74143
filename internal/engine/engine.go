// Package engine builds, caches and runs generated operations.
//
// An operation is built once, on first use: every stage's builders
// contribute frames, the method is arranged and resolved, the emitter
// renders it and the compile strategy turns the source into an executor.
// Concurrent first uses share one build. A failed build yields a poisoned
// executor that reports the failure on every call.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"pipegen/internal/compile"
	"pipegen/internal/resolve"
	"pipegen/internal/trace"
	"pipegen/internal/types"
	"pipegen/runtime/rt"
)

// Engine owns the registered operations and their compiled executors.
type Engine struct {
	cfg      Config
	tbl      *types.Table
	strategy compile.Strategy
	sink     ProgressSink

	mu       sync.RWMutex
	ops      map[string]*Operation
	builders [numStages][]Builder
	sources  []resolve.Source
	builds   map[string]*Build

	group singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrategy replaces the strategy derived from Config.
func WithStrategy(s compile.Strategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithSink sets the progress sink.
func WithSink(s ProgressSink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// New creates an engine compiling against tbl.
func New(cfg Config, tbl *types.Table, opts ...Option) (*Engine, error) {
	if tbl == nil {
		return nil, errors.New("engine: nil type table")
	}
	e := &Engine{
		cfg:    cfg,
		tbl:    tbl,
		sink:   nopSink{},
		ops:    make(map[string]*Operation),
		builds: make(map[string]*Build),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.strategy == nil {
		s, err := NewStrategy(cfg, tbl)
		if err != nil {
			return nil, err
		}
		e.strategy = s
	}
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Types() *types.Table { return e.tbl }

func (e *Engine) Strategy() compile.Strategy { return e.strategy }

// Register adds an operation. Names are unique.
func (e *Engine) Register(op Operation) error {
	if op.Name == "" {
		return errors.New("engine: operation without name")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.ops[op.Name]; dup {
		return fmt.Errorf("engine: operation %q already registered", op.Name)
	}
	e.ops[op.Name] = op.clone()
	return nil
}

// Use adds b to stage. Builders of one stage contribute in the order they
// were added.
func (e *Engine) Use(stage Stage, b Builder) {
	if stage >= numStages {
		panic(fmt.Sprintf("engine: invalid stage %d", stage))
	}
	e.mu.Lock()
	e.builders[stage] = append(e.builders[stage], b)
	e.mu.Unlock()
}

// AddSource registers a variable source consulted after the argument and
// property sources.
func (e *Engine) AddSource(s resolve.Source) {
	e.mu.Lock()
	e.sources = append(e.sources, s)
	e.mu.Unlock()
}

// Operations lists registered operation names, sorted.
func (e *Engine) Operations() []string {
	e.mu.RLock()
	names := make([]string, 0, len(e.ops))
	for name := range e.ops {
		names = append(names, name)
	}
	e.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Operation returns a copy of the registered operation name.
func (e *Engine) Operation(name string) (*Operation, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	op, ok := e.ops[name]
	if !ok {
		return nil, false
	}
	return op.clone(), true
}

// Build returns the cached build of name, building it on first use. A
// failed build is returned with Err set and is never retried. The error
// result is reserved for unknown operations and cancellation.
//
// The shared build does not inherit the cancellation of the caller that
// started it: every caller stops waiting when its own ctx ends, and the
// build still completes and is cached for the others.
func (e *Engine) Build(ctx context.Context, name string) (*Build, error) {
	if b, ok := e.cached(name); ok {
		return b, nil
	}
	op, ok := e.Operation(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bctx := context.WithoutCancel(ctx)
	ch := e.group.DoChan(name, func() (any, error) {
		if b, ok := e.cached(name); ok {
			return b, nil
		}
		b, err := e.build(bctx, op)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.builds[name] = b
		e.mu.Unlock()
		return b, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Build), nil
	}
}

func (e *Engine) cached(name string) (*Build, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.builds[name]
	return b, ok
}

// Executor returns the executor of name. A failed build yields a poisoned
// executor rather than an error.
func (e *Engine) Executor(ctx context.Context, name string) (compile.Executor, error) {
	b, err := e.Build(ctx, name)
	if err != nil {
		return nil, err
	}
	return b.Executor, nil
}

// Execute runs name with rc, building it first if needed.
func (e *Engine) Execute(ctx context.Context, name string, rc *rt.Context) (any, error) {
	exec, err := e.Executor(ctx, name)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		rc = rt.NewContext(nil)
	}
	return exec.Execute(ctx, rc)
}

// Warm builds names, or every operation when names is empty, concurrently.
// The returned error joins the failures of every poisoned build.
func (e *Engine) Warm(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = e.Operations()
	}
	ctx, span := trace.Start(ctx, trace.ScopeEngine, "warm")
	defer span.End(fmt.Sprintf("%d operations", len(names)))

	var (
		mu     sync.Mutex
		failed []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, name := range names {
		g.Go(func() error {
			b, err := e.Build(gctx, name)
			if err != nil {
				return err
			}
			if b.Err != nil {
				mu.Lock()
				failed = append(failed, b.Err)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(failed...)
}

// Forget drops the cached build of name so the next use rebuilds it.
func (e *Engine) Forget(name string) {
	e.mu.Lock()
	delete(e.builds, name)
	e.mu.Unlock()
	e.group.Forget(name)
}

func (e *Engine) publish(ev Event) { e.sink.Publish(ev) }

func (e *Engine) stageBuilders(stage Stage) []Builder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.builders[stage])
}

func (e *Engine) variableSources(op *Operation) []resolve.Source {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]resolve.Source, 0, len(e.sources)+2)
	out = append(out, resolve.ArgumentSource{}, resolve.ContextSource{Keys: op.keys()})
	return append(out, e.sources...)
}
