package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"pipegen/internal/compile"
	"pipegen/internal/diag"
	"pipegen/internal/emit"
	"pipegen/internal/frame"
	"pipegen/internal/observ"
	"pipegen/internal/resolve"
	"pipegen/internal/trace"
	"pipegen/runtime/rt"
)

// Build is the outcome of building one operation. It is immutable once
// returned and shared by every caller.
type Build struct {
	Operation string
	Unit      string
	Source    []byte
	Map       *emit.SourceMap
	Mode      frame.AsyncMode
	Artifact  *compile.Artifact
	// Executor is poisoned when Err is set.
	Executor compile.Executor
	Err      *BuildError
	Timings  observ.Report
}

// Failed reports whether the build produced a poisoned executor.
func (b *Build) Failed() bool { return b.Err != nil }

// Cached reports whether the artifact was served from the durable cache.
func (b *Build) Cached() bool { return b.Artifact != nil && b.Artifact.Cached }

// poisoned fails every call with the captured build error.
type poisoned struct{ err *BuildError }

func (p poisoned) Execute(context.Context, *rt.Context) (any, error) { return nil, p.err }

// generated is what the front half of the pipeline hands to compilation.
type generated struct {
	unit  compile.Unit
	phase string
	err   error
}

func (e *Engine) build(ctx context.Context, op *Operation) (*Build, error) {
	start := time.Now()
	timer := observ.NewTimer()
	ctx, span := trace.Start(ctx, trace.ScopeOperation, "op:"+op.Name)
	e.publish(Event{Operation: op.Name, Status: StatusStarted})

	b := &Build{Operation: op.Name, Unit: e.cfg.UnitName(op.Name)}
	fail := func(phase string, source []byte, err error) (*Build, error) {
		b.Err = buildFailure(op.Name, compile.Stem(b.Unit)+".go", phase, source, err, e.cfg.diagnosticLimit())
		b.Executor = poisoned{b.Err}
		b.Timings = timer.Report()
		span.WithExtra("phase", phase).End("failed")
		e.publish(Event{Operation: op.Name, Status: StatusFailed, Err: b.Err, Elapsed: time.Since(start)})
		return b, nil
	}
	abort := func(err error) (*Build, error) {
		span.End("canceled")
		e.publish(Event{Operation: op.Name, Status: StatusFailed, Err: err, Elapsed: time.Since(start)})
		return nil, err
	}

	gen := e.generate(ctx, op, b.Unit, timer)
	b.Source, b.Map, b.Mode = gen.unit.Source, gen.unit.Map, gen.unit.Mode
	if gen.err != nil {
		return fail(gen.phase, gen.unit.Source, gen.err)
	}

	done := timer.Track("compile")
	cctx, csp := trace.Start(ctx, trace.ScopeStage, "compile")
	art, err := e.strategy.Compile(cctx, gen.unit)
	csp.End(e.strategy.Name())
	done(e.strategy.Name())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return abort(ctxErr)
		}
		if !errors.Is(err, compile.ErrCompile) {
			err = &compile.Failure{
				Unit:    b.Unit,
				Backend: e.strategy.Name(),
				Source:  gen.unit.Source,
				Diagnostics: []diag.Diagnostic{diag.NewError(diag.CompileToolchain,
					diag.Location{File: gen.unit.FileName()}, err.Error())},
			}
		}
		return fail("compile", gen.unit.Source, err)
	}
	b.Artifact = art

	done = timer.Track("load")
	_, lsp := trace.Start(ctx, trace.ScopeStage, "load")
	exec, err := compile.Load(art)
	lsp.End("")
	done("")
	if err != nil {
		return fail("load", gen.unit.Source, err)
	}
	b.Executor = exec
	b.Timings = timer.Report()

	status := StatusCompiled
	if art.Cached {
		status = StatusCached
	}
	span.WithExtra("mode", b.Mode.String()).End(status.String())
	e.publish(Event{Operation: op.Name, Status: status, Elapsed: time.Since(start)})
	return b, nil
}

// generate runs contribution, resolution and emission. The unit's source
// is set whenever anything could be rendered, also on failure.
func (e *Engine) generate(ctx context.Context, op *Operation, unit string, timer *observ.Timer) generated {
	pkg := e.strategy.Package(unit)
	u := compile.Unit{Name: unit, Package: pkg, Optimization: e.cfg.Optimization}

	m, err := e.contribute(ctx, op, timer)
	if err != nil {
		return generated{unit: u, phase: "contribute", err: err}
	}

	done := timer.Track("resolve")
	_, rsp := trace.Start(ctx, trace.ScopeStage, "resolve")
	r := resolve.New(m, e.variableSources(op)...)
	rerr := r.Run()
	rsp.End(fmt.Sprintf("%d frames", m.Graph.Len()))
	done("")

	done = timer.Track("emit")
	ectx, esp := trace.Start(ctx, trace.ScopeStage, "emit")
	out, err := emit.Emit(r, emit.Options{Package: pkg, Debug: e.cfg.Optimization == compile.Debug})
	esp.End("")
	done("")
	if out != nil {
		u.Source, u.Map, u.Mode = out.Source, out.Map, out.Mode
		e.markFrames(ectx, m, out.Map)
	}
	var ee *emit.Error
	if errors.As(err, &ee) {
		u.Source = ee.Source
	}
	switch {
	case rerr != nil:
		return generated{unit: u, phase: "resolve", err: rerr}
	case err != nil:
		return generated{unit: u, phase: "emit", err: err}
	}
	return generated{unit: u}
}

// contribute asks every stage's builders for frames.
func (e *Engine) contribute(ctx context.Context, op *Operation, timer *observ.Timer) (*frame.Method, error) {
	defer timer.Track("contribute")("")
	g := frame.NewGraph(e.tbl)
	m := frame.NewMethod(g, op.Name, op.Result)
	maps.Copy(m.Attrs, op.Attrs)
	bc := &BuildContext{op: op, m: m}
	for _, stage := range Stages() {
		builders := e.stageBuilders(stage)
		if len(builders) == 0 {
			continue
		}
		_, sp := trace.Start(ctx, trace.ScopeStage, "stage:"+stage.String())
		bc.stage = stage
		var applied int
		for _, b := range builders {
			if !b.Applies(op) {
				continue
			}
			applied++
			if err := contributeOne(b, bc); err != nil {
				sp.End("failed")
				return m, fmt.Errorf("%s stage: %w", stage, err)
			}
		}
		sp.End(fmt.Sprintf("%d builders", applied))
		e.publish(Event{Operation: op.Name, Stage: stage.String(), Status: StatusStage})
	}
	return m, nil
}

// contributeOne runs one builder, turning a panic into an error so that
// only this operation is poisoned.
func contributeOne(b Builder, bc *BuildContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errBuilderPanic, r)
		}
	}()
	return b.Contribute(bc)
}

// markFrames emits one frame-scope trace event per arranged frame.
func (e *Engine) markFrames(ctx context.Context, m *frame.Method, smap *emit.SourceMap) {
	t := trace.FromContext(ctx)
	if !t.Level().ShouldEmit(trace.ScopeFrame) {
		return
	}
	lines := make(map[frame.ID]int)
	for line := 1; line <= smap.Lines(); line++ {
		if id, _, ok := smap.Frame(line); ok {
			if _, seen := lines[id]; !seen {
				lines[id] = line
			}
		}
	}
	for _, id := range m.Chain {
		f := m.Graph.Frame(id)
		detail := f.Kind.String()
		if line, ok := lines[id]; ok {
			detail = fmt.Sprintf("%s line %d", detail, line)
		}
		trace.Mark(ctx, trace.ScopeFrame, fmt.Sprintf("frame %d: %s", id, f.Label), detail)
	}
}

// Preview renders the source of name without compiling or caching it. On
// failure the source produced so far is returned with a *BuildError.
func (e *Engine) Preview(ctx context.Context, name string) ([]byte, error) {
	op, ok := e.Operation(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	unit := e.cfg.UnitName(name)
	gen := e.generate(ctx, op, unit, observ.NewTimer())
	if gen.err != nil {
		return gen.unit.Source, buildFailure(name, compile.Stem(unit)+".go", gen.phase, gen.unit.Source, gen.err, e.cfg.diagnosticLimit())
	}
	return gen.unit.Source, nil
}
