// Package resolve binds the requests of every frame in a method to variables.
//
// The resolver walks the arranged chain depth-first. For each request it looks
// first at variables created earlier in the chain (and in enclosing blocks),
// then at the ordered source list. Values synthesized by sources are memoised
// per (type, name) and their frames are hoisted into the method prologue.
package resolve

import (
	"errors"
	"fmt"
	"slices"

	"pipegen/internal/frame"
	"pipegen/internal/types"
)

type memoKey struct {
	typ  types.TypeID
	name string
}

// Resolver binds frame requests for one method. It is not safe for concurrent use.
type Resolver struct {
	m       *frame.Method
	g       *frame.Graph
	tbl     *types.Table
	sources []Source

	visited map[frame.ID]struct{}
	uses    map[frame.ID][]frame.VarID
	failed  map[frame.ID]struct{}
	memo    map[memoKey]frame.VarID
	errs    []error
	ran     bool
}

// New creates a resolver for m. ArgumentSource is always consulted first;
// sources follow in the given order.
func New(m *frame.Method, sources ...Source) *Resolver {
	all := make([]Source, 0, len(sources)+1)
	all = append(all, ArgumentSource{})
	all = append(all, sources...)
	return &Resolver{
		m:       m,
		g:       m.Graph,
		tbl:     m.Graph.Types(),
		sources: all,
		visited: make(map[frame.ID]struct{}),
		uses:    make(map[frame.ID][]frame.VarID),
		failed:  make(map[frame.ID]struct{}),
		memo:    make(map[memoKey]frame.VarID),
	}
}

// Method returns the method being resolved.
func (r *Resolver) Method() *frame.Method { return r.m }

// Run resolves the whole method: the chain, then handler bodies, then finally
// frames. Construction errors recorded by the graph are reported first,
// through Arrange.
// Running twice is a no-op.
func (r *Resolver) Run() error {
	if r.ran {
		return r.Err()
	}
	r.ran = true
	if err := r.m.Arrange(); err != nil {
		r.errs = append(r.errs, err)
	}
	r.walk(r.m.Chain, nil)
	for _, h := range r.m.Handlers {
		r.walk(h.Frames, []frame.VarID{h.Caught})
	}
	r.walk(r.m.Finally, nil)
	return r.Err()
}

// Err joins every resolution error recorded so far.
func (r *Resolver) Err() error { return errors.Join(r.errs...) }

// Uses returns the variables bound to the frame's requests, aligned with
// Frame.Requests. Constant requests and failed lookups hold frame.NoVar.
func (r *Resolver) Uses(id frame.ID) []frame.VarID { return r.uses[id] }

// Resolved reports whether every request of the frame was bound.
func (r *Resolver) Resolved(id frame.ID) bool {
	if _, ok := r.visited[id]; !ok {
		return false
	}
	_, bad := r.failed[id]
	return !bad
}

// walk resolves ids in order. scope holds the variables visible on entry;
// the slice is copied so creates never leak out of a nested block.
func (r *Resolver) walk(ids []frame.ID, scope []frame.VarID) {
	scope = slices.Clone(scope)
	for _, id := range ids {
		f := r.g.Frame(id)
		if f == nil {
			continue
		}
		r.FindVariables(id, scope)
		if inner := f.Inner(); len(inner) > 0 {
			nested := scope
			if f.Kind == frame.KindConstruct {
				nested = append(slices.Clone(scope), f.Creates...)
			}
			r.walk(inner, nested)
		}
		if f.Kind == frame.KindConstruct && f.Construct.Mode == frame.ConstructScoped {
			// the resource lives only inside its block
			continue
		}
		scope = append(scope, f.Creates...)
	}
}

// FindVariables binds the requests of frame id against scope and returns the
// bound variables. A frame is resolved once; later calls return the first result.
func (r *Resolver) FindVariables(id frame.ID, scope []frame.VarID) []frame.VarID {
	if _, done := r.visited[id]; done {
		return r.uses[id]
	}
	r.visited[id] = struct{}{}
	f := r.g.Frame(id)
	reqs := f.Requests()
	uses := make([]frame.VarID, len(reqs))
	for i, req := range reqs {
		v, err := r.lookup(f, req, scope)
		if err != nil {
			r.errs = append(r.errs, err)
			r.failed[id] = struct{}{}
			continue
		}
		uses[i] = v
	}
	r.uses[id] = uses
	deps := make([]frame.VarID, 0, len(uses))
	for _, v := range uses {
		if v != frame.NoVar && !slices.Contains(deps, v) {
			deps = append(deps, v)
		}
	}
	for _, v := range f.Creates {
		r.g.Var(v).Deps = deps
	}
	return uses
}

func (r *Resolver) lookup(f *frame.Frame, req frame.Request, scope []frame.VarID) (frame.VarID, error) {
	switch {
	case req.HasConst:
		return frame.NoVar, nil
	case req.Bound != frame.NoVar:
		if r.g.Var(req.Bound) == nil {
			return frame.NoVar, &frame.BuildError{Kind: frame.ErrUnresolvedVariable, Frame: f.ID, Label: f.Label, Detail: fmt.Sprintf("unknown variable %d", req.Bound)}
		}
		return req.Bound, nil
	}
	if v, ok, err := r.inScope(f, req, scope); ok {
		return v, err
	}
	if v, ok := r.fromSources(req); ok {
		return v, nil
	}
	return frame.NoVar, &frame.BuildError{
		Kind:  frame.ErrUnresolvedVariable,
		Frame: f.ID,
		Label: f.Label,
		Type:  r.tbl.String(req.Type),
		Name:  req.Name,
	}
}

// inScope searches variables created earlier. With a name hint only variables
// carrying that name qualify; without one an exact type match wins over an
// assignable one and two candidates of the same rank are ambiguous.
func (r *Resolver) inScope(f *frame.Frame, req frame.Request, scope []frame.VarID) (frame.VarID, bool, error) {
	var exact, assignable []frame.VarID
	for _, v := range scope {
		if slices.Contains(f.Creates, v) {
			continue
		}
		vr := r.g.Var(v)
		if req.Name != "" && vr.Name != req.Name && r.g.Hint(v) != req.Name {
			continue
		}
		switch {
		case vr.Type == req.Type:
			exact = append(exact, v)
		case r.tbl.Assignable(vr.Type, req.Type):
			assignable = append(assignable, v)
		}
	}
	for _, group := range [][]frame.VarID{exact, assignable} {
		switch {
		case len(group) == 1:
			return group[0], true, nil
		case len(group) > 1 && req.Name != "":
			// the latest declaration of a name shadows earlier ones
			return group[len(group)-1], true, nil
		case len(group) > 1:
			names := make([]string, len(group))
			for i, v := range group {
				names[i] = r.g.Var(v).Name
			}
			return frame.NoVar, true, &frame.BuildError{
				Kind:       frame.ErrAmbiguousVariable,
				Frame:      f.ID,
				Label:      f.Label,
				Type:       r.tbl.String(req.Type),
				Candidates: names,
			}
		}
	}
	return frame.NoVar, false, nil
}

func (r *Resolver) fromSources(req frame.Request) (frame.VarID, bool) {
	key := memoKey{typ: req.Type, name: req.Name}
	if v, ok := r.memo[key]; ok {
		return v, true
	}
	for _, src := range r.sources {
		p, ok := src.Provide(r.m, req)
		if !ok {
			continue
		}
		r.memo[key] = p.Var
		for _, id := range p.Frames {
			r.FindVariables(id, nil)
			r.m.Prologue = append(r.m.Prologue, id)
		}
		return p.Var, true
	}
	return frame.NoVar, false
}
