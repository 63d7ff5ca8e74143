package resolve

import (
	"sync"

	"github.com/dave/jennifer/jen"

	"pipegen/internal/frame"
	"pipegen/internal/types"
)

// Provision is what a source hands back: the variable satisfying the request
// and the frames that create it. The frames are hoisted into the prologue.
type Provision struct {
	Var    frame.VarID
	Frames []frame.ID
}

// Source synthesizes variables the chain does not create.
type Source interface {
	Provide(m *frame.Method, req frame.Request) (Provision, bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(m *frame.Method, req frame.Request) (Provision, bool)

// Provide calls fn.
func (fn SourceFunc) Provide(m *frame.Method, req frame.Request) (Provision, bool) {
	return fn(m, req)
}

// ArgumentSource serves the arguments every generated method receives.
type ArgumentSource struct{}

// Provide matches context.Context and *rt.Context requests.
func (ArgumentSource) Provide(m *frame.Method, req frame.Request) (Provision, bool) {
	b := m.Graph.Types().Builtins()
	switch req.Type {
	case b.Context:
		return Provision{Var: m.Ctx}, true
	case b.Runtime:
		return Provision{Var: m.RC}, true
	}
	return Provision{}, false
}

// ContextSource serves named values stored in the invocation context. When
// Keys is non-nil only the listed keys are served, with the listed types.
type ContextSource struct {
	Keys map[string]types.TypeID
}

// Provide emits a typed lookup of req.Name in the invocation context. A
// missing or mistyped value yields the zero value.
func (s ContextSource) Provide(m *frame.Method, req frame.Request) (Provision, bool) {
	if req.Name == "" {
		return Provision{}, false
	}
	if s.Keys != nil {
		if typ, ok := s.Keys[req.Name]; !ok || typ != req.Type {
			return Provision{}, false
		}
	}
	g := m.Graph
	tbl := g.Types()
	key, typ := req.Name, req.Type
	v := g.NewVar(typ, key)
	render := func(w frame.Writer, in, out []jen.Code) {
		get := jen.Add(in[0]).Dot("Get").Call(jen.Lit(key))
		if typ == tbl.Builtins().Any {
			w.Add(jen.Add(out[0]).Op(":=").Add(get))
			return
		}
		w.Add(jen.List(out[0], jen.Id("_")).Op(":=").Add(get).Assert(frame.TypeCode(tbl, typ)))
	}
	id := g.Code("context value "+key, render, []frame.Request{frame.Use(m.RC)}, v)
	return Provision{Var: v, Frames: []frame.ID{id}}, true
}

// ServiceSource serves registered types from the invocation's service container.
type ServiceSource struct {
	mu    sync.RWMutex
	types map[types.TypeID]struct{}
}

// NewServiceSource creates a source serving the given types.
func NewServiceSource(ids ...types.TypeID) *ServiceSource {
	s := &ServiceSource{types: make(map[types.TypeID]struct{}, len(ids))}
	for _, id := range ids {
		s.Register(id)
	}
	return s
}

// Register adds id to the served types.
func (s *ServiceSource) Register(id types.TypeID) {
	s.mu.Lock()
	s.types[id] = struct{}{}
	s.mu.Unlock()
}

// Provide emits a container lookup keyed by the type's service key.
func (s *ServiceSource) Provide(m *frame.Method, req frame.Request) (Provision, bool) {
	s.mu.RLock()
	_, ok := s.types[req.Type]
	s.mu.RUnlock()
	if !ok {
		return Provision{}, false
	}
	g := m.Graph
	tbl := g.Types()
	typ := req.Type
	key := tbl.ServiceKey(typ)
	v := g.NewVar(typ, req.Name)
	render := func(w frame.Writer, in, out []jen.Code) {
		w.Add(jen.Add(out[0]).Op(":=").Add(in[0]).Dot("Services").Call().Dot("MustGet").Call(jen.Lit(key)).Assert(frame.TypeCode(tbl, typ)))
	}
	id := g.Code("service "+tbl.String(typ), render, []frame.Request{frame.Use(m.RC)}, v)
	return Provision{Var: v, Frames: []frame.ID{id}}, true
}
