package engine

import (
	"pipegen/internal/frame"
	"pipegen/internal/types"
)

// Builder contributes frames for the operations it applies to.
type Builder interface {
	Applies(op *Operation) bool
	Contribute(bc *BuildContext) error
}

// Step is a Builder assembled from functions. A nil When applies to every
// operation.
type Step struct {
	Name  string
	When  func(op *Operation) bool
	Build func(bc *BuildContext) error
}

func (s Step) Applies(op *Operation) bool { return s.When == nil || s.When(op) }

func (s Step) Contribute(bc *BuildContext) error {
	if s.Build == nil {
		return nil
	}
	return s.Build(bc)
}

// BuildContext is handed to builders while an operation is assembled.
type BuildContext struct {
	op      *Operation
	stage   Stage
	m       *frame.Method
	created []frame.VarID
}

// Operation is the operation being built.
func (bc *BuildContext) Operation() *Operation { return bc.op }

// Stage is the stage the current builder belongs to.
func (bc *BuildContext) Stage() Stage { return bc.stage }

// Graph is the arena frames must be created in.
func (bc *BuildContext) Graph() *frame.Graph { return bc.m.Graph }

func (bc *BuildContext) Types() *types.Table { return bc.m.Graph.Types() }

// Method gives builders access to method attributes; frames must go
// through Append, Finally and OnError.
func (bc *BuildContext) Method() *frame.Method { return bc.m }

// Append adds frames to the main chain.
func (bc *BuildContext) Append(ids ...frame.ID) {
	bc.m.Append(ids...)
	for _, id := range ids {
		bc.collect(id)
	}
}

// Finally registers frames that run when the method returns.
func (bc *BuildContext) Finally(ids ...frame.ID) {
	bc.m.AddFinally(ids...)
}

// OnError converts errors matching c into the result of frames. The
// returned variable holds the caught error inside the handler.
func (bc *BuildContext) OnError(c frame.Catch, ids ...frame.ID) frame.VarID {
	return bc.m.AddHandler(c, ids...)
}

// Lookup returns the latest variable of type typ created by frames appended
// so far, preferring an exact type over an assignable one.
func (bc *BuildContext) Lookup(typ types.TypeID) (frame.VarID, bool) {
	tbl := bc.Types()
	g := bc.m.Graph
	assignable := frame.NoVar
	for i := len(bc.created) - 1; i >= 0; i-- {
		v := g.Var(bc.created[i])
		if v == nil {
			continue
		}
		if v.Type == typ {
			return v.ID, true
		}
		if assignable == frame.NoVar && tbl.Assignable(v.Type, typ) {
			assignable = v.ID
		}
	}
	return assignable, assignable != frame.NoVar
}

// collect records variables created by id. Block-scoped creates are not
// visible after their block and are skipped.
func (bc *BuildContext) collect(id frame.ID) {
	f := bc.m.Graph.Frame(id)
	if f == nil {
		return
	}
	switch f.Kind {
	case frame.KindComposite:
		for _, child := range f.Composite.Children {
			bc.collect(child)
		}
		return
	case frame.KindConditional:
		if f.Conditional.Predicate != nil && !f.Conditional.Predicate(bc.m) {
			return
		}
		for _, child := range f.Conditional.Children {
			bc.collect(child)
		}
		return
	case frame.KindConstruct:
		if f.Construct.Mode == frame.ConstructScoped {
			return
		}
	}
	bc.created = append(bc.created, f.Creates...)
}
