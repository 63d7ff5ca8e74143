package frame

import (
	"github.com/dave/jennifer/jen"

	"pipegen/internal/types"
)

// Origin records how a Variable comes into existence in generated code.
type Origin uint8

const (
	// OriginFrame variables are declared by their creator frame.
	OriginFrame Origin = iota
	// OriginArgument variables are parameters of the generated method.
	OriginArgument
	// OriginCaught variables hold the error matched by an exception handler.
	OriginCaught
)

// Variable is a typed build-time placeholder for a runtime value.
type Variable struct {
	ID      VarID
	Type    types.TypeID
	Name    string
	Origin  Origin
	Creator ID
	Deps    []VarID
}

// Request asks the resolver for one value. Exactly one of the three forms is used:
// a pre-bound variable, a constant, or a lookup by type with an optional name hint.
type Request struct {
	Type  types.TypeID
	Name  string
	Bound VarID

	Const    any
	HasConst bool
}

// Want requests a value of type id.
func Want(id types.TypeID) Request { return Request{Type: id} }

// Named requests a value of type id whose name is hint.
func Named(id types.TypeID, hint string) Request { return Request{Type: id, Name: hint} }

// Use binds the request to an existing variable.
func Use(v VarID) Request { return Request{Bound: v} }

// Const binds the request to a literal constant.
func Const(v any) Request { return Request{Const: v, HasConst: true} }

// IsZero reports whether the request carries no information.
func (r Request) IsZero() bool {
	return r.Type == types.NoTypeID && r.Bound == NoVar && !r.HasConst && r.Name == ""
}

// Writer is the statement sink a frame renders into. The emitter implements it;
// Exit and Fail produce the return statement matching the enclosing region.
type Writer interface {
	Add(code ...jen.Code)
	Block(head *jen.Statement, body func())
	Exit(value jen.Code)
	Fail(err jen.Code)
}

// Renderer writes the statements of a code frame. in holds the resolved uses
// and out the created variables, both as identifiers.
type Renderer func(w Writer, in, out []jen.Code)

// CodeFrame carries builder-supplied statements.
type CodeFrame struct {
	Uses   []Request
	Render Renderer
}

// LiteralFrame binds Value to the created variable.
type LiteralFrame struct {
	Value any
}

// CallMode decides what happens to a call's result.
type CallMode uint8

const (
	// CallBind declares result variables.
	CallBind CallMode = iota
	// CallReturn makes the single result the method's return value.
	CallReturn
	// CallDiscard evaluates the call for its side effects and error only.
	CallDiscard
)

// DisposeMode controls release of closable results.
type DisposeMode uint8

const (
	DisposeNone DisposeMode = iota
	// DisposeDefer releases the result when the enclosing function returns.
	DisposeDefer
)

// CallFrame invokes a registered function or method.
type CallFrame struct {
	Func    *types.Func
	Recv    Request
	Args    []Request
	Mode    CallMode
	Dispose DisposeMode
}

// ConstructMode decides what a construct frame does with the new value.
type ConstructMode uint8

const (
	ConstructBind ConstructMode = iota
	ConstructReturn
	// ConstructScoped binds the value for the inner chain and releases it afterwards.
	ConstructScoped
)

// ConstructFrame builds a value through a constructor function or, when Func is
// nil, a struct literal over Fields.
type ConstructFrame struct {
	Type   types.TypeID
	Func   *types.Func
	Fields []types.Field
	Args   []Request
	Mode   ConstructMode
	Inner  []ID
}

// ReturnFrame exits the method with Value, or with rt.NoResult when NoResult is set.
type ReturnFrame struct {
	Value    Request
	NoResult bool
}

// IfFrame guards Inner with a runtime boolean.
type IfFrame struct {
	Cond  Request
	Not   bool
	Inner []ID
}

// CompositeFrame groups children that are spliced in place during arrangement.
type CompositeFrame struct {
	Children []ID
}

// Predicate is evaluated once, at arrangement, against the method being built.
type Predicate func(m *Method) bool

// ConditionalFrame includes Children only when Predicate holds.
type ConditionalFrame struct {
	Predicate Predicate
	Children  []ID
}

// Frame is one IR node. Kind selects the payload.
type Frame struct {
	ID      ID
	Kind    Kind
	Label   string
	Creates []VarID
	Next    ID
	chained bool

	Code        CodeFrame
	Literal     LiteralFrame
	Call        CallFrame
	Construct   ConstructFrame
	Return      ReturnFrame
	If          IfFrame
	Composite   CompositeFrame
	Conditional ConditionalFrame
}

// Requests lists the values the frame consumes, in resolution order.
func (f *Frame) Requests() []Request {
	switch f.Kind {
	case KindCode:
		return f.Code.Uses
	case KindCall:
		if f.Call.Func != nil && f.Call.Func.Recv != types.NoTypeID {
			out := make([]Request, 0, len(f.Call.Args)+1)
			out = append(out, f.Call.Recv)
			return append(out, f.Call.Args...)
		}
		return f.Call.Args
	case KindConstruct:
		return f.Construct.Args
	case KindReturn:
		if f.Return.NoResult {
			return nil
		}
		return []Request{f.Return.Value}
	case KindIf:
		return []Request{f.If.Cond}
	case KindLiteral, KindComposite, KindConditional, KindInvalid:
		return nil
	}
	return nil
}

// Inner returns the nested chain owned by a wrapping frame.
func (f *Frame) Inner() []ID {
	switch f.Kind {
	case KindIf:
		return f.If.Inner
	case KindConstruct:
		if f.Construct.Mode == ConstructScoped {
			return f.Construct.Inner
		}
	}
	return nil
}

// Chained reports whether the frame has been linked into a chain.
func (f *Frame) Chained() bool { return f.chained }
