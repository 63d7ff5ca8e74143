package emit

import (
	"github.com/dave/jennifer/jen"

	"pipegen/internal/types"
)

// region decides how a block leaves its enclosing function.
type region uint8

const (
	// regionResult functions return (any, error).
	regionResult region = iota
	// regionFuture functions return rt.Future.
	regionFuture
	// regionFinally is a deferred cleanup closure without results.
	regionFinally
)

// writer collects statements for one block and implements frame.Writer.
type writer struct {
	stmts  []jen.Code
	region region
}

func newWriter(r region) *writer { return &writer{region: r} }

// Add appends each code item as its own statement.
func (w *writer) Add(code ...jen.Code) {
	w.stmts = append(w.stmts, code...)
}

// Block opens a nested block under head. A nil head writes a bare block.
func (w *writer) Block(head *jen.Statement, body func()) {
	saved := w.stmts
	w.stmts = nil
	body()
	inner := w.stmts
	w.stmts = saved
	if head == nil {
		w.stmts = append(w.stmts, jen.Block(inner...))
		return
	}
	w.stmts = append(w.stmts, head.Block(inner...))
}

// Exit returns value as the successful outcome.
func (w *writer) Exit(value jen.Code) {
	switch w.region {
	case regionResult:
		w.Add(jen.Return(value, jen.Nil()))
	case regionFuture:
		w.Add(jen.Return(jen.Qual(types.RuntimePath, "Completed").Call(value, jen.Nil())))
	case regionFinally:
		w.Add(jen.Return())
	}
}

// Fail returns err as the outcome.
func (w *writer) Fail(err jen.Code) {
	switch w.region {
	case regionResult:
		w.Add(jen.Return(jen.Nil(), err))
	case regionFuture:
		w.Add(jen.Return(jen.Qual(types.RuntimePath, "Completed").Call(jen.Nil(), err)))
	case regionFinally:
		w.Add(jen.Return())
	}
}

// propagate returns an (any, error) pair produced by a nested closure.
func (w *writer) propagate(res, err jen.Code) {
	switch w.region {
	case regionResult:
		w.Add(jen.Return(res, err))
	case regionFuture:
		w.Add(jen.Return(jen.Qual(types.RuntimePath, "Completed").Call(res, err)))
	case regionFinally:
		w.Add(jen.Return())
	}
}

// returnCall returns the (value, error) results of call directly.
func (w *writer) returnCall(call jen.Code) {
	switch w.region {
	case regionResult:
		w.Add(jen.Return(call))
	case regionFuture:
		w.Add(jen.Return(jen.Qual(types.RuntimePath, "Completed").Call(call)))
	case regionFinally:
		w.Add(jen.List(jen.Id("_"), jen.Id("_")).Op("=").Add(call))
	}
}

// check writes the error test following an assignment to err.
func (w *writer) check(err jen.Code) {
	w.Block(jen.If(jen.Add(err).Op("!=").Nil()), func() { w.Fail(err) })
}
