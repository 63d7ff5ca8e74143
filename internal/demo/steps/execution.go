package steps

import (
	"fmt"

	"pipegen/internal/demo/ledger"
	"pipegen/internal/engine"
	"pipegen/internal/frame"
	"pipegen/internal/types"
)

// Execution runs the ledger call behind each known operation.
func Execution(c *ledger.Catalog) engine.Builder {
	calls := map[string]func(bc *engine.BuildContext) error{
		"balance": func(bc *engine.BuildContext) error {
			b := bc.Types().Builtins()
			g := bc.Graph()
			bc.Append(
				g.Call(c.Find, frame.Recv(frame.Want(c.Store)), frame.Args(frame.Named(b.String, "account")), frame.ResultNames("acct")),
				g.Call(c.BalanceOf, frame.ResultNames("balance")),
			)
			return nil
		},
		"transfer": func(bc *engine.BuildContext) error {
			b := bc.Types().Builtins()
			g := bc.Graph()
			bc.Append(
				g.Call(c.Begin, frame.Recv(frame.Want(c.Store)), frame.Disposing(), frame.ResultNames("tx")),
				g.Call(c.Transfer, frame.Recv(frame.Want(c.Tx)),
					frame.Args(frame.Named(b.String, "from"), frame.Named(b.String, "to"), frame.Named(b.Int64, "amount")),
					frame.ResultNames("receipt")),
			)
			return nil
		},
		"accounts": func(bc *engine.BuildContext) error {
			bc.Append(bc.Graph().Call(c.Accounts, frame.Recv(frame.Want(c.Store)), frame.ResultNames("ids")))
			return nil
		},
	}
	return engine.Step{
		Name: "execution",
		When: func(op *engine.Operation) bool { return calls[op.Name] != nil },
		Build: func(bc *engine.BuildContext) error {
			return calls[bc.Operation().Name](bc)
		},
	}
}

// Outcomes answers ledger errors with a status instead of failing.
func Outcomes(c *ledger.Catalog) engine.Builder {
	return engine.Step{
		Name: "outcomes",
		Build: func(bc *engine.BuildContext) error {
			g := bc.Graph()
			for _, o := range c.Outcomes() {
				bc.OnError(o.Catch, g.Return(frame.Const(o.Status)))
			}
			return nil
		},
	}
}

// Audit records authenticated operations with audit=on.
func Audit(c *ledger.Catalog) engine.Builder {
	return engine.Step{
		Name: "audit",
		When: func(op *engine.Operation) bool {
			return op.Attr(AttrAudit) == "on" && op.Attr(AttrAuth) == "required"
		},
		Build: func(bc *engine.BuildContext) error {
			b := bc.Types().Builtins()
			bc.Append(bc.Graph().Call(c.Audit,
				frame.Recv(frame.Want(c.Store)),
				frame.Args(frame.Want(b.Context), frame.Want(c.Principal), frame.Const(bc.Operation().Name)),
				frame.Discarding()))
			return nil
		},
	}
}

// Respond returns the latest value of the declared result type, or no
// result when none is declared.
func Respond() engine.Builder {
	return engine.Step{
		Name: "respond",
		Build: func(bc *engine.BuildContext) error {
			op := bc.Operation()
			g := bc.Graph()
			if op.Result == types.NoTypeID {
				bc.Append(g.ReturnNothing())
				return nil
			}
			v, ok := bc.Lookup(op.Result)
			if !ok {
				return fmt.Errorf("operation %s produced no %s", op.Name, bc.Types().String(op.Result))
			}
			bc.Append(g.Return(frame.Use(v)))
			return nil
		},
	}
}
