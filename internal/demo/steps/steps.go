// Package steps contributes the frames of the demo ledger operations.
//
// Operations opt into steps through attributes:
//
//	auth            "required" authenticates the token property
//	validate.<prop> comma-separated rules for the property: required, positive
//	audit           "on" records the call after execution
package steps

import (
	"fmt"
	"strings"

	"pipegen/internal/demo/ledger"
	"pipegen/internal/engine"
	"pipegen/internal/frame"
)

const (
	AttrAuth     = "auth"
	AttrAudit    = "audit"
	AttrValidate = "validate."
)

// Authentication binds the principal for operations with auth=required.
func Authentication(c *ledger.Catalog) engine.Builder {
	return engine.Step{
		Name: "authentication",
		When: func(op *engine.Operation) bool { return op.Attr(AttrAuth) == "required" },
		Build: func(bc *engine.BuildContext) error {
			b := bc.Types().Builtins()
			if p, ok := bc.Operation().Property("token"); !ok || p.Type != b.String {
				return fmt.Errorf("operation %s requires authentication but declares no string token", bc.Operation().Name)
			}
			bc.Append(bc.Graph().Call(c.Authenticate,
				frame.Recv(frame.Want(c.Store)),
				frame.Args(frame.Named(b.String, "token")),
				frame.ResultNames("principal")))
			return nil
		},
	}
}

// Validation checks declared properties against their validate.<prop>
// rules, in declaration order. A failed rule ends the operation with the
// *ledger.ValidationError as its result.
func Validation(c *ledger.Catalog) engine.Builder {
	return engine.Step{
		Name: "validation",
		When: func(op *engine.Operation) bool { return len(rules(op)) > 0 },
		Build: func(bc *engine.BuildContext) error {
			b := bc.Types().Builtins()
			g := bc.Graph()
			for _, r := range rules(bc.Operation()) {
				fn := c.Required
				switch r.rule {
				case "required":
					if r.prop.Type != b.String {
						return fmt.Errorf("property %s: rule required needs a string", r.prop.Name)
					}
				case "positive":
					if r.prop.Type != b.Int64 {
						return fmt.Errorf("property %s: rule positive needs an int64", r.prop.Name)
					}
					fn = c.Positive
				default:
					return fmt.Errorf("property %s: unknown rule %q", r.prop.Name, r.rule)
				}
				bc.Append(g.Call(fn,
					frame.Args(frame.Const(r.prop.Name), frame.Named(r.prop.Type, r.prop.Name)),
					frame.Label(fmt.Sprintf("validate %s %s", r.prop.Name, r.rule))))
			}
			// the handler body sees the caught error as its only ValidationError
			bc.OnError(frame.ErrorType(c.ValidationError), g.Return(frame.Want(c.ValidationError)))
			return nil
		},
	}
}

type propertyRule struct {
	prop engine.Property
	rule string
}

func rules(op *engine.Operation) []propertyRule {
	var out []propertyRule
	for _, p := range op.Properties {
		for _, r := range strings.Split(op.Attr(AttrValidate+p.Name), ",") {
			if r = strings.TrimSpace(r); r != "" {
				out = append(out, propertyRule{prop: p, rule: r})
			}
		}
	}
	return out
}
