// Package demo wires the ledger operations into an engine. It stands in for
// the application that would normally own the steps and the services.
package demo

import (
	"fmt"
	"strconv"
	"strings"

	"pipegen/internal/demo/ledger"
	"pipegen/internal/demo/steps"
	"pipegen/internal/engine"
	"pipegen/internal/resolve"
	"pipegen/internal/types"
	"pipegen/runtime/rt"
)

// App is an engine loaded with the ledger operations and a seeded store.
type App struct {
	Engine  *engine.Engine
	Store   *ledger.Store
	Catalog *ledger.Catalog
}

// New builds the demo on a fresh type table.
func New(cfg engine.Config, opts ...engine.Option) (*App, error) {
	tbl := types.NewTable()
	c := ledger.NewCatalog(tbl)
	e, err := engine.New(cfg, tbl, opts...)
	if err != nil {
		return nil, err
	}
	for _, op := range Operations(tbl, c) {
		if err := e.Register(op); err != nil {
			return nil, err
		}
	}
	e.AddSource(resolve.NewServiceSource(c.Store))
	e.Use(engine.StageSetup, steps.Outcomes(c))
	e.Use(engine.StageAuthentication, steps.Authentication(c))
	e.Use(engine.StageValidation, steps.Validation(c))
	e.Use(engine.StageExecution, steps.Execution(c))
	e.Use(engine.StagePostExecution, steps.Audit(c))
	e.Use(engine.StagePostExecution, steps.Respond())
	return &App{Engine: e, Store: Seed(), Catalog: c}, nil
}

// Operations declares the ledger operations.
func Operations(tbl *types.Table, c *ledger.Catalog) []engine.Operation {
	b := tbl.Builtins()
	token := engine.Property{Name: "token", Type: b.String}
	str := func(name string) engine.Property { return engine.Property{Name: name, Type: b.String} }
	return []engine.Operation{
		{Name: "accounts", Result: c.IDs},
		{
			Name:       "balance",
			Properties: []engine.Property{token, str("account")},
			Result:     c.Balance,
			Attrs: map[string]string{
				steps.AttrAuth:                 "required",
				steps.AttrAudit:                "on",
				steps.AttrValidate + "account": "required",
			},
		},
		{
			Name:       "transfer",
			Properties: []engine.Property{token, str("from"), str("to"), {Name: "amount", Type: b.Int64}},
			Result:     c.Receipt,
			Attrs: map[string]string{
				steps.AttrAuth:                "required",
				steps.AttrAudit:               "on",
				steps.AttrValidate + "from":   "required",
				steps.AttrValidate + "to":     "required",
				steps.AttrValidate + "amount": "positive",
			},
		},
	}
}

// Seed returns a store with three accounts and two tokens.
func Seed() *ledger.Store {
	s := ledger.NewStore()
	s.Open(ledger.Account{ID: "alice", Owner: "alice", Balance: 100, Currency: "EUR"})
	s.Open(ledger.Account{ID: "bob", Owner: "bob", Balance: 20, Currency: "EUR"})
	s.Open(ledger.Account{ID: "carol", Owner: "carol", Balance: 50, Currency: "USD"})
	s.Grant("t-alice", "alice")
	s.Grant("t-bob", "bob")
	return s
}

// Context returns an invocation context carrying values and the store.
func (a *App) Context(values map[string]any) *rt.Context {
	return rt.NewContext(values).WithServices(a.Catalog.Services(a.Engine.Types(), a.Store))
}

// Values parses key=value pairs against the declared properties of op.
func (a *App) Values(op string, pairs []string) (map[string]any, error) {
	o, ok := a.Engine.Operation(op)
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownOperation, op)
	}
	b := a.Engine.Types().Builtins()
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("argument %q is not key=value", pair)
		}
		p, ok := o.Property(key)
		if !ok {
			return nil, fmt.Errorf("operation %s has no property %q", op, key)
		}
		switch p.Type {
		case b.String:
			values[key] = raw
		case b.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", key, err)
			}
			values[key] = n
		case b.Int:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", key, err)
			}
			values[key] = n
		case b.Bool:
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", key, err)
			}
			values[key] = v
		default:
			return nil, fmt.Errorf("property %s: type %s cannot be set from the command line", key, a.Engine.Types().String(p.Type))
		}
	}
	return values, nil
}
