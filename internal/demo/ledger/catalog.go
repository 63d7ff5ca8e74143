package ledger

import (
	"pipegen/internal/frame"
	"pipegen/internal/types"
	"pipegen/runtime/rt"
)

// Catalog is the ledger's registration in a type table.
type Catalog struct {
	Store           types.TypeID
	Tx              types.TypeID
	Account         types.TypeID
	Principal       types.TypeID
	Balance         types.TypeID
	Receipt         types.TypeID
	ValidationError types.TypeID
	IDs             types.TypeID

	Authenticate *types.Func
	Find         *types.Func
	Accounts     *types.Func
	Begin        *types.Func
	Transfer     *types.Func
	Audit        *types.Func
	BalanceOf    *types.Func
	Required     *types.Func
	Positive     *types.Func

	NotFound        *types.Global
	Insufficient    *types.Global
	Unauthenticated *types.Global
}

// NewCatalog registers the ledger in tbl.
func NewCatalog(tbl *types.Table) *Catalog {
	b := tbl.Builtins()
	c := &Catalog{
		Store:           types.TypeFor[*Store](tbl),
		Tx:              types.TypeFor[*Tx](tbl),
		Account:         types.TypeFor[*Account](tbl),
		Principal:       types.TypeFor[*Principal](tbl),
		Balance:         types.TypeFor[Balance](tbl),
		Receipt:         types.TypeFor[*Receipt](tbl),
		ValidationError: types.TypeFor[*ValidationError](tbl),
		IDs:             types.TypeFor[[]string](tbl),
	}
	types.TypeFor[Currency](tbl)
	types.TypeFor[Status](tbl)

	c.Authenticate = tbl.MustMethod(c.Store, "Authenticate")
	c.Find = tbl.MustMethod(c.Store, "Find")
	c.Accounts = tbl.MustMethod(c.Store, "Accounts")
	c.Begin = tbl.MustMethod(c.Store, "Begin")
	c.Audit = tbl.MustMethod(c.Store, "Audit", types.Yields(b.Bool))
	c.Transfer = tbl.MustMethod(c.Tx, "Transfer")
	c.BalanceOf = tbl.MustFunc(PkgPath, "BalanceOf", BalanceOf)
	c.Required = tbl.MustFunc(PkgPath, "Required", Required)
	c.Positive = tbl.MustFunc(PkgPath, "Positive", Positive)

	c.NotFound = tbl.MustVar(PkgPath, "ErrAccountNotFound", &ErrAccountNotFound)
	c.Insufficient = tbl.MustVar(PkgPath, "ErrInsufficientFunds", &ErrInsufficientFunds)
	c.Unauthenticated = tbl.MustVar(PkgPath, "ErrUnauthenticated", &ErrUnauthenticated)
	return c
}

// Services returns the container generated code reads the store from.
func (c *Catalog) Services(tbl *types.Table, s *Store) *rt.Services {
	svc := rt.NewServices()
	svc.Register(tbl.ServiceKey(c.Store), s)
	return svc
}

// Outcome pairs a ledger error with the status it is answered with.
type Outcome struct {
	Status Status
	Catch  frame.Catch
}

// Outcomes lists the ledger errors operations convert into a status.
func (c *Catalog) Outcomes() []Outcome {
	return []Outcome{
		{StatusNotFound, frame.Sentinel(c.NotFound)},
		{StatusRejected, frame.Sentinel(c.Insufficient)},
		{StatusUnauthenticated, frame.Sentinel(c.Unauthenticated)},
	}
}
