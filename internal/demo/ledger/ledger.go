// Package ledger is a small account ledger the demo operations run against.
// Its functions and types are registered in the engine's type table and
// called by generated code.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"pipegen/runtime/rt"
)

// PkgPath is the import path generated code uses for this package.
const PkgPath = "pipegen/internal/demo/ledger"

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnauthenticated   = errors.New("unauthenticated")
)

type Currency string

// Status is the result of an operation that was turned down.
type Status string

const (
	StatusNotFound        Status = "not found"
	StatusRejected        Status = "rejected"
	StatusUnauthenticated Status = "unauthenticated"
)

type Account struct {
	ID       string
	Owner    string
	Balance  int64
	Currency Currency
}

type Principal struct {
	Name string
}

// Balance is the result of the balance operation.
type Balance struct {
	Account  string
	Amount   int64
	Currency Currency
}

type Receipt struct {
	From     string
	To       string
	Amount   int64
	Currency Currency
	// Balance is what remains on From.
	Balance int64
}

// ValidationError reports a property that failed a rule.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Rule)
}

// Store holds accounts and access tokens.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*Account
	tokens   map[string]string
	audit    []string

	txMu sync.Mutex
	open atomic.Int32
}

func NewStore() *Store {
	return &Store{accounts: make(map[string]*Account), tokens: make(map[string]string)}
}

// Open adds acc, replacing any account with the same ID.
func (s *Store) Open(acc Account) {
	s.mu.Lock()
	s.accounts[acc.ID] = &acc
	s.mu.Unlock()
}

// Grant lets token act as owner.
func (s *Store) Grant(token, owner string) {
	s.mu.Lock()
	s.tokens[token] = owner
	s.mu.Unlock()
}

func (s *Store) Authenticate(token string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.tokens[token]
	if !ok || token == "" {
		return nil, ErrUnauthenticated
	}
	return &Principal{Name: owner}, nil
}

// Find returns a copy of account id.
func (s *Store) Find(id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, id)
	}
	cp := *acc
	return &cp, nil
}

// Accounts lists account IDs, sorted.
func (s *Store) Accounts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Begin starts a transaction. Transactions are serialised; Close ends one.
func (s *Store) Begin() *Tx {
	s.txMu.Lock()
	s.open.Add(1)
	return &Tx{s: s}
}

// OpenTransactions is the number of transactions not yet closed.
func (s *Store) OpenTransactions() int { return int(s.open.Load()) }

// Audit records that p ran op. The record is written asynchronously.
func (s *Store) Audit(ctx context.Context, p *Principal, op string) rt.Future {
	return rt.Go(ctx, func(context.Context) (any, error) {
		if p == nil {
			return nil, ErrUnauthenticated
		}
		s.mu.Lock()
		s.audit = append(s.audit, p.Name+" "+op)
		s.mu.Unlock()
		return true, nil
	})
}

// AuditLog returns the audit records in order.
func (s *Store) AuditLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.audit)
}

// Tx is an open transaction.
type Tx struct {
	s      *Store
	closed bool
}

// Transfer moves amount between accounts of the same currency.
func (tx *Tx) Transfer(from, to string, amount int64) (*Receipt, error) {
	if tx.closed {
		return nil, errors.New("ledger: transaction is closed")
	}
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.accounts[from]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, from)
	}
	dst, ok := s.accounts[to]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, to)
	}
	if src.Currency != dst.Currency {
		return nil, fmt.Errorf("ledger: cannot transfer %s to a %s account", src.Currency, dst.Currency)
	}
	if src.Balance < amount {
		return nil, fmt.Errorf("%w: %s has %d", ErrInsufficientFunds, from, src.Balance)
	}
	src.Balance -= amount
	dst.Balance += amount
	return &Receipt{From: from, To: to, Amount: amount, Currency: src.Currency, Balance: src.Balance}, nil
}

func (tx *Tx) Close() error {
	if tx.closed {
		return nil
	}
	tx.closed = true
	tx.s.open.Add(-1)
	tx.s.txMu.Unlock()
	return nil
}

// BalanceOf summarises acc.
func BalanceOf(acc *Account) Balance {
	return Balance{Account: acc.ID, Amount: acc.Balance, Currency: acc.Currency}
}

// Required rejects an empty value.
func Required(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Rule: "required"}
	}
	return nil
}

// Positive rejects values below one.
func Positive(field string, value int64) error {
	if value < 1 {
		return &ValidationError{Field: field, Rule: "positive"}
	}
	return nil
}
