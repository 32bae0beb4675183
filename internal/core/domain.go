package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Credit Kind = "credit"
	Debit  Kind = "debit"
)

// DefaultDescription replaces a blank transaction description.
const DefaultDescription = "(no description)"

// DefaultBalance is the balance of a fresh or reset ledger (400.00).
var DefaultBalance = Money{Cents: 40000}

type (
	// Kind tells whether a transaction increases or decreases the balance.
	Kind string

	Money struct {
		Cents int64
	}

	TransactionRecord struct {
		Timestamp        time.Time
		Kind             Kind
		Amount           Money
		Description      string
		ResultingBalance Money // balance right after this record was applied
	}

	// LedgerState is the whole persisted ledger: the running balance and
	// its append-only history, oldest record first.
	LedgerState struct {
		Balance Money
		History []TransactionRecord
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidKind   = errors.New("invalid transaction kind")
	ErrPersistence   = errors.New("persistence error")
	ErrCorruptState  = errors.New("corrupt persisted state")
)

// PersistenceError reports a failed write to the persistence adapter.
// The in-memory state that was being saved is still valid.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("persistence error: %v", e.Err)
	}
	return fmt.Sprintf("persistence error (key %q): %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// NewLedgerState returns the default ledger: 400.00 and no history.
func NewLedgerState() LedgerState {
	return LedgerState{Balance: DefaultBalance, History: []TransactionRecord{}}
}

// ParseKind accepts credit/debit and the income/expense aliases, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit", "income":
		return Credit, nil
	case "debit", "expense":
		return Debit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

func (k Kind) Validate() error {
	switch k {
	case Credit, Debit:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, string(k))
	}
}

func (k Kind) String() string {
	return string(k)
}

// Apply returns the balance after applying a transaction of kind k.
// The boolean is false when the result would overflow.
func (k Kind) Apply(balance, amount Money) (Money, bool) {
	switch k {
	case Credit:
		return balance.Add(amount)
	case Debit:
		return balance.Sub(amount)
	default:
		return balance, false
	}
}

func (r TransactionRecord) Validate() error {
	if r.Timestamp.IsZero() {
		return errors.New("timestamp cannot be zero")
	}
	if err := r.Kind.Validate(); err != nil {
		return err
	}
	return r.Amount.Validate()
}

// Consistent reports whether every record chains from the previous one and
// the last record matches the current balance. The first record is taken as
// given, since history may have been erased while keeping the balance.
func (s LedgerState) Consistent() bool {
	for i := 1; i < len(s.History); i++ {
		prev, cur := s.History[i-1], s.History[i]
		want, ok := cur.Kind.Apply(prev.ResultingBalance, cur.Amount)
		if !ok || want != cur.ResultingBalance {
			return false
		}
	}
	if n := len(s.History); n > 0 {
		return s.History[n-1].ResultingBalance == s.Balance
	}
	return true
}

// Last returns the most recent record, if any.
func (s LedgerState) Last() (TransactionRecord, bool) {
	if len(s.History) == 0 {
		return TransactionRecord{}, false
	}
	return s.History[len(s.History)-1], true
}
