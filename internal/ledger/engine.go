// Package ledger implements the balance state machine: loading and repairing
// persisted state, applying transactions, bulk resets and the read-side
// projections used for display.
//
// Every operation takes a core.LedgerState and returns a new one. The input
// value is never mutated, so callers can keep the previous state around.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"saldo/internal/core"
)

// ApplyTransaction returns state with one more record and the balance moved by
// amount in the direction of kind. On a rejected request the unchanged state
// is returned together with the error.
func ApplyTransaction(state core.LedgerState, amount core.Money, kind core.Kind, description string, now time.Time) (core.LedgerState, error) {
	if err := amount.Validate(); err != nil {
		return state, fmt.Errorf("%w: %s", err, amount.Fixed())
	}
	if err := kind.Validate(); err != nil {
		return state, err
	}
	balance, ok := kind.Apply(state.Balance, amount)
	if !ok {
		return state, fmt.Errorf("%w: balance overflow", core.ErrInvalidAmount)
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = core.DefaultDescription
	}

	history := make([]core.TransactionRecord, len(state.History), len(state.History)+1)
	copy(history, state.History)
	history = append(history, core.TransactionRecord{
		Timestamp:        now.Truncate(time.Second).UTC(),
		Kind:             kind,
		Amount:           amount,
		Description:      description,
		ResultingBalance: balance,
	})

	return core.LedgerState{Balance: balance, History: history}, nil
}

// ResetAll discards everything and returns the default ledger.
func ResetAll(core.LedgerState) core.LedgerState {
	return core.NewLedgerState()
}

// EraseHistory clears the history and keeps the balance.
func EraseHistory(state core.LedgerState) core.LedgerState {
	return core.LedgerState{Balance: state.Balance, History: []core.TransactionRecord{}}
}
