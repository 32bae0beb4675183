// Package events defines the ledger change notification published after a
// successful save, and the publisher port its transports implement.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
)

// Operations reported in a LedgerChangedMessage.
const (
	OpCredit = "credit"
	OpDebit  = "debit"
	OpReset  = "reset"
	OpErase  = "erase"
)

// LedgerChangedMessage announces a new ledger state. It carries only a
// summary; consumers reload the ledger from the store for details.
type LedgerChangedMessage struct {
	ID           string    `json:"id"`
	Operation    string    `json:"operation"`
	BalanceCents int64     `json:"balance_cents"`
	HistoryLen   int       `json:"history_len"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewLedgerChanged builds a message describing state after operation.
func NewLedgerChanged(operation string, state core.LedgerState) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		ID:           uuid.NewString(),
		Operation:    operation,
		BalanceCents: state.Balance.Cents,
		HistoryLen:   len(state.History),
		Timestamp:    time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedFromJSON decodes a message produced by ToJSON.
func LedgerChangedFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Publisher delivers change notifications to a transport.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, msg *LedgerChangedMessage) error
	Close() error
}

// Nop discards every message.
type Nop struct{}

func (Nop) PublishLedgerChanged(context.Context, *LedgerChangedMessage) error { return nil }
func (Nop) Close() error                                                    { return nil }
