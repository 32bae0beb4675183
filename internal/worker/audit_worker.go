// Package worker holds background consumers of ledger change notifications.
package worker

import (
	"context"
	"sync"

	"saldo/internal/core"
	"saldo/internal/events"
	"saldo/internal/ledger"
	"saldo/internal/log"
	"saldo/internal/store"
)

// Finding describes why a stored ledger failed an audit.
type Finding string

const (
	FindingNone Finding = ""
	// FindingBrokenChain: records do not replay into one another or the
	// last one disagrees with the balance.
	FindingBrokenChain Finding = "broken_chain"
	// FindingStale: the store no longer holds the announced state. Usually
	// a newer change that has its own message on the way.
	FindingStale Finding = "stale"
)

// Stats counts audited messages.
type Stats struct {
	Processed    int
	Inconsistent int
	Stale        int
}

// AuditWorker re-reads the ledger after every change notification and
// reports states whose balance and history disagree.
type AuditWorker struct {
	store  store.Store
	logger *log.Logger

	mu    sync.Mutex
	stats Stats
}

func NewAuditWorker(st store.Store, logger *log.Logger) *AuditWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &AuditWorker{store: st, logger: logger.WithComponent(log.ComponentWorker)}
}

// Audit checks a loaded state against the message that announced it.
func Audit(state core.LedgerState, msg *events.LedgerChangedMessage) Finding {
	if !state.Consistent() {
		return FindingBrokenChain
	}
	if msg != nil && (state.Balance.Cents != msg.BalanceCents || len(state.History) != msg.HistoryLen) {
		return FindingStale
	}
	return FindingNone
}

// HandleLedgerChanged processes one notification. Findings are logged, not
// returned: redelivering the message would not change the stored ledger.
// A nil msg audits the chain only.
func (w *AuditWorker) HandleLedgerChanged(ctx context.Context, msg *events.LedgerChangedMessage) error {
	state := ledger.LoadLedger(log.WithLogger(ctx, w.logger), w.store)
	finding := Audit(state, msg)

	w.mu.Lock()
	w.stats.Processed++
	switch finding {
	case FindingBrokenChain:
		w.stats.Inconsistent++
	case FindingStale:
		w.stats.Stale++
	}
	w.mu.Unlock()

	fields := log.NewFields().
		WithOperation(log.OpAudit).
		WithLedger(state.Balance.Cents, len(state.History))
	if msg != nil {
		fields[log.FieldEventID] = msg.ID
	}

	switch finding {
	case FindingBrokenChain:
		fields = fields.WithErrorType(log.ErrorTypeCorruptState)
		w.logger.WarnContext(ctx, "Stored ledger is inconsistent", fields.ToSlice()...)
	case FindingStale:
		w.logger.InfoContext(ctx, "Stored ledger moved on since notification", fields.ToSlice()...)
	default:
		w.logger.DebugContext(ctx, "Ledger audit passed", fields.ToSlice()...)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (w *AuditWorker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
