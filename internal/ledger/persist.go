package ledger

import (
	"context"
	"errors"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/store"
)

// Persisted key names, relative to the store's namespace.
const (
	BalanceKey = "balance"
	HistoryKey = "history"
)

// LoadLedger reads the ledger from s. It never fails: a key that is absent,
// cleared, unreadable or malformed falls back to its default on its own.
// A balance that disagrees with the last history record is kept as is.
func LoadLedger(ctx context.Context, s store.Store) core.LedgerState {
	logger := log.FromContext(ctx).WithComponent(log.ComponentLedger)
	state := core.NewLedgerState()

	if raw, ok := read(ctx, logger, s, BalanceKey); ok {
		balance, err := decodeBalance(raw)
		switch {
		case err == nil:
			state.Balance = balance
		case !errors.Is(err, errAbsent):
			logRepair(ctx, logger, BalanceKey, err)
		}
	}

	if raw, ok := read(ctx, logger, s, HistoryKey); ok {
		history, err := decodeHistory(raw)
		switch {
		case err == nil:
			state.History = history
		case !errors.Is(err, errAbsent):
			logRepair(ctx, logger, HistoryKey, err)
		}
	}

	logger.DebugContext(ctx, "Ledger loaded", log.NewFields().
		WithOperation(log.OpLoad).
		WithLedger(state.Balance.Cents, len(state.History)).
		ToSlice()...)
	return state
}

// SaveLedger writes the balance and then the history. Both writes are always
// attempted; failures come back as a *core.PersistenceError.
func SaveLedger(ctx context.Context, s store.Store, state core.LedgerState) error {
	logger := log.FromContext(ctx).WithComponent(log.ComponentLedger)

	var errs []error
	if err := s.Set(ctx, BalanceKey, encodeBalance(state.Balance)); err != nil {
		errs = append(errs, &core.PersistenceError{Key: BalanceKey, Err: err})
	}

	history := state.History
	if history == nil {
		history = []core.TransactionRecord{}
	}
	raw, err := encodeHistory(history)
	if err == nil {
		err = s.Set(ctx, HistoryKey, raw)
	}
	if err != nil {
		errs = append(errs, &core.PersistenceError{Key: HistoryKey, Err: err})
	}

	if len(errs) > 0 {
		joined := errs[0]
		if len(errs) > 1 {
			joined = &core.PersistenceError{Err: errors.Join(errs...)}
		}
		logger.WarnContext(ctx, "Failed to persist ledger", log.NewFields().
			WithOperation(log.OpSave).
			WithErrorType(log.ErrorTypePersistence).
			WithError(joined).
			ToSlice()...)
		return joined
	}

	logger.DebugContext(ctx, "Ledger saved", log.NewFields().
		WithOperation(log.OpSave).
		WithLedger(state.Balance.Cents, len(history)).
		ToSlice()...)
	return nil
}

func read(ctx context.Context, logger *log.Logger, s store.Store, key string) ([]byte, bool) {
	raw, found, err := s.Get(ctx, key)
	if err != nil {
		logger.WarnContext(ctx, "Failed to read persisted ledger, using default", log.NewFields().
			WithOperation(log.OpLoad).
			WithErrorType(log.ErrorTypeDatabase).
			WithError(err).
			ToSlice()...)
		return nil, false
	}
	return raw, found
}

func logRepair(ctx context.Context, logger *log.Logger, key string, err error) {
	fields := log.NewFields().
		WithOperation(log.OpLoad).
		WithErrorType(log.ErrorTypeCorruptState).
		WithError(errors.Join(core.ErrCorruptState, err))
	fields[log.FieldKey] = key
	logger.WarnContext(ctx, "Malformed persisted value replaced with default", fields.ToSlice()...)
}
