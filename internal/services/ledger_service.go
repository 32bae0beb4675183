package services

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/events"
	"saldo/internal/ledger"
	"saldo/internal/log"
	"saldo/internal/store"
)

// LedgerService runs one interaction cycle per call: load the ledger, apply
// a single engine operation, save it, and announce the change.
type LedgerService struct {
	store     store.Store
	publisher events.Publisher
	calendar  cache.Cache[[]ledger.DayGroup]
	now       func() time.Time
	cleanup   []func() error

	// mu serialises mutations made through this service. Other writers of
	// the same store are last-writer-wins.
	mu sync.Mutex
}

type Option func(*LedgerService)

// WithCalendarCache caches calendar projections between calls.
func WithCalendarCache(c cache.Cache[[]ledger.DayGroup]) Option {
	return func(s *LedgerService) { s.calendar = c }
}

// WithClock replaces time.Now for transaction timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// WithCleanup registers fn to run on Close, e.g. closing the store.
func WithCleanup(fn func() error) Option {
	return func(s *LedgerService) {
		if fn != nil {
			s.cleanup = append(s.cleanup, fn)
		}
	}
}

// NewLedgerService creates a service over st. A nil publisher disables
// change notifications.
func NewLedgerService(st store.Store, publisher events.Publisher, opts ...Option) *LedgerService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	s := &LedgerService{
		store:     st,
		publisher: publisher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the current ledger. It never fails.
func (s *LedgerService) Load(ctx context.Context) core.LedgerState {
	return ledger.LoadLedger(ctx, s.store)
}

// Apply records one transaction. A rejected request returns the loaded
// state with core.ErrInvalidAmount or core.ErrInvalidKind. A failed save
// returns the new state with a *core.PersistenceError.
func (s *LedgerService) Apply(ctx context.Context, amount core.Money, kind core.Kind, description string) (core.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := ledger.LoadLedger(ctx, s.store)
	next, err := ledger.ApplyTransaction(current, amount, kind, description, s.now())
	if err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentLedger).InfoContext(ctx, "Transaction rejected", log.NewFields().
			WithOperation(log.OpApply).
			WithErrorType(log.ErrorTypeValidation).
			WithTransaction(kind.String(), amount.Cents, description).
			WithError(err).
			ToSlice()...)
		return current, err
	}
	return next, s.commit(ctx, kind.String(), next)
}

// ResetAll restores the default balance and clears the history.
func (s *LedgerService) ResetAll(ctx context.Context) (core.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := ledger.ResetAll(ledger.LoadLedger(ctx, s.store))
	return next, s.commit(ctx, events.OpReset, next)
}

// EraseHistory clears the history and keeps the balance.
func (s *LedgerService) EraseHistory(ctx context.Context) (core.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := ledger.EraseHistory(ledger.LoadLedger(ctx, s.store))
	return next, s.commit(ctx, events.OpErase, next)
}

// Recent returns the last n records, newest first.
func (s *LedgerService) Recent(ctx context.Context, n int) []core.TransactionRecord {
	return ledger.Recent(s.Load(ctx).History, n)
}

// Calendar groups the history by day in loc. The returned groups are shared
// with the cache and must not be modified.
func (s *LedgerService) Calendar(ctx context.Context, loc *time.Location) []ledger.DayGroup {
	if loc == nil {
		loc = time.Local
	}
	state := s.Load(ctx)
	if s.calendar == nil {
		return ledger.GroupByDate(state.History, loc)
	}

	key := calendarKey(loc, state)
	if groups, ok := s.calendar.Get(key); ok {
		return groups
	}
	groups := ledger.GroupByDate(state.History, loc)
	s.calendar.Set(key, groups)
	return groups
}

// Ping checks that the store is reachable, for stores that can tell.
func (s *LedgerService) Ping(ctx context.Context) error {
	if p, ok := s.store.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *LedgerService) commit(ctx context.Context, operation string, next core.LedgerState) error {
	logger := log.FromContext(ctx).WithComponent(log.ComponentLedger)
	if s.calendar != nil {
		s.calendar.Purge()
	}

	if err := ledger.SaveLedger(ctx, s.store, next); err != nil {
		// The new state stands for this cycle; nothing is announced since
		// the store does not hold it.
		return err
	}

	logger.InfoContext(ctx, "Ledger updated", log.NewFields().
		WithOperation(operation).
		WithLedger(next.Balance.Cents, len(next.History)).
		ToSlice()...)

	msg := events.NewLedgerChanged(operation, next)
	if err := s.publisher.PublishLedgerChanged(ctx, msg); err != nil {
		// Don't fail the request - the ledger is saved
		logger.ErrorContext(ctx, "Failed to publish ledger change", log.NewFields().
			WithOperation(log.OpPublish).
			WithErrorType(log.ErrorTypeNetwork).
			WithError(err).
			ToSlice()...)
	}
	return nil
}

// calendarKey fingerprints every record, so a history rewritten by another
// process sharing the store never reuses a stale grouping.
func calendarKey(loc *time.Location, state core.LedgerState) string {
	h := fnv.New64a()
	var buf [8]byte
	for _, r := range state.History {
		binary.LittleEndian.PutUint64(buf[:], uint64(r.Timestamp.UnixNano()))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(r.Amount.Cents))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(r.ResultingBalance.Cents))
		h.Write(buf[:])
		h.Write([]byte(r.Kind))
		h.Write([]byte{0})
		h.Write([]byte(r.Description))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s|%d|%016x", loc, len(state.History), h.Sum64())
}

// Close closes the publisher and runs registered cleanups.
func (s *LedgerService) Close() error {
	var errs []error

	if err := s.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}
	for _, fn := range s.cleanup {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
