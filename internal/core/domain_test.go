package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"credit", Credit, true},
		{" Debit ", Debit, true},
		{"INCOME", Credit, true},
		{"expense", Debit, true},
		{"transfer", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseKind(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidKind) {
			t.Fatalf("%q expected ErrInvalidKind, got %v", tc.in, err)
		}
	}
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	cause := errors.New("quota exceeded")
	var err error = &PersistenceError{Key: "balance", Err: cause}
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, cause) {
		t.Fatalf("expected both ErrPersistence and cause in chain")
	}
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Key != "balance" {
		t.Fatalf("expected errors.As to find key")
	}
}

func TestLedgerStateConsistent(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	good := LedgerState{
		Balance: Money{Cents: 37000},
		History: []TransactionRecord{
			{Timestamp: ts, Kind: Debit, Amount: Money{Cents: 5000}, ResultingBalance: Money{Cents: 35000}},
			{Timestamp: ts, Kind: Credit, Amount: Money{Cents: 2000}, ResultingBalance: Money{Cents: 37000}},
		},
	}
	if !good.Consistent() {
		t.Fatalf("expected consistent state")
	}

	diverged := good
	diverged.Balance = Money{Cents: 1}
	if diverged.Consistent() {
		t.Fatalf("expected balance/history divergence to be detected")
	}

	if !NewLedgerState().Consistent() {
		t.Fatalf("default state must be consistent")
	}
}

func TestTransactionRecordValidate(t *testing.T) {
	ok := TransactionRecord{Timestamp: time.Now(), Kind: Credit, Amount: Money{Cents: 1}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []TransactionRecord{
		{Kind: Credit, Amount: Money{Cents: 1}},
		{Timestamp: time.Now(), Kind: "x", Amount: Money{Cents: 1}},
		{Timestamp: time.Now(), Kind: Debit, Amount: Money{Cents: 0}},
	}
	for i, r := range bads {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
