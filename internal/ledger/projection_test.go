package ledger

import (
	"reflect"
	"testing"
	"time"

	"saldo/internal/core"
)

func record(ts time.Time, desc string) core.TransactionRecord {
	return core.TransactionRecord{Timestamp: ts, Kind: core.Debit, Amount: cents(100), Description: desc}
}

func TestRecent(t *testing.T) {
	var history []core.TransactionRecord
	for i := 0; i < 12; i++ {
		history = append(history, record(testNow.Add(time.Duration(i)*time.Minute), string(rune('a'+i))))
	}
	snapshot := append([]core.TransactionRecord(nil), history...)

	got := Recent(history, DefaultRecentLimit)
	if len(got) != 10 {
		t.Fatalf("expected 10 records, got %d", len(got))
	}
	if got[0].Description != "l" || got[9].Description != "c" {
		t.Fatalf("expected newest first, got %q..%q", got[0].Description, got[9].Description)
	}
	if len(Recent(history[:3], 10)) != 3 {
		t.Fatalf("short history should return all records")
	}
	if r := Recent(history, 0); r == nil || len(r) != 0 {
		t.Fatalf("n=0 should return an empty slice")
	}
	if r := Recent(nil, 5); len(r) != 0 {
		t.Fatalf("empty history should return no records")
	}
	if !reflect.DeepEqual(history, snapshot) {
		t.Fatalf("Recent mutated history")
	}
}

func TestGroupByDate(t *testing.T) {
	d1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	history := []core.TransactionRecord{
		record(d1, "first"),
		record(d1.Add(2*time.Hour), "second"),
		record(d1.AddDate(0, 0, 1), "third"),
	}
	snapshot := append([]core.TransactionRecord(nil), history...)

	groups := GroupByDate(history, time.UTC)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Date.Day() != 2 || len(groups[0].Records) != 1 || groups[0].Records[0].Description != "third" {
		t.Fatalf("unexpected newest group %+v", groups[0])
	}
	if groups[1].Date.Day() != 1 || len(groups[1].Records) != 2 ||
		groups[1].Records[0].Description != "first" || groups[1].Records[1].Description != "second" {
		t.Fatalf("unexpected oldest group %+v", groups[1])
	}
	if !reflect.DeepEqual(history, snapshot) {
		t.Fatalf("GroupByDate mutated history")
	}
}

func TestGroupByDateUsesLocation(t *testing.T) {
	// 23:30 UTC on the 1st is already the 2nd in UTC+2.
	ts := time.Date(2025, 3, 1, 23, 30, 0, 0, time.UTC)
	history := []core.TransactionRecord{record(ts, "late"), record(ts.Add(time.Hour), "later")}

	if n := len(GroupByDate(history, time.UTC)); n != 2 {
		t.Fatalf("expected 2 UTC days, got %d", n)
	}
	groups := GroupByDate(history, time.FixedZone("EET", 2*3600))
	if len(groups) != 1 || groups[0].Date.Day() != 2 || len(groups[0].Records) != 2 {
		t.Fatalf("expected one day in UTC+2, got %+v", groups)
	}
}

func TestGroupByDateOutOfOrderClock(t *testing.T) {
	d := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	history := []core.TransactionRecord{
		record(d, "a"),
		record(d.AddDate(0, 0, -2), "b"),
		record(d.AddDate(0, 0, 1), "c"),
	}
	groups := GroupByDate(history, time.UTC)
	var days []int
	for _, g := range groups {
		days = append(days, g.Date.Day())
	}
	if !reflect.DeepEqual(days, []int{6, 5, 3}) {
		t.Fatalf("expected dates descending, got %v", days)
	}
	if g := GroupByDate(nil, nil); g == nil || len(g) != 0 {
		t.Fatalf("empty history should give an empty slice")
	}
}

func TestTotals(t *testing.T) {
	state, _ := ApplyTransaction(core.NewLedgerState(), cents(5000), core.Debit, "groceries", testNow)
	state, _ = ApplyTransaction(state, cents(2000), core.Credit, "", testNow)
	state, _ = ApplyTransaction(state, cents(150), core.Debit, "coffee", testNow)
	credits, debits := Totals(state.History)
	if credits.Cents != 2000 || debits.Cents != 5150 {
		t.Fatalf("expected 20.00/51.50, got %v/%v", credits, debits)
	}
}
