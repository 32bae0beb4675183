package ledger

import (
	"slices"
	"time"

	"saldo/internal/core"
)

// DefaultRecentLimit is the number of records shown in the recent list.
const DefaultRecentLimit = 10

// DayGroup holds the records of one calendar day.
type DayGroup struct {
	Date    time.Time // midnight of the day, in the grouping location
	Records []core.TransactionRecord
}

// Recent returns the last n records, newest first.
func Recent(history []core.TransactionRecord, n int) []core.TransactionRecord {
	if n <= 0 {
		return []core.TransactionRecord{}
	}
	if n > len(history) {
		n = len(history)
	}
	out := make([]core.TransactionRecord, 0, n)
	for i := len(history) - 1; i >= len(history)-n; i-- {
		out = append(out, history[i])
	}
	return out
}

// GroupByDate groups records by their calendar date in loc, newest date
// first. Records keep their chronological order within a day.
func GroupByDate(history []core.TransactionRecord, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	index := make(map[string]int)
	groups := []DayGroup{}
	for _, r := range history {
		t := r.Timestamp.In(loc)
		key := t.Format(time.DateOnly)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DayGroup{Date: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	// History is chronological, but the clock may have gone backwards.
	slices.SortStableFunc(groups, func(a, b DayGroup) int {
		return b.Date.Compare(a.Date)
	})
	return groups
}

// Totals sums credited and debited amounts over history.
func Totals(history []core.TransactionRecord) (credits, debits core.Money) {
	for _, r := range history {
		switch r.Kind {
		case core.Credit:
			credits, _ = credits.Add(r.Amount)
		case core.Debit:
			debits, _ = debits.Add(r.Amount)
		}
	}
	return credits, debits
}
