package http

import (
	"encoding/json"
	"net/http"
	"time"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

// warningHeader carries a persistence warning on otherwise successful mutations.
const warningHeader = "X-Ledger-Warning"

const persistenceWarning = "changes applied but could not be saved"

type recordResponse struct {
	Timestamp   time.Time   `json:"timestamp"`
	Operation   core.Kind   `json:"operation"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Balance     json.Number `json:"balance"`
}

type ledgerResponse struct {
	Balance        json.Number      `json:"balance"`
	BalanceDisplay string           `json:"balance_display"`
	History        []recordResponse `json:"history"`
	Warning        string           `json:"warning,omitempty"`
}

type recentResponse struct {
	Records []recordResponse `json:"records"`
}

type dayResponse struct {
	Date    string           `json:"date"`
	Records []recordResponse `json:"records"`
}

type calendarResponse struct {
	TimeZone string        `json:"time_zone"`
	Days     []dayResponse `json:"days"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newRecordResponses(records []core.TransactionRecord) []recordResponse {
	out := make([]recordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, recordResponse{
			Timestamp:   r.Timestamp.UTC(),
			Operation:   r.Kind,
			Description: r.Description,
			Amount:      json.Number(r.Amount.Fixed()),
			Balance:     json.Number(r.ResultingBalance.Fixed()),
		})
	}
	return out
}

func newLedgerResponse(state core.LedgerState) ledgerResponse {
	return ledgerResponse{
		Balance:        json.Number(state.Balance.Fixed()),
		BalanceDisplay: state.Balance.String(),
		History:        newRecordResponses(state.History),
	}
}

func newCalendarResponse(groups []ledger.DayGroup, loc *time.Location) calendarResponse {
	days := make([]dayResponse, 0, len(groups))
	for _, g := range groups {
		days = append(days, dayResponse{
			Date:    g.Date.Format(time.DateOnly),
			Records: newRecordResponses(g.Records),
		})
	}
	return calendarResponse{TimeZone: loc.String(), Days: days}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
