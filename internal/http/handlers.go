package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/log"
)

type indexRecord struct {
	Time        string
	Kind        string
	Description string
	Amount      string
	Balance     string
}

type indexDay struct {
	Date    string
	Records []indexRecord
}

type indexPage struct {
	Balance  string
	Negative bool
	Credits  string
	Debits   string
	Recent   []indexRecord
	Days     []indexDay
	Notice   string
	Error    string
	TimeZone string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.templates == nil {
		writeError(w, http.StatusInternalServerError, "templates unavailable")
		return
	}

	state := s.svc.Load(ctx)
	credits, debits := ledger.Totals(state.History)
	page := indexPage{
		Balance:  state.Balance.String(),
		Negative: state.Balance.Cents < 0,
		Credits:  credits.String(),
		Debits:   debits.String(),
		Recent:   s.indexRecords(ledger.Recent(state.History, s.recentLimit)),
		Notice:   r.URL.Query().Get("notice"),
		Error:    r.URL.Query().Get("error"),
		TimeZone: s.location.String(),
	}
	for _, g := range s.svc.Calendar(ctx, s.location) {
		page.Days = append(page.Days, indexDay{
			Date:    g.Date.Format("Mon 02 Jan 2006"),
			Records: s.indexRecords(g.Records),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", page); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Template render failed",
			log.FieldOperation, log.OpRender,
			log.FieldError, err.Error())
	}
}

func (s *Server) indexRecords(records []core.TransactionRecord) []indexRecord {
	out := make([]indexRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, indexRecord{
			Time:        rec.Timestamp.In(s.location).Format(time.DateTime),
			Kind:        string(rec.Kind),
			Description: rec.Description,
			Amount:      rec.Amount.String(),
			Balance:     rec.ResultingBalance.String(),
		})
	}
	return out
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newLedgerResponse(s.svc.Load(r.Context())))
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	n, err := parseRecentLimit(r.URL.Query(), s.recentLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recentResponse{Records: newRecordResponses(s.svc.Recent(r.Context(), n))})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLocation(r.URL.Query(), s.location)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newCalendarResponse(s.svc.Calendar(r.Context(), loc), loc))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	in, err := parseTransaction(p)
	if err != nil {
		log.FromContext(ctx).InfoContext(ctx, "Transaction rejected",
			log.FieldErrorType, log.ErrorTypeValidation,
			log.FieldError, err.Error())
		s.respondRejected(w, r, wantsJSON(r, p), err)
		return
	}

	state, err := s.svc.Apply(ctx, in.Amount, in.Kind, in.Description)
	if err != nil && !errors.Is(err, core.ErrPersistence) {
		s.respondRejected(w, r, wantsJSON(r, p), err)
		return
	}
	s.respondState(w, r, wantsJSON(r, p), state, err, "transaction recorded")
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.handleMutation(w, r, s.svc.ResetAll, "ledger reset")
}

func (s *Server) handleErase(w http.ResponseWriter, r *http.Request) {
	s.handleMutation(w, r, s.svc.EraseHistory, "history erased")
}

func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request, op func(context.Context) (core.LedgerState, error), notice string) {
	p := NewRequestBodyParser(w, r)
	// Body is optional here; only its shape decides JSON vs redirect.
	_ = p.Parse()
	state, err := op(r.Context())
	s.respondState(w, r, wantsJSON(r, p), state, err, notice)
}

// respondState answers a mutation. A persistence error still yields the new
// state, flagged with a warning.
func (s *Server) respondState(w http.ResponseWriter, r *http.Request, asJSON bool, state core.LedgerState, err error, notice string) {
	resp := newLedgerResponse(state)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Ledger change not persisted",
			log.FieldErrorType, log.ErrorTypePersistence,
			log.FieldError, err.Error())
		resp.Warning = persistenceWarning
		w.Header().Set(warningHeader, persistenceWarning)
		notice = persistenceWarning
	}
	if !asJSON {
		redirectHome(w, r, "notice", notice)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) respondRejected(w http.ResponseWriter, r *http.Request, asJSON bool, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		status, msg = http.StatusUnprocessableEntity, "amount must be a positive number"
	case errors.Is(err, core.ErrInvalidKind):
		status, msg = http.StatusUnprocessableEntity, "kind must be credit or debit"
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Transaction failed",
			log.FieldErrorType, log.ErrorTypeInternal,
			log.FieldError, err.Error())
	}
	if !asJSON {
		redirectHome(w, r, "error", msg)
		return
	}
	writeError(w, status, msg)
}

// wantsJSON treats an empty body as JSON unless the client posted a form.
func wantsJSON(r *http.Request, p *RequestBodyParser) bool {
	if p.IsJSON() {
		return true
	}
	return !strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}

func redirectHome(w http.ResponseWriter, r *http.Request, key, msg string) {
	http.Redirect(w, r, "/?"+url.Values{key: {msg}}.Encode(), http.StatusSeeOther)
}
