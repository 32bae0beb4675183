package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"saldo/internal/core"
	"saldo/internal/services"
	"saldo/internal/store"
	"saldo/internal/store/memory"
)

type failingStore struct{ *memory.Store }

func (failingStore) Set(context.Context, string, []byte) error { return errors.New("disk full") }

func (failingStore) Ping(context.Context) error { return errors.New("disk full") }

var testNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestServer(t *testing.T, st store.Store) *Server {
	t.Helper()
	svc := services.NewLedgerService(st, nil, services.WithClock(func() time.Time { return testNow }))
	srv := NewServer(":0", svc, Options{RecentLimit: 10, Location: time.UTC})
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeLedger(t *testing.T, rr *httptest.ResponseRecorder) ledgerResponse {
	t.Helper()
	var resp ledgerResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return resp
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, memory.New())

	rr := do(t, srv, http.MethodGet, "/", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "€400.00") {
		t.Fatalf("index body missing default balance: %s", body)
	}
	if !strings.Contains(body, "No transactions yet.") {
		t.Fatalf("index body missing empty-history text")
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing security headers on index")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestReadyzReportsStoreFailure(t *testing.T) {
	srv := newTestServer(t, failingStore{memory.New()})
	rr := do(t, srv, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestLedgerScenario(t *testing.T) {
	srv := newTestServer(t, memory.New())

	rr := do(t, srv, http.MethodPost, "/api/transactions", `{"amount":"50","kind":"debit","description":"groceries"}`, "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("debit status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decodeLedger(t, rr).Balance; got != "350.00" {
		t.Fatalf("balance after debit = %s, want 350.00", got)
	}

	rr = do(t, srv, http.MethodPost, "/api/transactions", `{"amount":20,"kind":"credit","description":""}`, "application/json")
	resp := decodeLedger(t, rr)
	if resp.Balance != "370.00" || len(resp.History) != 2 {
		t.Fatalf("after credit: %+v", resp)
	}
	if resp.History[1].Description != core.DefaultDescription {
		t.Errorf("description = %q, want placeholder", resp.History[1].Description)
	}
	if !resp.History[1].Timestamp.Equal(testNow) {
		t.Errorf("timestamp = %v", resp.History[1].Timestamp)
	}

	rr = do(t, srv, http.MethodGet, "/api/history/recent?n=1", "", "")
	var recent recentResponse
	if err := json.NewDecoder(rr.Body).Decode(&recent); err != nil {
		t.Fatal(err)
	}
	if len(recent.Records) != 1 || recent.Records[0].Operation != core.Credit {
		t.Fatalf("recent = %+v", recent.Records)
	}

	rr = do(t, srv, http.MethodGet, "/api/history/calendar?tz=UTC", "", "")
	var cal calendarResponse
	if err := json.NewDecoder(rr.Body).Decode(&cal); err != nil {
		t.Fatal(err)
	}
	if len(cal.Days) != 1 || cal.Days[0].Date != "2025-03-14" || len(cal.Days[0].Records) != 2 {
		t.Fatalf("calendar = %+v", cal)
	}

	rr = do(t, srv, http.MethodPost, "/api/erase", "", "")
	resp = decodeLedger(t, rr)
	if resp.Balance != "370.00" || len(resp.History) != 0 {
		t.Fatalf("after erase: %+v", resp)
	}

	rr = do(t, srv, http.MethodPost, "/api/reset", "", "")
	resp = decodeLedger(t, rr)
	if resp.Balance != "400.00" || len(resp.History) != 0 {
		t.Fatalf("after reset: %+v", resp)
	}

	rr = do(t, srv, http.MethodGet, "/api/ledger", "", "")
	if got := decodeLedger(t, rr).Balance; got != "400.00" {
		t.Fatalf("GET /api/ledger balance = %s", got)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t, memory.New())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"zero amount", `{"amount":0,"kind":"credit"}`, http.StatusUnprocessableEntity},
		{"garbage amount", `{"amount":"abc","kind":"credit"}`, http.StatusUnprocessableEntity},
		{"bad kind", `{"amount":"1","kind":"refund"}`, http.StatusUnprocessableEntity},
		{"malformed body", `{"amount":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/transactions", tt.body, "application/json")
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr := do(t, srv, http.MethodGet, "/api/ledger", "", "")
	if resp := decodeLedger(t, rr); resp.Balance != "400.00" || len(resp.History) != 0 {
		t.Fatalf("rejected requests changed state: %+v", resp)
	}

	rr = do(t, srv, http.MethodGet, "/api/transactions", "", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestPersistenceFailureReturnsWarning(t *testing.T) {
	srv := newTestServer(t, failingStore{memory.New()})

	rr := do(t, srv, http.MethodPost, "/api/transactions", `{"amount":"50","kind":"debit"}`, "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get(warningHeader) == "" {
		t.Error("missing warning header")
	}
	resp := decodeLedger(t, rr)
	if resp.Warning == "" || resp.Balance != "350.00" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestFormPostRedirects(t *testing.T) {
	srv := newTestServer(t, memory.New())

	rr := do(t, srv, http.MethodPost, "/api/transactions", "amount=12.50&kind=credit&description=gift", "application/x-www-form-urlencoded")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status=%d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); !strings.HasPrefix(loc, "/?notice=") {
		t.Fatalf("Location = %q", loc)
	}

	rr = do(t, srv, http.MethodPost, "/api/transactions", "amount=-1&kind=credit", "application/x-www-form-urlencoded")
	if loc := rr.Header().Get("Location"); !strings.HasPrefix(loc, "/?error=") {
		t.Fatalf("Location = %q", loc)
	}

	rr = do(t, srv, http.MethodGet, "/?notice=transaction+recorded", "", "")
	body := rr.Body.String()
	if !strings.Contains(body, "transaction recorded") || !strings.Contains(body, "gift") {
		t.Fatalf("index missing notice or record: %s", body)
	}
}

func TestBadQueryParameters(t *testing.T) {
	srv := newTestServer(t, memory.New())
	for _, path := range []string{"/api/history/recent?n=-2", "/api/history/calendar?tz=Mars/Olympus"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s status=%d", path, rr.Code)
		}
	}
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, memory.New())
	rr := do(t, srv, http.MethodGet, "/static/style.css", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Cache-Control") == "" {
		t.Error("missing Cache-Control")
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := &rateLimiter{
		clients:     make(map[string]*clientWindow),
		limit:       2,
		window:      time.Minute,
		now:         func() time.Time { return now },
		stopCleanup: make(chan struct{}),
	}
	m := &securityMetrics{}

	for i := 0; i < 2; i++ {
		if !rl.allow("10.0.0.1", m) {
			t.Fatalf("request %d rejected", i)
		}
	}
	if rl.allow("10.0.0.1", m) {
		t.Fatal("third request allowed")
	}
	if !rl.allow("10.0.0.2", m) {
		t.Fatal("other client limited")
	}
	if hits, _ := m.snapshot(); hits != 1 {
		t.Errorf("rateLimitHits = %d, want 1", hits)
	}

	now = now.Add(time.Minute)
	if !rl.allow("10.0.0.1", m) {
		t.Fatal("new window should allow")
	}

	now = now.Add(time.Hour)
	rl.cleanupStaleEntries()
	if len(rl.clients) != 0 {
		t.Errorf("stale clients kept: %d", len(rl.clients))
	}
	rl.stop()
	rl.stop()
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.7:4000", "", "203.0.113.7"},
		{"trusted proxy forwards", "10.0.0.5:4000", "198.51.100.2, 10.0.0.5", "198.51.100.2"},
		{"untrusted proxy ignored", "203.0.113.7:4000", "198.51.100.2", "203.0.113.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"ledger read", http.MethodGet, "/api/ledger", "saldo-page", false},
		{"reset via POST", http.MethodPost, "/api/reset", "", false},
		{"reset via GET", http.MethodGet, "/api/reset", "", true},
		{"erase via DELETE", http.MethodDelete, "/api/erase", "", true},
		{"path traversal", http.MethodGet, "/static/../.env", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			req.URL.Path = tt.target
			if tt.agent != "" {
				req.Header.Set("User-Agent", tt.agent)
			}
			m := &securityMetrics{}
			if got := detectSuspiciousRequest(req, m); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			if _, n := m.snapshot(); (n == 1) != tt.want {
				t.Errorf("suspicious counter = %d", n)
			}
		})
	}
}
