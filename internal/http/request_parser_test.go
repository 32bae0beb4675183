package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"saldo/internal/core"
)

func newParser(t *testing.T, body, contentType string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	p := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

func TestRequestBodyParser_JSON(t *testing.T) {
	p := newParser(t, `{"amount": 12.345, "kind": "debit", "description": "  bread\u0007 "}`, "application/json")

	if !p.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	// Numbers keep their literal text.
	if got := p.Get("amount"); got != "12.345" {
		t.Errorf("Get('amount') = %q, want '12.345'", got)
	}
	if got := p.Get("description"); got != "bread" {
		t.Errorf("Get('description') = %q, want 'bread'", got)
	}
	if got := p.Get("missing"); got != "" {
		t.Errorf("Get('missing') = %q, want empty", got)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	p := newParser(t, "amount=50&kind=credit&description=pay+day", "application/x-www-form-urlencoded")

	if p.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if got := p.Get("description"); got != "pay day" {
		t.Errorf("Get('description') = %q, want 'pay day'", got)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	p := newParser(t, "", "")
	if got := p.Get("amount"); got != "" {
		t.Errorf("Get('amount') = %q, want empty string", got)
	}
}

func TestRequestBodyParser_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":`))
	p := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := p.Parse(); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	// Parse is memoized.
	if err := p.Parse(); err == nil {
		t.Fatal("expected the same error on second Parse")
	}
}

func TestParseTransaction(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    transactionInput
		wantErr error
	}{
		{
			name: "debit with description",
			body: `{"amount":"50","kind":"debit","description":"groceries"}`,
			want: transactionInput{Amount: core.Money{Cents: 5000}, Kind: core.Debit, Description: "groceries"},
		},
		{
			name: "credit via alias and comma decimal",
			body: `{"amount":"20,5","kind":"income"}`,
			want: transactionInput{Amount: core.Money{Cents: 2050}, Kind: core.Credit},
		},
		{name: "zero amount", body: `{"amount":0,"kind":"credit"}`, wantErr: core.ErrInvalidAmount},
		{name: "negative amount", body: `{"amount":-5,"kind":"credit"}`, wantErr: core.ErrInvalidAmount},
		{name: "missing amount", body: `{"kind":"credit"}`, wantErr: core.ErrInvalidAmount},
		{name: "unknown kind", body: `{"amount":"5","kind":"transfer"}`, wantErr: core.ErrInvalidKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTransaction(newParser(t, tt.body, "application/json"))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseRecentLimit(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 10, false},
		{"n=3", 3, false},
		{"n=5000", maxRecent, false},
		{"n=0", 0, true},
		{"n=abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := parseRecentLimit(q, 10)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseLocation(t *testing.T) {
	loc, err := parseLocation(url.Values{}, time.UTC)
	if err != nil || loc != time.UTC {
		t.Fatalf("default: got %v, %v", loc, err)
	}
	if _, err := parseLocation(url.Values{"tz": {"Not/AZone"}}, time.UTC); !errors.Is(err, errBadQuery) {
		t.Fatalf("expected errBadQuery, got %v", err)
	}
}
