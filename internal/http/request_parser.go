package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"saldo/internal/core"
)

const maxBodyBytes = 64 << 10

// maxRecent caps the n query parameter of the recent-history endpoint.
const maxRecent = 1000

var errBadQuery = errors.New("invalid query parameter")

// RequestBodyParser reads a request body once and exposes its fields,
// whether the client sent JSON or a url-encoded form.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads up to maxBodyBytes of the request body.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body as JSON when it looks like an object, as a form otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		data := make(map[string]any)
		if err := dec.Decode(&data); err != nil {
			p.err = fmt.Errorf("decode json body: %w", err)
			return p.err
		}
		p.jsonData = data
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Get returns a sanitized string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON reports whether the body was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue keeps JSON numbers in their literal form so amounts are not
// routed through float64.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// transactionInput is a validated add-transaction request.
type transactionInput struct {
	Amount      core.Money
	Kind        core.Kind
	Description string
}

// parseTransaction validates amount and kind. Errors wrap core.ErrInvalidAmount
// or core.ErrInvalidKind.
func parseTransaction(p *RequestBodyParser) (transactionInput, error) {
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return transactionInput{}, err
	}
	kind, err := core.ParseKind(p.Get("kind"))
	if err != nil {
		return transactionInput{}, err
	}
	return transactionInput{
		Amount:      amount,
		Kind:        kind,
		Description: p.Get("description"),
	}, nil
}

// parseRecentLimit reads ?n=, falling back to def when absent.
func parseRecentLimit(query url.Values, def int) (int, error) {
	v := strings.TrimSpace(query.Get("n"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: n must be a positive integer", errBadQuery)
	}
	if n > maxRecent {
		n = maxRecent
	}
	return n, nil
}

// parseLocation reads ?tz=, falling back to def when absent.
func parseLocation(query url.Values, def *time.Location) (*time.Location, error) {
	v := strings.TrimSpace(query.Get("tz"))
	if v == "" {
		return def, nil
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown time zone %q", errBadQuery, v)
	}
	return loc, nil
}
