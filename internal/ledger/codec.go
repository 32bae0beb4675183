package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// legacyTimestampLayout is accepted on read for records written without a zone.
const legacyTimestampLayout = "2006-01-02 15:04:05"

// errAbsent marks a value that is present but carries the "cleared" signal.
var errAbsent = errors.New("value absent")

// recordJSON is the persisted shape of a transaction record.
type recordJSON struct {
	Timestamp   string      `json:"timestamp"`
	Operation   string      `json:"operation"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Balance     json.Number `json:"balance"`
}

func encodeBalance(m core.Money) []byte {
	return []byte(m.Fixed())
}

func encodeHistory(history []core.TransactionRecord) ([]byte, error) {
	out := make([]recordJSON, 0, len(history))
	for _, r := range history {
		out = append(out, recordJSON{
			Timestamp:   r.Timestamp.UTC().Format(time.RFC3339),
			Operation:   r.Kind.String(),
			Description: r.Description,
			Amount:      json.Number(r.Amount.Fixed()),
			Balance:     json.Number(r.ResultingBalance.Fixed()),
		})
	}
	return json.Marshal(out)
}

// decodeJSON decodes raw keeping numbers as json.Number. Empty input and a
// literal null both report errAbsent.
func decodeJSON(raw []byte) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errAbsent
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	if v == nil {
		return nil, errAbsent
	}
	return v, nil
}

func decodeBalance(raw []byte) (core.Money, error) {
	v, err := decodeJSON(raw)
	if err != nil {
		return core.Money{}, err
	}
	n, ok := v.(json.Number)
	if !ok {
		return core.Money{}, fmt.Errorf("balance is %T, not a number", v)
	}
	return moneyFromNumber(string(n))
}

func decodeHistory(raw []byte) ([]core.TransactionRecord, error) {
	v, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("history is %T, not an array", v)
	}
	history := make([]core.TransactionRecord, 0, len(items))
	for i, item := range items {
		r, err := decodeRecord(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		history = append(history, r)
	}
	return history, nil
}

func decodeRecord(item any) (core.TransactionRecord, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return core.TransactionRecord{}, fmt.Errorf("record is %T, not an object", item)
	}

	ts, ok := obj["timestamp"].(string)
	if !ok {
		return core.TransactionRecord{}, errors.New("timestamp missing or not a string")
	}
	timestamp, err := parseTimestamp(ts)
	if err != nil {
		return core.TransactionRecord{}, err
	}

	op, ok := obj["operation"].(string)
	if !ok {
		return core.TransactionRecord{}, errors.New("operation missing or not a string")
	}
	kind, err := core.ParseKind(op)
	if err != nil {
		return core.TransactionRecord{}, err
	}

	description := core.DefaultDescription
	if raw, present := obj["description"]; present && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return core.TransactionRecord{}, errors.New("description is not a string")
		}
		if s = strings.TrimSpace(s); s != "" {
			description = s
		}
	}

	amount, err := moneyField(obj, "amount")
	if err != nil {
		return core.TransactionRecord{}, err
	}
	if err := amount.Validate(); err != nil {
		return core.TransactionRecord{}, err
	}
	balance, err := moneyField(obj, "balance")
	if err != nil {
		return core.TransactionRecord{}, err
	}

	return core.TransactionRecord{
		Timestamp:        timestamp,
		Kind:             kind,
		Amount:           amount,
		Description:      description,
		ResultingBalance: balance,
	}, nil
}

// moneyField reads a JSON number, or a string holding one, from obj[name].
func moneyField(obj map[string]any, name string) (core.Money, error) {
	switch v := obj[name].(type) {
	case json.Number:
		return moneyFromNumber(string(v))
	case string:
		return moneyFromNumber(strings.TrimSpace(v))
	case nil:
		return core.Money{}, fmt.Errorf("%s missing", name)
	default:
		return core.Money{}, fmt.Errorf("%s is %T, not a number", name, v)
	}
}

func moneyFromNumber(s string) (core.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("parse %.32q: %w", s, err)
	}
	m, err := core.MoneyFromDecimal(d)
	if err != nil {
		return core.Money{}, fmt.Errorf("number %.32q: %w", s, err)
	}
	return m, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(legacyTimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %.32q", s)
	}
	return t, nil
}
