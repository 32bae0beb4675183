package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, found, err := s.Get(ctx, "k"); found || err != nil {
		t.Fatalf("expected absent key, found=%v err=%v", found, err)
	}

	val := []byte("350.00")
	if err := s.Set(ctx, "k", val); err != nil {
		t.Fatalf("set: %v", err)
	}
	val[0] = 'X' // must not alias stored value

	got, found, err := s.Get(ctx, "k")
	if err != nil || !found || string(got) != "350.00" {
		t.Fatalf("unexpected get: %q found=%v err=%v", got, found, err)
	}
	got[0] = 'Y'
	again, _, _ := s.Get(ctx, "k")
	if string(again) != "350.00" {
		t.Fatalf("returned slice aliases stored value: %q", again)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, len=%d", s.Len())
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	// Missing file -> empty store
	s, err := NewFromFile(filepath.Join(dir, "missing.json"))
	if err != nil || s.Len() != 0 {
		t.Fatalf("expected empty store, len=%d err=%v", s.Len(), err)
	}

	path := filepath.Join(dir, "seed.json")
	if err := os.WriteFile(path, []byte(`{"balance-tracker/balance": 123.45, "balance-tracker/history": []}`), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	v, found, _ := s.Get(context.Background(), "balance-tracker/balance")
	if !found || string(v) != "123.45" {
		t.Fatalf("unexpected seeded balance %q found=%v", v, found)
	}

	if err := os.WriteFile(path, []byte(`not json`), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Fatalf("expected parse error for malformed seed")
	}
}
