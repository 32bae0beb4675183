package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "saldo.db")
	repo, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, dbPath
}

func TestSQLiteRepository_SetGetDelete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if _, found, err := repo.Get(ctx, "balance-tracker/balance"); err != nil || found {
		t.Fatalf("expected absent key, found=%v err=%v", found, err)
	}

	if err := repo.Set(ctx, "balance-tracker/balance", []byte("350.00")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := repo.Set(ctx, "balance-tracker/balance", []byte("370.00")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, found, err := repo.Get(ctx, "balance-tracker/balance")
	if err != nil || !found || string(v) != "370.00" {
		t.Fatalf("expected 370.00, got %q found=%v err=%v", v, found, err)
	}

	if err := repo.Delete(ctx, "balance-tracker/balance"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := repo.Get(ctx, "balance-tracker/balance"); found {
		t.Fatalf("expected key to be deleted")
	}
	// Deleting an absent key is not an error.
	if err := repo.Delete(ctx, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestSQLiteRepository_EmptyValue(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Set(ctx, "k", nil); err != nil {
		t.Fatalf("set empty: %v", err)
	}
	v, found, err := repo.Get(ctx, "k")
	if err != nil || !found || len(v) != 0 {
		t.Fatalf("expected present empty value, got %q found=%v err=%v", v, found, err)
	}
}

func TestSQLiteRepository_PersistsAcrossReopen(t *testing.T) {
	repo, dbPath := newTestRepo(t)
	ctx := context.Background()
	if err := repo.Set(ctx, "history", []byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	repo.Close()

	// Migrations are idempotent on an existing schema.
	reopened, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	v, found, err := reopened.Get(ctx, "history")
	if err != nil || !found || string(v) != "[]" {
		t.Fatalf("expected persisted value, got %q found=%v err=%v", v, found, err)
	}
}
