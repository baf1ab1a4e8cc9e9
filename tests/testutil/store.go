package testutil

import (
	"path/filepath"
	"testing"

	"github.com/nhle/anymail/internal/store"
)

// NewTestStore creates an in-memory audit store with all migrations
// applied. It automatically closes the store when the test completes.
func NewTestStore(t *testing.T, opts ...store.Option) *store.SQLiteStore {
	t.Helper()
	return open(t, ":memory:", opts...)
}

// NewFileStore opens an audit store on dbPath, typically inside
// t.TempDir(), so that several stores can share one database.
func NewFileStore(t *testing.T, dbPath string, opts ...store.Option) *store.SQLiteStore {
	t.Helper()
	return open(t, dbPath, opts...)
}

// TempDBPath returns a fresh database path under t.TempDir().
func TempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "anymail.db")
}

func open(t *testing.T, dbPath string, opts ...store.Option) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(dbPath, opts...)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
