// Package testutil provides shared test helpers for media stores and ledgers.
package testutil

import (
	"os"
	"testing"

	"github.com/yourview/yourview/internal/ledger"
	"github.com/yourview/yourview/internal/storage"
)

// Env bundles a temporary media store and ledger.
type Env struct {
	Root   string
	Store  *storage.FS
	Ledger *ledger.DB
}

// NewEnv creates a temporary media directory and ledger database that are
// cleaned up with the test.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	root, store := TestStore(t)
	return &Env{Root: root, Store: store, Ledger: TestLedger(t)}
}

// TestLedger creates a temporary SQLite ledger that is automatically cleaned up.
func TestLedger(t *testing.T) *ledger.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "yourview-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := ledger.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary media directory with a storage provider.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
