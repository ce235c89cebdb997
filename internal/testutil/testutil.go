// Package testutil provides shared test helpers for setting up databases and
// upload directories.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/estatehub/internal/storage"
	"github.com/starford/estatehub/internal/store"
)

// PNG is a minimal byte sequence that sniffs as image/png.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "estatehub-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestUploads creates a temporary uploads directory with a storage.Provider.
func TestUploads(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	objects, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, objects
}
