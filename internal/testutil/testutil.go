// Package testutil provides shared test helpers for setting up content trees
// and databases.
package testutil

import (
	"log/slog"
	"os"
	"testing"

	"github.com/starford/folio/internal/codec"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "folio-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary content tree.
func TestStore(t *testing.T) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// QuietLogger discards everything below error level.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// APIKey builds a module-kind key, the kind API pages are stored under.
func APIKey(module, version, path string) models.Key {
	return models.Key{Module: module, Version: version, Kind: models.KindModule, Path: path}
}

// WriteDoc encodes doc and stores it under key.
func WriteDoc(t *testing.T, store *storage.FS, key models.Key, doc *models.Document) {
	t.Helper()
	data, err := codec.EncodeDocument(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Write(key, data); err != nil {
		t.Fatal(err)
	}
}

// WriteRefDoc stores a minimal document titled after key.Path that
// references refs.
func WriteRefDoc(t *testing.T, store *storage.FS, key models.Key, refs ...models.Key) {
	t.Helper()
	doc := &models.Document{Title: key.Path, Summary: "Summary of " + key.Path}
	for _, r := range refs {
		doc.Refs = append(doc.Refs, r.Info())
	}
	WriteDoc(t, store, key, doc)
}

// WriteMeta stores the metadata file of (module, version).
func WriteMeta(t *testing.T, store *storage.FS, module, version string, meta map[string]any) {
	t.Helper()
	data, err := codec.EncodeMeta(meta)
	if err != nil {
		t.Fatal(err)
	}
	key := models.Key{Module: module, Version: version, Kind: models.KindMeta, Path: codec.MetaPath}
	if err := store.Write(key, data); err != nil {
		t.Fatal(err)
	}
}

// Synced runs index.Sync and fails the test on error.
func Synced(t *testing.T, db *index.DB, store *storage.FS) {
	t.Helper()
	if err := index.Sync(db, store, QuietLogger()); err != nil {
		t.Fatal(err)
	}
}

// Backrefs is an in-memory backref source built from forward edges.
type Backrefs map[models.Key][]models.Key

// Link records that src references every dst.
func (b Backrefs) Link(src models.Key, dsts ...models.Key) {
	for _, d := range dsts {
		b[d] = append(b[d], src)
	}
}

// GetBackref returns the keys referencing k.
func (b Backrefs) GetBackref(k models.Key) ([]models.Key, error) {
	return b[k], nil
}
