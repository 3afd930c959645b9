package index

import (
	"log/slog"
	"os"
	"testing"

	"github.com/starford/folio/internal/codec"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "folio-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func key(path string) models.Key {
	return models.Key{Module: "numpy", Version: "1.22", Kind: models.KindModule, Path: path}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM refs`).Scan(&count); err != nil {
		t.Fatalf("refs table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	row := DocumentRow{Key: key("numpy.dot"), Title: "numpy.dot", Checksum: "abc123"}
	if err := db.UpsertDocument(row, []models.Key{key("numpy.matmul")}); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	cs, err := db.GetChecksum(key("numpy.dot"))
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestBackrefsAndForwardrefs(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Key: key("numpy.dot"), Checksum: "1"}, []models.Key{key("numpy.matmul")})
	_ = db.UpsertDocument(DocumentRow{Key: key("numpy.vdot"), Checksum: "2"}, []models.Key{key("numpy.matmul")})

	bl, err := db.Backrefs(key("numpy.matmul"))
	if err != nil {
		t.Fatalf("Backrefs: %v", err)
	}
	if len(bl) != 2 || bl[0] != key("numpy.dot") || bl[1] != key("numpy.vdot") {
		t.Fatalf("backrefs = %+v", bl)
	}

	fw, err := db.Forwardrefs(key("numpy.dot"))
	if err != nil {
		t.Fatalf("Forwardrefs: %v", err)
	}
	if len(fw) != 1 || fw[0] != key("numpy.matmul") {
		t.Errorf("forwardrefs = %+v", fw)
	}
}

func TestDeleteDocument(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Key: key("numpy.del"), Checksum: "x"}, []models.Key{key("numpy.target")})

	if err := db.DeleteDocument(key("numpy.del")); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	cs, _ := db.GetChecksum(key("numpy.del"))
	if cs != "" {
		t.Errorf("deleted document still has checksum %q", cs)
	}
	bl, _ := db.Backrefs(key("numpy.target"))
	if len(bl) != 0 {
		t.Errorf("expected 0 backrefs after delete, got %d", len(bl))
	}
}

func TestUpsertReplacesRefs(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Key: key("numpy.up"), Title: "Old", Checksum: "1"}, []models.Key{key("numpy.x")})
	_ = db.UpsertDocument(DocumentRow{Key: key("numpy.up"), Title: "New", Checksum: "2"}, []models.Key{key("numpy.y")})

	cs, _ := db.GetChecksum(key("numpy.up"))
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	if bl, _ := db.Backrefs(key("numpy.x")); len(bl) != 0 {
		t.Error("old ref should be removed on upsert")
	}
	if bl, _ := db.Backrefs(key("numpy.y")); len(bl) != 1 {
		t.Error("new ref should exist")
	}
}

func TestGlob_Wildcards(t *testing.T) {
	db := testDB(t)
	asset := models.Key{Module: "numpy", Version: "1.22", Kind: models.KindAssets, Path: "fig.png"}
	other := models.Key{Module: "scipy", Version: "1.8", Kind: models.KindModule, Path: "scipy.linalg"}
	for _, k := range []models.Key{key("numpy.dot"), asset, other} {
		_ = db.UpsertDocument(DocumentRow{Key: k, Checksum: "c"}, nil)
	}

	all, err := db.Glob(models.Pattern{})
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("glob all = %d keys, want 3", len(all))
	}

	mods, _ := db.Glob(models.Glob("", "", models.KindModule, ""))
	if len(mods) != 2 || mods[0] != key("numpy.dot") || mods[1] != other {
		t.Errorf("glob module kind = %+v", mods)
	}

	numpy, _ := db.Glob(models.Glob("numpy", "1.22", "", ""))
	if len(numpy) != 2 {
		t.Errorf("glob numpy/1.22 = %+v", numpy)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum(key("numpy.nonexistent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Key: key("numpy.einsum"), Title: "Einstein summation", Summary: "uniqueword appears here", Checksum: "1"}, nil)

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Key != key("numpy.einsum") {
		t.Errorf("search results = %+v, want 1 hit for numpy.einsum", results)
	}
}

func TestSync_IndexesRefsAndSkipsUndecodable(t *testing.T) {
	db := testDB(t)
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	matmul := key("numpy.matmul")
	data, _ := codec.EncodeDocument(&models.Document{Title: "dot", Refs: []models.RefInfo{matmul.Info()}})
	_ = store.Write(key("numpy.dot"), data)
	data, _ = codec.EncodeDocument(&models.Document{Title: "matmul"})
	_ = store.Write(matmul, data)
	_ = store.Write(key("numpy.broken"), []byte("{not json"))

	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	keys, _ := db.Glob(models.Pattern{})
	if len(keys) != 2 {
		t.Fatalf("indexed keys = %+v, want dot and matmul only", keys)
	}
	bl, _ := db.Backrefs(matmul)
	if len(bl) != 1 || bl[0] != key("numpy.dot") {
		t.Errorf("backrefs(matmul) = %+v", bl)
	}

	// Removing a blob from disk drops it from the index on the next pass.
	if err := os.Remove(store.Root() + "/numpy/1.22/module/numpy.dot"); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if cs, _ := db.GetChecksum(key("numpy.dot")); cs != "" {
		t.Error("stale key should be removed")
	}
	if bl, _ := db.Backrefs(matmul); len(bl) != 0 {
		t.Errorf("refs of removed document should be gone, got %+v", bl)
	}
}

func TestGetChecksum_ReportsQueryErrors(t *testing.T) {
	db := testDB(t)
	_ = db.Close()

	if _, err := db.GetChecksum(key("numpy.dot")); err == nil {
		t.Fatal("expected an error from a closed database")
	}
}
