package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

// watcherTestEnv sets up a content tree and DB for watcher tests.
func watcherTestEnv(t *testing.T) (*storage.FS, *DB) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store, testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func asset(path string) models.Key {
	return models.Key{Module: "numpy", Version: "1.22", Kind: models.KindAssets, Path: path}
}

func TestWatcher_NewBlobIndexed(t *testing.T) {
	store, db := watcherTestEnv(t)
	_ = store.Write(asset("seed.png"), []byte("seed"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, quietLogger(), func(kind string, k models.Key) {
		mu.Lock()
		events = append(events, kind+":"+k.Path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = store.Write(asset("new.png"), []byte("png"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum(asset("new.png"))
		return cs != ""
	}, "new blob not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:new.png" {
				return true
			}
		}
		return false
	}, "expected created:new.png callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	deep := models.Key{Module: "scipy", Version: "1.8", Kind: models.KindAssets, Path: "deep.png"}
	_ = store.Write(deep, []byte("deep"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum(deep)
		return cs != ""
	}, "blob in new directory not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	store, db := watcherTestEnv(t)
	_ = store.Write(asset("del.png"), []byte("bye"))
	_ = Sync(db, store, quietLogger())

	if cs, _ := db.GetChecksum(asset("del.png")); cs == "" {
		t.Fatal("precondition: blob should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(store.Root(), "numpy", "1.22", "assets", "del.png"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum(asset("del.png"))
		return cs == ""
	}, "deleted blob still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	store, db := watcherTestEnv(t)
	_ = store.Write(asset("old.png"), []byte("rename"))
	_ = Sync(db, store, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	dir := filepath.Join(store.Root(), "numpy", "1.22", "assets")
	_ = os.Rename(filepath.Join(dir, "old.png"), filepath.Join(dir, "renamed.png"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum(asset("old.png"))
		newCS, _ := db.GetChecksum(asset("renamed.png"))
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old key should be removed and new key indexed")
}
