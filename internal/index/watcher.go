package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, key models.Key)

// Watch starts an fsnotify watcher on the content tree root and processes
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful index mutation.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// index entries whose blobs no longer exist on disk.
func Watch(ctx context.Context, db *DB, store *storage.FS, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories: watch them and index what they already hold.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					indexNewDir(db, store, absPath, logger, cb)
					continue
				}
			}

			if strings.HasPrefix(filepath.Base(absPath), ".folio-tmp-") {
				continue
			}
			key, keyErr := store.KeyFor(absPath)
			if keyErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(key)
				if readErr != nil {
					if !errors.Is(readErr, os.ErrNotExist) {
						logger.Warn("watcher: read failed", slog.String("key", key.String()), slog.String("error", readErr.Error()))
					}
					continue
				}
				if idxErr := indexBlob(db, key, data); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("key", key.String()), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("key", key.String()), slog.String("op", kind))
				if cb != nil {
					cb(kind, key)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteDocument(key); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("key", key.String()), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("key", key.String()))
				if cb != nil {
					cb("deleted", key)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the old path only; the new path
				// arrives as a separate Create if it stays in a watched dir.
				if delErr := db.DeleteDocument(key); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("key", key.String()), slog.String("error", delErr.Error()))
				} else if cb != nil {
					cb("deleted", key)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index entries without a blob on disk and indexes blobs
// that are missing or stale in the index.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[models.Key]string, len(metas))
	for _, m := range metas {
		disk[m.Key] = m.Checksum
	}

	for k := range checksums {
		if _, ok := disk[k]; !ok {
			if delErr := db.DeleteDocument(k); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("key", k.String()))
				if cb != nil {
					cb("deleted", k)
				}
			}
		}
	}

	for k, cs := range disk {
		if checksums[k] == cs {
			continue
		}
		data, readErr := store.Read(k)
		if readErr != nil {
			continue
		}
		if idxErr := indexBlob(db, k, data); idxErr == nil {
			logger.Debug("reconcile: indexed new", slog.String("key", k.String()))
			if cb != nil {
				cb("created", k)
			}
		}
	}
}

// indexNewDir indexes any blobs found in a newly created directory.
func indexNewDir(db *DB, store *storage.FS, dirPath string, logger *slog.Logger, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		key, keyErr := store.KeyFor(path)
		if keyErr != nil {
			return nil
		}
		data, readErr := store.Read(key)
		if readErr != nil {
			return nil
		}
		if idxErr := indexBlob(db, key, data); idxErr == nil {
			logger.Debug("watcher: indexed from new dir", slog.String("key", key.String()))
			if cb != nil {
				cb("created", key)
			}
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
