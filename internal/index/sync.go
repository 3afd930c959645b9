package index

import (
	"log/slog"

	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/codec"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

// Sync walks the content tree and brings the index up to date:
//   - new/changed blobs are decoded and upserted with their forward refs
//   - blobs that fail to decode are logged and skipped
//   - keys removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[models.Key]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Key] = struct{}{}

		if checksums[m.Key] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Key)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("key", m.Key.String()), slog.String("error", err.Error()))
			continue
		}
		if err := indexBlob(db, m.Key, data); err != nil {
			logger.Warn("sync: index failed", slog.String("key", m.Key.String()), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("key", m.Key.String()))
		}
	}

	// Remove stale entries.
	for k := range checksums {
		if _, ok := disk[k]; !ok {
			if err := db.DeleteDocument(k); err != nil {
				logger.Warn("sync: delete failed", slog.String("key", k.String()), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("key", k.String()))
			}
		}
	}

	return nil
}

// indexBlob decodes data according to the key's kind and upserts it into
// the DB. Assets and metadata carry no references.
func indexBlob(db *DB, key models.Key, data []byte) error {
	row := DocumentRow{Key: key, Checksum: checksum.Sum(data)}
	var refs []models.Key

	switch {
	case key.Kind == models.KindExamples:
		sec, err := codec.DecodeSection(data)
		if err != nil {
			return err
		}
		row.Title = sec.Title
		refs = codec.SectionRefs(sec)
	case key.Kind.IsDocument():
		doc, err := codec.DecodeDocument(data)
		if err != nil {
			return err
		}
		row.Title = doc.Title
		row.Summary = doc.Summary
		refs = codec.ForwardRefs(doc)
	}

	return db.UpsertDocument(row, refs)
}
