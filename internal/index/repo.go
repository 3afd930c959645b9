package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/folio/internal/models"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Key      models.Key
	Title    string
	Summary  string
	Checksum string
}

// SearchResult represents one search hit.
type SearchResult struct {
	Key     models.Key `json:"key"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
}

// UpsertDocument inserts or replaces a document row, its FTS entry, and its
// outgoing references within a transaction.
func (db *DB) UpsertDocument(d DocumentRow, forwardrefs []models.Key) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	k := d.Key
	_, err = tx.Exec(`
		INSERT INTO documents (module, version, kind, path, title, summary, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(module, version, kind, path) DO UPDATE SET
			title    = excluded.title,
			summary  = excluded.summary,
			checksum = excluded.checksum
	`, k.Module, k.Version, string(k.Kind), k.Path, d.Title, d.Summary, d.Checksum)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, k, d.Title, d.Summary); err != nil {
		return err
	}

	// Replace refs: delete old then bulk insert.
	if _, err := tx.Exec(`DELETE FROM refs WHERE src_module = ? AND src_version = ? AND src_kind = ? AND src_path = ?`,
		k.Module, k.Version, string(k.Kind), k.Path); err != nil {
		return fmt.Errorf("index: clear refs: %w", err)
	}
	if len(forwardrefs) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO refs
			(src_module, src_version, src_kind, src_path, dst_module, dst_version, dst_kind, dst_path)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare ref insert: %w", err)
		}
		defer stmt.Close()
		for _, t := range forwardrefs {
			if _, err := stmt.Exec(k.Module, k.Version, string(k.Kind), k.Path,
				t.Module, t.Version, string(t.Kind), t.Path); err != nil {
				return fmt.Errorf("index: insert ref: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document, its FTS entry, and outgoing refs.
// Incoming refs stay: they belong to the documents that declare them.
func (db *DB) DeleteDocument(key models.Key) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, key)
	_, _ = tx.Exec(`DELETE FROM refs WHERE src_module = ? AND src_version = ? AND src_kind = ? AND src_path = ?`,
		key.Module, key.Version, string(key.Kind), key.Path)
	_, _ = tx.Exec(`DELETE FROM documents WHERE module = ? AND version = ? AND kind = ? AND path = ?`,
		key.Module, key.Version, string(key.Kind), key.Path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a key, or empty string if not found.
func (db *DB) GetChecksum(key models.Key) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE module = ? AND version = ? AND kind = ? AND path = ?`,
		key.Module, key.Version, string(key.Kind), key.Path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum of %s: %w", key, err)
	}
	return cs, nil
}

// AllChecksums returns the checksum of every indexed key.
func (db *DB) AllChecksums() (map[models.Key]string, error) {
	rows, err := db.conn.Query(`SELECT module, version, kind, path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[models.Key]string)
	for rows.Next() {
		var k models.Key
		var cs string
		if err := scanKey(rows, &k, &cs); err != nil {
			return nil, err
		}
		out[k] = cs
	}
	return out, rows.Err()
}

// Glob returns every indexed key matching p, sorted.
func (db *DB) Glob(p models.Pattern) ([]models.Key, error) {
	var where []string
	var args []any
	if p.Module != nil {
		where = append(where, "module = ?")
		args = append(args, *p.Module)
	}
	if p.Version != nil {
		where = append(where, "version = ?")
		args = append(args, *p.Version)
	}
	if p.Kind != nil {
		where = append(where, "kind = ?")
		args = append(args, string(*p.Kind))
	}
	if p.Path != nil {
		where = append(where, "path = ?")
		args = append(args, *p.Path)
	}
	q := `SELECT module, version, kind, path FROM documents`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY module, version, kind, path"
	return db.queryKeys("glob", q, args...)
}

// Backrefs returns all keys whose documents reference key.
func (db *DB) Backrefs(key models.Key) ([]models.Key, error) {
	return db.queryKeys("backrefs", `
		SELECT src_module, src_version, src_kind, src_path FROM refs
		WHERE dst_module = ? AND dst_version = ? AND dst_kind = ? AND dst_path = ?
		ORDER BY src_module, src_version, src_kind, src_path
	`, key.Module, key.Version, string(key.Kind), key.Path)
}

// Forwardrefs returns all keys referenced by the document stored under key.
func (db *DB) Forwardrefs(key models.Key) ([]models.Key, error) {
	return db.queryKeys("forwardrefs", `
		SELECT dst_module, dst_version, dst_kind, dst_path FROM refs
		WHERE src_module = ? AND src_version = ? AND src_kind = ? AND src_path = ?
		ORDER BY dst_module, dst_version, dst_kind, dst_path
	`, key.Module, key.Version, string(key.Kind), key.Path)
}

func (db *DB) queryKeys(op, q string, args ...any) ([]models.Key, error) {
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: %s: %w", op, err)
	}
	defer rows.Close()

	var out []models.Key
	for rows.Next() {
		var k models.Key
		if err := scanKey(rows, &k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func scanKey(rows *sql.Rows, k *models.Key, extra ...any) error {
	var kind string
	dest := append([]any{&k.Module, &k.Version, &kind, &k.Path}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	k.Kind = models.Kind(kind)
	return nil
}
