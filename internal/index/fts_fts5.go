//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/folio/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			module UNINDEXED,
			version UNINDEXED,
			kind UNINDEXED,
			path,
			title,
			summary,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, k models.Key, title, summary string) error {
	ftsDelete(tx, k)
	_, err := tx.Exec(`INSERT INTO documents_fts (module, version, kind, path, title, summary) VALUES (?, ?, ?, ?, ?, ?)`,
		k.Module, k.Version, string(k.Kind), k.Path, title, summary)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, k models.Key) {
	_, _ = tx.Exec(`DELETE FROM documents_fts WHERE module = ? AND version = ? AND kind = ? AND path = ?`,
		k.Module, k.Version, string(k.Kind), k.Path)
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT module, version, kind, path,
		       title,
		       snippet(documents_fts, 5, '<b>', '</b>', '...', 64)
		FROM documents_fts
		WHERE documents_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := scanKey(rows, &r.Key, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
