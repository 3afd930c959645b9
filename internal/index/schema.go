// Package index provides the SQLite-backed reference index: every known key,
// its forward references, and optional FTS5 search over titles and summaries.
package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	module   TEXT NOT NULL,
	version  TEXT NOT NULL,
	kind     TEXT NOT NULL,
	path     TEXT NOT NULL,
	title    TEXT NOT NULL DEFAULT '',
	summary  TEXT NOT NULL DEFAULT '',
	checksum TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (module, version, kind, path)
);

CREATE TABLE IF NOT EXISTS refs (
	src_module  TEXT NOT NULL,
	src_version TEXT NOT NULL,
	src_kind    TEXT NOT NULL,
	src_path    TEXT NOT NULL,
	dst_module  TEXT NOT NULL,
	dst_version TEXT NOT NULL,
	dst_kind    TEXT NOT NULL,
	dst_path    TEXT NOT NULL,
	UNIQUE(src_module, src_version, src_kind, src_path, dst_module, dst_version, dst_kind, dst_path)
);

CREATE INDEX IF NOT EXISTS idx_refs_src ON refs(src_module, src_version, src_kind, src_path);
CREATE INDEX IF NOT EXISTS idx_refs_dst ON refs(dst_module, dst_version, dst_kind, dst_path);
CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
