package index

import "github.com/starford/folio/internal/models"

// RefIndex defines the interface for reference index operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type RefIndex interface {
	UpsertDocument(d DocumentRow, forwardrefs []models.Key) error
	DeleteDocument(key models.Key) error
	GetChecksum(key models.Key) (string, error)
	Glob(p models.Pattern) ([]models.Key, error)
	Backrefs(key models.Key) ([]models.Key, error)
	Forwardrefs(key models.Key) ([]models.Key, error)
	AllChecksums() (map[models.Key]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies RefIndex at compile time.
var _ RefIndex = (*DB)(nil)
