// Package storage defines the content tree abstraction: one blob per key,
// laid out as module/version/kind/path under a root directory.
package storage

import "github.com/starford/folio/internal/models"

// Provider is the interface for content tree operations.
type Provider interface {
	// List returns metadata for every blob in the tree.
	List() ([]models.BlobMeta, error)
	// Read returns the raw bytes stored under key.
	Read(key models.Key) ([]byte, error)
	// Write atomically stores content under key.
	Write(key models.Key, content []byte) error
}
