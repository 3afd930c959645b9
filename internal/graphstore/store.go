// Package graphstore exposes the content tree and its reference index as a
// single keyed store.
package graphstore

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/codec"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

// KeyedStore is the read API the renderers consume.
type KeyedStore interface {
	// Glob returns every key matching p, sorted. Nil fields are wildcards.
	Glob(p models.Pattern) ([]models.Key, error)
	Get(k models.Key) ([]byte, error)
	// GetMeta returns the encoded metadata of (k.Module, k.Version).
	GetMeta(k models.Key) ([]byte, error)
	GetBackref(k models.Key) ([]models.Key, error)
	GetAll(k models.Key) (data []byte, backrefs, forwardrefs []models.Key, err error)
}

// Store implements KeyedStore over a content tree and its index.
type Store struct {
	blobs storage.Provider
	refs  index.RefIndex
}

var _ KeyedStore = (*Store)(nil)

// New creates a Store.
func New(blobs storage.Provider, refs index.RefIndex) *Store {
	return &Store{blobs: blobs, refs: refs}
}

// Glob returns the indexed keys matching p.
func (s *Store) Glob(p models.Pattern) ([]models.Key, error) {
	return s.refs.Glob(p)
}

// Get reads the blob stored under k.
func (s *Store) Get(k models.Key) ([]byte, error) {
	data, err := s.blobs.Read(k)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("graphstore: get %s: %w", k, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("graphstore: get %s: %w", k, err)
	}
	return data, nil
}

// GetMeta reads the metadata file of the key's module and version.
func (s *Store) GetMeta(k models.Key) ([]byte, error) {
	return s.Get(MetaKey(k.Module, k.Version))
}

// GetBackref returns the keys whose documents reference k.
func (s *Store) GetBackref(k models.Key) ([]models.Key, error) {
	return s.refs.Backrefs(k)
}

// GetAll returns the blob of k with its backrefs and forward refs.
func (s *Store) GetAll(k models.Key) ([]byte, []models.Key, []models.Key, error) {
	data, err := s.Get(k)
	if err != nil {
		return nil, nil, nil, err
	}
	back, err := s.refs.Backrefs(k)
	if err != nil {
		return nil, nil, nil, err
	}
	fwd, err := s.refs.Forwardrefs(k)
	if err != nil {
		return nil, nil, nil, err
	}
	return data, back, fwd, nil
}

// Forwardrefs returns the keys the document under k references.
func (s *Store) Forwardrefs(k models.Key) ([]models.Key, error) {
	return s.refs.Forwardrefs(k)
}

// MetaKey is the location of a (module, version) metadata file.
func MetaKey(module, version string) models.Key {
	return models.Key{Module: module, Version: version, Kind: models.KindMeta, Path: codec.MetaPath}
}
