// Package docservice answers single-entity lookups for the live surfaces
// (HTTP and MCP).
package docservice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/graphstore"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/nav"
	"github.com/starford/folio/internal/refgraph"
	"github.com/starford/folio/internal/render"
)

// Options configures link generation and graph bounds.
type Options struct {
	URLPrefix      string
	MaxNodes       int
	GroupThreshold int
}

// Service coordinates the keyed store and the index.
type Service struct {
	store  *graphstore.Store
	db     index.RefIndex
	graphs *refgraph.Builder
	pages  *render.Pages
	logger *slog.Logger
}

// NewService creates a new document service.
func NewService(store *graphstore.Store, db index.RefIndex, opts Options, logger *slog.Logger) *Service {
	if opts.URLPrefix == "" {
		opts.URLPrefix = "/p/"
	}
	graphs := refgraph.NewBuilder(store, opts.MaxNodes, opts.URLPrefix, logger)
	return &Service{
		store:  store,
		db:     db,
		graphs: graphs,
		pages: &render.Pages{
			Store:          store,
			Prefix:         opts.URLPrefix,
			Graphs:         graphs,
			GroupThreshold: opts.GroupThreshold,
			Logger:         logger,
		},
		logger: logger,
	}
}

// Modules lists every release with its logo.
func (s *Service) Modules(_ context.Context) ([]render.IndexEntry, error) {
	releases, err := render.ModuleVersions(s.store)
	if err != nil {
		return nil, err
	}
	return s.pages.Index(releases)
}

// Versions returns the known versions of module, oldest first.
func (s *Service) Versions(_ context.Context, module string) ([]string, error) {
	releases, err := render.ModuleVersions(s.store)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, mv := range releases {
		if mv.Module == module {
			out = append(out, mv.Version)
		}
	}
	return out, nil
}

// ResolveVersion maps "*" or "" to a concrete version of module. With
// strict set, a module with several versions is ambiguous; otherwise the
// greatest version wins.
func (s *Service) ResolveVersion(ctx context.Context, module, version string, strict bool) (string, error) {
	if version != "" && version != "*" {
		return version, nil
	}
	versions, err := s.Versions(ctx, module)
	if err != nil {
		return "", err
	}
	switch {
	case len(versions) == 0:
		return "", fmt.Errorf("docservice: module %q: %w", module, apperr.ErrNotFound)
	case len(versions) > 1 && strict:
		return "", fmt.Errorf("docservice: module %q has versions %s: %w",
			module, strings.Join(versions, ", "), apperr.ErrAmbiguousVersion)
	}
	return slices.Max(versions), nil
}

// APIPage assembles the page of an API entity. Navigation is computed
// against the latest version of every module.
func (s *Service) APIPage(ctx context.Context, module, version, ref string) (*render.Context, error) {
	key := models.Key{Module: module, Version: version, Kind: models.KindModule, Path: ref}
	if err := s.exists(key); err != nil {
		return nil, err
	}
	siblings, err := s.Siblings(ctx, ref)
	if err != nil {
		return nil, err
	}
	pc, _, err := s.pages.API(key, siblings)
	return pc, err
}

// Siblings computes single-lookup navigation for ref.
func (s *Service) Siblings(_ context.Context, ref string) (nav.Siblings, error) {
	keys, err := s.store.Glob(models.Glob("", "", models.KindModule, ""))
	if err != nil {
		return nil, err
	}
	family := make([]models.RefInfo, len(keys))
	for i, k := range keys {
		family[i] = k.Info()
	}
	return nav.ComputeSiblings(ref, family), nil
}

// Graph builds the local reference graph of an API entity.
func (s *Service) Graph(_ context.Context, module, version, ref string) (*refgraph.Graph, error) {
	key := models.Key{Module: module, Version: version, Kind: models.KindModule, Path: ref}
	if err := s.exists(key); err != nil {
		return nil, err
	}
	_, back, fwd, err := s.store.GetAll(key)
	if err != nil {
		return nil, err
	}
	return s.graphs.Build(back, fwd, key)
}

// Backrefs returns the keys referencing key.
func (s *Service) Backrefs(_ context.Context, key models.Key) ([]models.Key, error) {
	if err := s.exists(key); err != nil {
		return nil, err
	}
	return s.store.GetBackref(key)
}

// DocsPage builds the page of a narrative document.
func (s *Service) DocsPage(_ context.Context, module, version, path string) (*render.Page, error) {
	key := models.Key{Module: module, Version: version, Kind: models.KindDocs, Path: path}
	if err := s.exists(key); err != nil {
		return nil, err
	}
	releases, err := render.ModuleVersions(s.store)
	if err != nil {
		return nil, err
	}
	return s.pages.Docs(key, releases)
}

// ExamplePage builds the page of an example.
func (s *Service) ExamplePage(_ context.Context, module, version, path string) (*render.Page, error) {
	key := models.Key{Module: module, Version: version, Kind: models.KindExamples, Path: path}
	if err := s.exists(key); err != nil {
		return nil, err
	}
	releases, err := render.ModuleVersions(s.store)
	if err != nil {
		return nil, err
	}
	return s.pages.Example(key, releases)
}

// GalleryPage builds the figure gallery of a release.
func (s *Service) GalleryPage(ctx context.Context, module, version string) (*render.Page, error) {
	versions, err := s.Versions(ctx, module)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(versions, version) {
		return nil, fmt.Errorf("docservice: %s/%s: %w", module, version, apperr.ErrNotFound)
	}
	releases, err := render.ModuleVersions(s.store)
	if err != nil {
		return nil, err
	}
	return s.pages.Gallery(render.ModuleVersion{Module: module, Version: version}, releases)
}

// Asset returns the bytes of an image asset.
func (s *Service) Asset(_ context.Context, module, version, path string) ([]byte, error) {
	return s.store.Get(models.Key{Module: module, Version: version, Kind: models.KindAssets, Path: path})
}

// Read returns the raw stored document of key.
func (s *Service) Read(_ context.Context, key models.Key) ([]byte, error) {
	return s.store.Get(key)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.db.Search(query, limit)
}

// exists reports apperr.ErrNotFound for keys the index does not know.
func (s *Service) exists(key models.Key) error {
	hits, err := s.store.Glob(models.Exact(key))
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		return fmt.Errorf("docservice: %s: %w", key, apperr.ErrNotFound)
	}
	return nil
}
