package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/codec"
	"github.com/starford/folio/internal/graphstore"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/nav"
	"github.com/starford/folio/internal/refgraph"
)

// Page is the context of a page that is not an API entity: narrative docs,
// examples, tables of contents and galleries.
type Page struct {
	CurrentType string                     `json:"current_type"`
	Module      string                     `json:"module"`
	Version     string                     `json:"version"`
	Logo        *string                    `json:"logo"`
	Path        string                     `json:"path,omitempty"`
	Doc         models.DocView             `json:"doc"`
	Document    *models.Document           `json:"document,omitempty"`
	Example     *models.Section            `json:"example,omitempty"`
	Backrefs    []models.RefInfo           `json:"backrefs,omitempty"`
	Figures     map[string][]models.Figure `json:"figures,omitempty"`
	Toc         []string                   `json:"toc,omitempty"`
	Siblings    nav.Siblings               `json:"siblings"`
	Meta        map[string]any             `json:"meta"`
	Ext         string                     `json:"ext"`
}

// IndexEntry is one (module, version) of the corpus index.
type IndexEntry struct {
	Module  string  `json:"module"`
	Version string  `json:"version"`
	Logo    *string `json:"logo"`
}

// ModuleVersion names one documented release.
type ModuleVersion struct {
	Module  string
	Version string
}

// ModuleVersions returns the distinct (module, version) pairs of the store,
// sorted.
func ModuleVersions(store graphstore.KeyedStore) ([]ModuleVersion, error) {
	keys, err := store.Glob(models.Pattern{})
	if err != nil {
		return nil, err
	}
	var out []ModuleVersion
	for _, k := range keys {
		mv := ModuleVersion{Module: k.Module, Version: k.Version}
		if len(out) == 0 || out[len(out)-1] != mv {
			out = append(out, mv)
		}
	}
	return out, nil
}

// ModulesLevel is the navigation shown on pages outside the API hierarchy:
// one level listing the top-level page of every release.
func ModulesLevel(current string, releases []ModuleVersion) nav.Siblings {
	lvl := nav.Level{Segment: current, Siblings: make([]nav.Sibling, 0, len(releases))}
	for _, mv := range releases {
		ref := models.ResolvedRef(models.RefInfo{Module: mv.Module, Version: mv.Version, Kind: models.KindAPI, Path: mv.Module})
		lvl.Siblings = append(lvl.Siblings, nav.Sibling{Ref: ref, Name: mv.Module})
	}
	return nav.Siblings{lvl}
}

// LoadMeta decodes the metadata of (module, version). A release without a
// metadata file gets an empty mapping.
func LoadMeta(store graphstore.KeyedStore, module, version string) (map[string]any, error) {
	data, err := store.Get(graphstore.MetaKey(module, version))
	if errors.Is(err, apperr.ErrNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	return codec.DecodeMeta(data)
}

// Logo returns the logo of a metadata mapping, if any.
func Logo(meta map[string]any) *string {
	if l, ok := meta["logo"].(string); ok && l != "" {
		return &l
	}
	return nil
}

// Pages builds page contexts from a store. It is shared by the static
// exporter and the live server.
type Pages struct {
	Store  graphstore.KeyedStore
	Prefix string
	Ext    string
	// Graphs builds reference graphs; nil disables them.
	Graphs         *refgraph.Builder
	GroupThreshold int
	Logger         *slog.Logger
}

// API assembles the page of an API entity with the given navigation. The
// graph is nil when graphs are disabled. Undecodable documents yield an
// error wrapping apperr.ErrDecode.
func (p *Pages) API(key models.Key, siblings nav.Siblings) (*Context, *refgraph.Graph, error) {
	data, back, fwd, err := p.Store.GetAll(key)
	if err != nil {
		return nil, nil, fmt.Errorf("render: %s: %w", key.Path, err)
	}
	doc, err := codec.DecodeDocument(data)
	if err != nil {
		return nil, nil, fmt.Errorf("render: %s: %w", key.Path, err)
	}

	var g *refgraph.Graph
	var raw json.RawMessage
	if p.Graphs != nil {
		if g, err = p.Graphs.Build(back, fwd, key); err != nil {
			return nil, nil, fmt.Errorf("render: %s: %w", key.Path, err)
		}
		if raw, err = json.Marshal(g); err != nil {
			return nil, nil, fmt.Errorf("render: %s: %w", key.Path, err)
		}
	}

	metaData, err := p.Store.GetMeta(key)
	if err != nil {
		return nil, nil, fmt.Errorf("render: %s: %w", key.Path, err)
	}
	meta, err := codec.DecodeMeta(metaData)
	if err != nil {
		// not a skippable document failure: the whole release is broken
		return nil, nil, fmt.Errorf("render: %s: metadata: %v", key.Path, err)
	}

	pc, err := Assemble(Input{
		CurrentType:    "api",
		Doc:            doc,
		QualifiedName:  key.Path,
		Siblings:       siblings,
		Breadcrumbs:    nav.BreadcrumbLinks(siblings),
		Backrefs:       refInfos(back),
		Graph:          raw,
		Meta:           meta,
		Ext:            p.Ext,
		GroupThreshold: p.GroupThreshold,
	})
	if err != nil {
		return nil, nil, err
	}
	return pc, g, nil
}

// Docs builds the page of a narrative document.
func (p *Pages) Docs(k models.Key, releases []ModuleVersion) (*Page, error) {
	data, err := p.Store.Get(k)
	if err != nil {
		return nil, err
	}
	doc, err := codec.DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("render: %s: %w", k, err)
	}
	back, err := p.Store.GetBackref(k)
	if err != nil {
		return nil, err
	}
	page, err := p.page("docs", k.Module, k.Version, releases)
	if err != nil {
		return nil, err
	}
	page.Path = k.Path
	page.Doc = doc.View()
	page.Document = doc
	page.Backrefs = refInfos(back)
	return page, nil
}

// Example builds the page of an example.
func (p *Pages) Example(k models.Key, releases []ModuleVersion) (*Page, error) {
	data, err := p.Store.Get(k)
	if err != nil {
		return nil, err
	}
	sec, err := codec.DecodeSection(data)
	if err != nil {
		return nil, fmt.Errorf("render: %s: %w", k, err)
	}
	page, err := p.page("examples", k.Module, k.Version, releases)
	if err != nil {
		return nil, err
	}
	page.Path = k.Path
	page.Doc.Title = k.Path
	page.Example = sec
	return page, nil
}

// Toc builds the table of contents of a release's narrative docs.
func (p *Pages) Toc(mv ModuleVersion, paths []string) (*Page, error) {
	page, err := p.page("toc", mv.Module, mv.Version, nil)
	if err != nil {
		return nil, err
	}
	page.Doc.Title = mv.Module + " documentation"
	page.Toc = paths
	return page, nil
}

// Gallery builds the figure gallery of a release.
func (p *Pages) Gallery(mv ModuleVersion, releases []ModuleVersion) (*Page, error) {
	figmap, err := p.figures(mv)
	if err != nil {
		return nil, err
	}
	page, err := p.page("gallery", mv.Module, mv.Version, releases)
	if err != nil {
		return nil, err
	}
	page.Doc.Title = mv.Module + " gallery"
	page.Figures = figmap
	return page, nil
}

// Index lists every release with its logo.
func (p *Pages) Index(releases []ModuleVersion) ([]IndexEntry, error) {
	entries := make([]IndexEntry, 0, len(releases))
	for _, mv := range releases {
		meta, err := LoadMeta(p.Store, mv.Module, mv.Version)
		if err != nil {
			return nil, err
		}
		entries = append(entries, IndexEntry{Module: mv.Module, Version: mv.Version, Logo: Logo(meta)})
	}
	return entries, nil
}

func (p *Pages) page(kind, module, version string, releases []ModuleVersion) (*Page, error) {
	meta, err := LoadMeta(p.Store, module, version)
	if err != nil {
		return nil, err
	}
	siblings := nav.Siblings{}
	if releases != nil {
		siblings = ModulesLevel(module, releases)
	}
	return &Page{
		CurrentType: kind,
		Module:      module,
		Version:     version,
		Logo:        Logo(meta),
		Doc:         models.DocView{Children: []models.Section{}},
		Siblings:    siblings,
		Meta:        meta,
		Ext:         p.Ext,
	}, nil
}

// figures collects the figures of a release: figures shown by API pages
// that reference one of its assets, and figures of its examples. Figures
// are grouped by the module of the page showing them.
func (p *Pages) figures(mv ModuleVersion) (map[string][]models.Figure, error) {
	assets, err := p.Store.Glob(models.Glob(mv.Module, mv.Version, models.KindAssets, ""))
	if err != nil {
		return nil, err
	}
	var showing []models.Key
	for _, a := range assets {
		brs, err := p.Store.GetBackref(a)
		if err != nil {
			return nil, err
		}
		showing = append(showing, brs...)
	}
	slices.SortFunc(showing, models.Key.Compare)
	showing = slices.Compact(showing)

	figmap := make(map[string][]models.Figure)
	for _, k := range showing {
		if k.Kind == models.KindExamples {
			continue
		}
		doc, ok := p.decodeDoc(k)
		if !ok {
			continue
		}
		link := models.InfoURL(models.RefInfo{Module: k.Module, Version: k.Version, Kind: models.KindModule, Path: k.Path}, p.Prefix, p.Ext)
		for _, f := range documentFigures(doc) {
			figmap[k.Module] = append(figmap[k.Module], models.Figure{Image: p.imageURL(f), Link: link, Name: k.Path})
		}
	}

	examples, err := p.Store.Glob(models.Glob(mv.Module, mv.Version, models.KindExamples, ""))
	if err != nil {
		return nil, err
	}
	for _, k := range examples {
		data, err := p.Store.Get(k)
		if err != nil {
			return nil, err
		}
		sec, err := codec.DecodeSection(data)
		if err != nil {
			p.skipped(k, err)
			continue
		}
		link := models.InfoURL(models.RefInfo{Module: k.Module, Version: k.Version, Kind: models.KindExamples, Path: k.Path}, p.Prefix, p.Ext)
		for _, f := range sectionFigures(sec) {
			figmap[k.Module] = append(figmap[k.Module], models.Figure{Image: p.imageURL(f), Link: link, Name: k.Path})
		}
	}
	return figmap, nil
}

func (p *Pages) imageURL(f models.RefInfo) string {
	return p.Prefix + f.Module + "/" + f.Version + "/img/" + f.Path
}

func (p *Pages) decodeDoc(k models.Key) (*models.Document, bool) {
	data, err := p.Store.Get(k)
	if err == nil {
		var doc *models.Document
		if doc, err = codec.DecodeDocument(data); err == nil {
			return doc, true
		}
	}
	p.skipped(k, err)
	return nil, false
}

func (p *Pages) skipped(k models.Key, err error) {
	p.logger().Warn("render: skipped undecodable document",
		slog.String("key", k.String()),
		slog.String("error", err.Error()),
	)
	pagesSkipped.WithLabelValues(string(k.Kind)).Inc()
}

func (p *Pages) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func documentFigures(doc *models.Document) []models.RefInfo {
	out := slices.Clone(doc.Figures)
	for i := range doc.Sections {
		out = append(out, sectionFigures(&doc.Sections[i])...)
	}
	return out
}

func sectionFigures(sec *models.Section) []models.RefInfo {
	out := slices.Clone(sec.Figures)
	for i := range sec.Children {
		out = append(out, sectionFigures(&sec.Children[i])...)
	}
	return out
}

func refInfos(keys []models.Key) []models.RefInfo {
	out := make([]models.RefInfo, len(keys))
	for i, k := range keys {
		out[i] = k.Info()
	}
	return out
}
