package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/graphstore"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/nav"
	"github.com/starford/folio/internal/refgraph"
)

// Writer stores exported files under paths relative to the output root.
type Writer interface {
	WriteFile(rel string, content []byte) error
}

// Options tunes a static export.
type Options struct {
	URLPrefix      string
	TrailingHTML   bool
	Workers        int
	Graph          bool
	GraphSVG       bool
	Shuffle        bool
	GroupThreshold int
	MaxNodes       int
}

// Summary reports what an export pass wrote.
type Summary struct {
	RunID    string
	APIPages int
	Skipped  int
	Duration time.Duration
}

// Exporter renders every page of a store into a Writer.
type Exporter struct {
	store  graphstore.KeyedStore
	out    Writer
	opts   Options
	pages  *Pages
	logger *slog.Logger
}

// NewExporter creates an Exporter.
func NewExporter(store graphstore.KeyedStore, out Writer, opts Options, logger *slog.Logger) *Exporter {
	if opts.URLPrefix == "" {
		opts.URLPrefix = "/p/"
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	pages := &Pages{
		Store:          store,
		Prefix:         opts.URLPrefix,
		GroupThreshold: opts.GroupThreshold,
		Logger:         logger,
	}
	if opts.TrailingHTML {
		pages.Ext = ".html"
	}
	if opts.Graph {
		pages.Graphs = refgraph.NewBuilder(store, opts.MaxNodes, opts.URLPrefix, logger)
	}
	return &Exporter{store: store, out: out, opts: opts, pages: pages, logger: logger}
}

// Run exports the gallery, examples, index, assets, narrative docs and API
// pages, in that order. Undecodable documents are skipped; any other
// failure aborts the pass.
func (e *Exporter) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	sum := &Summary{RunID: uuid.NewString()}
	logger := e.logger.With(slog.String("run_id", sum.RunID))
	logger.Info("render: started")

	known, err := ScanKnownRefs(e.store, logger)
	if err != nil {
		return nil, fmt.Errorf("render: scan known refs: %w", err)
	}
	tree := nav.BuildTree(known.Names())

	releases, err := ModuleVersions(e.store)
	if err != nil {
		return nil, fmt.Errorf("render: list releases: %w", err)
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"gallery", func() error { return e.writeGalleries(releases) }},
		{"examples", func() error { return e.writeExamples(releases) }},
		{"index", func() error { return e.writeIndex(releases) }},
		{"assets", e.copyAssets},
		{"docs", func() error { return e.writeNarrative(releases) }},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.fn(); err != nil {
			return nil, fmt.Errorf("render: %s: %w", s.name, err)
		}
	}

	var svg *refgraph.SVGRenderer
	if e.opts.Graph && e.opts.GraphSVG {
		if svg, err = refgraph.NewSVGRenderer(ctx); err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		defer svg.Close()
	}

	written, skipped, err := e.writeAPI(ctx, known, tree, svg)
	if err != nil {
		return nil, err
	}
	sum.APIPages = written
	sum.Skipped = skipped + known.Skipped
	sum.Duration = time.Since(start)
	runDuration.Observe(sum.Duration.Seconds())

	logger.Info("render: finished",
		slog.Int("api_pages", sum.APIPages),
		slog.Int("skipped", sum.Skipped),
		slog.Duration("duration", sum.Duration),
	)
	return sum, nil
}

// writeAPI renders every known API page on a bounded worker pool. Job order
// is shuffled unless disabled. svg, when set, is shared by every job.
func (e *Exporter) writeAPI(ctx context.Context, known *KnownRefs, tree *nav.Tree, svg *refgraph.SVGRenderer) (int, int, error) {
	jobs := append([]models.Key(nil), known.Keys...)
	if e.opts.Shuffle {
		rand.Shuffle(len(jobs), func(i, j int) { jobs[i], jobs[j] = jobs[j], jobs[i] })
	}

	var written, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for _, key := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ok, err := e.renderAPI(gctx, key, tree, known.ByPath, svg)
			if err != nil {
				return err
			}
			if ok {
				written.Add(1)
			} else {
				skipped.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	return int(written.Load()), int(skipped.Load()), nil
}

// renderAPI writes the context of one API page. It reports false when the
// document was skipped.
func (e *Exporter) renderAPI(ctx context.Context, key models.Key, tree *nav.Tree, refMap map[string]models.RefInfo, svgr *refgraph.SVGRenderer) (bool, error) {
	pc, g, err := e.pages.API(key, nav.SiblingsFromTree(key.Path, tree, refMap))
	if errors.Is(err, apperr.ErrDecode) {
		e.pages.skipped(key, err)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if g != nil {
		graphNodes.Observe(float64(len(g.Nodes)))
		if svgr != nil {
			svg, err := svgr.Render(ctx, g)
			if err != nil {
				return false, fmt.Errorf("render: %s: %w", key.Path, err)
			}
			if err := e.out.WriteFile(pagePath(key, "api", ".svg"), svg); err != nil {
				return false, err
			}
		}
	}
	if err := e.writeJSON(pagePath(key, "api", ".json"), pc); err != nil {
		return false, err
	}
	pagesRendered.WithLabelValues("api").Inc()
	return true, nil
}

func (e *Exporter) writeGalleries(releases []ModuleVersion) error {
	for _, mv := range releases {
		page, err := e.pages.Gallery(mv, releases)
		if err != nil {
			return err
		}
		if err := e.writeJSON(path.Join(mv.Module, mv.Version, "gallery", "index.json"), page); err != nil {
			return err
		}
		pagesRendered.WithLabelValues("gallery").Inc()
	}
	return nil
}

func (e *Exporter) writeExamples(releases []ModuleVersion) error {
	keys, err := e.store.Glob(models.Glob("", "", models.KindExamples, ""))
	if err != nil {
		return err
	}
	for _, k := range keys {
		page, err := e.pages.Example(k, releases)
		if errors.Is(err, apperr.ErrDecode) {
			e.pages.skipped(k, err)
			continue
		}
		if err != nil {
			return err
		}
		if err := e.writeJSON(pagePath(k, "examples", ".json"), page); err != nil {
			return err
		}
		pagesRendered.WithLabelValues("examples").Inc()
	}
	return nil
}

func (e *Exporter) writeIndex(releases []ModuleVersion) error {
	entries, err := e.pages.Index(releases)
	if err != nil {
		return err
	}
	return e.writeJSON("index.json", entries)
}

func (e *Exporter) copyAssets() error {
	keys, err := e.store.Glob(models.Glob("", "", models.KindAssets, ""))
	if err != nil {
		return err
	}
	for _, k := range keys {
		data, err := e.store.Get(k)
		if err != nil {
			return err
		}
		if err := e.out.WriteFile(path.Join(k.Module, k.Version, "img", k.Path), data); err != nil {
			return err
		}
		pagesRendered.WithLabelValues("assets").Inc()
	}
	return nil
}

func (e *Exporter) writeNarrative(releases []ModuleVersion) error {
	keys, err := e.store.Glob(models.Glob("", "", models.KindDocs, ""))
	if err != nil {
		return err
	}
	var order []ModuleVersion
	tocs := make(map[ModuleVersion][]string)
	for _, k := range keys {
		mv := ModuleVersion{Module: k.Module, Version: k.Version}
		if _, ok := tocs[mv]; !ok {
			order = append(order, mv)
		}
		tocs[mv] = append(tocs[mv], k.Path)

		page, err := e.pages.Docs(k, releases)
		if errors.Is(err, apperr.ErrDecode) {
			e.pages.skipped(k, err)
			continue
		}
		if err != nil {
			return err
		}
		if err := e.writeJSON(pagePath(k, "docs", ".json"), page); err != nil {
			return err
		}
		pagesRendered.WithLabelValues("docs").Inc()
	}

	for _, mv := range order {
		page, err := e.pages.Toc(mv, tocs[mv])
		if err != nil {
			return err
		}
		if err := e.writeJSON(path.Join(mv.Module, mv.Version, "docs", "toc.json"), page); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) writeJSON(rel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("render: encode %s: %w", rel, err)
	}
	return e.out.WriteFile(rel, data)
}

func pagePath(k models.Key, dir, ext string) string {
	return path.Join(k.Module, k.Version, dir, k.Path+ext)
}
