// Package refgraph builds the bounded local reference graph of an entity.
package refgraph

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/starford/folio/internal/models"
)

// DefaultMaxNodes bounds the number of nodes of a graph.
const DefaultMaxNodes = 50

// BackrefSource answers which keys reference a key.
type BackrefSource interface {
	GetBackref(k models.Key) ([]models.Key, error)
}

// Node is one entity of the graph.
type Node struct {
	ID    int     `json:"id"`
	Val   float64 `json:"val"`
	Label string  `json:"label"`
	Mod   string  `json:"mod"`
	URL   *string `json:"url"`
}

// Link is a directed edge between two node ids. ID is the index of the raw
// edge it was emitted from.
type Link struct {
	Source int `json:"source"`
	Target int `json:"target"`
	ID     int `json:"id"`
}

// Graph is the wire shape consumed by force-directed renderers.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Builder computes graphs against a backref source.
type Builder struct {
	src       BackrefSource
	maxNodes  int
	urlPrefix string
	logger    *slog.Logger
}

// NewBuilder creates a Builder. maxNodes <= 0 selects DefaultMaxNodes and an
// empty urlPrefix selects "/p/".
func NewBuilder(src BackrefSource, maxNodes int, urlPrefix string, logger *slog.Logger) *Builder {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	if urlPrefix == "" {
		urlPrefix = "/p/"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{src: src, maxNodes: maxNodes, urlPrefix: urlPrefix, logger: logger}
}

type edge struct{ from, to string }

// Build expands backrefs and forwardrefs of focus by one hop, keeps the most
// referenced names and returns the resulting graph. The focus entity itself
// is never emitted as a node and no link touches it.
func (b *Builder) Build(backrefs, forwardrefs []models.Key, focus models.Key) (*Graph, error) {
	candidates := make([]models.Key, 0, len(backrefs)+len(forwardrefs))
	candidates = append(candidates, backrefs...)
	candidates = append(candidates, forwardrefs...)
	slices.SortFunc(candidates, models.Key.Compare)
	candidates = slices.Compact(candidates)

	known := make(map[models.Key]struct{}, len(candidates))
	for _, k := range candidates {
		known[k] = struct{}{}
	}

	// Several keys may share a path; candidates are sorted so the last key
	// in key order decides the weight.
	weights := make(map[string]int, len(candidates))
	var edges []edge
	for _, k := range candidates {
		neighbors, err := b.src.GetBackref(k)
		if err != nil {
			return nil, fmt.Errorf("refgraph: backrefs of %s: %w", k, err)
		}
		weights[k.Path] = len(neighbors)
		for _, o := range neighbors {
			known[o] = struct{}{}
			edges = append(edges, edge{from: k.Path, to: o.Path})
		}
	}

	weights = b.prune(weights)

	names := make([]string, 0, len(weights))
	for n := range weights {
		names = append(names, n)
	}
	slices.Sort(names)
	ids := make(map[string]int, len(names))
	for i, n := range names {
		ids[n] = i + 1
	}

	g := &Graph{Nodes: []Node{}, Links: []Link{}}
	for i, e := range edges {
		if e.from == e.to {
			continue
		}
		src, okFrom := ids[e.from]
		dst, okTo := ids[e.to]
		if !okFrom || !okTo {
			continue
		}
		if e.from == focus.Path || e.to == focus.Path {
			continue
		}
		g.Links = append(g.Links, Link{Source: src, Target: dst, ID: i})
	}

	urls := b.urls(known)
	for _, n := range names {
		if n == focus.Path {
			continue
		}
		node := Node{
			ID:    ids[n],
			Val:   8.0,
			Label: n,
			Mod:   models.TopLevel(n),
		}
		if w := weights[n]; w > 0 {
			node.Val = 8.0 + math.Sqrt(float64(w))
		}
		if u, ok := urls[n]; ok {
			node.URL = &u
		}
		g.Nodes = append(g.Nodes, node)
	}
	return g, nil
}

// prune drops the least referenced names, one distinct weight at a time,
// until at most maxNodes remain.
func (b *Builder) prune(weights map[string]int) map[string]int {
	if len(weights) <= b.maxNodes {
		return weights
	}
	before := len(weights)
	var levels []int
	for _, w := range weights {
		levels = append(levels, w)
	}
	slices.Sort(levels)
	levels = slices.Compact(levels)

	for _, thresh := range levels {
		for n, w := range weights {
			if w <= thresh {
				delete(weights, n)
			}
		}
		if len(weights) <= b.maxNodes {
			break
		}
	}
	b.logger.Debug("refgraph: pruned",
		slog.Int("before", before),
		slog.Int("after", len(weights)),
	)
	return weights
}

// urls picks, for every path, the greatest resolved key carrying it.
func (b *Builder) urls(known map[models.Key]struct{}) map[string]string {
	best := make(map[string]models.Key)
	for k := range known {
		if !k.Resolved() {
			continue
		}
		if cur, ok := best[k.Path]; !ok || k.Compare(cur) > 0 {
			best[k.Path] = k
		}
	}
	out := make(map[string]string, len(best))
	for p, k := range best {
		out[p] = models.InfoURL(k.Info(), b.urlPrefix, "")
	}
	return out
}
