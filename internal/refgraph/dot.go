package refgraph

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-graphviz"
)

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// dotString quotes s as a DOT string. Only quote and backslash are escaped.
func dotString(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

// ToDOT converts a graph to Graphviz DOT. Node sizes follow Val and nodes
// with a URL become links.
func ToDOT(g *Graph) string {
	var buf bytes.Buffer
	buf.WriteString("digraph refs {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  overlap=false;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, fillcolor=\"#dde6f0\", fontsize=10, fixedsize=false];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes {
		fmt.Fprintf(&buf, "  n%d [label=%s, width=%.2f, tooltip=%s", n.ID, dotString(n.Label), n.Val/16, dotString(n.Mod))
		if n.URL != nil {
			fmt.Fprintf(&buf, ", URL=%s", dotString(*n.URL))
		}
		buf.WriteString("];\n")
	}

	buf.WriteString("\n")
	for _, l := range g.Links {
		fmt.Fprintf(&buf, "  n%d -> n%d;\n", l.Source, l.Target)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// SVGRenderer lays out graphs with one Graphviz instance. Calls are
// serialised; Close releases the instance.
type SVGRenderer struct {
	mu sync.Mutex
	gv *graphviz.Graphviz
}

// NewSVGRenderer starts a Graphviz instance.
func NewSVGRenderer(ctx context.Context) (*SVGRenderer, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("refgraph: init graphviz: %w", err)
	}
	return &SVGRenderer{gv: gv}, nil
}

// Render returns the SVG of g.
func (r *SVGRenderer) Render(ctx context.Context, g *Graph) ([]byte, error) {
	parsed, err := graphviz.ParseBytes([]byte(ToDOT(g)))
	if err != nil {
		return nil, fmt.Errorf("refgraph: parse dot: %w", err)
	}
	defer parsed.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	var buf bytes.Buffer
	if err := r.gv.Render(ctx, parsed, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("refgraph: render svg: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *SVGRenderer) Close() error {
	return r.gv.Close()
}

// RenderSVG lays out a single graph with a throwaway Graphviz instance.
func RenderSVG(ctx context.Context, g *Graph) ([]byte, error) {
	r, err := NewSVGRenderer(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Render(ctx, g)
}
