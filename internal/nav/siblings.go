package nav

import (
	"slices"
	"strings"

	"github.com/starford/folio/internal/models"
)

// Below is the synthetic trailing segment whose level lists the children of
// the full path.
const Below = "+"

// Sibling is one navigable entry of a level.
type Sibling struct {
	Ref  models.Ref `json:"ref"`
	Name string     `json:"name"`
}

// Level holds the siblings shown for one segment of a qualified name.
type Level struct {
	Segment  string    `json:"segment"`
	Siblings []Sibling `json:"siblings"`
}

// Siblings lists levels from root to leaf. Levels are kept in a slice so a
// segment repeated along the path (np.linalg.linalg) keeps its own level.
type Siblings []Level

// Segments returns the level segments in order.
func (s Siblings) Segments() []string {
	out := make([]string, len(s))
	for i, l := range s {
		out[i] = l.Segment
	}
	return out
}

// Breadcrumb is one ancestor link of a qualified name.
type Breadcrumb struct {
	Segment string `json:"segment"`
	Link    string `json:"link"`
}

// ComputeSiblings resolves navigation for ref against family, considering
// only the latest version of every module. It costs a pass over family per
// level and suits one-off lookups.
func ComputeSiblings(ref string, family []models.RefInfo) Siblings {
	latest := make(map[string]string)
	for _, f := range family {
		if v, ok := latest[f.Module]; !ok || f.Version > v {
			latest[f.Module] = f.Version
		}
	}
	var current []models.RefInfo
	for _, f := range family {
		if f.Version == latest[f.Module] {
			current = append(current, f)
		}
	}

	parts := append(strings.Split(ref, "."), Below)
	out := make(Siblings, 0, len(parts))
	cpath := ""
	for i, part := range parts {
		seen := make(map[models.RefInfo]struct{})
		var sib []models.RefInfo
		for _, c := range current {
			if !strings.HasPrefix(c.Path, cpath) || !strings.Contains(c.Path, ".") {
				continue
			}
			t := models.RefInfo{
				Module:  c.Module,
				Version: c.Version,
				Kind:    models.KindAPI,
				Path:    truncate(c.Path, i+1),
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			sib = append(sib, t)
		}
		slices.SortFunc(sib, func(a, b models.RefInfo) int {
			if c := strings.Compare(a.Path, b.Path); c != 0 {
				return c
			}
			return a.Key().Compare(b.Key())
		})

		lvl := Level{Segment: part, Siblings: make([]Sibling, 0, len(sib))}
		for _, s := range sib {
			lvl.Siblings = append(lvl.Siblings, Sibling{Ref: models.ResolvedRef(s), Name: models.LastSegment(s.Path)})
		}
		out = append(out, lvl)
		cpath += part + "."
	}

	if last := out[len(out)-1]; len(last.Siblings) == 0 {
		out = out[:len(out)-1]
	}
	return out
}

// SiblingsFromTree resolves navigation for ref from a prebuilt tree. Sibling
// paths missing from refMap become unresolved refs. Unlike ComputeSiblings
// it does not filter by version: refMap decides which entity a path maps to.
func SiblingsFromTree(ref string, tree *Tree, refMap map[string]models.RefInfo) Siblings {
	parts := append(strings.Split(ref, "."), Below)
	out := make(Siblings, 0, len(parts))
	var prefix []string
	for _, part := range parts {
		children := tree.Children(prefix)
		children = slices.DeleteFunc(children, func(s string) bool { return s == Below })
		if len(children) == 0 {
			break
		}

		lvl := Level{Segment: part, Siblings: make([]Sibling, 0, len(children))}
		for _, c := range children {
			path := strings.Join(append(slices.Clone(prefix), c), ".")
			r := models.UnresolvedRef(path)
			if info, ok := refMap[path]; ok {
				r = models.ResolvedRef(info)
			}
			lvl.Siblings = append(lvl.Siblings, Sibling{Ref: r, Name: c})
		}
		out = append(out, lvl)
		prefix = append(prefix, part)
	}
	return out
}

// BreadcrumbLinks returns the running dotted prefix of every level. The
// trailing children level is not an ancestor and gets no link.
func BreadcrumbLinks(s Siblings) []Breadcrumb {
	out := make([]Breadcrumb, 0, len(s))
	var acc []string
	for i, l := range s {
		if i == len(s)-1 && l.Segment == Below {
			break
		}
		acc = append(acc, l.Segment)
		out = append(out, Breadcrumb{Segment: l.Segment, Link: strings.Join(acc, ".")})
	}
	return out
}

func truncate(path string, n int) string {
	parts := strings.Split(path, ".")
	if len(parts) > n {
		parts = parts[:n]
	}
	return strings.Join(parts, ".")
}
