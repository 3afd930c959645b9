// Package nav computes hierarchical navigation (siblings at every depth and
// breadcrumb links) from dotted qualified names.
package nav

import (
	"slices"
	"strings"
)

// Tree is a prefix tree over dotted name segments. It stores no payload:
// only the existence of a segment under a prefix. A Tree is never mutated
// after BuildTree returns, so concurrent readers need no locking.
type Tree struct {
	root *node
}

type node struct {
	children map[string]*node
}

func (n *node) child(seg string) *node {
	if n == nil {
		return nil
	}
	return n.children[seg]
}

// BuildTree inserts every name segment by segment.
func BuildTree(names []string) *Tree {
	root := &node{children: map[string]*node{}}
	for _, name := range names {
		cur := root
		for _, seg := range strings.Split(name, ".") {
			next, ok := cur.children[seg]
			if !ok {
				next = &node{children: map[string]*node{}}
				cur.children[seg] = next
			}
			cur = next
		}
	}
	return &Tree{root: root}
}

func (t *Tree) lookup(prefix []string) *node {
	cur := t.root
	for _, seg := range prefix {
		cur = cur.child(seg)
	}
	return cur
}

// Children returns the sorted segments one level below prefix. An unknown
// prefix has no children.
func (t *Tree) Children(prefix []string) []string {
	n := t.lookup(prefix)
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.children))
	for seg := range n.children {
		out = append(out, seg)
	}
	slices.Sort(out)
	return out
}

// Has reports whether name, or a longer name it prefixes, was inserted.
func (t *Tree) Has(name string) bool {
	return t.lookup(strings.Split(name, ".")) != nil
}
