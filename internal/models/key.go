// Package models defines the domain types for folio.
package models

import (
	"cmp"
	"fmt"
	"strings"
)

// Kind discriminates document categories stored under the same path namespace.
type Kind string

// Document kinds.
const (
	KindModule    Kind = "module"
	KindAPI       Kind = "api"
	KindExamples  Kind = "examples"
	KindAssets    Kind = "assets"
	KindDocs      Kind = "docs"
	KindMeta      Kind = "meta"
	KindToResolve Kind = "to-resolve"
	KindUnknown   Kind = "unknown"
)

// Kinds lists every known kind in declaration order.
var Kinds = []Kind{
	KindModule, KindAPI, KindExamples, KindAssets,
	KindDocs, KindMeta, KindToResolve, KindUnknown,
}

// ParseKind returns the Kind named s, or KindUnknown.
func ParseKind(s string) Kind {
	for _, k := range Kinds {
		if string(k) == s {
			return k
		}
	}
	return KindUnknown
}

// IsDocument reports whether documents of this kind are JSON blobs that
// carry forward references.
func (k Kind) IsDocument() bool {
	switch k {
	case KindModule, KindAPI, KindDocs, KindExamples:
		return true
	}
	return false
}

// Unresolved is the sentinel module/version/kind value of a reference to an
// entity the store does not know about.
const Unresolved = "?"

// Key uniquely identifies one stored entity.
type Key struct {
	Module  string `json:"module"`
	Version string `json:"version"`
	Kind    Kind   `json:"kind"`
	Path    string `json:"path"`
}

// Compare orders keys lexicographically on (module, version, kind, path).
func (k Key) Compare(o Key) int {
	if c := cmp.Compare(k.Module, o.Module); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Version, o.Version); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Kind, o.Kind); c != 0 {
		return c
	}
	return cmp.Compare(k.Path, o.Path)
}

// Resolved reports whether the key points at a known module and version.
func (k Key) Resolved() bool {
	return !isSentinel(k.Module) && !isSentinel(k.Version)
}

// Info returns the key as a reference value.
func (k Key) Info() RefInfo {
	return RefInfo(k)
}

// RelPath returns the slash-separated location of the key inside a content
// tree: module/version/kind/path.
func (k Key) RelPath() string {
	return strings.Join([]string{k.Module, k.Version, string(k.Kind), k.Path}, "/")
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Module, k.Version, k.Kind, k.Path)
}

// ParseRelPath is the inverse of Key.RelPath.
func ParseRelPath(rel string) (Key, error) {
	parts := strings.SplitN(rel, "/", 4)
	if len(parts) != 4 || parts[0] == "" || parts[1] == "" || parts[3] == "" {
		return Key{}, fmt.Errorf("models: not a module/version/kind/path location: %q", rel)
	}
	return Key{Module: parts[0], Version: parts[1], Kind: ParseKind(parts[2]), Path: parts[3]}, nil
}

// Pattern selects keys; nil fields match anything.
type Pattern struct {
	Module  *string
	Version *string
	Kind    *Kind
	Path    *string
}

// Match reports whether k satisfies the pattern.
func (p Pattern) Match(k Key) bool {
	return (p.Module == nil || *p.Module == k.Module) &&
		(p.Version == nil || *p.Version == k.Version) &&
		(p.Kind == nil || *p.Kind == k.Kind) &&
		(p.Path == nil || *p.Path == k.Path)
}

// Glob builds a pattern from optional values; empty strings are wildcards.
func Glob(module, version string, kind Kind, path string) Pattern {
	var p Pattern
	if module != "" {
		p.Module = &module
	}
	if version != "" {
		p.Version = &version
	}
	if kind != "" {
		p.Kind = &kind
	}
	if path != "" {
		p.Path = &path
	}
	return p
}

// Exact returns a pattern matching k and nothing else. Empty fields stay
// literal, unlike Glob.
func Exact(k Key) Pattern {
	return Pattern{Module: &k.Module, Version: &k.Version, Kind: &k.Kind, Path: &k.Path}
}

func isSentinel(s string) bool {
	return s == Unresolved || s == "??"
}
