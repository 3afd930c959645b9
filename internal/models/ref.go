package models

import (
	"encoding/json"
	"strings"
)

// RefInfo is a reference to another entity. It has the shape of a Key but
// denotes a link target rather than a storage location.
type RefInfo struct {
	Module  string `json:"module"`
	Version string `json:"version"`
	Kind    Kind   `json:"kind"`
	Path    string `json:"path"`
}

// Key returns the storage key the reference points at.
func (r RefInfo) Key() Key {
	return Key(r)
}

// Resolved reports whether module and version are known.
func (r RefInfo) Resolved() bool {
	return r.Key().Resolved()
}

// Ref is either a resolved reference or the bare path of an entity the
// store could not resolve. The zero value is an unresolved empty path.
type Ref struct {
	info     RefInfo
	resolved bool
}

// ResolvedRef wraps a known reference.
func ResolvedRef(info RefInfo) Ref {
	return Ref{info: info, resolved: true}
}

// UnresolvedRef records a path that could not be resolved to an entity.
func UnresolvedRef(path string) Ref {
	return Ref{info: RefInfo{Path: path}}
}

// Info returns the reference and whether it is resolved.
func (r Ref) Info() (RefInfo, bool) {
	return r.info, r.resolved
}

// Path returns the dotted path in both cases.
func (r Ref) Path() string {
	return r.info.Path
}

// IsResolved reports whether the reference carries a module and version.
func (r Ref) IsResolved() bool {
	return r.resolved
}

// MarshalJSON writes unresolved references with "?" module, version and
// kind so renderers keep a uniform shape.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.resolved {
		return json.Marshal(r.info)
	}
	return json.Marshal(RefInfo{Module: Unresolved, Version: Unresolved, Kind: Unresolved, Path: r.info.Path})
}

// UnmarshalJSON accepts the shape written by MarshalJSON.
func (r *Ref) UnmarshalJSON(data []byte) error {
	var info RefInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return err
	}
	if info.Resolved() && info.Kind != Unresolved {
		*r = ResolvedRef(info)
		return nil
	}
	*r = UnresolvedRef(info.Path)
	return nil
}

// URL returns the link target of a resolved reference under prefix. suffix
// is appended for kinds other than module and examples. Unresolved
// references have no URL.
func URL(r Ref, prefix, suffix string) (string, bool) {
	info, ok := r.Info()
	if !ok {
		return "", false
	}
	return InfoURL(info, prefix, suffix), true
}

// InfoURL formats the link target of info: module pages live under api/.
func InfoURL(info RefInfo, prefix, suffix string) string {
	base := prefix + info.Module + "/" + info.Version + "/"
	switch info.Kind {
	case KindModule:
		return base + "api/" + info.Path
	case KindExamples:
		return base + "examples/" + info.Path
	default:
		return base + string(info.Kind) + "/" + info.Path + suffix
	}
}

// TopLevel returns the first dotted segment of a qualified name.
func TopLevel(name string) string {
	head, _, _ := strings.Cut(name, ".")
	return head
}

// LastSegment returns the last dotted segment of a qualified name.
func LastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
