// Package integrity reports reference-index inconsistencies. It never
// repairs them.
package integrity

import (
	"fmt"
	"slices"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/starford/folio/internal/models"
)

// falsePositiveRate of the known-key prefilter.
const falsePositiveRate = 0.001

// RefSource is the read API the checks run against.
type RefSource interface {
	Glob(p models.Pattern) ([]models.Key, error)
	GetBackref(k models.Key) ([]models.Key, error)
	Forwardrefs(k models.Key) ([]models.Key, error)
}

// Violation is one inconsistent (source, target) reference.
type Violation struct {
	Source models.Key `json:"source"`
	Target models.Key `json:"target"`
	Reason string     `json:"reason"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s -> %s: %s", v.Source, v.Target, v.Reason)
}

// Reasons.
const (
	MissingForward = "backref without matching forward ref"
	MissingBack    = "forward ref without matching backref"
	Dangling       = "target is not a known key"
)

// CheckTranspose verifies that B is a backref of A exactly when A is a
// forward ref of B, for every known key.
func CheckTranspose(src RefSource) ([]Violation, error) {
	keys, err := src.Glob(models.Pattern{})
	if err != nil {
		return nil, fmt.Errorf("integrity: glob: %w", err)
	}
	var out []Violation
	for _, a := range keys {
		back, err := src.GetBackref(a)
		if err != nil {
			return nil, fmt.Errorf("integrity: backrefs of %s: %w", a, err)
		}
		for _, b := range back {
			fwd, err := src.Forwardrefs(b)
			if err != nil {
				return nil, fmt.Errorf("integrity: forward refs of %s: %w", b, err)
			}
			if !slices.Contains(fwd, a) {
				out = append(out, Violation{Source: b, Target: a, Reason: MissingForward})
			}
		}

		fwd, err := src.Forwardrefs(a)
		if err != nil {
			return nil, fmt.Errorf("integrity: forward refs of %s: %w", a, err)
		}
		for _, b := range fwd {
			bb, err := src.GetBackref(b)
			if err != nil {
				return nil, fmt.Errorf("integrity: backrefs of %s: %w", b, err)
			}
			if !slices.Contains(bb, a) {
				out = append(out, Violation{Source: a, Target: b, Reason: MissingBack})
			}
		}
	}
	return out, nil
}

// DanglingRefs reports forward refs whose target is not a known key. Known
// keys are loaded into a Bloom filter; only targets the filter may contain
// are looked up exactly.
func DanglingRefs(src RefSource) ([]Violation, error) {
	keys, err := src.Glob(models.Pattern{})
	if err != nil {
		return nil, fmt.Errorf("integrity: glob: %w", err)
	}
	known := bloom.NewWithEstimates(uint(max(len(keys), 1)), falsePositiveRate)
	for _, k := range keys {
		known.AddString(k.String())
	}

	var out []Violation
	for _, a := range keys {
		fwd, err := src.Forwardrefs(a)
		if err != nil {
			return nil, fmt.Errorf("integrity: forward refs of %s: %w", a, err)
		}
		for _, b := range fwd {
			if known.TestString(b.String()) {
				hits, err := src.Glob(models.Exact(b))
				if err != nil {
					return nil, fmt.Errorf("integrity: lookup %s: %w", b, err)
				}
				if len(hits) > 0 {
					continue
				}
			}
			out = append(out, Violation{Source: a, Target: b, Reason: Dangling})
		}
	}
	return out, nil
}
