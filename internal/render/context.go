// Package render assembles render-ready page contexts and exports the whole
// corpus as static JSON pages.
package render

import (
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/nav"
)

// DefaultGroupThreshold is the backref count above which backrefs are
// grouped by top-level module.
const DefaultGroupThreshold = 30

// Input carries everything known about one entity before assembly.
type Input struct {
	CurrentType   string
	Doc           *models.Document
	QualifiedName string
	Siblings      nav.Siblings
	Breadcrumbs   []nav.Breadcrumb
	Backrefs      []models.RefInfo
	Graph         json.RawMessage
	Meta          map[string]any
	// Ext is appended to generated links of kinds other than api and
	// examples (".html" for static sites).
	Ext string
	// GroupThreshold overrides DefaultGroupThreshold when positive.
	GroupThreshold int
}

// Context is the render-ready page of one entity. Exactly one of Backrefs
// and GroupedBackrefs is populated when the entity has backrefs.
type Context struct {
	CurrentType     string                      `json:"current_type"`
	QualifiedName   string                      `json:"qa"`
	Module          string                      `json:"module"`
	Version         string                      `json:"version"`
	Logo            *string                     `json:"logo"`
	Doc             *models.Document            `json:"doc"`
	Siblings        nav.Siblings                `json:"siblings"`
	Breadcrumbs     []nav.Breadcrumb            `json:"breadcrumbs"`
	Backrefs        []models.RefInfo            `json:"backrefs"`
	GroupedBackrefs map[string][]models.RefInfo `json:"grouped_backrefs"`
	Graph           json.RawMessage             `json:"graph,omitempty"`
	Meta            map[string]any              `json:"meta"`
	Ext             string                      `json:"ext"`
}

// Assemble merges an entity's document, navigation, backrefs, graph and
// metadata. Failures carry the qualified name.
func Assemble(in Input) (*Context, error) {
	ctx, err := assemble(in)
	if err != nil {
		return nil, fmt.Errorf("render: %s: %w", in.QualifiedName, err)
	}
	return ctx, nil
}

func assemble(in Input) (*Context, error) {
	if in.Doc == nil {
		return nil, fmt.Errorf("no document: %w", apperr.ErrNotFound)
	}
	version, logo, err := metaFields(in.Meta)
	if err != nil {
		return nil, err
	}

	threshold := in.GroupThreshold
	if threshold <= 0 {
		threshold = DefaultGroupThreshold
	}
	flat, grouped := BucketBackrefs(in.Backrefs, threshold)

	return &Context{
		CurrentType:     in.CurrentType,
		QualifiedName:   in.QualifiedName,
		Module:          models.TopLevel(in.QualifiedName),
		Version:         version,
		Logo:            logo,
		Doc:             in.Doc,
		Siblings:        in.Siblings,
		Breadcrumbs:     in.Breadcrumbs,
		Backrefs:        flat,
		GroupedBackrefs: grouped,
		Graph:           in.Graph,
		Meta:            in.Meta,
		Ext:             in.Ext,
	}, nil
}

// BucketBackrefs returns refs unchanged when there are at most threshold of
// them, and otherwise groups them by the first dotted segment of their path.
func BucketBackrefs(refs []models.RefInfo, threshold int) ([]models.RefInfo, map[string][]models.RefInfo) {
	if len(refs) <= threshold {
		if refs == nil {
			refs = []models.RefInfo{}
		}
		return refs, nil
	}
	grouped := make(map[string][]models.RefInfo)
	for _, r := range refs {
		top := models.TopLevel(r.Path)
		grouped[top] = append(grouped[top], r)
	}
	return []models.RefInfo{}, grouped
}

func isString(v any) error {
	if v == nil {
		return nil
	}
	if _, ok := v.(string); !ok {
		return validation.NewError("validation_is_string", "must be a string")
	}
	return nil
}

// metaFields validates the metadata mapping and extracts version and logo.
func metaFields(meta map[string]any) (string, *string, error) {
	if _, ok := meta["version"]; !ok {
		return "", nil, apperr.ErrMissingVersion
	}
	err := validation.Validate(meta,
		validation.Map(
			validation.Key("version", validation.Required, validation.By(isString)),
			validation.Key("logo", validation.By(isString)).Optional(),
		).AllowExtraKeys(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("invalid metadata: %w", err)
	}
	var logo *string
	if l, ok := meta["logo"].(string); ok && l != "" {
		logo = &l
	}
	return meta["version"].(string), logo, nil
}
