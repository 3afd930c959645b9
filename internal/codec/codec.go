// Package codec decodes stored documents, example sections and metadata.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

// MetaPath is the path of the per (module, version) metadata file under the
// meta kind.
const MetaPath = "folio.yaml"

// DecodeDocument decodes an API or narrative page.
func DecodeDocument(data []byte) (*models.Document, error) {
	var doc models.Document
	if err := strictJSON(data, &doc); err != nil {
		return nil, fmt.Errorf("codec: document: %w: %v", apperr.ErrDecode, err)
	}
	return &doc, nil
}

// DecodeSection decodes an example page.
func DecodeSection(data []byte) (*models.Section, error) {
	var sec models.Section
	if err := strictJSON(data, &sec); err != nil {
		return nil, fmt.Errorf("codec: section: %w: %v", apperr.ErrDecode, err)
	}
	return &sec, nil
}

// DecodeMeta decodes the YAML metadata mapping of a (module, version).
func DecodeMeta(data []byte) (map[string]any, error) {
	var meta map[string]any
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("codec: meta: %w: %v", apperr.ErrDecode, err)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return meta, nil
}

// EncodeDocument is the inverse of DecodeDocument.
func EncodeDocument(doc *models.Document) ([]byte, error) {
	return json.Marshal(doc)
}

// EncodeSection is the inverse of DecodeSection.
func EncodeSection(sec *models.Section) ([]byte, error) {
	return json.Marshal(sec)
}

// EncodeMeta is the inverse of DecodeMeta.
func EncodeMeta(meta map[string]any) ([]byte, error) {
	return yaml.Marshal(meta)
}

// ForwardRefs returns the resolved, deduplicated keys a document references,
// figures included, in first-seen order.
func ForwardRefs(doc *models.Document) []models.Key {
	seen := make(map[models.Key]struct{}, len(doc.Refs)+len(doc.Figures))
	var out []models.Key
	add := func(refs []models.RefInfo) {
		for _, r := range refs {
			if !r.Resolved() {
				continue
			}
			k := r.Key()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	add(doc.Refs)
	add(doc.Figures)
	var walk func([]models.Section)
	walk = func(secs []models.Section) {
		for _, s := range secs {
			add(s.Figures)
			walk(s.Children)
		}
	}
	walk(doc.Sections)
	return out
}

// SectionRefs returns the resolved figure keys of an example section.
func SectionRefs(sec *models.Section) []models.Key {
	return ForwardRefs(&models.Document{Sections: []models.Section{*sec}})
}

func strictJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
