package models

import "time"

// Document is a decoded API or narrative page.
type Document struct {
	Title     string    `json:"title"`
	Signature *string   `json:"signature,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Sections  []Section `json:"sections,omitempty"`
	Refs      []RefInfo `json:"refs,omitempty"`
	Figures   []RefInfo `json:"figures,omitempty"`
}

// Section is a titled block of content. Example pages are a single Section.
type Section struct {
	Title    string    `json:"title,omitempty"`
	Body     string    `json:"body,omitempty"`
	Children []Section `json:"children,omitempty"`
	Figures  []RefInfo `json:"figures,omitempty"`
}

// DocView is the minimal document shape handed to renderers for pages that
// have no stored document of their own (index, gallery, examples).
type DocView struct {
	Title     string    `json:"title"`
	Children  []Section `json:"children"`
	Signature *string   `json:"signature"`
}

// View projects a document onto the fields renderers consume.
func (d *Document) View() DocView {
	return DocView{Title: d.Title, Children: nonNil(d.Sections), Signature: d.Signature}
}

// BlobMeta is a lightweight representation returned by content tree listings.
type BlobMeta struct {
	Key       Key       `json:"key"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Figure is one gallery entry: an image and the page that shows it.
type Figure struct {
	Image string `json:"image"`
	Link  string `json:"link"`
	Name  string `json:"name"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
