package api

import (
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/render"
)

// ModulesResponse lists the documented releases.
type ModulesResponse struct {
	Modules []render.IndexEntry `json:"modules"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Key     models.Key `json:"key"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	URL     string     `json:"url"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

func searchResponse(hits []index.SearchResult, prefix string) SearchResponse {
	out := SearchResponse{Results: make([]SearchResult, 0, len(hits))}
	for _, h := range hits {
		out.Results = append(out.Results, SearchResult{
			Key:     h.Key,
			Title:   h.Title,
			Snippet: h.Snippet,
			URL:     models.InfoURL(h.Key.Info(), prefix, ""),
		})
	}
	return out
}
