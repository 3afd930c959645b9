package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// prefix is the URL prefix of links in responses.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler, prefix string) chi.Router {
	h := NewHandler(svc, prefix)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/modules", h.Modules)
	r.Get("/search", h.Search)

	r.Route("/{module}/{version}", func(r chi.Router) {
		r.Get("/api/{ref}", h.APIPage)
		r.Get("/graph/{ref}", h.Graph)
		r.Get("/docs/{ref}", h.Docs)
		r.Get("/examples/*", h.Example)
		r.Get("/gallery", h.Gallery)
		r.Get("/img/*", h.Image)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
