package api

import (
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/refgraph"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *docservice.Service
	prefix string
}

// NewHandler creates a new Handler. prefix is the URL prefix of generated
// links.
func NewHandler(svc *docservice.Service, prefix string) *Handler {
	return &Handler{svc: svc, prefix: prefix}
}

// tailPath extracts the wildcard tail of the URL. Encoded slashes are
// accepted.
func tailPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// release reads module and version from the route. A "*" version is
// answered with a redirect to the latest version, in which case ok is false.
func (h *Handler) release(w http.ResponseWriter, r *http.Request) (module, version string, ok bool) {
	module, version = chi.URLParam(r, "module"), chi.URLParam(r, "version")
	if version != "*" {
		return module, version, true
	}
	resolved, err := h.svc.ResolveVersion(r.Context(), module, version, false)
	if err != nil {
		writeError(w, "resolve version", err, slog.String("module", module))
		return "", "", false
	}
	target := strings.Replace(r.URL.Path, "/"+module+"/*/", "/"+module+"/"+resolved+"/", 1)
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusFound)
	return "", "", false
}

// Modules handles GET /modules.
func (h *Handler) Modules(w http.ResponseWriter, r *http.Request) {
	mods, err := h.svc.Modules(r.Context())
	if err != nil {
		writeError(w, "list modules", err)
		return
	}
	writeJSON(w, http.StatusOK, ModulesResponse{Modules: mods})
}

// APIPage handles GET /{module}/{version}/api/{ref}.
func (h *Handler) APIPage(w http.ResponseWriter, r *http.Request) {
	module, version, ok := h.release(w, r)
	if !ok {
		return
	}
	ref := chi.URLParam(r, "ref")
	page, err := h.svc.APIPage(r.Context(), module, version, ref)
	if err != nil {
		writeError(w, "api page", err, slog.String("ref", ref))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Graph handles GET /{module}/{version}/graph/{ref}. With ?format=svg the
// graph is laid out by Graphviz.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	module, version, ok := h.release(w, r)
	if !ok {
		return
	}
	ref := chi.URLParam(r, "ref")
	g, err := h.svc.Graph(r.Context(), module, version, ref)
	if err != nil {
		writeError(w, "graph", err, slog.String("ref", ref))
		return
	}
	if r.URL.Query().Get("format") != "svg" {
		writeJSON(w, http.StatusOK, g)
		return
	}
	svg, err := refgraph.RenderSVG(r.Context(), g)
	if err != nil {
		writeError(w, "graph svg", err, slog.String("ref", ref))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(svg)
}

// Docs handles GET /{module}/{version}/docs/{ref}.
func (h *Handler) Docs(w http.ResponseWriter, r *http.Request) {
	module, version, ok := h.release(w, r)
	if !ok {
		return
	}
	ref := chi.URLParam(r, "ref")
	page, err := h.svc.DocsPage(r.Context(), module, version, ref)
	if err != nil {
		writeError(w, "docs page", err, slog.String("ref", ref))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Example handles GET /{module}/{version}/examples/*.
func (h *Handler) Example(w http.ResponseWriter, r *http.Request) {
	module, version, ok := h.release(w, r)
	if !ok {
		return
	}
	p := tailPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	page, err := h.svc.ExamplePage(r.Context(), module, version, p)
	if err != nil {
		writeError(w, "example page", err, slog.String("path", p))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Gallery handles GET /{module}/{version}/gallery.
func (h *Handler) Gallery(w http.ResponseWriter, r *http.Request) {
	module, version, ok := h.release(w, r)
	if !ok {
		return
	}
	page, err := h.svc.GalleryPage(r.Context(), module, version)
	if err != nil {
		writeError(w, "gallery", err, slog.String("module", module))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Image handles GET /{module}/{version}/img/*.
func (h *Handler) Image(w http.ResponseWriter, r *http.Request) {
	module, version, ok := h.release(w, r)
	if !ok {
		return
	}
	p := tailPath(r)
	data, err := h.svc.Asset(r.Context(), module, version, p)
	if err != nil {
		writeError(w, "image", err, slog.String("path", p))
		return
	}
	ct := mime.TypeByExtension(path.Ext(p))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Search handles GET /search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, searchResponse(results, h.prefix))
}
