package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/graphstore"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/testutil"
)

// testEnv sets up a small corpus, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) http.Handler {
	t.Helper()
	content := testutil.TestStore(t)
	db := testutil.TestDB(t)

	dot := testutil.APIKey("numpy", "1.22", "numpy.dot")
	matmul := testutil.APIKey("numpy", "1.22", "numpy.matmul")
	testutil.WriteRefDoc(t, content, testutil.APIKey("numpy", "1.22", "numpy"), dot, matmul)
	testutil.WriteRefDoc(t, content, dot, matmul)
	testutil.WriteRefDoc(t, content, matmul, dot)
	testutil.WriteRefDoc(t, content, testutil.APIKey("numpy", "1.21", "numpy.dot"))
	testutil.WriteDoc(t, content, models.Key{Module: "numpy", Version: "1.22", Kind: models.KindDocs, Path: "install"},
		&models.Document{Title: "Installing", Refs: []models.RefInfo{dot.Info()}})
	if err := content.Write(models.Key{Module: "numpy", Version: "1.22", Kind: models.KindAssets, Path: "fig.png"}, []byte("PNG")); err != nil {
		t.Fatal(err)
	}
	testutil.WriteMeta(t, content, "numpy", "1.22", map[string]any{"version": "1.22"})
	testutil.WriteMeta(t, content, "numpy", "1.21", map[string]any{"version": "1.21"})
	testutil.Synced(t, db, content)

	svc := docservice.NewService(graphstore.New(content, db), db, docservice.Options{}, testutil.QuietLogger())
	return NewRouter(svc, authEnabled, token, sseHandler, "/p/")
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestModules(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/modules")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Modules []struct{ Module, Version string } `json:"modules"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Modules) != 2 {
		t.Errorf("modules = %+v, want 2 releases", resp.Modules)
	}
}

func TestAPIPage(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/numpy/1.22/api/numpy.dot")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var page struct {
		QA          string `json:"qa"`
		Version     string `json:"version"`
		Backrefs    []models.RefInfo
		Breadcrumbs []struct{ Segment, Link string }
		Graph       struct {
			Nodes []struct{ Label string } `json:"nodes"`
		} `json:"graph"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.QA != "numpy.dot" || page.Version != "1.22" {
		t.Errorf("page = %+v", page)
	}
	if len(page.Backrefs) != 3 {
		t.Errorf("backrefs = %+v, want numpy, numpy.matmul and install", page.Backrefs)
	}
	if n := len(page.Breadcrumbs); n == 0 || page.Breadcrumbs[n-1].Link != "numpy.dot" {
		t.Errorf("breadcrumbs = %+v", page.Breadcrumbs)
	}
	for _, n := range page.Graph.Nodes {
		if n.Label == "numpy.dot" {
			t.Error("focus entity must not appear in its own graph")
		}
	}
}

func TestAPIPage_WildcardVersionRedirects(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/numpy/*/api/numpy.dot")
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/numpy/1.22/api/numpy.dot" {
		t.Errorf("location = %q", loc)
	}
}

func TestAPIPage_NotFound(t *testing.T) {
	router := testEnv(t, "")

	for _, target := range []string{"/numpy/1.22/api/numpy.nope", "/scipy/*/api/scipy"} {
		if w := get(t, router, target); w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", target, w.Code)
		}
	}
}

func TestGraphEndpoint(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/numpy/1.22/graph/numpy.matmul")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Nodes []map[string]any `json:"nodes"`
		Links []map[string]any `json:"links"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Nodes == nil || resp.Links == nil {
		t.Errorf("nodes and links must be arrays, got %s", w.Body.String())
	}
}

func TestGraphEndpoint_SVG(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/numpy/1.22/graph/numpy.dot?format=svg")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "<svg") {
		t.Errorf("body is not svg: %.200s", w.Body.String())
	}
}

func TestDocsAndImage(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/numpy/1.22/docs/install")
	if w.Code != http.StatusOK {
		t.Fatalf("docs status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Installing") {
		t.Errorf("docs body = %s", w.Body.String())
	}

	w = get(t, router, "/numpy/1.22/img/fig.png")
	if w.Code != http.StatusOK {
		t.Fatalf("img status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}

	if w := get(t, router, "/numpy/1.22/img/missing.png"); w.Code != http.StatusNotFound {
		t.Errorf("missing image status = %d, want 404", w.Code)
	}
}

func TestGallery(t *testing.T) {
	router := testEnv(t, "")

	if w := get(t, router, "/numpy/1.22/gallery"); w.Code != http.StatusOK {
		t.Errorf("gallery status = %d, body = %s", w.Code, w.Body.String())
	}
	if w := get(t, router, "/numpy/9.9/gallery"); w.Code != http.StatusNotFound {
		t.Errorf("unknown release status = %d, want 404", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/search?q=matmul")
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) == 0 {
		t.Fatal("expected search results")
	}
	if resp.Results[0].URL != "/p/numpy/1.22/api/numpy.matmul" {
		t.Errorf("url = %q", resp.Results[0].URL)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	router := testEnv(t, "")
	if w := get(t, router, "/search"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/modules", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, "secret")
	if w := get(t, router, "/modules"); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router := testEnv(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/modules", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router := testEnv(t, "")
	if w := get(t, router, "/modules"); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok", sseStub)
	if w := get(t, router, "/events"); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE without token: status = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
