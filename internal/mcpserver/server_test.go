package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/graphstore"
	"github.com/starford/folio/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	content := testutil.TestStore(t)
	db := testutil.TestDB(t)

	dot := testutil.APIKey("numpy", "1.22", "numpy.dot")
	testutil.WriteRefDoc(t, content, testutil.APIKey("numpy", "1.22", "numpy"), dot)
	testutil.WriteRefDoc(t, content, dot)
	testutil.WriteRefDoc(t, content, testutil.APIKey("numpy", "1.22", "numpy.vdot"), dot)
	testutil.WriteRefDoc(t, content, testutil.APIKey("scipy", "1.9", "scipy"))
	testutil.WriteRefDoc(t, content, testutil.APIKey("scipy", "1.10", "scipy"))
	testutil.WriteMeta(t, content, "numpy", "1.22", map[string]any{"version": "1.22"})
	testutil.Synced(t, db, content)

	svc := docservice.NewService(graphstore.New(content, db), db, docservice.Options{}, testutil.QuietLogger())
	return New(svc)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_entities":
		result, err = srv.searchEntities(ctx, req)
	case "read_document":
		result, err = srv.readDocument(ctx, req)
	case "get_backrefs":
		result, err = srv.getBackrefs(ctx, req)
	case "get_reference_graph":
		result, err = srv.getReferenceGraph(ctx, req)
	case "get_siblings":
		result, err = srv.getSiblings(ctx, req)
	case "list_modules":
		result, err = srv.listModules(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestReadDocument(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "read_document", map[string]any{
		"module": "numpy", "version": "*", "path": "numpy.dot",
	})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	var doc struct{ Title string }
	if err := json.Unmarshal([]byte(resultText(r)), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Title != "numpy.dot" {
		t.Errorf("title = %q", doc.Title)
	}
}

func TestReadDocumentMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_document", map[string]any{
		"module": "numpy", "version": "1.22", "path": "numpy.nope",
	})
	if !r.IsError {
		t.Error("expected error for missing document")
	}
}

func TestReadDocument_ReportsStorageErrors(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_document", map[string]any{
		"module": "numpy", "version": "1.22", "path": "../../../../etc/passwd",
	})
	if !r.IsError {
		t.Fatal("expected error for a path outside the store")
	}
	if text := resultText(r); strings.HasPrefix(text, "not found") || !strings.Contains(text, "escapes root") {
		t.Errorf("error = %q, want the storage error", text)
	}
}

func TestEmptyPathRejected(t *testing.T) {
	srv := testServer(t)
	for _, tool := range []string{"read_document", "get_backrefs"} {
		r := callTool(t, srv, tool, map[string]any{
			"module": "numpy", "version": "1.22", "path": "",
		})
		if !r.IsError {
			t.Errorf("%s: expected error for an empty path", tool)
		}
	}
}

func TestAmbiguousVersion(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_document", map[string]any{
		"module": "scipy", "version": "*", "path": "scipy",
	})
	if !r.IsError {
		t.Fatal("expected error for a module with several versions")
	}
	if text := resultText(r); !strings.Contains(text, "1.10") || !strings.Contains(text, "1.9") {
		t.Errorf("error should list the versions, got %q", text)
	}
}

func TestGetBackrefs(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_backrefs", map[string]any{
		"module": "numpy", "version": "1.22", "path": "numpy.dot",
	})
	want := "numpy/1.22/module/numpy\nnumpy/1.22/module/numpy.vdot"
	if text := resultText(r); text != want {
		t.Errorf("backrefs = %q, want %q", text, want)
	}

	r = callTool(t, srv, "get_backrefs", map[string]any{
		"module": "numpy", "version": "1.22", "path": "numpy.vdot",
	})
	if text := resultText(r); text != "no backrefs found" {
		t.Errorf("backrefs = %q", text)
	}
}

func TestGetReferenceGraph(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_reference_graph", map[string]any{
		"module": "numpy", "version": "1.22", "ref": "numpy.dot",
	})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	var g struct {
		Nodes []struct{ Label string } `json:"nodes"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &g); err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 2 {
		t.Errorf("nodes = %+v, want numpy and numpy.vdot", g.Nodes)
	}
}

func TestGetSiblings(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_siblings", map[string]any{"ref": "numpy.dot"})
	text := resultText(r)
	if !strings.Contains(text, `"breadcrumbs"`) || !strings.Contains(text, "numpy.vdot") {
		t.Errorf("siblings = %s", text)
	}
}

func TestSearchAndListModules(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "search_entities", map[string]any{"query": "vdot"})
	if !strings.Contains(resultText(r), "numpy.vdot") {
		t.Errorf("search = %s", resultText(r))
	}

	r = callTool(t, srv, "search_entities", map[string]any{})
	if !r.IsError {
		t.Error("expected error without query")
	}

	r = callTool(t, srv, "list_modules", map[string]any{})
	var mods []struct{ Module, Version string }
	if err := json.Unmarshal([]byte(resultText(r)), &mods); err != nil {
		t.Fatal(err)
	}
	if len(mods) != 3 {
		t.Errorf("modules = %+v, want 3 releases", mods)
	}
}

func TestStoreLayoutResource(t *testing.T) {
	srv := testServer(t)
	contents, err := srv.readLayoutResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != layoutURI || !strings.Contains(tc.Text, "<module>/<version>/<kind>/<path>") {
		t.Errorf("resource = %+v", contents[0])
	}
}
