// Package mcpserver exposes the documentation graph as MCP tools over
// stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/nav"
)

const layoutURI = "folio://store-layout"

// Server wraps the MCP server with folio tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates an MCP server with every tool registered.
func New(svc *docservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Folio",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_entities",
		mcp.WithDescription("Full-text search over document titles and summaries."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchEntities)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the stored JSON of a document. See "+layoutURI+" for key fields."),
		mcp.WithString("module", mcp.Required()),
		mcp.WithString("version", mcp.Required(), mcp.Description("Release, or * for the only release")),
		mcp.WithString("kind", mcp.Description("Entity kind (default module)")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Qualified name or document path")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("get_backrefs",
		mcp.WithDescription("List the entities referencing the given one."),
		mcp.WithString("module", mcp.Required()),
		mcp.WithString("version", mcp.Required()),
		mcp.WithString("kind", mcp.Description("Entity kind (default module)")),
		mcp.WithString("path", mcp.Required()),
	), s.getBackrefs)

	s.mcp.AddTool(mcp.NewTool("get_reference_graph",
		mcp.WithDescription("Local reference graph of an API entity as nodes and links."),
		mcp.WithString("module", mcp.Required()),
		mcp.WithString("version", mcp.Required()),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Qualified name, e.g. numpy.linalg.norm")),
	), s.getReferenceGraph)

	s.mcp.AddTool(mcp.NewTool("get_siblings",
		mcp.WithDescription("Navigation levels and breadcrumbs of a qualified name."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Qualified name")),
	), s.getSiblings)

	s.mcp.AddTool(mcp.NewTool("list_modules",
		mcp.WithDescription("List every documented module release."),
	), s.listModules)

	s.mcp.AddResource(
		mcp.NewResource(layoutURI, "Store Layout",
			mcp.WithResourceDescription("How entities are keyed and laid out in the content tree."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// key reads an entity key from the request, resolving a "*" version.
func (s *Server) key(ctx context.Context, req mcp.CallToolRequest, pathArg string) (models.Key, error) {
	module, err := req.RequireString("module")
	if err != nil {
		return models.Key{}, err
	}
	version, err := req.RequireString("version")
	if err != nil {
		return models.Key{}, err
	}
	path, err := req.RequireString(pathArg)
	if err != nil {
		return models.Key{}, err
	}
	if path == "" {
		return models.Key{}, fmt.Errorf("%s must not be empty", pathArg)
	}
	version, err = s.svc.ResolveVersion(ctx, module, version, true)
	if err != nil {
		return models.Key{}, err
	}
	kind := models.KindModule
	if k := req.GetString("kind", ""); k != "" {
		kind = models.ParseKind(k)
	}
	return models.Key{Module: module, Version: version, Kind: kind, Path: path}, nil
}

func (s *Server) searchEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := s.key(ctx, req, "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.svc.Read(ctx, key)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", key)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getBackrefs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := s.key(ctx, req, "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, err := s.svc.Backrefs(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(refs) == 0 {
		return mcp.NewToolResultText("no backrefs found"), nil
	}
	lines := make([]string, len(refs))
	for i, r := range refs {
		lines[i] = r.String()
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getReferenceGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := s.key(ctx, req, "ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.svc.Graph(ctx, key.Module, key.Version, key.Path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(g)
}

type siblingsResult struct {
	Siblings    nav.Siblings     `json:"siblings"`
	Breadcrumbs []nav.Breadcrumb `json:"breadcrumbs"`
}

func (s *Server) getSiblings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sib, err := s.svc.Siblings(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(siblingsResult{Siblings: sib, Breadcrumbs: nav.BreadcrumbLinks(sib)})
}

func (s *Server) listModules(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mods, err := s.svc.Modules(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(mods)
}

func (s *Server) readLayoutResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      layoutURI,
			MIMEType: "text/markdown",
			Text:     StoreLayout,
		},
	}, nil
}
