// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes canopy lookups for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/yourview/yourview/internal/canopy"
	"github.com/yourview/yourview/internal/routes"
	"github.com/yourview/yourview/internal/suburb"
)

const contractURI = "yourview://suburb-lookup"

// Lookuper resolves suburb labels to canopy records.
type Lookuper interface {
	Lookup(ctx context.Context, raw string) canopy.Result
}

// Server wraps the MCP server with yourview tools.
type Server struct {
	mcp    *server.MCPServer
	canopy Lookuper
	pages  *routes.Table
}

// New creates a new MCP server with all tools registered. pages may be nil.
func New(lk Lookuper, pages *routes.Table, version string) *Server {
	s := &Server{canopy: lk, pages: pages}

	s.mcp = server.NewMCPServer(
		"YourView",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_canopy_cover",
		mcp.WithDescription("Look up tree canopy cover statistics for an Australian suburb. "+
			"Read the lookup contract via the yourview://suburb-lookup resource for how labels are matched."),
		mcp.WithString("suburb", mcp.Required(), mcp.Description("Suburb label, e.g. 'Richmond, VIC' or 'Brunswick VIC'")),
	), s.getCanopyCover)

	s.mcp.AddTool(mcp.NewTool("normalize_suburb",
		mcp.WithDescription("Show the lookup key a suburb label resolves to, without querying the dataset."),
		mcp.WithString("suburb", mcp.Required(), mcp.Description("Suburb label")),
	), s.normalizeSuburb)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List the viewer's pages with their paths."),
	), s.listPages)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Suburb Lookup Contract",
			mcp.WithResourceDescription("How suburb labels are normalised and what lookups return."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func (s *Server) getCanopyCover(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("suburb")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := s.canopy.Lookup(ctx, raw)
	switch res.Status {
	case canopy.StatusFound:
		if out, err := json.MarshalIndent(res.Record, "", "  "); err == nil {
			return mcp.NewToolResultText(string(out)), nil
		}
		return mcp.NewToolResultText(string(res.Record)), nil
	case canopy.StatusNotFound:
		return mcp.NewToolResultText(fmt.Sprintf("not found: no canopy data for %q", res.Key)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unavailable: canopy lookup for %q failed", res.Key)), nil
	}
}

func (s *Server) normalizeSuburb(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("suburb")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(suburb.Normalize(raw)), nil
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type page struct {
		Path  string `json:"path"`
		Name  string `json:"name"`
		Title string `json:"title"`
	}
	out := []page{}
	if s.pages != nil {
		for _, r := range s.pages.Routes() {
			out = append(out, page{Path: r.Path, Name: r.Name, Title: r.Title})
		}
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     SuburbLookupContract,
		},
	}, nil
}
