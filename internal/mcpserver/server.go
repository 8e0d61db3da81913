// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes linkshelf bookmark tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/linkshelf/internal/apperr"
	"github.com/starford/linkshelf/internal/bookmarks"
)

const rulesURI = "linkshelf://bookmark-rules"

// Server wraps the MCP server with bookmark tools acting for one owner.
type Server struct {
	mcp     *server.MCPServer
	svc     *bookmarks.Service
	ownerID string
}

// New creates a new MCP server with all bookmark tools registered.
func New(svc *bookmarks.Service, ownerID, version string) *Server {
	s := &Server{svc: svc, ownerID: ownerID}

	s.mcp = server.NewMCPServer(
		"linkshelf",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_bookmarks",
		mcp.WithDescription("List saved bookmarks, newest first."),
		mcp.WithString("category", mcp.Description("Optional category filter (empty or All for everything)")),
	), s.listBookmarks)

	s.mcp.AddTool(mcp.NewTool("add_bookmark",
		mcp.WithDescription("Save a new bookmark. The url gets https:// when it has no scheme; "+
			"a blank category becomes Uncategorized. See the "+rulesURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Display title")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Link target, scheme optional")),
		mcp.WithString("category", mcp.Description("Optional category")),
	), s.addBookmark)

	s.mcp.AddTool(mcp.NewTool("update_bookmark",
		mcp.WithDescription("Replace the title, url and category of an existing bookmark."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Bookmark id from list_bookmarks")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Display title")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Link target, scheme optional")),
		mcp.WithString("category", mcp.Description("Optional category")),
	), s.updateBookmark)

	s.mcp.AddTool(mcp.NewTool("delete_bookmark",
		mcp.WithDescription("Delete a bookmark by id."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Bookmark id from list_bookmarks")),
	), s.deleteBookmark)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the distinct categories in use, sorted."),
	), s.listCategories)

	s.mcp.AddResource(
		mcp.NewResource(rulesURI, "Bookmark Rules",
			mcp.WithResourceDescription("How submitted bookmarks are validated and normalized."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRulesResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// errorResult reports store rejections as tool errors; the protocol call itself succeeds.
func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("bookmark not found")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func requireID(req mcp.CallToolRequest) (int64, error) {
	f, err := req.RequireFloat("id")
	if err != nil {
		return 0, err
	}
	id := int64(f)
	if id <= 0 || float64(id) != f {
		return 0, fmt.Errorf("id must be a positive integer")
	}
	return id, nil
}

func input(req mcp.CallToolRequest) (bookmarks.Input, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return bookmarks.Input{}, err
	}
	url, err := req.RequireString("url")
	if err != nil {
		return bookmarks.Input{}, err
	}
	return bookmarks.Input{Title: title, URL: url, Category: req.GetString("category", "")}, nil
}

func (s *Server) listBookmarks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.List(ctx, s.ownerID, req.GetString("category", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(items), nil
}

func (s *Server) addBookmark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := input(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := s.svc.Create(ctx, s.ownerID, in)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(b), nil
}

func (s *Server) updateBookmark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in, err := input(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := s.svc.Update(ctx, s.ownerID, id, in)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(b), nil
}

func (s *Server) deleteBookmark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, s.ownerID, id); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", id)), nil
}

func (s *Server) listCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := s.svc.Categories(ctx, s.ownerID)
	if err != nil {
		return errorResult(err), nil
	}
	if cats == nil {
		cats = []string{}
	}
	return jsonResult(cats), nil
}

func (s *Server) readRulesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      rulesURI,
			MIMEType: "text/markdown",
			Text:     BookmarkRules,
		},
	}, nil
}
