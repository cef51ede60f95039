// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the bridge pipeline to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/obridge/internal/apperr"
	"github.com/starford/obridge/internal/bridge"
)

// Server wraps the MCP server with the bridge tools.
type Server struct {
	mcp *server.MCPServer
	svc *bridge.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *bridge.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"obridge",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("bridge_vault",
		mcp.WithDescription("Scan the vault for aliases and rewrite plain mentions into wikilinks. "+
			"Read obridge://link-format to see which text is rewritten."),
	), s.bridgeVault)

	s.mcp.AddTool(mcp.NewTool("scan_vault",
		mcp.WithDescription("Rebuild the alias snapshot without touching any document."),
	), s.scanVault)

	s.mcp.AddTool(mcp.NewTool("link_vault",
		mcp.WithDescription("Rewrite documents using the stored alias snapshot."),
		mcp.WithBoolean("dry_run", mcp.Description("Count links without writing documents")),
	), s.linkVault)

	s.mcp.AddTool(mcp.NewTool("exclude_path",
		mcp.WithDescription("Exclude a document or directory from linking in both directions."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path (e.g. folder/note.md or folder)")),
	), s.excludePath)

	s.mcp.AddTool(mcp.NewTool("unexclude_path",
		mcp.WithDescription("Remove the exclusion rule of a document or directory."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path")),
	), s.unexcludePath)

	s.mcp.AddTool(mcp.NewTool("get_settings",
		mcp.WithDescription("Return the exclusion rules and link options as JSON."),
	), s.getSettings)

	s.mcp.AddTool(mcp.NewTool("get_snapshot",
		mcp.WithDescription("Return the last alias snapshot as JSON."),
	), s.getSnapshot)

	s.mcp.AddResource(
		mcp.NewResource(LinkFormatURI, "Link Format",
			mcp.WithResourceDescription("How plain mentions are turned into wikilinks."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLinkFormatResource,
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

func (s *Server) bridgeVault(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.Bridge(ctx)
	return runResult(rep, err), nil
}

func (s *Server) scanVault(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.Scan(ctx)
	return runResult(rep, err), nil
}

func (s *Server) linkVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.Link(ctx, bridge.LinkOptions{DryRun: req.GetBool("dry_run", false)})
	return runResult(rep, err), nil
}

func runResult(rep bridge.Report, err error) *mcp.CallToolResult {
	if err != nil {
		if errors.Is(err, apperr.ErrRunInProgress) {
			return mcp.NewToolResultError("a run is already in progress, try again later")
		}
		return mcp.NewToolResultError(err.Error())
	}
	return jsonResult(rep)
}

func (s *Server) excludePath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Exclude(ctx, path)
	return exclusionResult(path, res, err), nil
}

func (s *Server) unexcludePath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Unexclude(ctx, path)
	return exclusionResult(path, res, err), nil
}

func exclusionResult(path string, res bridge.ExclusionResult, err error) *mcp.CallToolResult {
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
		}
		if errors.Is(err, apperr.ErrInvalidPath) {
			return mcp.NewToolResultError(fmt.Sprintf("path must stay inside the vault: %s", path))
		}
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(res.Message)
}

func (s *Server) getSettings(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Settings()), nil
}

func (s *Server) getSnapshot(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.svc.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(snap), nil
}

func (s *Server) readLinkFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      LinkFormatURI,
			MIMEType: "text/markdown",
			Text:     LinkFormatContract,
		},
	}, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}
