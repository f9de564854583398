// Package mcp implements the Model Context Protocol server, exposing
// rustscout's search, replace, and undo operations to LLMs through a
// standardised protocol.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rustscout/rustscout/internal/version"
)

// Serve starts the MCP server over stdio. Uses stdio transport for
// compatibility with Claude Desktop and other MCP clients.
func Serve() error {
	// Log to stderr; stdout is reserved for MCP JSON-RPC messages
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	h := &handlers{}

	s := server.NewMCPServer(
		"rustscout",
		version.Short(),
		server.WithToolCapabilities(true),
	)

	registerTools(s, h)

	slog.Info("rustscout MCP server ready", "version", version.Short(), "transport", "stdio")

	err := server.ServeStdio(s)
	if errors.Is(err, context.Canceled) {
		slog.Info("server stopped")
		return nil
	}
	return err
}

// handlers provides MCP request handlers.
type handlers struct{}

// registerTools exposes rustscout operations as MCP tools for LLM
// invocation.
func registerTools(s *server.MCPServer, h *handlers) {
	s.AddTool(
		mcp.NewTool("rustscout_search",
			mcp.WithDescription("Search files under a directory for a pattern; returns per-file matches with line numbers and byte spans."),
			mcp.WithString("pattern", mcp.Required(), mcp.Description("Pattern text")),
			mcp.WithString("root", mcp.Description("Directory to search (default: current directory)")),
			mcp.WithBoolean("regex", mcp.Description("Treat the pattern as a regular expression")),
			mcp.WithString("boundary", mcp.Description("Word boundary mode: none, partial, whole-word")),
			mcp.WithString("extensions", mcp.Description("Comma-separated extension allow-list, e.g. \"go,rs\"")),
			mcp.WithNumber("context", mcp.Description("Context lines before and after each match")),
		),
		h.search,
	)

	s.AddTool(
		mcp.NewTool("rustscout_replace",
			mcp.WithDescription("Replace a pattern across files. Backups and an undo record are written unless dry_run is set."),
			mcp.WithString("pattern", mcp.Required(), mcp.Description("Pattern text")),
			mcp.WithString("replacement", mcp.Required(), mcp.Description("Replacement text; $N references capture groups for regex patterns")),
			mcp.WithString("root", mcp.Description("Directory to modify (default: current directory)")),
			mcp.WithBoolean("regex", mcp.Description("Treat the pattern as a regular expression")),
			mcp.WithString("boundary", mcp.Description("Word boundary mode: none, partial, whole-word")),
			mcp.WithBoolean("dry_run", mcp.Description("Preview only; no files are modified")),
		),
		h.replace,
	)

	s.AddTool(
		mcp.NewTool("rustscout_undo_list",
			mcp.WithDescription("List undo records for a workspace."),
			mcp.WithString("root", mcp.Description("Workspace directory (default: current directory)")),
		),
		h.undoList,
	)

	s.AddTool(
		mcp.NewTool("rustscout_undo",
			mcp.WithDescription("Restore the files of one undo record. Pass hunks to revert a subset of changes."),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Undo record id from rustscout_undo_list")),
			mcp.WithString("root", mcp.Description("Workspace directory (default: current directory)")),
			mcp.WithString("hunks", mcp.Description("Comma-separated global hunk indices for a partial revert")),
		),
		h.undo,
	)
}
