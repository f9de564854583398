// tools.go implements the MCP tool handlers.
//
// Handlers are forgiving about optional parameters and always return
// tool-level errors rather than transport failures, so an LLM passing a
// bad pattern gets a message it can correct, not a broken session.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rustscout/rustscout/internal/engine"
	"github.com/rustscout/rustscout/internal/log"
	"github.com/rustscout/rustscout/internal/matcher"
	"github.com/rustscout/rustscout/internal/replace"
	"github.com/rustscout/rustscout/internal/undo"
)

// search handles rustscout_search tool calls.
func (h *handlers) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern, err := req.RequireString("pattern")
	if err != nil {
		return mcp.NewToolResultError("pattern is required"), nil //nolint:nilerr
	}

	def, resultErr := definitionFromRequest(req, pattern)
	if resultErr != nil {
		return resultErr, nil
	}

	root := getString(req, "root", ".")
	cfg := engine.NewConfig(pattern, root)
	cfg.Patterns = []matcher.Definition{def}
	if exts := getString(req, "extensions", ""); exts != "" {
		cfg.Extensions = strings.Split(exts, ",")
	}
	if n := getInt(req, "context", 0); n > 0 {
		cfg.ContextBefore = n
		cfg.ContextAfter = n
	}

	result, err := engine.Search(ctx, cfg)
	log.Event("mcp:search", "search").Root(root).Pattern(pattern).Write(err)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result.SortByPath()
	return jsonResult(result)
}

// replace handles rustscout_replace tool calls.
func (h *handlers) replace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern, err := req.RequireString("pattern")
	if err != nil {
		return mcp.NewToolResultError("pattern is required"), nil //nolint:nilerr
	}
	replacement, err := req.RequireString("replacement")
	if err != nil {
		return mcp.NewToolResultError("replacement is required"), nil //nolint:nilerr
	}

	def, resultErr := definitionFromRequest(req, pattern)
	if resultErr != nil {
		return resultErr, nil
	}

	root := getString(req, "root", ".")
	cfg := replace.DefaultConfig()
	cfg.DryRun = getBool(req, "dry_run", false)
	cfg.Patterns = []replace.Pattern{{Definition: def, ReplacementText: replacement}}

	set, searchResult, err := buildSet(ctx, root, cfg)
	if err != nil {
		log.Event("mcp:replace", "replace").Root(root).Pattern(pattern).Write(err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	if cfg.DryRun {
		previews, err := set.Preview()
		log.Event("mcp:replace", "preview").Root(root).Pattern(pattern).Write(err)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{
			"dry_run":  true,
			"matches":  searchResult.TotalMatches,
			"previews": previews,
		})
	}

	result, err := set.Apply(ctx)
	log.Event("mcp:replace", "replace").
		Root(root).
		Pattern(pattern).
		Detail("files", len(set.Plans)).
		Write(err)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

// undoList handles rustscout_undo_list tool calls.
func (h *handlers) undoList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root := getString(req, "root", ".")
	eng, err := undo.NewEngine(root)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records, err := eng.List()
	log.Event("mcp:undo_list", "list").Root(root).Write(err)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(records)
}

// undo handles rustscout_undo tool calls.
func (h *handlers) undo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := getInt(req, "id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("id is required"), nil
	}
	root := getString(req, "root", ".")

	eng, err := undo.NewEngine(root)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if hunks := getString(req, "hunks", ""); hunks != "" {
		indices, err := parseHunkIndices(hunks)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		err = eng.UndoPartial(uint64(id), indices)
		log.Event("mcp:undo", "undo_partial").Root(root).Detail("id", id).Write(err)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("reverted %d hunk(s) of record %d", len(indices), id)), nil
	}

	err = eng.Undo(uint64(id))
	log.Event("mcp:undo", "undo").Root(root).Detail("id", id).Write(err)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("restored record %d", id)), nil
}

// definitionFromRequest builds a pattern definition from shared tool
// parameters.
func definitionFromRequest(req mcp.CallToolRequest, pattern string) (matcher.Definition, *mcp.CallToolResult) {
	boundary, err := matcher.ParseBoundaryMode(getString(req, "boundary", ""))
	if err != nil {
		return matcher.Definition{}, mcp.NewToolResultError(err.Error())
	}
	return matcher.Definition{
		Text:     pattern,
		IsRegex:  getBool(req, "regex", false),
		Boundary: boundary,
	}, nil
}

// buildSet searches the root and turns the matching files into a
// replacement set.
func buildSet(ctx context.Context, root string, cfg replace.Config) (*replace.Set, *engine.Result, error) {
	searchCfg := engine.Config{
		Patterns: []matcher.Definition{cfg.Patterns[0].Definition},
		Root:     root,
	}
	searchResult, err := engine.Search(ctx, searchCfg)
	if err != nil {
		return nil, nil, err
	}

	set := replace.NewSet(cfg)
	for _, fr := range searchResult.FileResults {
		plan, err := replace.PlanFile(fr.Path, &set.Config)
		if err != nil {
			return nil, nil, err
		}
		set.Add(plan)
	}
	return set, searchResult, nil
}

// parseHunkIndices parses a comma-separated index list.
func parseHunkIndices(s string) ([]int, error) {
	var indices []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid hunk index %q", part)
		}
		indices = append(indices, n)
	}
	return indices, nil
}

// Parameter extraction helpers provide safe access to optional request
// arguments.

// getString returns a string parameter or the default if not present.
func getString(req mcp.CallToolRequest, name, def string) string {
	if v, err := req.RequireString(name); err == nil {
		return v
	}
	return def
}

// getBool returns a boolean parameter or the default if not present.
func getBool(req mcp.CallToolRequest, name string, def bool) bool {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return def
	}
	if v, ok := args[name].(bool); ok {
		return v
	}
	return def
}

// getInt returns an integer parameter or the default. Handles JSON
// number type.
func getInt(req mcp.CallToolRequest, name string, def int) int {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return def
	}
	if v, ok := args[name].(float64); ok {
		return int(v)
	}
	return def
}

// jsonResult wraps a value as an MCP text result with pretty-printed
// JSON.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
