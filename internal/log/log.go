// Package log records an audit trail of rustscout operations: every
// CLI command and MCP tool call becomes one row in a SQLite database
// shared across workspaces.
//
// # Fluent API
//
// Entries are assembled with a builder and finished by Write, which
// derives success or failure from the operation's error:
//
//	log.Event("cli:search", "search").
//		Root(cfg.Root).
//		Pattern(pattern).
//		Detail("matches", result.TotalMatches).
//		Write(err)
//
//	log.Event("mcp:replace", "replace").
//		Root(root).
//		Detail("files", result.FilesModified).
//		Write(err)
//
// Sources follow "cli:{command}" for CLI commands and "mcp:{tool}" for
// MCP tools. Logging is strictly best-effort: a replacement that
// succeeded is never failed because its audit row could not be
// written.
package log

import (
	"time"
)

// Entry represents a single log entry.
type Entry struct {
	Source  string // e.g., "cli:search", "mcp:replace"
	Action  string // verb: search, replace, undo, init, etc.
	Root    string // search or workspace root the operation ran against
	Pattern string // pattern text, when the operation has one

	// Timing
	Start int64 // unix timestamp when Event() called
	End   int64 // unix timestamp when Write() called

	Success bool           // whether operation succeeded
	Error   string         // error message if failed
	Detail  map[string]any // additional operation-specific data
}

// Builder constructs a log entry using a fluent API.
// Create with [Event], chain methods to set fields, then call
// [Builder.Write] to write the entry.
type Builder struct {
	entry Entry
}

// Event creates a new log entry builder for an operation.
//
// The source identifies where the operation originated:
//   - CLI commands: "cli:{command}" (e.g., "cli:search", "cli:undo")
//   - MCP tools: "mcp:{tool}" (e.g., "mcp:search", "mcp:replace")
func Event(source, action string) *Builder {
	return &Builder{
		entry: Entry{
			Source: source,
			Action: action,
			Start:  time.Now().Unix(),
		},
	}
}

// Root sets the directory the operation ran against.
func (b *Builder) Root(root string) *Builder {
	b.entry.Root = root
	return b
}

// Pattern sets the pattern text for search and replace operations.
func (b *Builder) Pattern(pattern string) *Builder {
	b.entry.Pattern = pattern
	return b
}

// Detail adds a key-value pair to the log entry's detail map.
//
// Use for operation-specific data that doesn't fit standard fields:
// match counts, undo ids, file totals, etc. Can be called multiple
// times to add multiple details.
func (b *Builder) Detail(key string, value any) *Builder {
	if b.entry.Detail == nil {
		b.entry.Detail = make(map[string]any)
	}
	b.entry.Detail[key] = value
	return b
}

// Write writes the log entry to the database, deriving success/failure
// from err.
//
// If err is nil, the entry is logged as successful.
// If err is non-nil, the entry is logged as failed with the error
// message.
func (b *Builder) Write(err error) {
	b.entry.End = time.Now().Unix()
	b.entry.Success = err == nil
	if err != nil {
		b.entry.Error = err.Error()
	}
	Log(b.entry)
}
