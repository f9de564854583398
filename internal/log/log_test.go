package log

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB points the audit database at a temp file and resets the
// process logger around the test.
func newTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log", "audit.db")
	t.Setenv(EnvDatabase, path)
	Close()
	t.Cleanup(Close)
	return path
}

func queryRow(t *testing.T, path, query string, dest ...any) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.QueryRow(query).Scan(dest...))
}

func TestOpen_CreatesDatabase(t *testing.T) {
	path := newTestDB(t)
	require.NoError(t, Open())
	assert.FileExists(t, path)
}

func TestLog_WritesRow(t *testing.T) {
	path := newTestDB(t)
	SetWorkspace("/test/workspace")

	Log(Entry{
		Source:  "cli:search",
		Action:  "search",
		Root:    "/test/workspace/src",
		Pattern: "TODO",
		Start:   100,
		End:     103,
		Success: true,
	})
	Close()

	var count int
	queryRow(t, path, "SELECT COUNT(*) FROM audit", &count)
	assert.Equal(t, 1, count)

	var source, action, root, pattern string
	var duration, success int
	queryRow(t, path,
		"SELECT source, action, root, pattern, duration, success FROM audit WHERE id = 1",
		&source, &action, &root, &pattern, &duration, &success)
	assert.Equal(t, "cli:search", source)
	assert.Equal(t, "search", action)
	assert.Equal(t, "/test/workspace/src", root)
	assert.Equal(t, "TODO", pattern)
	assert.Equal(t, 3, duration)
	assert.Equal(t, 1, success)

	// The workspace column holds a digest, never the raw path.
	var workspace string
	queryRow(t, path, "SELECT workspace FROM audit WHERE id = 1", &workspace)
	assert.Len(t, workspace, 16)
	assert.NotContains(t, workspace, "/")
}

func TestLog_LazyOpenWithoutExplicitOpen(t *testing.T) {
	path := newTestDB(t)

	// No Open() call: the first write connects on its own.
	Event("cli:init", "init").Root("/w").Write(nil)
	Close()

	var count int
	queryRow(t, path, "SELECT COUNT(*) FROM audit", &count)
	assert.Equal(t, 1, count)
}

func TestBuilder_ErrorEntry(t *testing.T) {
	path := newTestDB(t)

	Event("cli:replace", "replace").
		Root("/somewhere").
		Pattern("old").
		Write(errors.New("permission denied"))
	Close()

	var success int
	var errMsg string
	queryRow(t, path, "SELECT success, error FROM audit ORDER BY id DESC LIMIT 1", &success, &errMsg)
	assert.Equal(t, 0, success)
	assert.Equal(t, "permission denied", errMsg)
}

func TestBuilder_DetailColumn(t *testing.T) {
	path := newTestDB(t)

	Event("mcp:search", "search").
		Detail("matches", 7).
		Detail("files", 3).
		Write(nil)
	Close()

	var detail string
	queryRow(t, path, "SELECT detail FROM audit ORDER BY id DESC LIMIT 1", &detail)
	assert.Contains(t, detail, `"matches":7`)
	assert.Contains(t, detail, `"files":3`)
}

func TestDetailColumn_EmptyIsNull(t *testing.T) {
	assert.False(t, detailColumn(nil).Valid)
	assert.False(t, detailColumn(map[string]any{}).Valid)
	assert.True(t, detailColumn(map[string]any{"k": 1}).Valid)
}

func TestConnect_FailureIsNotRetried(t *testing.T) {
	// A directory where the database file should be makes the open
	// fail; the logger must go quiet instead of erroring every write.
	dir := t.TempDir()
	t.Setenv(EnvDatabase, dir)
	Close()
	t.Cleanup(Close)

	require.Error(t, Open())
	// Must not panic or block.
	Log(Entry{Source: "cli:search", Action: "search"})
	Log(Entry{Source: "cli:search", Action: "search"})
}
