package walker_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustscout/rustscout/internal/walker"
)

// buildTree creates files (given as relative path → content) under a
// fresh temp dir and returns the root.
func buildTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func rels(entries []walker.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Rel
	}
	return out
}

func TestWalk_BinaryDenylist(t *testing.T) {
	root := buildTree(t, map[string]string{
		"main.go":    "x",
		"logo.PNG":   "x",
		"app.exe":    "x",
		"doc.pdf":    "x",
		"notes.txt":  "x",
		"archive.gz": "x",
	})

	w, err := walker.New(root, walker.Options{})
	require.NoError(t, err)
	entries, err := w.Walk()
	require.NoError(t, err)

	assert.Equal(t, []string{"main.go", "notes.txt"}, rels(entries))
}

func TestWalk_ExtensionAllowList(t *testing.T) {
	root := buildTree(t, map[string]string{
		"a.rs":     "x",
		"b.RS":     "x",
		"c.py":     "x",
		"Makefile": "x",
	})

	w, err := walker.New(root, walker.Options{Extensions: []string{"rs"}})
	require.NoError(t, err)
	entries, err := w.Walk()
	require.NoError(t, err)

	assert.Equal(t, []string{"a.rs", "b.RS"}, rels(entries))
}

func TestWalk_AlwaysIgnoredDirs(t *testing.T) {
	root := buildTree(t, map[string]string{
		"src/main.rs":          "x",
		".git/config":          "x",
		"target/debug/main.rs": "x",
	})

	w, err := walker.New(root, walker.Options{})
	require.NoError(t, err)
	entries, err := w.Walk()
	require.NoError(t, err)

	assert.Equal(t, []string{"src/main.rs"}, rels(entries))
}

func TestWalk_HiddenFiles(t *testing.T) {
	root := buildTree(t, map[string]string{
		"visible.txt":     "x",
		".hidden.txt":     "x",
		".config/app.txt": "x",
	})

	w, err := walker.New(root, walker.Options{})
	require.NoError(t, err)
	entries, err := w.Walk()
	require.NoError(t, err)
	assert.Equal(t, []string{"visible.txt"}, rels(entries))

	w, err = walker.New(root, walker.Options{IncludeHidden: true})
	require.NoError(t, err)
	entries, err = w.Walk()
	require.NoError(t, err)
	assert.Equal(t, []string{".config/app.txt", ".hidden.txt", "visible.txt"}, rels(entries))
}

func TestWalk_IgnorePatterns(t *testing.T) {
	root := buildTree(t, map[string]string{
		"invalid.rs":        "x",
		"other.rs":          "x",
		"sub/invalid.rs":    "x",
		"tests/one.rs":      "x",
		"tests/deep/two.rs": "x",
		"src/a.rs":          "x",
		"src/nested/b.rs":   "x",
	})

	t.Run("pattern without slash matches terminal filename anywhere", func(t *testing.T) {
		w, err := walker.New(root, walker.Options{IgnorePatterns: []string{"invalid.rs"}})
		require.NoError(t, err)
		entries, err := w.Walk()
		require.NoError(t, err)
		assert.NotContains(t, rels(entries), "invalid.rs")
		assert.NotContains(t, rels(entries), "sub/invalid.rs")
		assert.Contains(t, rels(entries), "other.rs")
	})

	t.Run("star does not cross separators", func(t *testing.T) {
		w, err := walker.New(root, walker.Options{IgnorePatterns: []string{"tests/*.rs"}})
		require.NoError(t, err)
		entries, err := w.Walk()
		require.NoError(t, err)
		assert.NotContains(t, rels(entries), "tests/one.rs")
		assert.Contains(t, rels(entries), "tests/deep/two.rs")
	})

	t.Run("double star matches any depth", func(t *testing.T) {
		w, err := walker.New(root, walker.Options{IgnorePatterns: []string{"src/**/*.rs"}})
		require.NoError(t, err)
		entries, err := w.Walk()
		require.NoError(t, err)
		assert.NotContains(t, rels(entries), "src/a.rs")
		assert.NotContains(t, rels(entries), "src/nested/b.rs")
		assert.Contains(t, rels(entries), "other.rs")
	})
}

func TestWalk_Gitignore(t *testing.T) {
	root := buildTree(t, map[string]string{
		"keep.log":       "x",
		"drop.tmp":       "x",
		"vendor/lib.go":  "x",
		"main.go":        "x",
		".gitignore":     "*.tmp\nvendor/\n!keep.tmp\n",
		"keep.tmp":       "x",
		"sub/nested.tmp": "x",
	})

	w, err := walker.New(root, walker.Options{})
	require.NoError(t, err)
	entries, err := w.Walk()
	require.NoError(t, err)

	got := rels(entries)
	assert.Contains(t, got, "main.go")
	assert.Contains(t, got, "keep.log")
	assert.Contains(t, got, "keep.tmp")
	assert.NotContains(t, got, "drop.tmp")
	assert.NotContains(t, got, "sub/nested.tmp")
	assert.NotContains(t, got, "vendor/lib.go")
}

func TestWalk_SortedAndSized(t *testing.T) {
	root := buildTree(t, map[string]string{
		"b.txt": "22",
		"a.txt": "1",
	})

	w, err := walker.New(root, walker.Options{})
	require.NoError(t, err)
	entries, err := w.Walk()
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Rel)
	assert.Equal(t, int64(1), entries[0].Size)
	assert.Equal(t, int64(2), entries[1].Size)
}
