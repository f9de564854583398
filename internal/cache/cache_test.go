package cache_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustscout/rustscout/internal/cache"
	"github.com/rustscout/rustscout/internal/processor"
)

func TestLoad_MissingOrCorrupt(t *testing.T) {
	t.Run("missing file yields a fresh cache", func(t *testing.T) {
		c := cache.Load(filepath.Join(t.TempDir(), "nope.json"))
		require.NotNil(t, c)
		assert.Empty(t, c.Files)
	})

	t.Run("corrupt file is silently discarded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "search-cache.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		c := cache.Load(path)
		require.NotNil(t, c)
		assert.Empty(t, c.Files)
	})
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("content"), 0o644))

	sig, err := cache.ComputeSignature(file, true)
	require.NoError(t, err)
	assert.NotEmpty(t, sig.Hash)
	assert.Equal(t, int64(7), sig.Size)

	c := cache.New()
	c.Metadata.PatternKey = "TODO"
	c.Store(file, sig, []processor.Match{{LineNumber: 1, LineContent: "content", Start: 0, End: 3}})

	cachePath := filepath.Join(dir, cache.FileName)
	require.NoError(t, c.Save(cachePath))

	loaded := cache.Load(cachePath)
	entry, ok := loaded.Lookup(file, sig)
	require.True(t, ok)
	require.Len(t, entry.Matches, 1)
	assert.Equal(t, "content", entry.Matches[0].LineContent)

	// A save never leaves a temp file behind.
	_, err = os.Stat(cachePath + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestForPatterns(t *testing.T) {
	c := cache.New()
	c.Metadata.PatternKey = "old"
	c.Store("x", cache.FileSignature{Size: 1, Mtime: time.Now()}, nil)

	same := c.ForPatterns("old")
	assert.Len(t, same.Files, 1)

	fresh := c.ForPatterns("new")
	assert.Empty(t, fresh.Files)
	assert.Equal(t, "new", fresh.Metadata.PatternKey)
}

func TestLookup_SignatureMismatch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))

	sig, err := cache.ComputeSignature(file, false)
	require.NoError(t, err)

	c := cache.New()
	c.Store(file, sig, nil)

	changed := sig
	changed.Size++
	_, ok := c.Lookup(file, changed)
	assert.False(t, ok)

	_, ok = c.Lookup(file, sig)
	assert.True(t, ok)
}

func TestSignatureDetector(t *testing.T) {
	dir := t.TempDir()
	known := filepath.Join(dir, "known.txt")
	fresh := filepath.Join(dir, "fresh.txt")
	gone := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(known, []byte("stable"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0o644))

	c := cache.New()
	sig, err := cache.ComputeSignature(known, true)
	require.NoError(t, err)
	c.Store(known, sig, nil)

	detector := cache.NewSignatureDetector(c, true)
	changes, err := detector.DetectChanges([]string{known, fresh, gone})
	require.NoError(t, err)
	require.Len(t, changes, 3)

	assert.Equal(t, cache.Unchanged, changes[0].Status)
	assert.Equal(t, cache.Added, changes[1].Status)
	assert.Equal(t, cache.Deleted, changes[2].Status)

	// A content change flips the status to Modified.
	require.NoError(t, os.WriteFile(known, []byte("mutated"), 0o644))
	changes, err = detector.DetectChanges([]string{known})
	require.NoError(t, err)
	assert.Equal(t, cache.Modified, changes[0].Status)
}

func TestPrune(t *testing.T) {
	c := cache.New()
	now := time.Now()
	c.Store("a", cache.FileSignature{Mtime: now}, nil)
	c.Store("b", cache.FileSignature{Mtime: now}, nil)

	c.Prune(map[string]bool{"a": true})
	assert.Len(t, c.Files, 1)
	_, kept := c.Files["a"]
	assert.True(t, kept)
}
