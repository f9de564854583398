// Package cache implements the incremental search cache.
//
// The cache stores a signature (mtime, size, optional content hash) and
// the last search's matches for every file seen. On the next run,
// unchanged files reuse their cached matches and only changed files are
// re-searched. The cache is keyed by the pattern set: a different
// pattern invalidates it wholesale, since cached matches are only valid
// for the search that produced them.
//
// A corrupt or unreadable cache file is silently discarded and a fresh
// cache is built; the cache is an optimisation, never a source of
// truth.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/rustscout/rustscout/internal/processor"
	"github.com/rustscout/rustscout/internal/scouterr"
	"github.com/rustscout/rustscout/internal/version"
)

// FileName is the cache file's name beneath the workspace cache dir.
const FileName = "search-cache.json"

// FileSignature identifies one version of a file's content.
type FileSignature struct {
	Mtime time.Time `json:"mtime"`
	Size  int64     `json:"size"`
	Hash  string    `json:"hash,omitempty"`
}

// Equal reports whether two signatures describe the same content. When
// both carry hashes the hash decides; otherwise mtime+size do.
func (s FileSignature) Equal(other FileSignature) bool {
	if s.Hash != "" && other.Hash != "" {
		return s.Hash == other.Hash && s.Size == other.Size
	}
	return s.Mtime.Equal(other.Mtime) && s.Size == other.Size
}

// ComputeSignature stats path and, when withHash is set, hashes its
// content with BLAKE2b.
func ComputeSignature(path string, withHash bool) (FileSignature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileSignature{}, scouterr.IO(path, err)
	}
	sig := FileSignature{Mtime: info.ModTime(), Size: info.Size()}

	if withHash {
		f, err := os.Open(path)
		if err != nil {
			return FileSignature{}, scouterr.IO(path, err)
		}
		defer f.Close()

		h, err := blake2b.New256(nil)
		if err != nil {
			return FileSignature{}, scouterr.Cache("init hash", err)
		}
		if _, err := io.Copy(h, f); err != nil {
			return FileSignature{}, scouterr.IO(path, err)
		}
		sig.Hash = hex.EncodeToString(h.Sum(nil))
	}
	return sig, nil
}

// Entry is one file's cached state.
type Entry struct {
	Signature    FileSignature     `json:"signature"`
	Matches      []processor.Match `json:"matches,omitempty"`
	HasResults   bool              `json:"has_results"`
	LastAccessed time.Time         `json:"last_accessed"`
	AccessCount  uint64            `json:"access_count"`
}

// Metadata describes the cache as a whole.
type Metadata struct {
	Version    string    `json:"version"`
	PatternKey string    `json:"pattern_key"`
	LastSearch time.Time `json:"last_search_timestamp"`
	HitRate    float64   `json:"hit_rate"`
}

// IncrementalCache maps file paths to cached entries.
type IncrementalCache struct {
	Files    map[string]*Entry `json:"files"`
	Metadata Metadata          `json:"metadata"`
}

// New returns an empty cache.
func New() *IncrementalCache {
	return &IncrementalCache{
		Files: make(map[string]*Entry),
		Metadata: Metadata{
			Version:    version.Version,
			LastSearch: time.Now(),
		},
	}
}

// Load reads a cache from path. A missing, unreadable, or corrupt file
// yields a fresh cache and no error.
func Load(path string) *IncrementalCache {
	data, err := os.ReadFile(path)
	if err != nil {
		return New()
	}
	var c IncrementalCache
	if err := json.Unmarshal(data, &c); err != nil {
		return New()
	}
	if c.Files == nil {
		c.Files = make(map[string]*Entry)
	}
	return &c
}

// ForPatterns returns the cache if its pattern key matches, otherwise a
// fresh cache bound to the new key. Cached matches are only meaningful
// for the pattern set that produced them.
func (c *IncrementalCache) ForPatterns(patternKey string) *IncrementalCache {
	if c.Metadata.PatternKey == patternKey {
		return c
	}
	fresh := New()
	fresh.Metadata.PatternKey = patternKey
	return fresh
}

// Save writes the cache to path via temp-and-rename so a crashed save
// never leaves a truncated cache behind.
func (c *IncrementalCache) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return scouterr.IO(filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return scouterr.Cache("encode cache", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return scouterr.IO(tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return scouterr.IO(path, err)
	}
	return nil
}

// Lookup returns the cached entry for path if its signature still
// matches sig.
func (c *IncrementalCache) Lookup(path string, sig FileSignature) (*Entry, bool) {
	entry, ok := c.Files[path]
	if !ok || !entry.Signature.Equal(sig) {
		return nil, false
	}
	entry.LastAccessed = time.Now()
	entry.AccessCount++
	return entry, true
}

// Store records the matches for path at signature sig.
func (c *IncrementalCache) Store(path string, sig FileSignature, matches []processor.Match) {
	c.Files[path] = &Entry{
		Signature:    sig,
		Matches:      matches,
		HasResults:   true,
		LastAccessed: time.Now(),
		AccessCount:  1,
	}
}

// Prune drops entries whose files are no longer in the candidate set.
func (c *IncrementalCache) Prune(keep map[string]bool) {
	for path := range c.Files {
		if !keep[path] {
			delete(c.Files, path)
		}
	}
}

// UpdateStats records the hit rate of the search that just completed.
func (c *IncrementalCache) UpdateStats(hits, total int) {
	if total > 0 {
		c.Metadata.HitRate = float64(hits) / float64(total)
	}
	c.Metadata.LastSearch = time.Now()
}
