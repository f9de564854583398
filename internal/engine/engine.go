// Package engine coordinates the search pipeline: compile the pattern,
// walk the tree, stratify candidates by size, fan the work out over a
// bounded worker pool, and fold the per-file results into an aggregate.
//
// Small files are dispatched individually; large files are dispatched
// in chunks sized to amortise scheduling overhead on many-tiny-file
// corpora while keeping load balance on long tails. Per-file I/O errors
// drop that file and are recorded in the aggregate; only an invalid
// pattern aborts the search, before any file is opened.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rustscout/rustscout/internal/cache"
	"github.com/rustscout/rustscout/internal/matcher"
	"github.com/rustscout/rustscout/internal/processor"
	"github.com/rustscout/rustscout/internal/scouterr"
	"github.com/rustscout/rustscout/internal/walker"
	"github.com/rustscout/rustscout/internal/workspace"
)

const (
	// smallFileThreshold splits the small and large strata.
	smallFileThreshold = processor.SmallFileThreshold
	// minChunkSize is the floor for large-file chunking.
	minChunkSize = 16
	// maxChunkSize is the ceiling for large-file chunking.
	maxChunkSize = 256
)

// Config describes one search invocation.
type Config struct {
	// Patterns to match; one or more definitions.
	Patterns []matcher.Definition `yaml:"patterns"`
	// Root is the directory to search.
	Root string `yaml:"root"`
	// Extensions restricts candidate files (no leading dot).
	Extensions []string `yaml:"extensions"`
	// IgnorePatterns excludes files per the walker's rules.
	IgnorePatterns []string `yaml:"ignore_patterns"`
	// IncludeHidden walks dot-files and dot-directories.
	IncludeHidden bool `yaml:"include_hidden"`
	// Threads sizes the worker pool; 0 means hardware parallelism.
	Threads int `yaml:"threads"`
	// ContextBefore / ContextAfter request context lines per match.
	ContextBefore int `yaml:"context_before"`
	ContextAfter  int `yaml:"context_after"`
	// EarlyExitLines configures the no-match early exit (0 disables).
	EarlyExitLines int `yaml:"early_exit_lines"`
	// LossyUTF8 substitutes replacement characters instead of failing.
	LossyUTF8 bool `yaml:"lossy_utf8"`
	// Incremental reuses cached matches for unchanged files.
	Incremental bool `yaml:"incremental"`
	// CachePath overrides the cache location (default: workspace cache
	// dir).
	CachePath string `yaml:"cache_path"`
}

// NewConfig returns a search config with CLI defaults for root and a
// single pattern.
func NewConfig(pattern, root string) Config {
	return Config{
		Patterns:       []matcher.Definition{{Text: pattern}},
		Root:           root,
		EarlyExitLines: processor.DefaultEarlyExitLines,
	}
}

func (c *Config) threads() int {
	if c.Threads > 0 {
		return c.Threads
	}
	return runtime.NumCPU()
}

func (c *Config) processorOptions() processor.Options {
	opts := processor.Options{
		ContextBefore:  c.ContextBefore,
		ContextAfter:   c.ContextAfter,
		EarlyExitLines: c.EarlyExitLines,
	}
	if c.LossyUTF8 {
		opts.UTF8 = processor.UTF8Lossy
	}
	return opts
}

// patternKey identifies the pattern set for cache invalidation.
func (c *Config) patternKey() string {
	parts := make([]string, len(c.Patterns))
	for i, def := range c.Patterns {
		parts[i] = fmt.Sprintf("%v|%v|%v|%s", def.IsRegex, def.Boundary, def.Hyphen, def.Text)
	}
	return strings.Join(parts, "\x00")
}

// Result aggregates per-file results and totals.
type Result struct {
	FileResults      []processor.FileResult `json:"file_results"`
	TotalMatches     int                    `json:"total_matches"`
	FilesSearched    int                    `json:"files_searched"`
	FilesWithMatches int                    `json:"files_with_matches"`
	// Errors lists files dropped from the search, with the reason.
	Errors []scouterr.FileError `json:"errors,omitempty"`
	// CacheHits counts files whose matches were reused (incremental
	// mode only).
	CacheHits int `json:"cache_hits,omitempty"`
}

// addFileResult folds one processed file into the aggregate. Zero-match
// results count as searched but are not retained.
func (r *Result) addFileResult(fr processor.FileResult) {
	r.FilesSearched++
	if len(fr.Matches) == 0 {
		return
	}
	r.TotalMatches += len(fr.Matches)
	r.FilesWithMatches++
	r.FileResults = append(r.FileResults, fr)
}

// SortByPath orders file results for deterministic output. The engine
// itself guarantees no order.
func (r *Result) SortByPath() {
	sort.Slice(r.FileResults, func(i, j int) bool {
		return r.FileResults[i].Path < r.FileResults[j].Path
	})
}

// buildFinder compiles the pattern set into a line-matching function.
// Multiple boundary-free literals collapse into one Aho-Corasick pass;
// any other combination runs the compiled matchers in sequence.
func buildFinder(defs []matcher.Definition) (processor.FindFunc, error) {
	if matcher.CanUseMulti(defs) {
		multi, err := matcher.CompileMulti(defs)
		if err != nil {
			return nil, err
		}
		return processor.MultiFinder(multi), nil
	}

	matchers := make([]*matcher.Matcher, len(defs))
	for i, def := range defs {
		m, err := matcher.Compile(def)
		if err != nil {
			return nil, err
		}
		matchers[i] = m
	}

	if len(matchers) == 1 {
		return processor.SingleFinder(matchers[0]), nil
	}
	return func(line string) []matcher.MultiSpan {
		var spans []matcher.MultiSpan
		for i, m := range matchers {
			for _, s := range m.FindAll(line) {
				spans = append(spans, matcher.MultiSpan{Span: s, Pattern: i})
			}
		}
		sort.Slice(spans, func(a, b int) bool {
			if spans[a].Start != spans[b].Start {
				return spans[a].Start < spans[b].Start
			}
			return spans[a].Pattern < spans[b].Pattern
		})
		return spans
	}, nil
}

// Search runs the full pipeline and returns the aggregate result.
func Search(ctx context.Context, cfg Config) (*Result, error) {
	result := &Result{}

	if emptyPatterns(cfg.Patterns) {
		return result, nil
	}

	// Pattern errors surface before any file is opened.
	find, err := buildFinder(cfg.Patterns)
	if err != nil {
		return nil, err
	}
	proc := processor.NewFunc(find, cfg.processorOptions())

	w, err := walker.New(cfg.Root, walker.Options{
		Extensions:     cfg.Extensions,
		IgnorePatterns: cfg.IgnorePatterns,
		IncludeHidden:  cfg.IncludeHidden,
	})
	if err != nil {
		return nil, err
	}
	entries, err := w.Walk()
	if err != nil {
		return nil, err
	}

	var inc *incrementalState
	if cfg.Incremental {
		inc = loadIncremental(cfg, w.Root())
		entries = inc.filter(entries, result)
	}

	small := entries[:0:0]
	var large []walker.Entry
	for _, e := range entries {
		if e.Size < smallFileThreshold {
			small = append(small, e)
		} else {
			large = append(large, e)
		}
	}

	var mu sync.Mutex
	collect := func(fr processor.FileResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Errors = append(result.Errors, scouterr.NewFileError(fr.Path, err))
			return
		}
		result.addFileResult(fr)
		if inc != nil {
			inc.record(fr)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.threads())

	for _, entry := range small {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			fr, err := proc.Process(entry.Path)
			fr.Path = entry.Path
			collect(fr, err)
			return nil
		})
	}

	if len(large) > 0 {
		chunkSize := clamp(len(large)/cfg.threads(), minChunkSize, maxChunkSize)
		for start := 0; start < len(large); start += chunkSize {
			chunk := large[start:min(start+chunkSize, len(large))]
			g.Go(func() error {
				for _, entry := range chunk {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					fr, err := proc.Process(entry.Path)
					fr.Path = entry.Path
					collect(fr, err)
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	if inc != nil {
		inc.finish(result)
	}
	return result, nil
}

func emptyPatterns(defs []matcher.Definition) bool {
	for _, def := range defs {
		if def.Text != "" {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// incrementalState carries the cache through one search.
type incrementalState struct {
	cache *cache.IncrementalCache
	path  string
	total int
	mu    sync.Mutex
}

// loadIncremental opens (or freshly creates) the cache for this
// pattern set.
func loadIncremental(cfg Config, root string) *incrementalState {
	path := cfg.CachePath
	if path == "" {
		wsRoot, err := workspace.DetectRoot(root)
		if err != nil {
			wsRoot = root
		}
		path = filepath.Join(workspace.CacheDir(wsRoot), cache.FileName)
	}
	c := cache.Load(path).ForPatterns(cfg.patternKey())
	return &incrementalState{cache: c, path: path}
}

// filter splits unchanged files with cached matches out of the
// candidate set, folding their cached results straight into the
// aggregate.
func (s *incrementalState) filter(entries []walker.Entry, result *Result) []walker.Entry {
	s.total = len(entries)
	detector := cache.NewSignatureDetector(s.cache, false)

	paths := make([]string, len(entries))
	keep := make(map[string]bool, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
		keep[e.Path] = true
	}
	s.cache.Prune(keep)

	changes, err := detector.DetectChanges(paths)
	if err != nil {
		return entries
	}

	var remaining []walker.Entry
	for i, change := range changes {
		if change.Status != cache.Unchanged {
			remaining = append(remaining, entries[i])
			continue
		}
		entry, ok := s.cache.Files[change.Path]
		if !ok || !entry.HasResults {
			remaining = append(remaining, entries[i])
			continue
		}
		result.CacheHits++
		result.addFileResult(processor.FileResult{Path: change.Path, Matches: entry.Matches})
	}
	return remaining
}

// record stores a freshly computed result back into the cache.
func (s *incrementalState) record(fr processor.FileResult) {
	sig, err := cache.ComputeSignature(fr.Path, false)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.cache.Store(fr.Path, sig, fr.Matches)
	s.mu.Unlock()
}

// finish persists the cache; failures are non-fatal because the cache
// is only an optimisation.
func (s *incrementalState) finish(result *Result) {
	s.cache.UpdateStats(result.CacheHits, s.total)
	_ = s.cache.Save(s.path)
}
