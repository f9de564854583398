// Package walker enumerates candidate files beneath a search root.
//
// A file survives filtering only if its extension is not on the binary
// denylist, the extension allow-list (when set) admits it, and no
// ignore rule excludes it. The .git and target directories are always
// skipped, hidden entries are skipped by default, and .gitignore
// patterns at the root are honoured.
package walker

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rustscout/rustscout/internal/scouterr"
)

// binaryExtensions is the denylist of extensions never searched.
var binaryExtensions = map[string]bool{
	"exe": true, "dll": true, "so": true, "dylib": true, "bin": true,
	"obj": true, "o": true, "class": true, "jar": true, "war": true,
	"ear": true, "png": true, "jpg": true, "jpeg": true, "gif": true,
	"bmp": true, "ico": true, "pdf": true, "doc": true, "docx": true,
	"xls": true, "xlsx": true, "zip": true, "tar": true, "gz": true,
	"7z": true, "rar": true,
}

// alwaysIgnoredDirs are excluded from every walk.
var alwaysIgnoredDirs = map[string]bool{
	".git":   true,
	"target": true,
}

// Entry is a candidate file with the metadata the engine needs for
// size stratification.
type Entry struct {
	// Path is the absolute file path.
	Path string
	// Rel is the root-relative path with forward slashes.
	Rel string
	// Size is the file size in bytes.
	Size int64
}

// Options configures a walk.
type Options struct {
	// Extensions restricts results to these extensions
	// (case-insensitive, no leading dot). Empty means no restriction.
	Extensions []string
	// IgnorePatterns are user-supplied exclusion rules; a pattern
	// without a slash matches the terminal filename, one with a slash
	// is a glob over the root-relative path.
	IgnorePatterns []string
	// IncludeHidden walks into dot-files and dot-directories.
	IncludeHidden bool
}

// Walker enumerates files beneath Root.
type Walker struct {
	root    string
	opts    Options
	ignored []string // merged .gitignore + user patterns
}

// New creates a walker rooted at root. Gitignore patterns at the root
// are loaded if present; a missing .gitignore is not an error.
func New(root string, opts Options) (*Walker, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, scouterr.IO(root, err)
	}

	gitignore, err := loadGitignore(abs)
	if err != nil {
		return nil, err
	}

	return &Walker{
		root:    abs,
		opts:    opts,
		ignored: append(gitignore, opts.IgnorePatterns...),
	}, nil
}

// Root returns the absolute walk root.
func (w *Walker) Root() string { return w.root }

// Walk collects candidate entries sorted by relative path. Unreadable
// subtrees are skipped rather than aborting the walk.
func (w *Walker) Walk() ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if d.IsDir() {
			if alwaysIgnoredDirs[name] {
				return filepath.SkipDir
			}
			if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if w.isIgnored(rel, name, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if !w.Include(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, Entry{Path: path, Rel: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, scouterr.IO(w.root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Rel < entries[j].Rel })
	return entries, nil
}

// Include applies the file-level filter chain to a root-relative path:
// binary denylist, extension allow-list, then ignore rules.
func (w *Walker) Include(rel string) bool {
	rel = filepath.ToSlash(rel)
	name := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		name = rel[i+1:]
	}

	if isLikelyBinary(name) {
		return false
	}
	if !hasValidExtension(name, w.opts.Extensions) {
		return false
	}
	if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return false
	}
	return !w.isIgnored(rel, name, false)
}

// isIgnored applies the merged ignore rules to one entry. A pattern
// without a slash matches only the terminal name; a pattern with a
// slash is a glob over the relative path where ** crosses separators
// and * does not. "!" negation un-ignores, last match wins.
func (w *Walker) isIgnored(rel, name string, isDir bool) bool {
	ignored := false
	for _, pattern := range w.ignored {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}

		negated := strings.HasPrefix(pattern, "!")
		if negated {
			pattern = strings.TrimPrefix(pattern, "!")
		}

		dirOnly := strings.HasSuffix(pattern, "/")
		if dirOnly {
			if !isDir {
				continue
			}
			pattern = strings.TrimSuffix(pattern, "/")
		}

		matched := false
		if strings.Contains(pattern, "/") {
			matched = matchGlob(strings.TrimPrefix(pattern, "/"), rel)
		} else {
			matched, _ = filepath.Match(pattern, name)
		}
		if matched {
			ignored = !negated
		}
	}
	return ignored
}

// isLikelyBinary reports whether the filename's extension is on the
// binary denylist (case-insensitive).
func isLikelyBinary(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return false
	}
	return binaryExtensions[strings.ToLower(ext)]
}

// hasValidExtension applies the allow-list; an empty list admits
// everything, a file without an extension passes only then.
func hasValidExtension(name string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range extensions {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), ext) {
			return true
		}
	}
	return false
}

// matchGlob matches a slash-glob against a relative path. ** spans any
// number of path segments; * and ? stay within one segment
// (filepath.Match semantics per segment).
func matchGlob(pattern, path string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(path, "/"))
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	if pattern[0] == "**" {
		// ** may swallow zero or more leading segments.
		for skip := 0; skip <= len(path); skip++ {
			if matchSegments(pattern[1:], path[skip:]) {
				return true
			}
		}
		return false
	}
	if len(path) == 0 {
		return false
	}
	ok, err := filepath.Match(pattern[0], path[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], path[1:])
}

// loadGitignore reads root/.gitignore, returning nil when absent.
func loadGitignore(root string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, scouterr.IO(filepath.Join(root, ".gitignore"), err)
	}

	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, nil
}
