// detector.go implements change detection for the incremental cache.
//
// Two strategies exist behind one interface: a filesystem-signature
// detector that compares stat (and optionally hash) data against the
// cache, and a git-status detector that asks the repository which files
// moved. The auto selector picks git when the root is a repository,
// otherwise signatures. The core never depends on either concretely.
package cache

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rustscout/rustscout/internal/scouterr"
)

// ChangeStatus classifies how a file changed since the last search.
type ChangeStatus int

const (
	// Unchanged means the cached result is still valid.
	Unchanged ChangeStatus = iota
	// Added is a file the cache has never seen.
	Added
	// Modified is a file whose content changed.
	Modified
	// Renamed is a file that moved; OldPath carries the previous name.
	Renamed
	// Deleted is a file that no longer exists.
	Deleted
)

// String returns the status name used in output.
func (s ChangeStatus) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// FileChange pairs a path with its detected status.
type FileChange struct {
	Path    string       `json:"path"`
	Status  ChangeStatus `json:"status"`
	OldPath string       `json:"old_path,omitempty"` // set for Renamed
}

// Detector reports which of the given paths changed. Anything
// non-Unchanged must be re-searched.
type Detector interface {
	DetectChanges(paths []string) ([]FileChange, error)
}

// SignatureDetector compares file signatures against a cache.
type SignatureDetector struct {
	cache    *IncrementalCache
	withHash bool
}

// NewSignatureDetector creates a detector backed by c. When withHash is
// set, each file's content is hashed, and a cached entry that also carries
// a hash is compared by hash and size, ignoring mtime.
func NewSignatureDetector(c *IncrementalCache, withHash bool) *SignatureDetector {
	return &SignatureDetector{cache: c, withHash: withHash}
}

// DetectChanges classifies each path against the cached signatures.
func (d *SignatureDetector) DetectChanges(paths []string) ([]FileChange, error) {
	changes := make([]FileChange, 0, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			changes = append(changes, FileChange{Path: path, Status: Deleted})
			continue
		}

		sig, err := ComputeSignature(path, d.withHash)
		if err != nil {
			changes = append(changes, FileChange{Path: path, Status: Modified})
			continue
		}

		entry, ok := d.cache.Files[path]
		switch {
		case !ok:
			changes = append(changes, FileChange{Path: path, Status: Added})
		case !entry.Signature.Equal(sig):
			changes = append(changes, FileChange{Path: path, Status: Modified})
		default:
			changes = append(changes, FileChange{Path: path, Status: Unchanged})
		}
	}
	return changes, nil
}

// GitStatusDetector asks git which files changed relative to HEAD.
type GitStatusDetector struct {
	root string
}

// NewGitStatusDetector creates a detector for the repository at root.
func NewGitStatusDetector(root string) *GitStatusDetector {
	return &GitStatusDetector{root: root}
}

// DetectChanges runs `git status --porcelain` once and classifies the
// given paths from its output; paths git does not mention are
// Unchanged.
func (d *GitStatusDetector) DetectChanges(paths []string) ([]FileChange, error) {
	out, err := exec.Command("git", "-C", d.root, "status", "--porcelain").Output()
	if err != nil {
		return nil, scouterr.Cache("git status probe", err)
	}

	status := make(map[string]FileChange)
	for _, line := range strings.Split(string(out), "\n") {
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		rest := strings.TrimSpace(line[3:])

		switch {
		case strings.Contains(code, "R"):
			// Renames are reported as "old -> new".
			if parts := strings.SplitN(rest, " -> ", 2); len(parts) == 2 {
				abs := filepath.Join(d.root, filepath.FromSlash(parts[1]))
				status[abs] = FileChange{
					Path:    abs,
					Status:  Renamed,
					OldPath: filepath.Join(d.root, filepath.FromSlash(parts[0])),
				}
			}
		case strings.Contains(code, "D"):
			abs := filepath.Join(d.root, filepath.FromSlash(rest))
			status[abs] = FileChange{Path: abs, Status: Deleted}
		case strings.Contains(code, "?") || strings.Contains(code, "A"):
			abs := filepath.Join(d.root, filepath.FromSlash(rest))
			status[abs] = FileChange{Path: abs, Status: Added}
		default:
			abs := filepath.Join(d.root, filepath.FromSlash(rest))
			status[abs] = FileChange{Path: abs, Status: Modified}
		}
	}

	changes := make([]FileChange, 0, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if change, ok := status[abs]; ok {
			change.Path = path
			changes = append(changes, change)
			continue
		}
		changes = append(changes, FileChange{Path: path, Status: Unchanged})
	}
	return changes, nil
}

// NewAutoDetector selects the git detector when root is a repository,
// otherwise the signature detector backed by c.
func NewAutoDetector(root string, c *IncrementalCache, withHash bool) Detector {
	if info, err := os.Stat(filepath.Join(root, ".git")); err == nil && info.IsDir() {
		return NewGitStatusDetector(root)
	}
	return NewSignatureDetector(c, withHash)
}
