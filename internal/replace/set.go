// set.go applies a group of file plans and records the undo metadata
// that makes the operation reversible.
//
// Files are applied in parallel; each file publishes independently and
// is individually atomic. There is no cross-file rollback: a failed
// file is reported and the rest continue, while already-published files
// keep their prior state captured in backups and diffs.
package replace

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rustscout/rustscout/internal/diff"
	"github.com/rustscout/rustscout/internal/scouterr"
	"github.com/rustscout/rustscout/internal/undo"
	"github.com/rustscout/rustscout/internal/workspace"
)

// Set groups the plans of one replacement operation.
type Set struct {
	Config Config
	Plans  []*FilePlan
}

// NewSet creates an empty set for the given config.
func NewSet(cfg Config) *Set {
	return &Set{Config: cfg}
}

// Add appends a plan to the set.
func (s *Set) Add(plan *FilePlan) {
	s.Plans = append(s.Plans, plan)
}

// FilePreview is one file's virtual (old, new) content from a dry run.
type FilePreview struct {
	Path    string        `json:"path"`
	Old     string        `json:"-"`
	New     string        `json:"-"`
	Changes []ChangedLine `json:"changes"`
}

// Preview computes every plan's effect without touching the filesystem.
func (s *Set) Preview() ([]FilePreview, error) {
	var previews []FilePreview
	for _, plan := range s.Plans {
		if len(plan.Tasks) == 0 {
			continue
		}
		oldContent, newContent, err := plan.Preview()
		if err != nil {
			return nil, err
		}
		changes, err := plan.PreviewChanges()
		if err != nil {
			return nil, err
		}
		previews = append(previews, FilePreview{
			Path:    plan.FilePath,
			Old:     oldContent,
			New:     newContent,
			Changes: changes,
		})
	}
	return previews, nil
}

// BackupEntry pairs a rewritten file with its backup copy.
type BackupEntry struct {
	Original string `json:"original"`
	Backup   string `json:"backup"`
}

// ApplyResult summarises one apply.
type ApplyResult struct {
	FilesModified int                  `json:"files_modified"`
	Backups       []BackupEntry        `json:"backups,omitempty"`
	UndoID        uint64               `json:"undo_id,omitempty"`
	Errors        []scouterr.FileError `json:"errors,omitempty"`
}

// fileCapture holds the before/after content needed for the undo diff.
type fileCapture struct {
	path       string
	oldContent string
	newContent string
	backup     string
}

// Apply runs every plan on the worker pool. After a non-dry-run apply
// that produced at least one backup, a single undo record with the
// backup pairs and per-file diffs is published.
func (s *Set) Apply(ctx context.Context) (*ApplyResult, error) {
	result := &ApplyResult{}
	if err := s.Config.validate(); err != nil {
		return nil, err
	}
	if s.Config.DryRun {
		return result, nil
	}

	threads := s.Config.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	var mu sync.Mutex
	var captures []fileCapture

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for _, plan := range s.Plans {
		if len(plan.Tasks) == 0 {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			// The (old, new) pair is captured before the rewrite; it
			// becomes the undo diff.
			oldContent, newContent, err := plan.Preview()
			if err != nil {
				mu.Lock()
				result.Errors = append(result.Errors, scouterr.NewFileError(plan.FilePath, err))
				mu.Unlock()
				return nil
			}

			backupPath, err := plan.Apply(&s.Config)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, scouterr.NewFileError(plan.FilePath, err))
				return nil
			}
			result.FilesModified++
			captures = append(captures, fileCapture{
				path:       plan.FilePath,
				oldContent: oldContent,
				newContent: newContent,
				backup:     backupPath,
			})
			if backupPath != "" {
				result.Backups = append(result.Backups, BackupEntry{Original: plan.FilePath, Backup: backupPath})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	if len(result.Backups) > 0 {
		id, err := s.saveUndoRecord(captures)
		if err != nil {
			return result, err
		}
		result.UndoID = id
	}
	return result, nil
}

// saveUndoRecord publishes the undo record for this apply and returns
// its id.
func (s *Set) saveUndoRecord(captures []fileCapture) (uint64, error) {
	root, err := workspace.DetectRoot(captures[0].path)
	if err != nil {
		return 0, err
	}
	undoDir := s.Config.UndoDir
	if undoDir == "" {
		undoDir = workspace.UndoDir(root)
	}

	record := &undo.Record{
		Description: s.description(),
		DryRun:      s.Config.DryRun,
	}

	for _, capture := range captures {
		if capture.backup == "" {
			continue
		}
		originalRef, err := undo.NewFileRef(capture.path, root)
		if err != nil {
			return 0, err
		}
		backupRef, err := undo.NewFileRef(capture.backup, root)
		if err != nil {
			return 0, err
		}
		record.Backups = append(record.Backups, undo.BackupPair{originalRef, backupRef})

		if info, err := os.Stat(capture.backup); err == nil {
			record.TotalSize += uint64(info.Size())
		}
	}
	record.FileCount = uint64(len(record.Backups))

	for _, capture := range captures {
		hunks := diff.Compute(capture.oldContent, capture.newContent)
		if len(hunks) == 0 {
			continue
		}
		fileRef, err := undo.NewFileRef(capture.path, root)
		if err != nil {
			return 0, err
		}
		record.FileDiffs = append(record.FileDiffs, undo.FileDiff{FilePath: fileRef, Hunks: hunks})
	}

	if err := undo.Save(record, undoDir, uint64(time.Now().Unix())); err != nil {
		return 0, err
	}
	return record.Timestamp, nil
}

// description summarises the operation for undo listings.
func (s *Set) description() string {
	if len(s.Config.Patterns) > 0 {
		p := s.Config.Patterns[0]
		return fmt.Sprintf("Replace '%s' with '%s'", p.Definition.Text, p.ReplacementText)
	}
	return "Replacement operation"
}
