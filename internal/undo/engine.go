// engine.go replays undo records: full restore of every touched file,
// or reversal of a selected subset of hunks.
//
// Path resolution re-detects the workspace root at undo time, so a
// record written under /tmp/a keeps working after the workspace is
// renamed to /tmp/b: stale absolute paths fall back to the
// workspace-relative form joined onto the new root.
package undo

import (
	"fmt"
	"os"

	"github.com/rustscout/rustscout/internal/diff"
	"github.com/rustscout/rustscout/internal/scouterr"
	"github.com/rustscout/rustscout/internal/workspace"
)

// Engine replays undo records for one workspace.
type Engine struct {
	// Root is the canonical workspace root, re-detected at undo time.
	Root string
	// UndoDir holds the record files.
	UndoDir string
}

// NewEngine detects the workspace root from start and returns an
// engine bound to its undo directory.
func NewEngine(start string) (*Engine, error) {
	root, err := workspace.DetectRoot(start)
	if err != nil {
		return nil, err
	}
	return &Engine{Root: root, UndoDir: workspace.UndoDir(root)}, nil
}

// List returns the workspace's undo records ordered by id.
func (e *Engine) List() ([]*Record, error) {
	return List(e.UndoDir)
}

// Undo fully restores the files of the record with the given id.
// Backups are the restore path when present, since the byte-identical
// copy reproduces the pre-apply file exactly; a record without backups
// reverts its diff hunks instead. On success the backups and the record
// file are deleted. A failure leaves the record in place so a re-run
// can finish the remaining files.
func (e *Engine) Undo(id uint64) error {
	record, err := Load(e.UndoDir, id)
	if err != nil {
		return err
	}

	if len(record.Backups) > 0 {
		for _, pair := range record.Backups {
			if err := e.restoreFromBackup(pair); err != nil {
				return err
			}
		}
	} else {
		for _, fd := range record.FileDiffs {
			if err := e.revertHunks(fd, fd.Hunks); err != nil {
				return err
			}
		}
	}

	// All files restored; retire the backups and the record itself.
	for _, pair := range record.Backups {
		backupPath := pair.Backup().Resolve(e.Root)
		if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
			return scouterr.IO(backupPath, err)
		}
	}
	return Remove(e.UndoDir, id)
}

// UndoPartial reverts only the selected hunks, indexed globally across
// the record's file diffs in the order they appear. The record and its
// backups are kept: the remaining hunks are still undoable.
func (e *Engine) UndoPartial(id uint64, hunkIndices []int) error {
	record, err := Load(e.UndoDir, id)
	if err != nil {
		return err
	}
	if len(record.FileDiffs) == 0 {
		return scouterr.Config("record %d only has full-file backups; partial revert is not possible", id)
	}

	selected := make(map[int]bool, len(hunkIndices))
	for _, idx := range hunkIndices {
		selected[idx] = true
	}

	total := 0
	for _, fd := range record.FileDiffs {
		total += len(fd.Hunks)
	}
	for idx := range selected {
		if idx < 0 || idx >= total {
			return scouterr.Config("hunk index %d out of range (record has %d hunks)", idx, total)
		}
	}

	global := 0
	for _, fd := range record.FileDiffs {
		var hunks []diff.Hunk
		for _, h := range fd.Hunks {
			if selected[global] {
				hunks = append(hunks, h)
			}
			global++
		}
		if len(hunks) == 0 {
			continue
		}
		if err := e.revertHunks(fd, hunks); err != nil {
			return err
		}
	}
	return nil
}

// revertHunks rewrites one file with the given hunks reverted,
// publishing via temp-and-rename.
func (e *Engine) revertHunks(fd FileDiff, hunks []diff.Hunk) error {
	path := fd.FilePath.Resolve(e.Root)
	data, err := os.ReadFile(path)
	if err != nil {
		return scouterr.IO(path, err)
	}

	restored := diff.Revert(string(data), hunks)
	return atomicWrite(path, []byte(restored))
}

// restoreFromBackup copies a backup over its original.
func (e *Engine) restoreFromBackup(pair BackupPair) error {
	backupPath := pair.Backup().Resolve(e.Root)
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return &scouterr.Error{
			Kind: scouterr.KindConfig,
			Msg:  fmt.Sprintf("backup file not found: %s", backupPath),
			Err:  err,
		}
	}
	return atomicWrite(pair.Original().Resolve(e.Root), data)
}

// atomicWrite publishes content at path via temp-and-rename.
func atomicWrite(path string, content []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return scouterr.IO(tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return scouterr.IO(path, err)
	}
	return nil
}
