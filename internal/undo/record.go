// Package undo persists and replays the records that make replacements
// reversible.
//
// A record stores, for every rewritten file, the (original, backup)
// pair and a line-diff of the change. File references carry both a
// workspace-relative path and a canonical absolute path: the relative
// form is the system of record and survives workspace moves, the
// absolute form is a fast path that may go stale. Records are published
// atomically; a partially written record is never observed.
package undo

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rustscout/rustscout/internal/diff"
	"github.com/rustscout/rustscout/internal/scouterr"
	"github.com/rustscout/rustscout/internal/workspace"
)

// FileRef locates a file relative to the workspace, with an optional
// absolute fast path.
type FileRef struct {
	RelPath string `json:"rel_path"`
	AbsPath string `json:"abs_path,omitempty"`
}

// NewFileRef builds a reference for path anchored at workspaceRoot.
func NewFileRef(path, workspaceRoot string) (FileRef, error) {
	abs, err := workspace.Canonical(path)
	if err != nil {
		return FileRef{}, err
	}
	return FileRef{
		RelPath: workspace.Rel(workspaceRoot, abs),
		AbsPath: abs,
	}, nil
}

// Resolve returns the on-disk path for the reference: the absolute path
// when it still exists, otherwise the workspace-relative fallback
// joined onto root. The fallback is what keeps undo working after the
// workspace directory is moved.
func (r FileRef) Resolve(root string) string {
	if r.AbsPath != "" {
		if _, err := os.Stat(r.AbsPath); err == nil {
			return r.AbsPath
		}
	}
	return filepath.Join(root, filepath.FromSlash(r.RelPath))
}

// FileDiff pairs a file reference with its change hunks.
type FileDiff struct {
	FilePath FileRef     `json:"file_path"`
	Hunks    []diff.Hunk `json:"hunks"`
}

// BackupPair is an (original, backup) reference pair. It marshals as a
// two-element array.
type BackupPair [2]FileRef

// Original returns the reference to the rewritten file.
func (p BackupPair) Original() FileRef { return p[0] }

// Backup returns the reference to the pre-apply copy.
func (p BackupPair) Backup() FileRef { return p[1] }

// Record is one undoable replacement operation.
type Record struct {
	Timestamp   uint64       `json:"timestamp"`
	Description string       `json:"description"`
	Backups     []BackupPair `json:"backups"`
	TotalSize   uint64       `json:"total_size"`
	FileCount   uint64       `json:"file_count"`
	DryRun      bool         `json:"dry_run"`
	FileDiffs   []FileDiff   `json:"file_diffs"`
}

// idMu guards the monotonic widening of record ids.
var (
	idMu   sync.Mutex
	lastID uint64
)

// nextID widens a second-resolution timestamp so concurrent applies in
// one process never collide.
func nextID(now uint64) uint64 {
	idMu.Lock()
	defer idMu.Unlock()
	if now <= lastID {
		now = lastID + 1
	}
	lastID = now
	return now
}

// Save assigns the record an id and publishes it under undoDir
// atomically. Cross-process id collisions are resolved by an exclusive
// link that retries on the next id.
func Save(record *Record, undoDir string, now uint64) error {
	if err := os.MkdirAll(undoDir, 0o755); err != nil {
		return scouterr.IO(undoDir, err)
	}

	for {
		id := nextID(now)
		record.Timestamp = id

		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return scouterr.Serialization("encode undo record", err)
		}

		final := filepath.Join(undoDir, strconv.FormatUint(id, 10)+".json")
		tmp := final + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return scouterr.IO(tmp, err)
		}

		// Link publishes atomically and exclusively: a taken id fails
		// with EEXIST and we retry on the next one. Readers only ever
		// see complete records.
		err = os.Link(tmp, final)
		os.Remove(tmp)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return scouterr.IO(final, err)
		}
	}
}

// List returns every record under undoDir ordered by timestamp.
// Unparseable record files are reported, not skipped silently.
func List(undoDir string) ([]*Record, error) {
	entries, err := os.ReadDir(undoDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, scouterr.IO(undoDir, err)
	}

	var records []*Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		record, err := readRecord(filepath.Join(undoDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp < records[j].Timestamp
	})
	return records, nil
}

// Load reads the record with the given id.
func Load(undoDir string, id uint64) (*Record, error) {
	return readRecord(recordPath(undoDir, id))
}

// Remove deletes the record file for id.
func Remove(undoDir string, id uint64) error {
	if err := os.Remove(recordPath(undoDir, id)); err != nil && !os.IsNotExist(err) {
		return scouterr.IO(recordPath(undoDir, id), err)
	}
	return nil
}

func recordPath(undoDir string, id uint64) string {
	return filepath.Join(undoDir, strconv.FormatUint(id, 10)+".json")
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scouterr.IO(path, err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, scouterr.Serialization("parse undo record "+path, err)
	}
	return &record, nil
}
