// executor.go applies a validated plan to disk.
//
// The strategy is chosen by the file's size at apply time: small files
// are rewritten in memory with edits applied in reverse start order,
// medium files stream through buffered reader/writer pairs copying the
// gaps between edits, and large files are memory-mapped and spliced
// into a fresh buffer. Every strategy ends with the same-directory
// rename that is the operation's single publication point.
package replace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rustscout/rustscout/internal/mmapio"
	"github.com/rustscout/rustscout/internal/scouterr"
	"github.com/rustscout/rustscout/internal/workspace"
)

const (
	// smallFileThreshold is the upper bound for the in-memory strategy.
	smallFileThreshold = 32 * 1024
	// largeFileThreshold is the lower bound for the memory-mapped
	// strategy.
	largeFileThreshold = 10 * 1024 * 1024
)

// strategy selects how a plan's edits reach the disk.
type strategy int

const (
	strategyInMemory strategy = iota
	strategyStreaming
	strategyMemoryMapped
)

func strategyForSize(size int64) strategy {
	switch {
	case size < smallFileThreshold:
		return strategyInMemory
	case size < largeFileThreshold:
		return strategyStreaming
	default:
		return strategyMemoryMapped
	}
}

// Apply executes the plan against the filesystem and returns the backup
// path when one was written. Dry runs return immediately without
// touching anything. Backup failure aborts the apply before any
// modification.
func (p *FilePlan) Apply(cfg *Config) (backupPath string, err error) {
	if cfg.DryRun {
		return "", nil
	}
	if len(p.Tasks) == 0 {
		return "", nil
	}

	if cfg.BackupEnabled {
		backupPath, err = p.createBackup(cfg)
		if err != nil {
			return "", err
		}
	}

	strat := strategyInMemory
	if info, err := os.Stat(p.FilePath); err == nil {
		strat = strategyForSize(info.Size())
	}

	switch strat {
	case strategyInMemory:
		err = p.applyInMemory()
	case strategyStreaming:
		err = p.applyStreaming()
	case strategyMemoryMapped:
		err = p.applyMemoryMapped()
	}
	if err != nil {
		return backupPath, err
	}

	if cfg.PreserveMetadata && p.origModeKnown {
		if err := os.Chmod(p.FilePath, p.origMode); err != nil {
			return backupPath, scouterr.IO(p.FilePath, err)
		}
	}
	return backupPath, nil
}

// applyInMemory reads the whole file, applies the edits in reverse
// start order so earlier offsets stay stable, and publishes the result.
func (p *FilePlan) applyInMemory() error {
	content, err := os.ReadFile(p.FilePath)
	if err != nil {
		return scouterr.IO(p.FilePath, err)
	}

	result := content
	for i := len(p.Tasks) - 1; i >= 0; i-- {
		task := p.Tasks[i]
		if task.End > len(result) {
			return scouterr.Config("task range [%d, %d) exceeds file size %d", task.Start, task.End, len(result))
		}
		patched := make([]byte, 0, len(result)-(task.End-task.Start)+len(task.ReplacementText))
		patched = append(patched, result[:task.Start]...)
		patched = append(patched, task.ReplacementText...)
		patched = append(patched, result[task.End:]...)
		result = patched
	}

	return p.publish(result)
}

// applyStreaming copies the file through buffered reader and writer,
// emitting replacement text in place of each task's range.
func (p *FilePlan) applyStreaming() error {
	src, err := os.Open(p.FilePath)
	if err != nil {
		return scouterr.IO(p.FilePath, err)
	}
	defer src.Close()

	tmpPath := p.FilePath + ".tmp"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return scouterr.IO(tmpPath, err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	reader := bufio.NewReader(src)
	writer := bufio.NewWriter(tmp)

	pos := 0
	for _, task := range p.Tasks {
		if _, err := io.CopyN(writer, reader, int64(task.Start-pos)); err != nil {
			cleanup()
			return scouterr.IO(p.FilePath, err)
		}
		if _, err := writer.WriteString(task.ReplacementText); err != nil {
			cleanup()
			return scouterr.IO(tmpPath, err)
		}
		if _, err := reader.Discard(task.End - task.Start); err != nil {
			cleanup()
			return scouterr.IO(p.FilePath, err)
		}
		pos = task.End
	}
	if _, err := io.Copy(writer, reader); err != nil {
		cleanup()
		return scouterr.IO(p.FilePath, err)
	}
	if err := writer.Flush(); err != nil {
		cleanup()
		return scouterr.IO(tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return scouterr.IO(tmpPath, err)
	}

	if err := os.Rename(tmpPath, p.FilePath); err != nil {
		os.Remove(tmpPath)
		return scouterr.IO(p.FilePath, err)
	}
	return nil
}

// applyMemoryMapped maps the file read-only and assembles the new
// content by splicing unchanged spans and replacement texts.
func (p *FilePlan) applyMemoryMapped() error {
	data, done, err := mmapio.Map(p.FilePath)
	if err != nil {
		if errors.Is(err, mmapio.ErrUnsupported) {
			return p.applyStreaming()
		}
		return scouterr.IO(p.FilePath, err)
	}
	defer done()

	result := make([]byte, 0, len(data))
	pos := 0
	for _, task := range p.Tasks {
		if task.End > len(data) {
			return scouterr.Config("task range [%d, %d) exceeds file size %d", task.Start, task.End, len(data))
		}
		result = append(result, data[pos:task.Start]...)
		result = append(result, task.ReplacementText...)
		pos = task.End
	}
	result = append(result, data[pos:]...)

	return p.publish(result)
}

// publish writes content to <path>.tmp and renames it over the target.
func (p *FilePlan) publish(content []byte) error {
	tmpPath := p.FilePath + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return scouterr.IO(tmpPath, err)
	}
	if err := os.Rename(tmpPath, p.FilePath); err != nil {
		os.Remove(tmpPath)
		return scouterr.IO(p.FilePath, err)
	}
	return nil
}

// createBackup copies the file into the backups directory, keyed by its
// sanitised workspace-relative path and a timestamp.
func (p *FilePlan) createBackup(cfg *Config) (string, error) {
	root, err := workspace.DetectRoot(p.FilePath)
	if err != nil {
		return "", err
	}

	backupDir := cfg.BackupDir
	if backupDir == "" {
		backupDir = workspace.BackupsDir(root)
	}
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", scouterr.IO(backupDir, err)
	}

	abs, err := workspace.Canonical(p.FilePath)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s.%d", workspace.SanitizeBackupName(workspace.Rel(root, abs)), time.Now().Unix())
	backupPath := filepath.Join(backupDir, name)

	data, err := os.ReadFile(p.FilePath)
	if err != nil {
		return "", scouterr.IO(p.FilePath, err)
	}
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", scouterr.IO(backupPath, err)
	}

	if cfg.PreserveMetadata && p.origModeKnown {
		if err := os.Chmod(backupPath, p.origMode); err != nil {
			return "", scouterr.IO(backupPath, err)
		}
	}
	return backupPath, nil
}
