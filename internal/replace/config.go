// Package replace plans and executes search-and-replace edits.
//
// A plan holds strictly ordered, non-overlapping byte-range edits for
// one file, validated at construction. Applying a plan picks one of
// three strategies by the file's current size and always publishes
// through a same-directory rename, so readers observe either the old
// file or the new one, never a half-written state. Backups and a
// diff-carrying undo record make the whole operation reversible.
package replace

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rustscout/rustscout/internal/matcher"
	"github.com/rustscout/rustscout/internal/scouterr"
)

// Pattern pairs a search definition with its replacement template.
// Regex templates may reference capture groups via $N.
type Pattern struct {
	Definition      matcher.Definition `yaml:"definition" json:"definition"`
	ReplacementText string             `yaml:"replacement_text" json:"replacement_text"`
}

// Config describes one replacement operation.
type Config struct {
	Patterns []Pattern `yaml:"patterns" json:"patterns"`

	// BackupEnabled copies each file aside before rewriting it.
	BackupEnabled bool `yaml:"backup_enabled" json:"backup_enabled"`

	// DryRun plans and previews without touching the filesystem.
	DryRun bool `yaml:"dry_run" json:"dry_run"`

	// BackupDir overrides the workspace backups directory.
	BackupDir string `yaml:"backup_dir,omitempty" json:"backup_dir,omitempty"`

	// PreserveMetadata re-applies the original permissions after
	// publication.
	PreserveMetadata bool `yaml:"preserve_metadata" json:"preserve_metadata"`

	// UndoDir overrides the workspace undo directory.
	UndoDir string `yaml:"undo_dir,omitempty" json:"undo_dir,omitempty"`

	// Threads sizes the apply worker pool; 0 means hardware
	// parallelism.
	Threads int `yaml:"threads,omitempty" json:"threads,omitempty"`
}

// DefaultConfig returns the replacement defaults: backups and metadata
// preservation on.
func DefaultConfig() Config {
	return Config{
		BackupEnabled:    true,
		PreserveMetadata: true,
	}
}

// LoadConfig reads a replacement config from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, scouterr.IO(path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, scouterr.Serialization("parse "+path, err)
	}
	return cfg, nil
}

// MergeCLI overlays CLI-provided values onto a file-based config; CLI
// values take precedence, boolean flags are sticky.
func (c *Config) MergeCLI(cli Config) {
	if len(cli.Patterns) > 0 {
		c.Patterns = cli.Patterns
	}
	c.BackupEnabled = c.BackupEnabled || cli.BackupEnabled
	c.DryRun = c.DryRun || cli.DryRun
	c.PreserveMetadata = c.PreserveMetadata || cli.PreserveMetadata
	if cli.BackupDir != "" {
		c.BackupDir = cli.BackupDir
	}
	if cli.UndoDir != "" {
		c.UndoDir = cli.UndoDir
	}
	if cli.Threads > 0 {
		c.Threads = cli.Threads
	}
}

// validate checks the pattern list before any plan is built.
func (c *Config) validate() error {
	if len(c.Patterns) == 0 {
		return scouterr.InvalidPattern("pattern cannot be empty")
	}
	for _, p := range c.Patterns {
		m, err := matcher.Compile(p.Definition)
		if err != nil {
			return err
		}
		if err := m.ValidateTemplate(p.ReplacementText); err != nil {
			return err
		}
	}
	return nil
}
