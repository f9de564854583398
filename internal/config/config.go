// Package config provides reading and writing of rustscout
// configuration.
//
// Two files exist: a per-repository .rustscout.yaml at the working
// directory and a user-wide ~/.rustscout/config.yaml. A repository
// file shadows the user file completely; values are not merged across
// the two, so what a search does never depends on settings the
// repository cannot see. Unknown keys are rejected at load time, and
// saves publish through the same temp-and-rename pattern the rest of
// rustscout uses for on-disk artefacts.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoConfigPath is returned when the config path cannot be determined.
	ErrNoConfigPath = errors.New("cannot determine config path")
	// ErrInvalidValue is returned when a config value is invalid.
	ErrInvalidValue = errors.New("invalid config value")
)

// Scope represents the configuration scope (global or local).
type Scope int

const (
	// ScopeGlobal is user-wide config in ~/.rustscout/config.yaml (default)
	ScopeGlobal Scope = iota
	// ScopeLocal is repository-specific config in .rustscout.yaml
	ScopeLocal
)

// Search holds default search options. Ignore patterns are added to those
// given on the command line; the other values apply when the CLI flags
// leave them unset.
type Search struct {
	Extensions     []string `yaml:"extensions,omitempty"`
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"`
	Threads        *int     `yaml:"threads,omitempty"`
	EarlyExitLines *int     `yaml:"early_exit_lines,omitempty"`
	Incremental    *bool    `yaml:"incremental,omitempty"`
}

// Replace holds default replacement options.
type Replace struct {
	BackupEnabled    *bool `yaml:"backup_enabled,omitempty"`
	PreserveMetadata *bool `yaml:"preserve_metadata,omitempty"`
}

// Defaults applied when not configured.
const (
	DefaultEarlyExitLines = 100
)

// Validation bounds for configuration values.
const (
	MinThreads        = 1
	MaxThreads        = 1024
	MinEarlyExitLines = 0
	MaxEarlyExitLines = 1 << 30
)

// Config contains configuration for rustscout.
type Config struct {
	Search  Search  `yaml:"search,omitempty"`
	Replace Replace `yaml:"replace,omitempty"`

	// path is the file this config was loaded from (for Save)
	path  string
	scope Scope
}

// Validate checks that all configured values are within acceptable
// bounds. Returns nil if all values are valid or not set (defaults will
// be used).
func (c *Config) Validate() error {
	if c.Search.Threads != nil {
		v := *c.Search.Threads
		if v < MinThreads || v > MaxThreads {
			return fmt.Errorf("%w: threads must be between %d and %d, got %d",
				ErrInvalidValue, MinThreads, MaxThreads, v)
		}
	}
	if c.Search.EarlyExitLines != nil {
		v := *c.Search.EarlyExitLines
		if v < MinEarlyExitLines || v > MaxEarlyExitLines {
			return fmt.Errorf("%w: early_exit_lines must be between %d and %d, got %d",
				ErrInvalidValue, MinEarlyExitLines, MaxEarlyExitLines, v)
		}
	}
	return nil
}

// Threads returns the configured worker count, or 0 meaning hardware
// parallelism.
func (c *Config) Threads() int {
	if c.Search.Threads == nil {
		return 0
	}
	return *c.Search.Threads
}

// EarlyExitLines returns the no-match early-exit line count (defaults
// to 100; 0 disables the heuristic).
func (c *Config) EarlyExitLines() int {
	if c.Search.EarlyExitLines == nil {
		return DefaultEarlyExitLines
	}
	return *c.Search.EarlyExitLines
}

// Incremental returns whether incremental search is on by default.
func (c *Config) Incremental() bool {
	return c.Search.Incremental != nil && *c.Search.Incremental
}

// BackupEnabled returns whether replacements back files up (defaults to
// true).
func (c *Config) BackupEnabled() bool {
	if c.Replace.BackupEnabled == nil {
		return true
	}
	return *c.Replace.BackupEnabled
}

// PreserveMetadata returns whether replacements re-apply permissions
// (defaults to true).
func (c *Config) PreserveMetadata() bool {
	if c.Replace.PreserveMetadata == nil {
		return true
	}
	return *c.Replace.PreserveMetadata
}

// LocalPath returns the path to the local (repository) config file.
func LocalPath() string {
	return ".rustscout.yaml"
}

// GlobalPath returns the path to the global (user) config file:
// ~/.rustscout/config.yaml. Empty when no home directory exists.
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".rustscout", "config.yaml")
}

// Load reads the effective configuration: the repository file when one
// exists, otherwise the user file. Neither existing yields defaults,
// not an error.
func Load() (*Config, error) {
	if _, err := os.Stat(LocalPath()); err == nil {
		return parse(LocalPath(), ScopeLocal)
	}
	if global := GlobalPath(); global != "" {
		return parse(global, ScopeGlobal)
	}
	return &Config{scope: ScopeGlobal}, nil
}

// LoadPath reads configuration from an explicit file, treated as a
// repository-scoped override.
func LoadPath(path string) (*Config, error) {
	return parse(path, ScopeLocal)
}

// parse decodes one config file. Missing files produce defaults bound
// to the same path, so a later Save lands where the load looked.
// Unknown keys and out-of-bounds values are errors: a typoed setting
// silently ignored is worse than a refused one.
func parse(path string, scope Scope) (*Config, error) {
	cfg := &Config{path: path, scope: scope}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config %s: %w (fix the YAML, or delete the file to fall back to defaults)", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Scope returns which scope this config was loaded from.
func (c *Config) Scope() Scope {
	return c.scope
}

// Save writes the configuration back where it came from (or to the
// scope's default location when it was never on disk).
func (c *Config) Save() error {
	if c.path != "" {
		return c.write(c.path)
	}
	return c.SaveScope(c.scope)
}

// SaveScope writes the configuration to the named scope's file.
func (c *Config) SaveScope(scope Scope) error {
	path := LocalPath()
	if scope == ScopeGlobal {
		if path = GlobalPath(); path == "" {
			return ErrNoConfigPath
		}
	}
	c.path = path
	c.scope = scope
	return c.write(path)
}

// write publishes the config atomically: encode, write a sibling temp
// file, rename into place.
func (c *Config) write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory %s: %w", dir, err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish config %s: %w", path, err)
	}
	return nil
}
