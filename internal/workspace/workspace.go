// Package workspace locates and manages the .rustscout workspace
// directory that anchors backups, undo records, and the incremental
// cache.
//
// The workspace root is the nearest ancestor containing a .rustscout
// directory, walking at most 20 levels up; if none is found the probe
// path itself is the root. Path arithmetic inside an operation always
// uses the canonicalised root so that relative paths stored in undo
// records stay valid after the workspace is moved.
package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rustscout/rustscout/internal/scouterr"
	"github.com/rustscout/rustscout/internal/version"
)

const (
	// Dir is the workspace marker directory name.
	Dir = ".rustscout"
	// maxUpwardSteps bounds the ancestor walk during root detection.
	maxUpwardSteps = 20

	configJSON = "workspace.json"
	configYAML = "workspace.yaml"
)

// GlobalConfig holds workspace-wide defaults applied to every search.
type GlobalConfig struct {
	IgnorePatterns    []string `json:"ignore_patterns" yaml:"ignore_patterns"`
	DefaultExtensions []string `json:"default_extensions,omitempty" yaml:"default_extensions,omitempty"`
}

// Metadata is the persisted workspace description.
type Metadata struct {
	RootPath     string        `json:"root_path" yaml:"root_path"`
	Version      string        `json:"version" yaml:"version"`
	Format       string        `json:"format" yaml:"format"`
	GlobalConfig *GlobalConfig `json:"global_config,omitempty" yaml:"global_config,omitempty"`
}

// NewMetadata builds metadata for a workspace rooted at root.
func NewMetadata(root, format string) *Metadata {
	return &Metadata{
		RootPath: root,
		Version:  version.Version,
		Format:   format,
	}
}

// Canonical returns an absolute, symlink-resolved form of path. If the
// path does not exist yet, symlink resolution is skipped.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", scouterr.IO(path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// DetectRoot walks up from start looking for the workspace marker
// directory. If no marker is found within maxUpwardSteps ancestors the
// canonicalised start path is returned.
func DetectRoot(start string) (string, error) {
	current, err := Canonical(start)
	if err != nil {
		return "", err
	}
	// A file probe anchors at its directory.
	if info, err := os.Stat(current); err == nil && !info.IsDir() {
		current = filepath.Dir(current)
	}
	origin := current

	for i := 0; i < maxUpwardSteps; i++ {
		marker := filepath.Join(current, Dir)
		if info, err := os.Stat(marker); err == nil && info.IsDir() {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return origin, nil
}

// Init creates the workspace marker directory under root and writes the
// metadata file in the requested format ("json" or "yaml").
func Init(root, format string) (*Metadata, error) {
	canonical, err := Canonical(root)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(canonical, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, scouterr.IO(dir, err)
	}

	meta := NewMetadata(canonical, normalizeFormat(format))
	if err := meta.Save(); err != nil {
		return nil, err
	}
	return meta, nil
}

// Save writes the metadata file into the workspace marker directory,
// using the temp-and-rename pattern so readers never observe a partial
// file.
func (m *Metadata) Save() error {
	dir := filepath.Join(m.RootPath, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return scouterr.IO(dir, err)
	}

	var (
		name string
		data []byte
		err  error
	)
	if m.Format == "yaml" {
		name = configYAML
		data, err = yaml.Marshal(m)
	} else {
		name = configJSON
		data, err = json.MarshalIndent(m, "", "  ")
	}
	if err != nil {
		return scouterr.Serialization("encode workspace metadata", err)
	}

	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return scouterr.IO(tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return scouterr.IO(path, err)
	}
	return nil
}

// Load reads workspace metadata from root, preferring the JSON form.
// A workspace without a metadata file yields fresh defaults; the stored
// root path is always overridden with the provided one so a moved
// workspace never resurrects its old location.
func Load(root string) (*Metadata, error) {
	canonical, err := Canonical(root)
	if err != nil {
		return nil, err
	}

	jsonPath := filepath.Join(canonical, Dir, configJSON)
	if data, err := os.ReadFile(jsonPath); err == nil {
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, scouterr.Serialization("parse "+jsonPath, err)
		}
		meta.RootPath = canonical
		return &meta, nil
	}

	yamlPath := filepath.Join(canonical, Dir, configYAML)
	if data, err := os.ReadFile(yamlPath); err == nil {
		var meta Metadata
		if err := yaml.Unmarshal(data, &meta); err != nil {
			return nil, scouterr.Serialization("parse "+yamlPath, err)
		}
		meta.RootPath = canonical
		meta.Format = "yaml"
		return &meta, nil
	}

	return NewMetadata(canonical, "json"), nil
}

// Rel returns path relative to root with forward slashes. Paths outside
// the root fall back to their base name so a backup entry can still be
// keyed.
func Rel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// SanitizeBackupName flattens a workspace-relative path into a single
// filename component for the backups directory.
func SanitizeBackupName(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.ReplaceAll(rel, "/", "_")
	return strings.ReplaceAll(rel, "\\", "_")
}

// BackupsDir returns the backup directory beneath root.
func BackupsDir(root string) string {
	return filepath.Join(root, Dir, "backups")
}

// UndoDir returns the undo-record directory beneath root.
func UndoDir(root string) string {
	return filepath.Join(root, Dir, "undo")
}

// CacheDir returns the incremental-cache directory beneath root.
func CacheDir(root string) string {
	return filepath.Join(root, Dir, "cache")
}

func normalizeFormat(format string) string {
	if strings.EqualFold(format, "yaml") {
		return "yaml"
	}
	return "json"
}
