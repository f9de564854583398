package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustscout/rustscout/internal/config"
)

func TestLoadPath(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := config.LoadPath(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.Threads())
		assert.Equal(t, config.DefaultEarlyExitLines, cfg.EarlyExitLines())
		assert.True(t, cfg.BackupEnabled())
		assert.True(t, cfg.PreserveMetadata())
		assert.False(t, cfg.Incremental())
	})

	t.Run("values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
search:
  extensions: [rs, toml]
  ignore_patterns: ["target/*"]
  threads: 4
  early_exit_lines: 0
  incremental: true
replace:
  backup_enabled: false
`), 0o644))

		cfg, err := config.LoadPath(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"rs", "toml"}, cfg.Search.Extensions)
		assert.Equal(t, []string{"target/*"}, cfg.Search.IgnorePatterns)
		assert.Equal(t, 4, cfg.Threads())
		assert.Zero(t, cfg.EarlyExitLines())
		assert.True(t, cfg.Incremental())
		assert.False(t, cfg.BackupEnabled())
		assert.True(t, cfg.PreserveMetadata())
	})

	t.Run("out-of-bounds values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("search:\n  threads: 100000\n"), 0o644))

		_, err := config.LoadPath(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrInvalidValue)
	})

	t.Run("malformed yaml is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("search: [not a map"), 0o644))

		_, err := config.LoadPath(path)
		require.Error(t, err)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	threads := 8
	cfg, err := config.LoadPath(config.LocalPath())
	require.NoError(t, err)
	cfg.Search.Threads = &threads
	require.NoError(t, cfg.Save())

	loaded, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Threads())
	assert.Equal(t, config.ScopeLocal, loaded.Scope())
}
