package replace_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustscout/rustscout/internal/matcher"
	"github.com/rustscout/rustscout/internal/replace"
	"github.com/rustscout/rustscout/internal/scouterr"
	"github.com/rustscout/rustscout/internal/workspace"
)

// newWorkspace creates a temp workspace with the marker directory and
// returns its root.
func newWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	_, err := workspace.Init(root, "json")
	require.NoError(t, err)
	canonical, err := workspace.Canonical(root)
	require.NoError(t, err)
	return canonical
}

func writeFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func literalConfig(old, new string) replace.Config {
	cfg := replace.DefaultConfig()
	cfg.Patterns = []replace.Pattern{{
		Definition:      matcher.Definition{Text: old},
		ReplacementText: new,
	}}
	return cfg
}

func TestAddTask_OverlapRejected(t *testing.T) {
	root := newWorkspace(t)
	path := writeFile(t, root, "f.txt", "test content")

	cfg := literalConfig("test", "X")
	plan, err := replace.NewFilePlan(path)
	require.NoError(t, err)

	first := replace.Task{FilePath: path, Start: 0, End: 6, ReplacementText: "X", Config: &cfg}
	require.NoError(t, plan.AddTask(first))

	second := replace.Task{FilePath: path, Start: 4, End: 8, ReplacementText: "Y", Config: &cfg}
	err = plan.AddTask(second)
	require.Error(t, err)
	assert.True(t, scouterr.IsKind(err, scouterr.KindConfig))

	// The first task survives the rejection.
	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, 0, plan.Tasks[0].Start)
	assert.Equal(t, 6, plan.Tasks[0].End)
}

func TestAddTask_KeepsStartOrder(t *testing.T) {
	root := newWorkspace(t)
	path := writeFile(t, root, "f.txt", strings.Repeat("x", 40))
	cfg := literalConfig("x", "y")

	plan, err := replace.NewFilePlan(path)
	require.NoError(t, err)
	for _, start := range []int{20, 5, 12} {
		task := replace.Task{FilePath: path, Start: start, End: start + 2, ReplacementText: "y", Config: &cfg}
		require.NoError(t, plan.AddTask(task))
	}

	assert.Equal(t, 5, plan.Tasks[0].Start)
	assert.Equal(t, 12, plan.Tasks[1].Start)
	assert.Equal(t, 20, plan.Tasks[2].Start)
}

func TestTaskValidate(t *testing.T) {
	t.Run("empty pattern list", func(t *testing.T) {
		cfg := replace.DefaultConfig()
		task := replace.Task{Start: 0, End: 1, Config: &cfg}
		err := task.Validate()
		assert.True(t, scouterr.IsKind(err, scouterr.KindInvalidPattern))
	})

	t.Run("capture reference out of range", func(t *testing.T) {
		cfg := replace.DefaultConfig()
		cfg.Patterns = []replace.Pattern{{
			Definition:      matcher.Definition{Text: `fn (\w+)`, IsRegex: true},
			ReplacementText: "fn $2",
		}}
		task := replace.Task{Start: 0, End: 1, Config: &cfg}
		err := task.Validate()
		assert.True(t, scouterr.IsKind(err, scouterr.KindInvalidPattern))
	})

	t.Run("whole-word regex without markers", func(t *testing.T) {
		cfg := replace.DefaultConfig()
		cfg.Patterns = []replace.Pattern{{
			Definition: matcher.Definition{
				Text:     `hello|hi`,
				IsRegex:  true,
				Boundary: matcher.BoundaryWholeWord,
			},
			ReplacementText: "x",
		}}
		task := replace.Task{Start: 0, End: 1, Config: &cfg}
		err := task.Validate()
		assert.True(t, scouterr.IsKind(err, scouterr.KindInvalidPattern))
	})
}

func TestApply_InMemory(t *testing.T) {
	root := newWorkspace(t)
	path := writeFile(t, root, "f.txt", "test content")
	cfg := literalConfig("test", "replaced")

	plan, err := replace.PlanFile(path, &cfg)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)

	backup, err := plan.Apply(&cfg)
	require.NoError(t, err)
	require.NotEmpty(t, backup)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "replaced content", string(content))

	// The backup byte-equals the pre-apply file.
	backupContent, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "test content", string(backupContent))

	// No temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestApply_StreamingStrategy(t *testing.T) {
	root := newWorkspace(t)
	// Over 32 KiB selects the streaming strategy.
	var b strings.Builder
	for i := 0; i < 3000; i++ {
		b.WriteString("line with old value here to pad the file out\n")
	}
	path := writeFile(t, root, "big.txt", b.String())

	cfg := literalConfig("old value", "new value")
	cfg.BackupEnabled = false

	plan, err := replace.PlanFile(path, &cfg)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 3000)

	_, err = plan.Apply(&cfg)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "old value")
	assert.Equal(t, 3000, strings.Count(string(content), "new value"))
}

func TestApply_RegexCaptures(t *testing.T) {
	root := newWorkspace(t)
	path := writeFile(t, root, "f.rs", "fn alpha() {}\nfn beta() {}\n")

	cfg := replace.DefaultConfig()
	cfg.Patterns = []replace.Pattern{{
		Definition:      matcher.Definition{Text: `fn (\w+)\(\)`, IsRegex: true},
		ReplacementText: "fn new_$1()",
	}}

	plan, err := replace.PlanFile(path, &cfg)
	require.NoError(t, err)

	set := replace.NewSet(cfg)
	set.Add(plan)
	result, err := set.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesModified)
	assert.NotZero(t, result.UndoID)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fn new_alpha() {}\nfn new_beta() {}\n", string(content))
}

func TestApply_WholeWordBoundary(t *testing.T) {
	root := newWorkspace(t)
	path := writeFile(t, root, "f.txt", "Hello world! HelloWorld!\n")

	cfg := replace.DefaultConfig()
	cfg.BackupEnabled = false
	cfg.Patterns = []replace.Pattern{{
		Definition:      matcher.Definition{Text: "Hello", Boundary: matcher.BoundaryWholeWord},
		ReplacementText: "Hi",
	}}

	plan, err := replace.PlanFile(path, &cfg)
	require.NoError(t, err)
	_, err = plan.Apply(&cfg)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Hi world! HelloWorld!\n", string(content))
}

func TestApply_WholeFileReplacement(t *testing.T) {
	root := newWorkspace(t)
	path := writeFile(t, root, "f.txt", "whole file body")

	cfg := literalConfig("unused", "")
	cfg.BackupEnabled = false
	plan, err := replace.NewFilePlan(path)
	require.NoError(t, err)
	require.NoError(t, plan.AddTask(replace.Task{
		FilePath: path, Start: 0, End: len("whole file body"), ReplacementText: "", Config: &cfg,
	}))

	_, err = plan.Apply(&cfg)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestApply_DryRun(t *testing.T) {
	root := newWorkspace(t)
	original := "test content"
	path := writeFile(t, root, "f.txt", original)

	cfg := literalConfig("test", "replaced")
	cfg.DryRun = true

	plan, err := replace.PlanFile(path, &cfg)
	require.NoError(t, err)

	set := replace.NewSet(cfg)
	set.Add(plan)

	previews, err := set.Preview()
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, original, previews[0].Old)
	assert.Equal(t, "replaced content", previews[0].New)
	require.Len(t, previews[0].Changes, 1)
	assert.Equal(t, 1, previews[0].Changes[0].LineNumber)

	result, err := set.Apply(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.FilesModified)
	assert.Zero(t, result.UndoID)

	// Nothing on disk changed: no rewrite, no backups, no undo records.
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(content))
	entries, _ := os.ReadDir(workspace.UndoDir(root))
	assert.Empty(t, entries)
	entries, _ = os.ReadDir(workspace.BackupsDir(root))
	assert.Empty(t, entries)
}

func TestApply_PreservesPermissions(t *testing.T) {
	root := newWorkspace(t)
	path := writeFile(t, root, "f.sh", "test content")
	require.NoError(t, os.Chmod(path, 0o755))

	cfg := literalConfig("test", "replaced")
	plan, err := replace.PlanFile(path, &cfg)
	require.NoError(t, err)
	_, err = plan.Apply(&cfg)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestApply_SpliceMatchesTaskOrder(t *testing.T) {
	root := newWorkspace(t)
	path := writeFile(t, root, "f.txt", "aaa bbb aaa ccc aaa")
	cfg := literalConfig("aaa", "Z")
	cfg.BackupEnabled = false

	plan, err := replace.PlanFile(path, &cfg)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 3)

	_, err = plan.Apply(&cfg)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Z bbb Z ccc Z", string(content))
}

func TestLoadConfig_MergeCLI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
patterns:
  - definition:
      text: old
    replacement_text: new
backup_enabled: true
preserve_metadata: false
`), 0o644))

	cfg, err := replace.LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Patterns, 1)
	assert.Equal(t, "old", cfg.Patterns[0].Definition.Text)
	assert.True(t, cfg.BackupEnabled)

	cli := replace.Config{DryRun: true, Threads: 2}
	cfg.MergeCLI(cli)
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.BackupEnabled)
	assert.Equal(t, 2, cfg.Threads)
	assert.Equal(t, "old", cfg.Patterns[0].Definition.Text)
}
