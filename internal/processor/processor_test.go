package processor_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustscout/rustscout/internal/matcher"
	"github.com/rustscout/rustscout/internal/processor"
	"github.com/rustscout/rustscout/internal/scouterr"
)

// writeFile creates a file with content under a temp dir and returns
// its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newProcessor(t *testing.T, pattern string, opts processor.Options) *processor.FileProcessor {
	t.Helper()
	m, err := matcher.CompileLiteral(pattern)
	require.NoError(t, err)
	return processor.New(m, opts)
}

func TestProcess_BasicMatch(t *testing.T) {
	path := writeFile(t, "a.txt", "Hello\nTODO x\nbye\n")
	p := newProcessor(t, "TODO", processor.DefaultOptions())

	result, err := p.Process(path)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	m := result.Matches[0]
	assert.Equal(t, 2, m.LineNumber)
	assert.Equal(t, "TODO x", m.LineContent)
	assert.Equal(t, 0, m.Start)
	assert.Equal(t, 4, m.End)
}

func TestProcess_ZeroByteFile(t *testing.T) {
	path := writeFile(t, "empty.txt", "")
	p := newProcessor(t, "anything", processor.DefaultOptions())

	result, err := p.Process(path)
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
}

func TestProcess_LastLineWithoutNewline(t *testing.T) {
	path := writeFile(t, "tail.txt", "one\ntwo\nneedle at end")
	p := newProcessor(t, "needle", processor.DefaultOptions())

	result, err := p.Process(path)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, 3, result.Matches[0].LineNumber)
	assert.Equal(t, 0, result.Matches[0].Start)
	assert.Equal(t, 6, result.Matches[0].End)
}

func TestProcess_MissingFile(t *testing.T) {
	p := newProcessor(t, "x", processor.DefaultOptions())
	_, err := p.Process(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.True(t, scouterr.IsKind(err, scouterr.KindFileNotFound))
}

func TestProcess_BufferedStrategyMatchesInMemory(t *testing.T) {
	// Over 32 KiB forces the buffered strategy; results must agree with
	// the in-memory path byte for byte.
	var b strings.Builder
	for i := 0; i < 3000; i++ {
		b.WriteString("filler line with nothing of note\n")
		if i%500 == 250 {
			b.WriteString("a TODO lives here\n")
		}
	}
	content := b.String()
	require.Greater(t, len(content), processor.SmallFileThreshold)

	big := writeFile(t, "big.txt", content)
	small := writeFile(t, "small.txt", "a TODO lives here\n")

	p := newProcessor(t, "TODO", processor.Options{})
	bigResult, err := p.Process(big)
	require.NoError(t, err)
	smallResult, err := p.Process(small)
	require.NoError(t, err)

	require.Len(t, bigResult.Matches, 6)
	for _, m := range bigResult.Matches {
		assert.Equal(t, smallResult.Matches[0].Start, m.Start)
		assert.Equal(t, smallResult.Matches[0].End, m.End)
		assert.Equal(t, "a TODO lives here", m.LineContent)
	}
}

func TestProcess_EarlyExit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("nothing\n")
	}
	b.WriteString("needle\n")

	t.Run("default heuristic skips late matches", func(t *testing.T) {
		path := writeFile(t, "late.txt", b.String())
		p := newProcessor(t, "needle", processor.DefaultOptions())
		result, err := p.Process(path)
		require.NoError(t, err)
		assert.Empty(t, result.Matches)
	})

	t.Run("disabled heuristic finds them", func(t *testing.T) {
		path := writeFile(t, "late.txt", b.String())
		p := newProcessor(t, "needle", processor.Options{EarlyExitLines: 0})
		result, err := p.Process(path)
		require.NoError(t, err)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, 201, result.Matches[0].LineNumber)
	})

	t.Run("context capture disables the heuristic", func(t *testing.T) {
		path := writeFile(t, "late.txt", b.String())
		p := newProcessor(t, "needle", processor.Options{
			EarlyExitLines: processor.DefaultEarlyExitLines,
			ContextBefore:  1,
		})
		result, err := p.Process(path)
		require.NoError(t, err)
		assert.Len(t, result.Matches, 1)
	})
}

func TestProcess_ContextLines(t *testing.T) {
	content := "l1\nl2\nmatch here\nl4\nl5\nl6\n"
	path := writeFile(t, "ctx.txt", content)
	p := newProcessor(t, "match", processor.Options{ContextBefore: 2, ContextAfter: 2})

	result, err := p.Process(path)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	m := result.Matches[0]

	require.Len(t, m.ContextBefore, 2)
	assert.Equal(t, processor.ContextLine{LineNumber: 1, Text: "l1"}, m.ContextBefore[0])
	assert.Equal(t, processor.ContextLine{LineNumber: 2, Text: "l2"}, m.ContextBefore[1])

	require.Len(t, m.ContextAfter, 2)
	assert.Equal(t, processor.ContextLine{LineNumber: 4, Text: "l4"}, m.ContextAfter[0])
	assert.Equal(t, processor.ContextLine{LineNumber: 5, Text: "l5"}, m.ContextAfter[1])
}

func TestProcess_ContextAtBoundaries(t *testing.T) {
	t.Run("match on first line has no before-context", func(t *testing.T) {
		path := writeFile(t, "first.txt", "match\nl2\n")
		p := newProcessor(t, "match", processor.Options{ContextBefore: 3, ContextAfter: 3})
		result, err := p.Process(path)
		require.NoError(t, err)
		require.Len(t, result.Matches, 1)
		assert.Empty(t, result.Matches[0].ContextBefore)
		require.Len(t, result.Matches[0].ContextAfter, 1)
	})

	t.Run("match on last line flushes partial after-context at EOF", func(t *testing.T) {
		path := writeFile(t, "last.txt", "l1\nmatch")
		p := newProcessor(t, "match", processor.Options{ContextBefore: 1, ContextAfter: 5})
		result, err := p.Process(path)
		require.NoError(t, err)
		require.Len(t, result.Matches, 1)
		assert.Empty(t, result.Matches[0].ContextAfter)
		require.Len(t, result.Matches[0].ContextBefore, 1)
		assert.Equal(t, "l1", result.Matches[0].ContextBefore[0].Text)
	})
}

func TestProcess_UTF8Policies(t *testing.T) {
	invalid := append([]byte("ok line\nbad \xff\xfe line\n"), []byte("needle\n")...)
	dir := t.TempDir()
	path := filepath.Join(dir, "latin.txt")
	require.NoError(t, os.WriteFile(path, invalid, 0o644))

	t.Run("fail-fast reports an error", func(t *testing.T) {
		p := newProcessor(t, "needle", processor.Options{UTF8: processor.UTF8FailFast})
		_, err := p.Process(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, processor.ErrInvalidUTF8)
	})

	t.Run("lossy substitutes and continues", func(t *testing.T) {
		p := newProcessor(t, "needle", processor.Options{UTF8: processor.UTF8Lossy})
		result, err := p.Process(path)
		require.NoError(t, err)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, 3, result.Matches[0].LineNumber)
	})
}

func TestProcess_MultiPattern(t *testing.T) {
	multi, err := matcher.CompileMulti([]matcher.Definition{{Text: "TODO"}, {Text: "FIXME"}})
	require.NoError(t, err)
	p := processor.NewMulti(multi, processor.DefaultOptions())

	path := writeFile(t, "multi.txt", "FIXME one\nclean\nTODO two\n")
	result, err := p.Process(path)
	require.NoError(t, err)
	require.Len(t, result.Matches, 2)
	assert.Equal(t, 1, result.Matches[0].Pattern)
	assert.Equal(t, 0, result.Matches[1].Pattern)
}
