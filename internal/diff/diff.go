// Package diff computes line-based diffs between file versions and
// re-applies them for undo.
//
// Changes are grouped into hunks: contiguous runs of changed lines,
// merged across gaps of fewer than three common lines. Each hunk
// records 1-based start lines and the literal (newline-trimmed) line
// texts on both sides, which is exactly what per-hunk revert needs.
// Line endings are normalised to LF before diffing.
//
// Content is modelled as strings.Split(content, "\n"): a trailing
// newline contributes a final empty line. This keeps capture-then-
// revert byte-exact even when an edit adds or removes the file's final
// newline.
package diff

import (
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// contextLines is the number of common lines that separates two hunks.
// Shorter equal stretches are folded into the surrounding hunk.
const contextLines = 3

// Hunk is a localised change: a contiguous region of the original file
// replaced by a contiguous region of the new file.
type Hunk struct {
	OriginalStartLine uint64   `json:"original_start_line"`
	NewStartLine      uint64   `json:"new_start_line"`
	OriginalLineCount uint64   `json:"original_line_count"`
	NewLineCount      uint64   `json:"new_line_count"`
	OriginalLines     []string `json:"original_lines"`
	NewLines          []string `json:"new_lines"`
}

type lineTag int

const (
	tagEqual lineTag = iota
	tagDelete
	tagInsert
)

type lineOp struct {
	tag  lineTag
	text string
}

// Compute returns the hunks transforming oldContent into newContent.
// Identical inputs yield no hunks.
func Compute(oldContent, newContent string) []Hunk {
	oldContent = normalize(oldContent)
	newContent = normalize(newContent)
	if oldContent == newContent {
		return nil
	}

	ops := lineOps(oldContent, newContent)
	regions := changeRegions(ops)

	var hunks []Hunk
	oldLine, newLine := 1, 1
	opIdx := 0
	for _, region := range regions {
		// Advance counters through the untouched prefix.
		for ; opIdx < region.start; opIdx++ {
			switch ops[opIdx].tag {
			case tagEqual:
				oldLine++
				newLine++
			case tagDelete:
				oldLine++
			case tagInsert:
				newLine++
			}
		}

		hunk := Hunk{
			OriginalStartLine: uint64(oldLine),
			NewStartLine:      uint64(newLine),
		}
		for ; opIdx < region.end; opIdx++ {
			op := ops[opIdx]
			switch op.tag {
			case tagEqual:
				hunk.OriginalLines = append(hunk.OriginalLines, op.text)
				hunk.NewLines = append(hunk.NewLines, op.text)
				oldLine++
				newLine++
			case tagDelete:
				hunk.OriginalLines = append(hunk.OriginalLines, op.text)
				oldLine++
			case tagInsert:
				hunk.NewLines = append(hunk.NewLines, op.text)
				newLine++
			}
		}
		hunk.OriginalLineCount = uint64(len(hunk.OriginalLines))
		hunk.NewLineCount = uint64(len(hunk.NewLines))
		hunks = append(hunks, hunk)
	}
	return hunks
}

// Revert applies hunks in reverse: for each selected hunk, the new
// lines are removed at NewStartLine and the original lines re-inserted.
// Hunks are processed bottom-up so earlier edits do not shift later
// offsets.
func Revert(content string, hunks []Hunk) string {
	lines := strings.Split(normalize(content), "\n")

	ordered := append([]Hunk(nil), hunks...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].NewStartLine > ordered[j].NewStartLine
	})

	for _, h := range ordered {
		start := int(h.NewStartLine) - 1
		if start < 0 {
			start = 0
		}
		if start > len(lines) {
			start = len(lines)
		}

		end := start + int(h.NewLineCount)
		if end > len(lines) {
			end = len(lines)
		}

		patched := make([]string, 0, len(lines)-(end-start)+len(h.OriginalLines))
		patched = append(patched, lines[:start]...)
		patched = append(patched, h.OriginalLines...)
		patched = append(patched, lines[end:]...)
		lines = patched
	}

	return strings.Join(lines, "\n")
}

// normalize converts CRLF to LF.
func normalize(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// lineOps produces a per-line edit script via go-diff's line mode. Both
// sides are re-encoded so that every line, including the empty line a
// trailing newline implies, carries its own terminator; chunk
// boundaries then always fall on line boundaries.
func lineOps(oldContent, newContent string) []lineOp {
	encode := func(content string) string {
		var b strings.Builder
		for _, line := range strings.Split(content, "\n") {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		return b.String()
	}

	dmp := diffmatchpatch.New()
	a, b, lineIndex := dmp.DiffLinesToChars(encode(oldContent), encode(newContent))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineIndex)

	var ops []lineOp
	for _, d := range diffs {
		var tag lineTag
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			tag = tagEqual
		case diffmatchpatch.DiffDelete:
			tag = tagDelete
		case diffmatchpatch.DiffInsert:
			tag = tagInsert
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			ops = append(ops, lineOp{tag: tag, text: line})
		}
	}
	return ops
}

type region struct {
	start, end int // half-open op-index interval
}

// changeRegions finds maximal op runs containing changes, merging runs
// separated by fewer than contextLines equal lines.
func changeRegions(ops []lineOp) []region {
	var regions []region
	current := region{start: -1}
	equalRun := 0

	for i, op := range ops {
		if op.tag == tagEqual {
			equalRun++
			continue
		}
		if current.start < 0 {
			current = region{start: i, end: i + 1}
		} else if equalRun < contextLines {
			// Fold the short equal gap into the hunk.
			current.end = i + 1
		} else {
			regions = append(regions, current)
			current = region{start: i, end: i + 1}
		}
		equalRun = 0
	}
	if current.start >= 0 {
		regions = append(regions, current)
	}
	return regions
}
