// plan.go builds and validates per-file edit plans.
//
// Tasks carry absolute byte ranges into the target file. AddTask keeps
// the plan ordered by start offset and rejects any range that
// intersects an existing task; every apply strategy depends on that
// invariant.
package replace

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rustscout/rustscout/internal/matcher"
	"github.com/rustscout/rustscout/internal/scouterr"
)

// Task is one byte-range edit against a file.
type Task struct {
	// FilePath is the target file.
	FilePath string `json:"file_path"`
	// Start and End delimit the replaced range [Start, End) in the
	// file's bytes, aligned to UTF-8 character boundaries at
	// construction time.
	Start int `json:"start"`
	End   int `json:"end"`
	// ReplacementText is the expanded text spliced into the range.
	ReplacementText string `json:"replacement_text"`
	// PatternIndex names the owning pattern in the config.
	PatternIndex int `json:"pattern_index"`
	// Config is the owning replacement config.
	Config *Config `json:"-"`
}

// Validate checks the task against its owning config: the pattern index
// is in range, the pattern compiles, whole-word regexes carry boundary
// markers, and template capture references exist.
func (t *Task) Validate() error {
	if t.Config == nil || len(t.Config.Patterns) == 0 {
		return scouterr.InvalidPattern("pattern cannot be empty")
	}
	if t.PatternIndex < 0 || t.PatternIndex >= len(t.Config.Patterns) {
		return scouterr.InvalidPattern("pattern index %d out of range", t.PatternIndex)
	}
	if t.Start < 0 || t.End < t.Start {
		return scouterr.Config("invalid byte range [%d, %d)", t.Start, t.End)
	}

	pattern := t.Config.Patterns[t.PatternIndex]
	m, err := matcher.Compile(pattern.Definition)
	if err != nil {
		return err
	}
	return m.ValidateTemplate(pattern.ReplacementText)
}

// FilePlan is an ordered, non-overlapping set of tasks for one file.
type FilePlan struct {
	FilePath string
	Tasks    []Task

	// origMode preserves the file's permissions when metadata
	// preservation is requested; origModeKnown distinguishes "0" from
	// "stat failed".
	origMode      os.FileMode
	origModeKnown bool
}

// NewFilePlan creates an empty plan for path, capturing the file's
// current metadata when available.
func NewFilePlan(path string) (*FilePlan, error) {
	plan := &FilePlan{FilePath: path}
	if info, err := os.Stat(path); err == nil {
		plan.origMode = info.Mode().Perm()
		plan.origModeKnown = true
	}
	return plan, nil
}

// AddTask validates the task and inserts it in start order. A range
// that intersects any existing task is rejected and the plan is left
// unchanged.
func (p *FilePlan) AddTask(task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	for _, existing := range p.Tasks {
		if task.Start < existing.End && existing.Start < task.End {
			return scouterr.Config("overlapping replacements are not allowed: [%d, %d) intersects [%d, %d)",
				task.Start, task.End, existing.Start, existing.End)
		}
	}

	at := sort.Search(len(p.Tasks), func(i int) bool {
		return p.Tasks[i].Start >= task.Start
	})
	p.Tasks = append(p.Tasks, Task{})
	copy(p.Tasks[at+1:], p.Tasks[at:])
	p.Tasks[at] = task
	return nil
}

// PlanFile scans the file at path with every configured pattern and
// returns the resulting plan. Matches are line-scoped; byte ranges are
// absolute file offsets. When two patterns produce intersecting
// matches, the earlier pattern wins and the later match is dropped.
func PlanFile(path string, cfg *Config) (*FilePlan, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	matchers := make([]*matcher.Matcher, len(cfg.Patterns))
	for i, pattern := range cfg.Patterns {
		m, err := matcher.Compile(pattern.Definition)
		if err != nil {
			return nil, err
		}
		matchers[i] = m
	}

	plan, err := NewFilePlan(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, scouterr.IO(path, err)
	}
	defer f.Close()

	// Lines are read with their terminators so offsets stay absolute.
	reader := bufio.NewReader(f)
	offset := 0
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			trimmed := strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			for i, m := range matchers {
				for _, span := range m.FindAll(trimmed) {
					task := Task{
						FilePath:        path,
						Start:           offset + span.Start,
						End:             offset + span.End,
						ReplacementText: m.ExpandTemplate(cfg.Patterns[i].ReplacementText, trimmed, span),
						PatternIndex:    i,
						Config:          cfg,
					}
					if err := plan.AddTask(task); err != nil {
						if scouterr.IsKind(err, scouterr.KindConfig) {
							continue // overlapping cross-pattern match
						}
						return nil, err
					}
				}
			}
			offset += len(line)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return nil, scouterr.IO(path, readErr)
		}
	}
	return plan, nil
}

// Preview returns the file's current content and the content the plan
// would produce, without touching the filesystem.
func (p *FilePlan) Preview() (old, new string, err error) {
	data, err := os.ReadFile(p.FilePath)
	if err != nil {
		return "", "", scouterr.IO(p.FilePath, err)
	}
	old = string(data)
	new = p.splice(data)
	return old, new, nil
}

// splice applies the plan's edits to content in memory, copying the
// unchanged gaps between tasks in ascending start order.
func (p *FilePlan) splice(content []byte) string {
	var b strings.Builder
	prev := 0
	for _, task := range p.Tasks {
		end := min(task.Start, len(content))
		b.Write(content[prev:end])
		b.WriteString(task.ReplacementText)
		prev = min(task.End, len(content))
	}
	b.Write(content[min(prev, len(content)):])
	return b.String()
}

// ChangedLine is one line the plan modifies, for previews.
type ChangedLine struct {
	LineNumber int    `json:"line_number"`
	Original   string `json:"original"`
	New        string `json:"new"`
}

// PreviewChanges lists the lines that differ between the current
// content and the planned content, by position.
func (p *FilePlan) PreviewChanges() ([]ChangedLine, error) {
	oldContent, newContent, err := p.Preview()
	if err != nil {
		return nil, err
	}

	oldLines := strings.Split(oldContent, "\n")
	newLines := strings.Split(newContent, "\n")

	var changes []ChangedLine
	for i := 0; i < len(oldLines) && i < len(newLines); i++ {
		if oldLines[i] != newLines[i] {
			changes = append(changes, ChangedLine{
				LineNumber: i + 1,
				Original:   oldLines[i],
				New:        newLines[i],
			})
		}
	}
	return changes, nil
}
