// Package processor matches a compiled pattern against one file and
// reports line-scoped match spans with optional context lines.
//
// The read strategy is selected by file size: small files are read
// whole, medium files go through a buffered line reader, and large
// files are memory-mapped. If the size cannot be determined the
// buffered strategy is used. All three feed the same line loop, so
// match extraction, context capture, and the early-exit heuristic
// behave identically regardless of strategy.
package processor

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rustscout/rustscout/internal/matcher"
	"github.com/rustscout/rustscout/internal/mmapio"
	"github.com/rustscout/rustscout/internal/scouterr"
)

const (
	// SmallFileThreshold is the upper bound for the in-memory strategy.
	SmallFileThreshold = 32 * 1024
	// LargeFileThreshold is the lower bound for the memory-mapped strategy.
	LargeFileThreshold = 10 * 1024 * 1024
	// bufferCapacity is the buffered reader's initial size.
	bufferCapacity = 8 * 1024
	// maxLineLength bounds a single line during buffered scanning.
	maxLineLength = 10 * 1024 * 1024

	// DefaultEarlyExitLines is the default for Options.EarlyExitLines:
	// stop reading when this many leading lines produce no match.
	DefaultEarlyExitLines = 100
)

// ErrInvalidUTF8 is reported under the fail-fast policy when a file
// contains bytes that are not valid UTF-8.
var ErrInvalidUTF8 = errors.New("invalid UTF-8")

// UTF8Policy selects how invalid bytes are handled.
type UTF8Policy int

const (
	// UTF8FailFast reports an error on the first invalid byte.
	UTF8FailFast UTF8Policy = iota
	// UTF8Lossy substitutes the replacement character and continues.
	UTF8Lossy
)

// Options configures file processing.
type Options struct {
	// ContextBefore and ContextAfter request N preceding and M
	// following lines per match.
	ContextBefore int
	ContextAfter  int

	// EarlyExitLines stops reading when this many leading lines have
	// produced no match; 0 disables the heuristic. Context capture
	// disables it regardless, so a match near the cutoff cannot be
	// dropped while waiting for its after-context.
	EarlyExitLines int

	// UTF8 selects the invalid-byte policy.
	UTF8 UTF8Policy
}

// DefaultOptions returns processing options matching the CLI defaults.
func DefaultOptions() Options {
	return Options{EarlyExitLines: DefaultEarlyExitLines}
}

// ContextLine is one captured context line.
type ContextLine struct {
	LineNumber int    `json:"line_number"`
	Text       string `json:"text"`
}

// Match is a single pattern hit within a file.
type Match struct {
	LineNumber    int           `json:"line_number"`
	LineContent   string        `json:"line_content"`
	Start         int           `json:"start"`
	End           int           `json:"end"`
	Pattern       int           `json:"pattern,omitempty"`
	ContextBefore []ContextLine `json:"context_before,omitempty"`
	ContextAfter  []ContextLine `json:"context_after,omitempty"`
}

// FileResult is the ordered match list for one file.
type FileResult struct {
	Path    string  `json:"path"`
	Matches []Match `json:"matches"`
}

// FindFunc extracts match spans from one line. It is the seam between
// the processor and the matcher package: single-pattern and
// multi-pattern matchers both fit.
type FindFunc func(line string) []matcher.MultiSpan

// SingleFinder adapts a single matcher to a FindFunc.
func SingleFinder(m *matcher.Matcher) FindFunc {
	return func(line string) []matcher.MultiSpan {
		spans := m.FindAll(line)
		if len(spans) == 0 {
			return nil
		}
		out := make([]matcher.MultiSpan, len(spans))
		for i, s := range spans {
			out[i] = matcher.MultiSpan{Span: s}
		}
		return out
	}
}

// MultiFinder adapts a multi-literal matcher to a FindFunc.
func MultiFinder(m *matcher.Multi) FindFunc {
	return m.FindAll
}

// FileProcessor runs a matcher over files.
type FileProcessor struct {
	find FindFunc
	opts Options
}

// New creates a processor for a single compiled matcher.
func New(m *matcher.Matcher, opts Options) *FileProcessor {
	return &FileProcessor{find: SingleFinder(m), opts: opts}
}

// NewMulti creates a processor for a multi-literal matcher.
func NewMulti(m *matcher.Multi, opts Options) *FileProcessor {
	return &FileProcessor{find: MultiFinder(m), opts: opts}
}

// NewFunc creates a processor from a raw FindFunc.
func NewFunc(find FindFunc, opts Options) *FileProcessor {
	return &FileProcessor{find: find, opts: opts}
}

// Process matches the pattern against the file at path.
func (p *FileProcessor) Process(path string) (FileResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		// Unknown size: the buffered strategy handles any length and
		// will surface the real open error.
		return p.processBuffered(path)
	}

	size := info.Size()
	switch {
	case size < SmallFileThreshold:
		return p.processInMemory(path)
	case size >= LargeFileThreshold:
		return p.processMapped(path)
	default:
		return p.processBuffered(path)
	}
}

// processInMemory reads the whole file and scans it as a string.
func (p *FileProcessor) processInMemory(path string) (FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{Path: path}, scouterr.IO(path, err)
	}
	return p.scanReader(path, bytes.NewReader(data))
}

// processBuffered streams the file through a buffered line reader.
func (p *FileProcessor) processBuffered(path string) (FileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileResult{Path: path}, scouterr.IO(path, err)
	}
	defer f.Close()
	return p.scanReader(path, bufio.NewReaderSize(f, bufferCapacity))
}

// processMapped maps the file and iterates lines over the mapping.
// Platforms without mmap support fall back to buffered reading.
func (p *FileProcessor) processMapped(path string) (FileResult, error) {
	data, done, err := mmapio.Map(path)
	if err != nil {
		if errors.Is(err, mmapio.ErrUnsupported) {
			return p.processBuffered(path)
		}
		return FileResult{Path: path}, scouterr.IO(path, err)
	}
	defer done()
	return p.scanReader(path, bytes.NewReader(data))
}

// scanReader is the shared line loop: match extraction, context
// capture, and the early-exit heuristic.
func (p *FileProcessor) scanReader(path string, r io.Reader) (FileResult, error) {
	result := FileResult{Path: path}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)

	before := p.opts.ContextBefore
	after := p.opts.ContextAfter
	earlyExit := p.opts.EarlyExitLines
	if before > 0 || after > 0 {
		earlyExit = 0
	}

	// window holds the previous `before` lines; pending indexes matches
	// in result.Matches still collecting after-context.
	var window []ContextLine
	var pending []int

	lineNo := 0
	matched := false
	for scanner.Scan() {
		lineNo++
		line, err := p.decodeLine(path, scanner.Bytes())
		if err != nil {
			return result, err
		}

		// Feed this line into matches waiting on after-context.
		if after > 0 {
			remaining := pending[:0]
			for _, idx := range pending {
				m := &result.Matches[idx]
				m.ContextAfter = append(m.ContextAfter, ContextLine{LineNumber: lineNo, Text: line})
				if len(m.ContextAfter) < after {
					remaining = append(remaining, idx)
				}
			}
			pending = remaining
		}

		for _, span := range p.find(line) {
			matched = true
			m := Match{
				LineNumber:  lineNo,
				LineContent: line,
				Start:       span.Start,
				End:         span.End,
				Pattern:     span.Pattern,
			}
			if before > 0 && len(window) > 0 {
				m.ContextBefore = append([]ContextLine(nil), window...)
			}
			result.Matches = append(result.Matches, m)
			if after > 0 {
				pending = append(pending, len(result.Matches)-1)
			}
		}

		if before > 0 {
			window = append(window, ContextLine{LineNumber: lineNo, Text: line})
			if len(window) > before {
				window = window[1:]
			}
		}

		if earlyExit > 0 && lineNo > earlyExit && !matched {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return result, scouterr.IO(path, err)
	}

	// EOF flushes pending matches with whatever after-context exists.
	return result, nil
}

// decodeLine applies the UTF-8 policy to one raw line.
func (p *FileProcessor) decodeLine(path string, raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	if p.opts.UTF8 == UTF8FailFast {
		return "", scouterr.IO(path, fmt.Errorf("%w", ErrInvalidUTF8))
	}
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError)), nil
}
