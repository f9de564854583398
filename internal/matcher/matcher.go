// Package matcher compiles search patterns and extracts match spans
// from lines of text.
//
// Two strategies exist: short patterns without regex metacharacters use
// direct substring scanning, everything else compiles to a regular
// expression. Word-boundary and hyphen handling for literal patterns is
// applied as a span filter rather than lowered into the regex itself:
// RE2 has no lookaround, so a joining-hyphen boundary cannot be
// expressed as an assertion without consuming the neighbouring
// character and shifting the reported span. The filter yields the same
// span set either way.
//
// Compiled matchers are pooled process-wide so repeated patterns
// compile once; workers share matcher handles, never regex state.
package matcher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/rustscout/rustscout/internal/scouterr"
)

// simplePatternThreshold is the maximum length for the literal fast path.
const simplePatternThreshold = 32

// regexMetachars disqualify a pattern from the literal fast path.
const regexMetachars = `*+?[]()|^$.\`

// BoundaryMode controls word-boundary anchoring of a pattern.
type BoundaryMode int

const (
	// BoundaryNone applies no anchoring.
	BoundaryNone BoundaryMode = iota
	// BoundaryPartial requires a word boundary at one end of the match.
	BoundaryPartial
	// BoundaryWholeWord requires word boundaries at both ends.
	BoundaryWholeWord
)

// ParseBoundaryMode converts a config string into a BoundaryMode.
func ParseBoundaryMode(s string) (BoundaryMode, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return BoundaryNone, nil
	case "partial":
		return BoundaryPartial, nil
	case "whole", "whole-word", "whole_words":
		return BoundaryWholeWord, nil
	}
	return BoundaryNone, scouterr.Config("invalid boundary mode %q (valid: none, partial, whole-word)", s)
}

// HyphenMode controls whether '-' counts as a word character.
type HyphenMode int

const (
	// HyphenJoining treats '-' as part of a word ("foo-bar" is one word).
	HyphenJoining HyphenMode = iota
	// HyphenBoundary treats '-' as a word boundary.
	HyphenBoundary
)

// ParseHyphenMode converts a config string into a HyphenMode.
func ParseHyphenMode(s string) (HyphenMode, error) {
	switch strings.ToLower(s) {
	case "", "joining":
		return HyphenJoining, nil
	case "boundary":
		return HyphenBoundary, nil
	}
	return HyphenJoining, scouterr.Config("invalid hyphen mode %q (valid: joining, boundary)", s)
}

// Definition describes a search pattern before compilation.
type Definition struct {
	Text     string       `json:"text" yaml:"text"`
	IsRegex  bool         `json:"is_regex" yaml:"is_regex"`
	Boundary BoundaryMode `json:"boundary_mode" yaml:"boundary_mode"`
	Hyphen   HyphenMode   `json:"hyphen_mode" yaml:"hyphen_mode"`
}

// Span is a half-open byte-offset interval within a line.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Matcher is a compiled pattern. Immutable after compilation and safe
// for concurrent use.
type Matcher struct {
	def     Definition
	literal string         // non-empty when the literal strategy applies
	re      *regexp.Regexp // non-nil when the regex strategy applies
}

// cache pools compiled matchers by definition. Values are immutable
// *Matcher; insert races are harmless because compilation is
// deterministic.
var cache sync.Map

func cacheKey(def Definition) string {
	return fmt.Sprintf("%v|%v|%v|%s", def.IsRegex, def.Boundary, def.Hyphen, def.Text)
}

// Compile builds (or retrieves from the process-wide pool) a matcher
// for the given definition.
func Compile(def Definition) (*Matcher, error) {
	key := cacheKey(def)
	if cached, ok := cache.Load(key); ok {
		return cached.(*Matcher), nil
	}

	m, err := compile(def)
	if err != nil {
		return nil, err
	}
	actual, _ := cache.LoadOrStore(key, m)
	return actual.(*Matcher), nil
}

// CompileLiteral is a convenience for a boundary-free literal pattern.
func CompileLiteral(text string) (*Matcher, error) {
	return Compile(Definition{Text: text})
}

func compile(def Definition) (*Matcher, error) {
	m := &Matcher{def: def}

	if def.IsRegex && hasMetachars(def.Text) {
		// A user regex must carry its own boundary markers; synthesis
		// could change the meaning of the expression.
		if err := validateRegexBoundaries(def.Text, def.Boundary); err != nil {
			return nil, err
		}
		re, err := regexp.Compile(def.Text)
		if err != nil {
			return nil, scouterr.InvalidPattern("compile regex %q: %v", def.Text, err)
		}
		m.re = re
		return m, nil
	}

	if isSimple(def.Text) {
		m.literal = def.Text
		return m, nil
	}

	// Long or metacharacter-bearing literal: escape and scan with the
	// regex engine; boundary filtering still happens on the spans.
	re, err := regexp.Compile(regexp.QuoteMeta(def.Text))
	if err != nil {
		return nil, scouterr.InvalidPattern("compile pattern %q: %v", def.Text, err)
	}
	m.re = re
	return m, nil
}

// isSimple reports whether a pattern qualifies for direct substring
// scanning: shorter than 32 bytes and free of regex metacharacters.
func isSimple(pattern string) bool {
	return len(pattern) < simplePatternThreshold && !hasMetachars(pattern)
}

func hasMetachars(pattern string) bool {
	return strings.ContainsAny(pattern, regexMetachars)
}

// validateRegexBoundaries checks that a user regex carries \b markers
// where its boundary mode demands them.
func validateRegexBoundaries(pattern string, mode BoundaryMode) error {
	switch mode {
	case BoundaryWholeWord:
		if !strings.HasPrefix(pattern, `\b`) || !strings.HasSuffix(pattern, `\b`) {
			return scouterr.InvalidPattern(
				"pattern must have word boundary markers (\\b) at both ends when whole-word mode is enabled")
		}
	case BoundaryPartial:
		if !strings.HasPrefix(pattern, `\b`) && !strings.HasSuffix(pattern, `\b`) {
			return scouterr.InvalidPattern(
				"pattern must have a word boundary marker (\\b) at one end when partial boundary mode is enabled")
		}
	}
	return nil
}

// Definition returns the pattern definition this matcher was compiled
// from.
func (m *Matcher) Definition() Definition { return m.def }

// IsLiteral reports whether the literal strategy was selected.
func (m *Matcher) IsLiteral() bool { return m.literal != "" }

// Regexp returns the compiled expression backing the regex strategy, or
// nil for literal matchers.
func (m *Matcher) Regexp() *regexp.Regexp { return m.re }

// CaptureCount returns the number of capture groups, excluding group 0.
// Literal matchers have none.
func (m *Matcher) CaptureCount() int {
	if m.re == nil {
		return 0
	}
	return m.re.NumSubexp()
}

// FindAll returns all match spans within line, ordered by start offset.
func (m *Matcher) FindAll(line string) []Span {
	var spans []Span
	if m.literal != "" {
		for from := 0; ; {
			i := strings.Index(line[from:], m.literal)
			if i < 0 {
				break
			}
			start := from + i
			spans = append(spans, Span{Start: start, End: start + len(m.literal)})
			from = start + len(m.literal)
		}
	} else if m.re != nil {
		for _, loc := range m.re.FindAllStringIndex(line, -1) {
			spans = append(spans, Span{Start: loc[0], End: loc[1]})
		}
	}
	return m.filterBoundaries(line, spans)
}

// filterBoundaries drops spans that violate the definition's boundary
// mode. User regexes enforce their own \b markers and pass through.
func (m *Matcher) filterBoundaries(line string, spans []Span) []Span {
	if m.def.Boundary == BoundaryNone || (m.def.IsRegex && hasMetachars(m.def.Text)) {
		return spans
	}
	out := spans[:0]
	for _, s := range spans {
		startOK := s.Start == 0 || !m.isWordRune(runeBefore(line, s.Start))
		endOK := s.End == len(line) || !m.isWordRune(runeAt(line, s.End))
		switch m.def.Boundary {
		case BoundaryWholeWord:
			if startOK && endOK {
				out = append(out, s)
			}
		case BoundaryPartial:
			if startOK || endOK {
				out = append(out, s)
			}
		}
	}
	return out
}

// isWordRune reports whether r belongs to a word under the hyphen mode.
func (m *Matcher) isWordRune(r rune) bool {
	if r == '-' {
		return m.def.Hyphen == HyphenJoining
	}
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func runeBefore(s string, i int) rune {
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return r
}

func runeAt(s string, i int) rune {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return r
}

// templateRef extracts $N references from a replacement template.
var templateRef = regexp.MustCompile(`\$(\d+)`)

// ValidateTemplate checks that every $N reference in template names a
// capture group the matcher actually has. Group 0 is always valid.
func (m *Matcher) ValidateTemplate(template string) error {
	// Group count includes group 0, so the highest valid reference is
	// CaptureCount.
	highest := m.CaptureCount()
	for _, ref := range templateRef.FindAllStringSubmatch(template, -1) {
		n, err := strconv.Atoi(ref[1])
		if err != nil {
			continue
		}
		if n > highest {
			return scouterr.InvalidPattern("capture group $%d does not exist", n)
		}
	}
	return nil
}

// ExpandTemplate renders the replacement text for the match of line at
// span. Literal matchers return the template verbatim; regex matchers
// expand $N references against the match's capture groups.
func (m *Matcher) ExpandTemplate(template, line string, span Span) string {
	if m.re == nil {
		return template
	}
	match := m.re.FindStringSubmatchIndex(line[span.Start:span.End])
	if match == nil {
		return template
	}
	return string(m.re.ExpandString(nil, template, line[span.Start:span.End], match))
}
