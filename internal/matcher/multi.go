// multi.go implements multi-pattern literal matching.
//
// When a search carries several boundary-free literal patterns, an
// Aho-Corasick automaton screens each line in a single pass; only lines
// the automaton hits are handed to the per-pattern matchers for exact
// span extraction. The resulting span set is identical to scanning each
// literal independently and merging in (start, end) order.
package matcher

import (
	"sort"

	"github.com/coregx/ahocorasick"

	"github.com/rustscout/rustscout/internal/scouterr"
)

// MultiSpan is a span annotated with the index of the pattern that
// produced it.
type MultiSpan struct {
	Span
	Pattern int `json:"pattern"`
}

// Multi matches a set of literal patterns in one pass per line.
type Multi struct {
	matchers  []*Matcher
	automaton *ahocorasick.Automaton
}

// CanUseMulti reports whether the definitions qualify for the
// multi-literal strategy: at least two patterns, all non-empty, not
// flagged as regex, short and metacharacter-free enough for the literal
// strategy, and none carrying boundary modes.
func CanUseMulti(defs []Definition) bool {
	if len(defs) < 2 {
		return false
	}
	for _, def := range defs {
		if def.IsRegex || def.Boundary != BoundaryNone || !isSimple(def.Text) || def.Text == "" {
			return false
		}
	}
	return true
}

// CompileMulti builds a Multi for the given literal definitions.
// Callers should gate on CanUseMulti first.
func CompileMulti(defs []Definition) (*Multi, error) {
	if !CanUseMulti(defs) {
		return nil, scouterr.InvalidPattern("multi-literal matching requires two or more boundary-free literal patterns")
	}

	m := &Multi{matchers: make([]*Matcher, len(defs))}
	builder := ahocorasick.NewBuilder()
	for i, def := range defs {
		compiled, err := Compile(def)
		if err != nil {
			return nil, err
		}
		m.matchers[i] = compiled
		builder.AddPattern([]byte(def.Text))
	}

	automaton, err := builder.Build()
	if err != nil {
		return nil, scouterr.InvalidPattern("build literal automaton: %v", err)
	}
	m.automaton = automaton
	return m, nil
}

// FindAll returns every pattern's spans within line, ordered by
// (start, end, pattern index).
func (m *Multi) FindAll(line string) []MultiSpan {
	// Fast reject: most lines match nothing.
	if m.automaton.Find([]byte(line), 0) == nil {
		return nil
	}

	var spans []MultiSpan
	for i, pm := range m.matchers {
		for _, s := range pm.FindAll(line) {
			spans = append(spans, MultiSpan{Span: s, Pattern: i})
		}
	}
	sort.Slice(spans, func(a, b int) bool {
		if spans[a].Start != spans[b].Start {
			return spans[a].Start < spans[b].Start
		}
		if spans[a].End != spans[b].End {
			return spans[a].End < spans[b].End
		}
		return spans[a].Pattern < spans[b].Pattern
	})
	return spans
}

// Matchers exposes the per-pattern matchers, indexed like the input
// definitions.
func (m *Multi) Matchers() []*Matcher { return m.matchers }
