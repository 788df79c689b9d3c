package glyph

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"examsolver/internal/config"
)

// LabelSet is a closed, ordered set of choice labels. Glyphs are the printed
// forms; Values are the canonical answer tokens at the same positions.
type LabelSet struct {
	Index  int
	Name   string
	Glyphs []string
	Values []string

	folded [][]rune
}

// Label is a recognized choice label.
type Label struct {
	Set      *LabelSet
	Position int
	Value    string
	Glyph    string
	Repaired bool
}

// Matcher recognizes problem numbers, choice labels and figure references in
// token text. Confusable repair is only ever used for recognition; callers
// keep the original text for prose.
type Matcher struct {
	sets        []*LabelSet
	numbering   []*regexp.Regexp
	figure      *regexp.Regexp
	confusables map[rune]rune
}

// New builds a Matcher from layout configuration.
func New(cfg *config.LayoutConfig) (*Matcher, error) {
	m := &Matcher{confusables: cfg.Confusables}
	if m.confusables == nil {
		m.confusables = map[rune]rune{}
	}

	if len(cfg.LabelSets) == 0 {
		return nil, fmt.Errorf("glyph.New: at least one label set is required")
	}
	for i, ls := range cfg.LabelSets {
		if len(ls.Glyphs) != len(ls.Values) {
			return nil, fmt.Errorf("glyph.New: label set %q has %d glyphs and %d values", ls.Name, len(ls.Glyphs), len(ls.Values))
		}
		set := &LabelSet{Index: i, Name: ls.Name, Glyphs: ls.Glyphs, Values: ls.Values}
		for _, g := range ls.Glyphs {
			set.folded = append(set.folded, foldString(g).runes)
		}
		m.sets = append(m.sets, set)
	}

	for _, p := range cfg.NumberingPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("glyph.New: numbering pattern %q: %w", p, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("glyph.New: numbering pattern %q must capture the number", p)
		}
		m.numbering = append(m.numbering, re)
	}

	if cfg.FigurePattern != "" {
		re, err := regexp.Compile(cfg.FigurePattern)
		if err != nil {
			return nil, fmt.Errorf("glyph.New: figure pattern: %w", err)
		}
		m.figure = re
	}
	return m, nil
}

// Default returns a Matcher over the built-in layout defaults.
func Default() *Matcher {
	cfg := config.DefaultLayout()
	m, err := New(&cfg)
	if err != nil {
		panic(err)
	}
	return m
}

// repairRunes replaces OCR-confusable characters with the digit they usually
// stand for.
func (m *Matcher) repairRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		if to, ok := m.confusables[r]; ok {
			out[i] = to
			continue
		}
		out[i] = r
	}
	return out
}

// ProblemNumber reports whether text starts with a problem-number marker. It
// returns the number and the original text that follows the marker.
func (m *Matcher) ProblemNumber(text string) (int, string, bool) {
	f := foldString(strings.TrimSpace(text))
	if n, used, ok := m.matchNumber(f.runes); ok {
		return n, f.rest(used), true
	}
	if n, used, ok := m.matchNumber(m.repairRunes(f.runes)); ok {
		return n, f.rest(used), true
	}
	return 0, "", false
}

func (m *Matcher) matchNumber(rs []rune) (int, int, bool) {
	s := string(rs)
	for _, re := range m.numbering {
		loc := re.FindStringSubmatchIndex(s)
		if loc == nil || loc[0] != 0 || loc[2] < 0 {
			continue
		}
		// "3.14" is a decimal, not problem 3.
		if tail := s[loc[1]:]; tail != "" {
			next := []rune(tail)[0]
			if unicode.IsDigit(next) {
				continue
			}
		}
		n, err := strconv.Atoi(s[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		return n, len([]rune(s[:loc[1]])), true
	}
	return 0, 0, false
}

// SplitLabel reports whether text starts with a choice label from any
// configured set, returning the label and the original text after it. The
// unrepaired text is tried against every set before confusable repair.
func (m *Matcher) SplitLabel(text string) (Label, string, bool) {
	f := foldString(strings.TrimSpace(text))
	if l, used, ok := m.matchLabel(f.runes); ok {
		return l, strings.TrimSpace(f.rest(used)), true
	}
	if l, used, ok := m.matchLabel(m.repairRunes(f.runes)); ok {
		l.Repaired = true
		return l, strings.TrimSpace(f.rest(used)), true
	}
	return Label{}, "", false
}

func (m *Matcher) matchLabel(rs []rune) (Label, int, bool) {
	var (
		best    Label
		bestLen int
	)
	for _, set := range m.sets {
		for pos, g := range set.folded {
			if len(g) <= bestLen || !hasRunePrefix(rs, g) {
				continue
			}
			best = Label{Set: set, Position: pos, Value: set.Values[pos], Glyph: set.Glyphs[pos]}
			bestLen = len(g)
		}
	}
	return best, bestLen, bestLen > 0
}

// MatchLabelInSet reports whether text, after folding, is exactly one label
// of set (by glyph or value). No confusable repair is applied.
func (m *Matcher) MatchLabelInSet(set *LabelSet, text string) (Label, bool) {
	rs := foldString(strings.TrimSpace(text)).runes
	for pos, g := range set.folded {
		if runesEqual(rs, g) || string(rs) == set.Values[pos] {
			return Label{Set: set, Position: pos, Value: set.Values[pos], Glyph: set.Glyphs[pos]}, true
		}
	}
	return Label{}, false
}

// Figure returns the first figure reference in text.
func (m *Matcher) Figure(text string) (string, bool) {
	if m.figure == nil {
		return "", false
	}
	ref := m.figure.FindString(Fold(text))
	return ref, ref != ""
}

func hasRunePrefix(rs, prefix []rune) bool {
	if len(prefix) == 0 || len(rs) < len(prefix) {
		return false
	}
	return runesEqual(rs[:len(prefix)], prefix)
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
