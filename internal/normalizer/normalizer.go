// Package normalizer turns segmented regions into structured problems.
package normalizer

import (
	"strings"

	"examsolver/internal/domain"
	"examsolver/internal/glyph"
)

// Normalizer splits a region into stem and choices.
type Normalizer struct {
	matcher *glyph.Matcher
}

// New creates a Normalizer.
func New(matcher *glyph.Matcher) *Normalizer {
	return &Normalizer{matcher: matcher}
}

// piece is either a recognized label or a run of prose. raw keeps the text
// exactly as printed.
type piece struct {
	label *glyph.Label
	raw   string
}

// Normalize always returns a problem, even when the region could not be
// parsed; such problems are marked malformed.
func (n *Normalizer) Normalize(id int, region domain.Region) domain.Problem {
	src := region
	p := domain.Problem{ID: id, Source: &src}

	pieces := n.split(region)
	set := chooseSet(pieces)

	var (
		stem      []string
		choices   []domain.Choice
		positions []int
		body      []string
	)
	flush := func() {
		if len(choices) > 0 {
			choices[len(choices)-1].Text = strings.Join(body, " ")
		}
		body = nil
	}

	for _, pc := range pieces {
		if pc.label != nil && set != nil && pc.label.Set == set {
			if len(choices) == 0 {
				stem = body
				body = nil
			} else {
				flush()
			}
			choices = append(choices, domain.Choice{Label: pc.label.Value, Glyph: pc.label.Glyph})
			positions = append(positions, pc.label.Position)
			continue
		}
		body = append(body, pc.raw)
	}
	if len(choices) == 0 {
		stem = body
	} else {
		flush()
	}

	p.Stem = strings.Join(stem, " ")
	p.Choices = choices
	if ref, ok := n.matcher.Figure(p.Stem); ok {
		p.Figure = &domain.FigureRef{Page: region.Page, Ref: ref}
	}
	p.Validity = validity(p.Stem, positions, region.Uncertain)
	return p
}

// split breaks the region's tokens into label and prose pieces. A leading
// problem-number marker is dropped, keeping any text glued to it.
func (n *Normalizer) split(region domain.Region) []piece {
	var pieces []piece
	for i, tok := range region.Tokens {
		text := strings.TrimSpace(tok.Text)
		if i == 0 && region.Number != nil {
			if num, rest, ok := n.matcher.ProblemNumber(text); ok && num == *region.Number {
				text = strings.TrimSpace(rest)
			}
		}
		for text != "" {
			l, rest, ok := n.matcher.SplitLabel(text)
			if !ok {
				pieces = append(pieces, piece{raw: text})
				break
			}
			label := l
			raw := strings.TrimSpace(strings.TrimSuffix(text, rest))
			pieces = append(pieces, piece{label: &label, raw: raw})
			text = rest
		}
	}
	return pieces
}

// chooseSet picks the label set with the most occurrences. Ties go to the set
// configured first.
func chooseSet(pieces []piece) *glyph.LabelSet {
	counts := map[*glyph.LabelSet]int{}
	var best *glyph.LabelSet
	for _, pc := range pieces {
		if pc.label == nil {
			continue
		}
		s := pc.label.Set
		counts[s]++
		switch {
		case best == nil, counts[s] > counts[best]:
			best = s
		case counts[s] == counts[best] && s.Index < best.Index:
			best = s
		}
	}
	return best
}

func validity(stem string, positions []int, uncertain bool) domain.Validity {
	if strings.TrimSpace(stem) == "" || len(positions) < 2 {
		return domain.ValidityMalformed
	}
	for i, pos := range positions {
		if pos != i {
			return domain.ValidityMalformed
		}
	}
	if uncertain {
		return domain.ValidityAmbiguous
	}
	return domain.ValidityWellFormed
}
