// Package segmenter splits page tokens into problem regions. Pages are
// processed one at a time in page order; state that crosses a page break
// travels in an explicit Carry value.
package segmenter

import (
	"examsolver/internal/config"
	"examsolver/internal/domain"
	"examsolver/internal/glyph"
)

// Options tunes column detection and marker acceptance.
type Options struct {
	ColumnGapRatio    float64
	MinGapHeightRatio float64
	MaxColumns        int
	LineTolerance     float64
	MaxNumberSkip     int
}

// OptionsFromConfig copies the segmentation settings out of layout config.
func OptionsFromConfig(cfg *config.LayoutConfig) Options {
	return Options{
		ColumnGapRatio:    cfg.ColumnGapRatio,
		MinGapHeightRatio: cfg.MinGapHeightRatio,
		MaxColumns:        cfg.MaxColumns,
		LineTolerance:     cfg.LineTolerance,
		MaxNumberSkip:     cfg.MaxNumberSkip,
	}
}

// Carry is the segmentation state handed from one page to the next.
type Carry struct {
	Open       *domain.Region
	LastNumber int
	HasLast    bool
}

func (c Carry) clone() Carry {
	out := c
	if c.Open != nil {
		r := *c.Open
		r.Tokens = append([]domain.Token(nil), c.Open.Tokens...)
		if c.Open.Number != nil {
			n := *c.Open.Number
			r.Number = &n
		}
		out.Open = &r
	}
	return out
}

// PageResult is the outcome of segmenting one page. Regions holds the
// regions closed on this page, which may have started on an earlier one.
type PageResult struct {
	Regions   []domain.Region
	Discarded []domain.Token
	Carry     Carry
}

// Segmenter finds problem regions.
type Segmenter struct {
	opts    Options
	matcher *glyph.Matcher
}

// New creates a Segmenter.
func New(opts Options, matcher *glyph.Matcher) *Segmenter {
	if opts.MaxColumns < 1 {
		opts.MaxColumns = 1
	}
	if opts.LineTolerance <= 0 {
		opts.LineTolerance = 0.5
	}
	return &Segmenter{opts: opts, matcher: matcher}
}

type markerDecision int

const (
	markerBody     markerDecision = iota // consistent reading: not a marker
	markerAccept                         // next expected number
	markerSkip                           // accepted across a small gap in numbering
	markerConflict                       // no consistent reading
)

func (s *Segmenter) decide(carry *Carry, n int) markerDecision {
	if !carry.HasLast {
		return markerAccept
	}
	expected := carry.LastNumber + 1
	switch {
	case n == expected:
		return markerAccept
	case n < expected:
		// Usually a choice digit misread as a problem number.
		return markerBody
	case n <= expected+s.opts.MaxNumberSkip:
		return markerSkip
	default:
		return markerConflict
	}
}

// Segment splits one page. carry is not modified; the returned PageResult
// holds the state for the next page.
func (s *Segmenter) Segment(page *domain.Page, carry Carry) PageResult {
	res := PageResult{Carry: carry.clone()}
	c := &res.Carry

	idx := 0
	for _, ln := range s.readingOrder(page) {
		for i, tok := range ln.tokens {
			tok.Order = idx
			tok.Page = page.Index

			if i == 0 {
				if n, _, ok := s.matcher.ProblemNumber(tok.Text); ok {
					switch s.decide(c, n) {
					case markerAccept, markerSkip:
						uncertain := c.HasLast && n != c.LastNumber+1
						if c.Open != nil {
							if uncertain {
								c.Open.Uncertain = true
							}
							res.Regions = append(res.Regions, *c.Open)
						}
						num := n
						c.Open = &domain.Region{
							Page:      page.Index,
							EndPage:   page.Index,
							Start:     idx,
							End:       idx,
							Column:    ln.column,
							Number:    &num,
							Uncertain: uncertain,
						}
						c.LastNumber = n
						c.HasLast = true
					case markerConflict:
						if c.Open != nil {
							c.Open.Uncertain = true
						}
					}
				}
			}

			if c.Open == nil {
				res.Discarded = append(res.Discarded, tok)
			} else {
				c.Open.Tokens = append(c.Open.Tokens, tok)
				c.Open.EndPage = page.Index
				c.Open.End = idx + 1
			}
			idx++
		}
	}
	return res
}

// Finish closes the region still open at the end of the document.
func (s *Segmenter) Finish(carry Carry) []domain.Region {
	if carry.Open == nil {
		return nil
	}
	return []domain.Region{*carry.clone().Open}
}
