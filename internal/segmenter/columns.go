package segmenter

import (
	"math"
	"sort"

	"examsolver/internal/domain"
)

const (
	columnBins = 400

	// A detected column must hold at least this share of the page's tokens.
	minColumnShare  = 0.05
	minColumnTokens = 3
)

// gap is a vertical whitespace channel between columns, in raster x.
type gap struct {
	left, right float64
	coverage    float64
}

func (g gap) center() float64 { return (g.left + g.right) / 2 }
func (g gap) width() float64  { return g.right - g.left }

// interval is a closed y-range covered by a token.
type interval struct{ top, bottom float64 }

// columnBoundaries returns the x positions that split the page into columns,
// ordered left to right. No boundaries means a single column.
func (s *Segmenter) columnBoundaries(tokens []domain.Token, pageWidth float64) []float64 {
	if len(tokens) < 2*minColumnTokens || s.opts.MaxColumns < 2 {
		return nil
	}

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, t := range tokens {
		minX = math.Min(minX, t.Box.X)
		maxX = math.Max(maxX, t.Box.Right())
		minY = math.Min(minY, t.Box.Y)
		maxY = math.Max(maxY, t.Box.Bottom())
	}
	if pageWidth <= 0 {
		pageWidth = maxX
	}
	extent := maxY - minY
	if extent <= 0 || pageWidth <= 0 {
		return nil
	}

	binW := pageWidth / columnBins
	spans := make([][]interval, columnBins)
	for _, t := range tokens {
		first := clampBin(int(t.Box.X/binW), columnBins)
		last := clampBin(int((t.Box.Right()-1e-9)/binW), columnBins)
		for b := first; b <= last; b++ {
			spans[b] = append(spans[b], interval{top: t.Box.Y, bottom: t.Box.Bottom()})
		}
	}

	coverage := make([]float64, columnBins)
	for b := range spans {
		coverage[b] = coveredLength(spans[b]) / extent
	}

	maxCoverage := 1 - s.opts.MinGapHeightRatio
	minWidth := s.opts.ColumnGapRatio * pageWidth
	firstBin := clampBin(int(minX/binW), columnBins)
	lastBin := clampBin(int((maxX-1e-9)/binW), columnBins)

	var gaps []gap
	for b := firstBin; b <= lastBin; {
		if coverage[b] > maxCoverage {
			b++
			continue
		}
		start := b
		for b <= lastBin && coverage[b] <= maxCoverage {
			b++
		}
		// Open runs touching the text edge are margins, not gutters.
		if start == firstBin || b > lastBin {
			continue
		}
		g := clearest(coverage, start, b, binW)
		if g.width() >= minWidth {
			gaps = append(gaps, g)
		}
	}
	if len(gaps) == 0 {
		return nil
	}

	// Clearest gutters first, then widest.
	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].coverage != gaps[j].coverage {
			return gaps[i].coverage < gaps[j].coverage
		}
		return gaps[i].width() > gaps[j].width()
	})

	var bounds []float64
	for _, g := range gaps {
		if len(bounds) == s.opts.MaxColumns-1 {
			break
		}
		candidate := append(append([]float64(nil), bounds...), g.center())
		sort.Float64s(candidate)
		if balanced(tokens, candidate) {
			bounds = candidate
		}
	}
	return bounds
}

// clearest narrows the open run [start, end) to its longest stretch at
// minimum coverage. Ragged line ends next to a gutter widen the open run
// without being part of the gutter itself.
func clearest(coverage []float64, start, end int, binW float64) gap {
	minCov := math.Inf(1)
	for b := start; b < end; b++ {
		minCov = math.Min(minCov, coverage[b])
	}
	const slack = 0.02
	bestStart, bestEnd := start, start
	for b := start; b < end; {
		if coverage[b] > minCov+slack {
			b++
			continue
		}
		s := b
		for b < end && coverage[b] <= minCov+slack {
			b++
		}
		if b-s > bestEnd-bestStart {
			bestStart, bestEnd = s, b
		}
	}
	return gap{left: float64(bestStart) * binW, right: float64(bestEnd) * binW, coverage: minCov}
}

// balanced reports whether every column produced by bounds holds enough tokens.
func balanced(tokens []domain.Token, bounds []float64) bool {
	counts := make([]int, len(bounds)+1)
	for _, t := range tokens {
		counts[columnOf(t, bounds)]++
	}
	need := int(math.Ceil(minColumnShare * float64(len(tokens))))
	if need < minColumnTokens {
		need = minColumnTokens
	}
	for _, c := range counts {
		if c < need {
			return false
		}
	}
	return true
}

// columnOf assigns a token to a column by its centre x.
func columnOf(t domain.Token, bounds []float64) int {
	cx := t.Box.CenterX()
	return sort.SearchFloat64s(bounds, cx)
}

func coveredLength(spans []interval) float64 {
	if len(spans) == 0 {
		return 0
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].top < spans[j].top })
	total := 0.0
	cur := spans[0]
	for _, s := range spans[1:] {
		if s.top <= cur.bottom {
			cur.bottom = math.Max(cur.bottom, s.bottom)
			continue
		}
		total += cur.bottom - cur.top
		cur = s
	}
	return total + cur.bottom - cur.top
}

func clampBin(b, n int) int {
	if b < 0 {
		return 0
	}
	if b >= n {
		return n - 1
	}
	return b
}

// line is a run of tokens sharing a baseline within one column.
type line struct {
	column int
	tokens []domain.Token
}

// readingOrder groups tokens into columns, then lines top to bottom, then
// tokens left to right.
func (s *Segmenter) readingOrder(page *domain.Page) []line {
	bounds := s.columnBoundaries(page.Tokens, page.Width)

	cols := make([][]domain.Token, len(bounds)+1)
	for _, t := range page.Tokens {
		c := columnOf(t, bounds)
		cols[c] = append(cols[c], t)
	}

	tol := s.opts.LineTolerance * medianHeight(page.Tokens)
	var lines []line
	for c, toks := range cols {
		for _, ln := range groupLines(toks, tol) {
			lines = append(lines, line{column: c, tokens: ln})
		}
	}
	return lines
}

func groupLines(tokens []domain.Token, tol float64) [][]domain.Token {
	if len(tokens) == 0 {
		return nil
	}
	sorted := append([]domain.Token(nil), tokens...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Box.CenterY() < sorted[j].Box.CenterY()
	})

	var (
		lines  [][]domain.Token
		cur    []domain.Token
		anchor float64
	)
	for _, t := range sorted {
		if len(cur) > 0 && t.Box.CenterY()-anchor > tol {
			lines = append(lines, cur)
			cur = nil
		}
		if len(cur) == 0 {
			anchor = t.Box.CenterY()
		}
		cur = append(cur, t)
	}
	lines = append(lines, cur)

	for _, ln := range lines {
		sort.SliceStable(ln, func(i, j int) bool { return ln[i].Box.X < ln[j].Box.X })
	}
	return lines
}

func medianHeight(tokens []domain.Token) float64 {
	if len(tokens) == 0 {
		return 0
	}
	hs := make([]float64, len(tokens))
	for i, t := range tokens {
		hs[i] = t.Box.H
	}
	sort.Float64s(hs)
	return hs[len(hs)/2]
}
