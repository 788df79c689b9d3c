// Package textlayer reads the embedded text of digital PDFs and classifies
// documents as digital, scanned or mixed.
package textlayer

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"examsolver/internal/domain"
	"examsolver/internal/port"
)

const (
	pointsPerInch = 72.0

	// A4 portrait, used when a page carries no usable MediaBox.
	defaultPageWidth  = 595.0
	defaultPageHeight = 842.0

	// A page counts as digital above this many non-space characters.
	digitalCharThreshold = 20
)

// Extractor implements port.TextLayer with ledongthuc/pdf.
type Extractor struct{}

// NewExtractor creates a text layer extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns one PageText per page. A page whose content stream cannot
// be read yields an empty token list rather than an error.
func (e *Extractor) Extract(ctx context.Context, path string, dpi int) ([]port.PageText, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("textlayer.Extract: %w: %v", domain.ErrNoTextLayer, err)
	}
	defer f.Close()

	scale := float64(dpi) / pointsPerInch
	n := r.NumPage()
	pages := make([]port.PageText, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		w, h := pageSize(p)
		pt := port.PageText{PageIndex: i - 1, Width: w * scale, Height: h * scale}
		if !p.V.IsNull() {
			texts, err := pageTexts(p)
			if err != nil {
				log.Printf("textlayer.Extract: page %d: %v", i, err)
			}
			pt.Tokens = groupWords(texts, i-1, h, scale)
		}
		pages = append(pages, pt)
	}
	return pages, nil
}

// pageTexts reads the positioned glyphs of a page. The content parser panics
// on some malformed streams.
func pageTexts(p pdf.Page) (texts []pdf.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			texts, err = nil, fmt.Errorf("malformed content stream: %v", r)
		}
	}()
	return p.Content().Text, nil
}

// groupWords joins per-glyph text runs into word tokens and converts them from
// PDF points (origin bottom-left) to raster pixels (origin top-left).
func groupWords(texts []pdf.Text, pageIndex int, pageHeight, scale float64) []domain.Token {
	var (
		tokens []domain.Token
		cur    []pdf.Text
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		var sb strings.Builder
		for _, t := range cur {
			sb.WriteString(t.S)
		}
		first, last := cur[0], cur[len(cur)-1]
		fs := first.FontSize
		if fs <= 0 {
			fs = 10
		}
		tokens = append(tokens, domain.Token{
			Text: sb.String(),
			Box: domain.BBox{
				X: first.X * scale,
				Y: (pageHeight - first.Y - 0.8*fs) * scale,
				W: (last.X + last.W - first.X) * scale,
				H: fs * scale,
			},
			Baseline:   (pageHeight - first.Y) * scale,
			Confidence: 1,
			Order:      len(tokens),
			Page:       pageIndex,
		})
		cur = cur[:0]
	}

	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			tol := math.Max(prev.FontSize, 1)
			sameLine := math.Abs(prev.Y-t.Y) < 0.3*tol
			gap := t.X - (prev.X + prev.W)
			if !sameLine || gap > 0.25*tol || gap < -tol {
				flush()
			}
		}
		cur = append(cur, t)
	}
	flush()
	return tokens
}

// pageSize returns the page's MediaBox size in points, following inheritance
// up the page tree.
func pageSize(p pdf.Page) (float64, float64) {
	v := p.V
	for depth := 0; depth < 10 && !v.IsNull(); depth++ {
		if box := v.Key("MediaBox"); box.Kind() == pdf.Array && box.Len() == 4 {
			llx, lly := box.Index(0).Float64(), box.Index(1).Float64()
			urx, ury := box.Index(2).Float64(), box.Index(3).Float64()
			w, h := math.Abs(urx-llx), math.Abs(ury-lly)
			if w > 0 && h > 0 {
				return w, h
			}
		}
		v = v.Key("Parent")
	}
	return defaultPageWidth, defaultPageHeight
}

// IsDigital reports whether a page's text layer holds enough characters to be
// treated as born-digital.
func IsDigital(pt port.PageText) bool {
	n := 0
	for _, tok := range pt.Tokens {
		for _, r := range tok.Text {
			if !unicode.IsSpace(r) {
				n++
			}
		}
	}
	return n > digitalCharThreshold
}

// DetectPDFType classifies a document from its extracted text layer.
func DetectPDFType(pages []port.PageText) domain.PDFType {
	if len(pages) == 0 {
		return domain.PDFTypeUnknown
	}
	digital := 0
	for _, p := range pages {
		if IsDigital(p) {
			digital++
		}
	}
	switch digital {
	case len(pages):
		return domain.PDFTypeDigital
	case 0:
		return domain.PDFTypeScanned
	default:
		return domain.PDFTypeMixed
	}
}
