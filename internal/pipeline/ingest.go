package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"unicode"

	"golang.org/x/sync/errgroup"

	"examsolver/internal/domain"
	"examsolver/internal/port"
)

// ingest builds one Page per document page with a bounded worker pool. A page
// that yields no usable tokens from either source is left nil and its cause
// recorded as a document error; the run continues without it.
func (p *Pipeline) ingest(ctx context.Context, path string, textPages []port.PageText, report *domain.Report, st *run) []*domain.Page {
	raster, err := p.deps.Opener.Open(ctx, path)
	if err != nil {
		log.Printf("pipeline.ingest: opening %s: %v", path, err)
		st.fail(nil, domain.StageRasterize, err)
		st.record("rasterize", nil, err, nil)
		raster = nil
	} else {
		defer raster.Close()
	}

	count := len(textPages)
	if raster != nil {
		count = raster.PageCount()
	}
	report.PageCount = count
	pages := make([]*domain.Page, count)

	g := new(errgroup.Group)
	g.SetLimit(p.ocrCfg.PageWorkers)
	for i := 0; i < count; i++ {
		var text *port.PageText
		if i < len(textPages) {
			text = &textPages[i]
		}
		g.Go(func() error {
			pages[i] = p.ingestPage(ctx, raster, i, text, st)
			return nil
		})
	}
	_ = g.Wait()
	return pages
}

func (p *Pipeline) ingestPage(ctx context.Context, raster port.Rasterizer, index int, text *port.PageText, st *run) *domain.Page {
	idx := index
	if err := ctx.Err(); err != nil {
		st.fail(&idx, domain.StageRasterize, err)
		return nil
	}

	var textTokens []domain.Token
	page := &domain.Page{Index: index}
	if text != nil {
		textTokens = text.Tokens
		page.Width, page.Height = text.Width, text.Height
	}

	ocrTokens, err := p.recognize(ctx, raster, page, st)
	if err != nil {
		log.Printf("pipeline.ingestPage: page %d: %v", index+1, err)
	}

	switch {
	case len(ocrTokens) == 0 && len(textTokens) == 0:
		if err != nil {
			var ie *domain.IngestionError
			stage := domain.StageOCR
			if errors.As(err, &ie) {
				stage = ie.Stage
			}
			st.fail(&idx, stage, err)
		}
		return nil
	case richness(textTokens) >= richness(ocrTokens):
		page.Tokens = textTokens
		page.Source = domain.TextSourceTextLayer
	default:
		page.Tokens = ocrTokens
		page.Source = domain.TextSourceOCR
	}
	for i := range page.Tokens {
		page.Tokens[i].Page = index
	}
	return page
}

// recognize renders the page and runs OCR over it. The rendered image and its
// dimensions are stored on page. Tokens whose mean confidence is below the
// configured floor are dropped and reported as ErrLowConfidence.
func (p *Pipeline) recognize(ctx context.Context, raster port.Rasterizer, page *domain.Page, st *run) ([]domain.Token, error) {
	if raster == nil {
		return nil, nil
	}
	idx := page.Index

	img, err := raster.Render(ctx, page.Index, p.ocrCfg.DPI)
	st.record("rasterize", &idx, err, map[string]interface{}{"dpi": p.ocrCfg.DPI})
	if err != nil {
		return nil, &domain.IngestionError{Page: page.Index, Stage: domain.StageRasterize, Err: err}
	}
	page.Image = img
	b := img.Bounds()
	page.Width, page.Height = float64(b.Dx()), float64(b.Dy())

	tokens, err := p.deps.OCR.Recognize(ctx, port.OCRInput{
		PageIndex: page.Index,
		Image:     img,
		DPI:       p.ocrCfg.DPI,
		Languages: p.ocrCfg.Languages,
	})
	if err != nil {
		st.record("ocr", &idx, err, map[string]interface{}{"engine": p.deps.OCR.Name()})
		return nil, &domain.IngestionError{Page: page.Index, Stage: domain.StageOCR, Err: err}
	}

	mean := meanConfidence(tokens)
	st.record("ocr", &idx, nil, map[string]interface{}{
		"engine":          p.deps.OCR.Name(),
		"tokens":          len(tokens),
		"mean_confidence": mean,
	})
	if p.ocrCfg.MinConfidence > 0 && mean < p.ocrCfg.MinConfidence {
		return nil, &domain.IngestionError{
			Page:  page.Index,
			Stage: domain.StageOCR,
			Err:   fmt.Errorf("%w: mean %.2f < %.2f", domain.ErrLowConfidence, mean, p.ocrCfg.MinConfidence),
		}
	}
	return tokens, nil
}

// richness counts non-space runes, the measure used to pick between the
// text layer and OCR for a page.
func richness(tokens []domain.Token) int {
	n := 0
	for _, t := range tokens {
		for _, r := range t.Text {
			if !unicode.IsSpace(r) {
				n++
			}
		}
	}
	return n
}

func meanConfidence(tokens []domain.Token) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range tokens {
		sum += t.Confidence
	}
	return sum / float64(len(tokens))
}
