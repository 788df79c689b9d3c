// Package pipeline runs one document end to end: text layer detection, page
// ingestion, segmentation, normalization and answer resolution.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"examsolver/internal/config"
	"examsolver/internal/domain"
	"examsolver/internal/glyph"
	"examsolver/internal/normalizer"
	"examsolver/internal/port"
	"examsolver/internal/resolver"
	"examsolver/internal/segmenter"
	"examsolver/internal/textlayer"
)

// Deps are the adapters a pipeline drives. TextLayer is optional.
type Deps struct {
	Opener    port.RasterOpener
	OCR       port.OCREngine
	TextLayer port.TextLayer
	Backend   port.ReasoningBackend
}

// Document identifies the PDF to solve. Path must be a local file.
type Document struct {
	Name string
	Path string
}

// checker is implemented by adapters that can verify their environment
// before any page work starts.
type checker interface {
	Check() error
}

// Pipeline orchestrates a run. It is safe for concurrent use by multiple runs.
type Pipeline struct {
	deps        Deps
	ocrCfg      config.OCRConfig
	concurrency int
	docTimeout  time.Duration

	segmenter  *segmenter.Segmenter
	normalizer *normalizer.Normalizer
	resolver   *resolver.Resolver
}

// New validates the adapters and builds the stage components. Any failure is
// reported as domain.ErrAdapterInit.
func New(deps Deps, cfg *config.Config) (*Pipeline, error) {
	if deps.Opener == nil {
		return nil, fmt.Errorf("%w: no rasterizer", domain.ErrAdapterInit)
	}
	if deps.OCR == nil {
		return nil, fmt.Errorf("%w: no ocr engine", domain.ErrAdapterInit)
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("%w: no reasoning backend", domain.ErrAdapterInit)
	}
	if c, ok := deps.OCR.(checker); ok {
		if err := c.Check(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrAdapterInit, deps.OCR.Name(), err)
		}
	}

	matcher, err := glyph.New(&cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAdapterInit, err)
	}

	concurrency := cfg.Resolver.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	ocrCfg := cfg.OCR
	if ocrCfg.DPI <= 0 {
		ocrCfg.DPI = 300
	}
	if ocrCfg.PageWorkers < 1 {
		ocrCfg.PageWorkers = 1
	}

	return &Pipeline{
		deps:        deps,
		ocrCfg:      ocrCfg,
		concurrency: concurrency,
		docTimeout:  cfg.Resolver.DocumentTimeout,
		segmenter:   segmenter.New(segmenter.OptionsFromConfig(&cfg.Layout), matcher),
		normalizer:  normalizer.New(matcher),
		resolver:    resolver.New(deps.Backend, resolver.OptionsFromConfig(&cfg.Resolver)),
	}, nil
}

// run collects the document-level errors and tool logs of one Run call.
type run struct {
	mu     sync.Mutex
	errors []domain.DocumentError
	logs   []domain.ToolLogEntry
}

func (r *run) fail(page *int, stage domain.ErrorStage, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, domain.DocumentError{Page: page, Stage: stage, Message: err.Error()})
}

func (r *run) record(tool string, page *int, err error, detail map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := domain.ToolLogEntry{Tool: tool, Page: page, Success: err == nil, Detail: detail}
	if err != nil {
		entry.Error = err.Error()
	}
	r.logs = append(r.logs, entry)
}

// Run solves one document. Page and problem failures are isolated and
// recorded in the report; the returned error is reserved for unusable input.
func (p *Pipeline) Run(ctx context.Context, doc Document) (*domain.Report, error) {
	if doc.Path == "" {
		return nil, fmt.Errorf("pipeline.Run: empty document path")
	}
	name := doc.Name
	if name == "" {
		name = doc.Path
	}

	report := &domain.Report{
		RunID:     uuid.New(),
		Document:  name,
		PDFType:   domain.PDFTypeUnknown,
		StartedAt: time.Now().UTC(),
	}
	st := &run{}
	log.Printf("pipeline.Run: run %s started for %s", report.RunID, name)

	// The document deadline covers every stage. During resolution it only
	// gates new backend calls; calls in flight run to their own timeout.
	if p.docTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.docTimeout)
		defer cancel()
	}

	textPages := p.extractText(ctx, doc.Path, report, st)
	pages := p.ingest(ctx, doc.Path, textPages, report, st)

	regions := p.segment(pages, st)
	report.Problems = p.normalize(regions)
	report.Results = p.resolve(ctx, report.Problems, st)

	sort.SliceStable(report.Problems, func(i, j int) bool { return report.Problems[i].ID < report.Problems[j].ID })
	sort.SliceStable(report.Results, func(i, j int) bool { return report.Results[i].ProblemID < report.Results[j].ProblemID })
	report.Errors = st.errors
	report.ToolLogs = st.logs
	report.FinishedAt = time.Now().UTC()

	counts := report.StatusCounts()
	log.Printf("pipeline.Run: run %s finished: %d pages, %d problems, %d resolved, %d errors",
		report.RunID, report.PageCount, len(report.Problems), counts[domain.StatusResolved], len(report.Errors))
	return report, nil
}

// extractText reads the digital text layer and classifies the document.
func (p *Pipeline) extractText(ctx context.Context, path string, report *domain.Report, st *run) []port.PageText {
	if p.deps.TextLayer == nil {
		return nil
	}
	pages, err := p.deps.TextLayer.Extract(ctx, path, p.ocrCfg.DPI)
	if err != nil {
		log.Printf("pipeline.extractText: %v", err)
		st.fail(nil, domain.StageTextLayer, err)
		st.record("text_layer", nil, err, nil)
		return nil
	}
	report.PDFType = textlayer.DetectPDFType(pages)
	st.record("text_layer", nil, nil, map[string]interface{}{"pages": len(pages)})
	st.record("detect_pdf_type", nil, nil, map[string]interface{}{"pdf_type": report.PDFType.String()})
	return pages
}

// segment threads the carry through the ingested pages in page order.
// Skipped pages are passed over, so a problem may continue across them.
func (p *Pipeline) segment(pages []*domain.Page, st *run) []domain.Region {
	var (
		carry   segmenter.Carry
		regions []domain.Region
	)
	for _, page := range pages {
		if page == nil {
			continue
		}
		res := p.segmenter.Segment(page, carry)
		regions = append(regions, res.Regions...)
		carry = res.Carry
		idx := page.Index
		st.record("segment", &idx, nil, map[string]interface{}{
			"regions":   len(res.Regions),
			"discarded": len(res.Discarded),
			"open":      res.Carry.Open != nil,
		})
	}
	return append(regions, p.segmenter.Finish(carry)...)
}

// normalize produces exactly one Problem per Region. The printed number is
// used as the id unless it is missing or out of sequence, in which case the
// next free id is taken.
func (p *Pipeline) normalize(regions []domain.Region) []domain.Problem {
	problems := make([]domain.Problem, 0, len(regions))
	prev := 0
	for _, r := range regions {
		id := prev + 1
		if r.Number != nil && *r.Number > prev {
			id = *r.Number
		}
		problems = append(problems, p.normalizer.Normalize(id, r))
		prev = id
	}
	return problems
}

// resolve answers problems concurrently, at most p.concurrency backend calls
// at a time. Once ctx is done no new call starts and the remaining problems
// are reported as cancelled; calls already started are left to finish.
func (p *Pipeline) resolve(ctx context.Context, problems []domain.Problem, st *run) []domain.AnswerResult {
	results := make([]domain.AnswerResult, len(problems))
	sem := semaphore.NewWeighted(int64(p.concurrency))
	var wg sync.WaitGroup

	for i := range problems {
		prob := &problems[i]
		if !prob.Validity.Resolvable() {
			results[i] = p.resolver.Resolve(ctx, prob)
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = domain.AnswerResult{
				ProblemID: prob.ID,
				Status:    domain.StatusCancelled,
				Validity:  prob.Validity,
				Error:     err.Error(),
			}
			continue
		}
		wg.Add(1)
		go func(i int, prob *domain.Problem) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = p.resolver.Resolve(ctx, prob)
		}(i, prob)
	}
	wg.Wait()

	for _, res := range results {
		var err error
		if res.Status != domain.StatusResolved && res.Error != "" {
			err = errors.New(res.Error)
		}
		st.record("resolve", nil, err, map[string]interface{}{
			"problem_id": res.ProblemID,
			"status":     res.Status.String(),
			"attempts":   res.Attempts,
		})
	}
	return results
}
