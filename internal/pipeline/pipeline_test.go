package pipeline_test

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"examsolver/internal/config"
	"examsolver/internal/domain"
	"examsolver/internal/pipeline"
	"examsolver/internal/port"
	"examsolver/mocks"
)

const lineH = 20.0

func row(y float64, words ...string) []domain.Token {
	x := 100.0
	var out []domain.Token
	for _, w := range words {
		width := 12 * float64(utf8.RuneCountInString(w))
		out = append(out, domain.Token{
			Text:       w,
			Box:        domain.BBox{X: x, Y: y, W: width, H: lineH},
			Baseline:   y + lineH,
			Confidence: 0.9,
		})
		x += width + 10
	}
	return out
}

func tokens(rows ...[]domain.Token) []domain.Token {
	var out []domain.Token
	for _, r := range rows {
		out = append(out, r...)
	}
	for i := range out {
		out[i].Order = i
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		OCR:    config.OCRConfig{DPI: 300, Languages: []string{"kor", "eng"}, PageWorkers: 2},
		Layout: config.DefaultLayout(),
		Resolver: config.ResolverConfig{
			MaxAttempts:     3,
			Concurrency:     2,
			PerCallTimeout:  time.Second,
			DocumentTimeout: 5 * time.Second,
			BaseDelay:       time.Millisecond,
			MaxDelay:        5 * time.Millisecond,
		},
	}
}

type fixture struct {
	opener  *mocks.MockRasterOpener
	raster  *mocks.MockRasterizer
	ocr     *mocks.MockOCREngine
	backend *mocks.MockReasoningBackend
}

func newFixture(pages ...[]domain.Token) *fixture {
	f := &fixture{
		opener:  new(mocks.MockRasterOpener),
		raster:  new(mocks.MockRasterizer),
		ocr:     new(mocks.MockOCREngine),
		backend: new(mocks.MockReasoningBackend),
	}
	f.opener.On("Open", mock.Anything, "exam.pdf").Return(f.raster, nil)
	f.raster.On("PageCount").Return(len(pages))
	f.raster.On("Close").Return(nil)
	f.ocr.On("Name").Return("fake-ocr")
	for i, toks := range pages {
		f.raster.On("Render", mock.Anything, i, 300).Return(image.NewGray(image.Rect(0, 0, 1000, 1400)), nil).Maybe()
		idx := i
		f.ocr.On("Recognize", mock.Anything, mock.MatchedBy(func(in port.OCRInput) bool {
			return in.PageIndex == idx
		})).Return(toks, nil).Maybe()
	}
	return f
}

func (f *fixture) pipeline(t *testing.T, cfg *config.Config) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(pipeline.Deps{Opener: f.opener, OCR: f.ocr, Backend: f.backend}, cfg)
	require.NoError(t, err)
	return p
}

func twoPageExam() ([]domain.Token, []domain.Token) {
	page0 := tokens(
		row(60, "2024학년도", "모의고사"),
		row(100, "1.", "다음", "중", "옳은", "것은?"),
		row(130, "①", "사과", "②", "배", "③", "감", "④", "귤", "⑤", "밤"),
		row(160, "2.", "두번째", "문제는?"),
		row(190, "①", "하나", "②", "둘", "③", "셋", "④", "넷", "⑤", "다섯"),
		row(220, "3.", "세번째", "문제"),
	)
	page1 := tokens(
		row(100, "계속되는", "문장?"),
		row(130, "①", "예", "②", "아니오", "③", "모름", "④", "항상", "⑤", "가끔"),
		row(160, "4.", "마지막", "문제?"),
		row(190, "①", "참", "②", "거짓", "③", "둘다", "④", "없음", "⑤", "모름"),
	)
	return page0, page1
}

func TestRun_TwoPageScenario(t *testing.T) {
	page0, page1 := twoPageExam()
	f := newFixture(page0, page1)
	f.backend.On("Answer", mock.Anything, mock.Anything).Return(&port.ReasoningResponse{Text: "①"}, nil)

	report, err := f.pipeline(t, testConfig()).Run(context.Background(), pipeline.Document{Name: "exam", Path: "exam.pdf"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.PageCount)
	require.Len(t, report.Results, 4)
	for i, res := range report.Results {
		assert.Equal(t, i+1, res.ProblemID)
		assert.Equal(t, domain.StatusResolved, res.Status)
		require.NotNil(t, res.Label)
		assert.Equal(t, "1", *res.Label)
	}

	require.Len(t, report.Problems, 4)
	third := report.Problems[2]
	require.NotNil(t, third.Source)
	assert.True(t, third.Source.SpansPages())
	assert.Equal(t, 0, third.Source.Page)
	assert.Equal(t, 1, third.Source.EndPage)
	assert.Equal(t, "세번째 문제 계속되는 문장?", third.Stem)
	assert.Len(t, third.Choices, 5)
	for _, prob := range report.Problems {
		assert.Len(t, prob.Choices, 5)
		assert.Equal(t, domain.ValidityWellFormed, prob.Validity)
	}

	assert.Empty(t, report.Errors)
	assert.NotEqual(t, report.RunID.String(), "00000000-0000-0000-0000-000000000000")
	f.raster.AssertCalled(t, "Close")
}

func TestRun_MalformedProblemIsIsolated(t *testing.T) {
	page0 := tokens(
		row(100, "1.", "표를", "보고", "답하시오"),
		row(160, "2.", "옳은", "것은?"),
		row(190, "①", "하나", "②", "둘"),
	)
	f := newFixture(page0)
	f.backend.On("Answer", mock.Anything, mock.MatchedBy(func(req port.ReasoningRequest) bool {
		return req.ProblemID == 2
	})).Return(&port.ReasoningResponse{Text: "2"}, nil).Once()

	report, err := f.pipeline(t, testConfig()).Run(context.Background(), pipeline.Document{Path: "exam.pdf"})
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, domain.StatusSkippedMalformed, report.Results[0].Status)
	assert.Equal(t, 0, report.Results[0].Attempts)
	assert.Equal(t, domain.StatusResolved, report.Results[1].Status)
	assert.Equal(t, "exam.pdf", report.Document)
	f.backend.AssertNumberOfCalls(t, "Answer", 1)
}

func TestRun_PageFailureIsRecorded(t *testing.T) {
	page0, _ := twoPageExam()
	f := &fixture{
		opener:  new(mocks.MockRasterOpener),
		raster:  new(mocks.MockRasterizer),
		ocr:     new(mocks.MockOCREngine),
		backend: new(mocks.MockReasoningBackend),
	}
	f.opener.On("Open", mock.Anything, "exam.pdf").Return(f.raster, nil)
	f.raster.On("PageCount").Return(2)
	f.raster.On("Close").Return(nil)
	f.raster.On("Render", mock.Anything, 0, 300).Return(image.NewGray(image.Rect(0, 0, 1000, 1400)), nil)
	f.raster.On("Render", mock.Anything, 1, 300).Return(nil, domain.ErrCorruptPage)
	f.ocr.On("Name").Return("fake-ocr")
	f.ocr.On("Recognize", mock.Anything, mock.Anything).Return(page0, nil)
	f.backend.On("Answer", mock.Anything, mock.Anything).Return(&port.ReasoningResponse{Text: "1"}, nil)

	report, err := f.pipeline(t, testConfig()).Run(context.Background(), pipeline.Document{Path: "exam.pdf"})
	require.NoError(t, err)

	require.Len(t, report.Errors, 1)
	require.NotNil(t, report.Errors[0].Page)
	assert.Equal(t, 1, *report.Errors[0].Page)
	assert.Equal(t, domain.StageRasterize, report.Errors[0].Stage)
	assert.Contains(t, report.Errors[0].Message, "corrupt page")
	assert.Len(t, report.Results, 3)
}

// slowBackend answers "③" after delay unless its call context ends first.
type slowBackend struct {
	delay time.Duration
}

func (b slowBackend) Answer(ctx context.Context, _ port.ReasoningRequest) (*port.ReasoningResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(b.delay):
		return &port.ReasoningResponse{Text: "③"}, nil
	}
}

func TestRun_DocumentDeadlineStopsNewCallsOnly(t *testing.T) {
	page0, page1 := twoPageExam()
	f := newFixture(page0, page1)

	cfg := testConfig()
	cfg.Resolver.Concurrency = 1
	cfg.Resolver.PerCallTimeout = time.Minute
	cfg.Resolver.DocumentTimeout = 40 * time.Millisecond

	p, err := pipeline.New(pipeline.Deps{
		Opener:  f.opener,
		OCR:     f.ocr,
		Backend: slowBackend{delay: 120 * time.Millisecond},
	}, cfg)
	require.NoError(t, err)

	start := time.Now()
	report, err := p.Run(context.Background(), pipeline.Document{Path: "exam.pdf"})
	require.NoError(t, err)

	require.Len(t, report.Results, 4)
	first := report.Results[0]
	assert.Equal(t, domain.StatusResolved, first.Status)
	require.NotNil(t, first.Label)
	assert.Equal(t, "3", *first.Label)
	assert.Equal(t, 1, first.Attempts)
	for _, res := range report.Results[1:] {
		assert.Equal(t, domain.StatusCancelled, res.Status)
		assert.Nil(t, res.Label)
		assert.Equal(t, 0, res.Attempts)
	}
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_TextLayerPreferredWhenRicher(t *testing.T) {
	page0, _ := twoPageExam()
	f := newFixture([]domain.Token{{Text: "1.", Box: domain.BBox{X: 100, Y: 100, W: 20, H: 20}, Confidence: 0.3}})
	text := new(mocks.MockTextLayer)
	text.On("Extract", mock.Anything, "exam.pdf", 300).Return([]port.PageText{
		{PageIndex: 0, Width: 1000, Height: 1400, Tokens: page0},
	}, nil)
	f.backend.On("Answer", mock.Anything, mock.Anything).Return(&port.ReasoningResponse{Text: "1"}, nil)

	p, err := pipeline.New(pipeline.Deps{Opener: f.opener, OCR: f.ocr, TextLayer: text, Backend: f.backend}, testConfig())
	require.NoError(t, err)
	report, err := p.Run(context.Background(), pipeline.Document{Path: "exam.pdf"})
	require.NoError(t, err)

	assert.Equal(t, domain.PDFTypeDigital, report.PDFType)
	assert.Len(t, report.Results, 3)

	var tools []string
	for _, entry := range report.ToolLogs {
		tools = append(tools, entry.Tool)
	}
	assert.Contains(t, tools, "detect_pdf_type")
	assert.Contains(t, tools, "ocr")
	assert.Contains(t, tools, "resolve")
}

func TestRun_LowConfidencePageIsSkipped(t *testing.T) {
	page0, _ := twoPageExam()
	for i := range page0 {
		page0[i].Confidence = 0.1
	}
	f := newFixture(page0)

	cfg := testConfig()
	cfg.OCR.MinConfidence = 0.5
	report, err := f.pipeline(t, cfg).Run(context.Background(), pipeline.Document{Path: "exam.pdf"})
	require.NoError(t, err)

	require.Len(t, report.Errors, 1)
	require.NotNil(t, report.Errors[0].Page)
	assert.Equal(t, 0, *report.Errors[0].Page)
	assert.Equal(t, domain.StageOCR, report.Errors[0].Stage)
	assert.Contains(t, report.Errors[0].Message, domain.ErrLowConfidence.Error())
	assert.Empty(t, report.Problems)
	assert.Empty(t, report.Results)
	f.backend.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything)
}

func TestRun_LowConfidenceOCRFallsBackToTextLayer(t *testing.T) {
	page0, _ := twoPageExam()
	blurred := make([]domain.Token, len(page0))
	copy(blurred, page0)
	for i := range blurred {
		blurred[i].Confidence = 0.1
	}
	f := newFixture(blurred)
	text := new(mocks.MockTextLayer)
	text.On("Extract", mock.Anything, "exam.pdf", 300).Return([]port.PageText{
		{PageIndex: 0, Width: 1000, Height: 1400, Tokens: page0},
	}, nil)
	f.backend.On("Answer", mock.Anything, mock.Anything).Return(&port.ReasoningResponse{Text: "1"}, nil)

	cfg := testConfig()
	cfg.OCR.MinConfidence = 0.5
	p, err := pipeline.New(pipeline.Deps{Opener: f.opener, OCR: f.ocr, TextLayer: text, Backend: f.backend}, cfg)
	require.NoError(t, err)
	report, err := p.Run(context.Background(), pipeline.Document{Path: "exam.pdf"})
	require.NoError(t, err)

	assert.Empty(t, report.Errors)
	assert.Len(t, report.Results, 3)
}

func TestRun_RecoveredPageFailureIsNotAnError(t *testing.T) {
	page0, _ := twoPageExam()
	f := &fixture{
		opener:  new(mocks.MockRasterOpener),
		raster:  new(mocks.MockRasterizer),
		ocr:     new(mocks.MockOCREngine),
		backend: new(mocks.MockReasoningBackend),
	}
	f.opener.On("Open", mock.Anything, "exam.pdf").Return(f.raster, nil)
	f.raster.On("PageCount").Return(1)
	f.raster.On("Close").Return(nil)
	f.raster.On("Render", mock.Anything, 0, 300).Return(nil, domain.ErrCorruptPage)
	f.ocr.On("Name").Return("fake-ocr").Maybe()
	text := new(mocks.MockTextLayer)
	text.On("Extract", mock.Anything, "exam.pdf", 300).Return([]port.PageText{
		{PageIndex: 0, Width: 1000, Height: 1400, Tokens: page0},
	}, nil)
	f.backend.On("Answer", mock.Anything, mock.Anything).Return(&port.ReasoningResponse{Text: "1"}, nil)

	p, err := pipeline.New(pipeline.Deps{Opener: f.opener, OCR: f.ocr, TextLayer: text, Backend: f.backend}, testConfig())
	require.NoError(t, err)
	report, err := p.Run(context.Background(), pipeline.Document{Path: "exam.pdf"})
	require.NoError(t, err)

	assert.Empty(t, report.Errors)
	assert.Len(t, report.Results, 3)

	var failed []string
	for _, entry := range report.ToolLogs {
		if !entry.Success {
			failed = append(failed, entry.Tool)
		}
	}
	assert.Equal(t, []string{"rasterize"}, failed)
}

func TestRun_UnreadableDocument(t *testing.T) {
	f := &fixture{
		opener:  new(mocks.MockRasterOpener),
		ocr:     new(mocks.MockOCREngine),
		backend: new(mocks.MockReasoningBackend),
	}
	f.opener.On("Open", mock.Anything, "broken.pdf").Return(nil, domain.ErrCorruptPage)

	report, err := f.pipeline(t, testConfig()).Run(context.Background(), pipeline.Document{Path: "broken.pdf"})
	require.NoError(t, err)

	assert.Empty(t, report.Results)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, domain.StageRasterize, report.Errors[0].Stage)
	assert.Nil(t, report.Errors[0].Page)
}

func TestNew_RequiresAdapters(t *testing.T) {
	_, err := pipeline.New(pipeline.Deps{Opener: new(mocks.MockRasterOpener), OCR: new(mocks.MockOCREngine)}, testConfig())
	assert.True(t, errors.Is(err, domain.ErrAdapterInit))

	cfg := testConfig()
	cfg.Layout.NumberingPatterns = []string{`^\d+\.`}
	_, err = pipeline.New(pipeline.Deps{
		Opener:  new(mocks.MockRasterOpener),
		OCR:     new(mocks.MockOCREngine),
		Backend: new(mocks.MockReasoningBackend),
	}, cfg)
	assert.True(t, errors.Is(err, domain.ErrAdapterInit))
}

func TestRun_EmptyPath(t *testing.T) {
	f := newFixture()
	_, err := f.pipeline(t, testConfig()).Run(context.Background(), pipeline.Document{})
	assert.Error(t, err)
}
