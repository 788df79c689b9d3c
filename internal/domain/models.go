package domain

import (
	"encoding/json"
	"image"
	"time"

	"github.com/google/uuid"
)

// BBox is an axis-aligned box in raster coordinates (origin top-left, y down).
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (b BBox) Right() float64   { return b.X + b.W }
func (b BBox) Bottom() float64  { return b.Y + b.H }
func (b BBox) CenterX() float64 { return b.X + b.W/2 }
func (b BBox) CenterY() float64 { return b.Y + b.H/2 }

// Token is one recognized text fragment. Order is its reading-order index
// within the page as emitted by the text source.
type Token struct {
	Text       string  `json:"text"`
	Box        BBox    `json:"box"`
	Baseline   float64 `json:"baseline"`
	Confidence float64 `json:"confidence"`
	Order      int     `json:"order"`
	Page       int     `json:"page"`
}

// Page is one ingested document page. It is read-only once built.
type Page struct {
	Index  int         `json:"index"`
	Width  float64     `json:"width"`
	Height float64     `json:"height"`
	Image  image.Image `json:"-"`
	Tokens []Token     `json:"tokens"`
	Source TextSource  `json:"source"`
}

// Region is a span of tokens hypothesized to hold a single problem. Start is
// the index of its first token in the start page's reading order; End is the
// exclusive index in EndPage's reading order.
type Region struct {
	Page      int     `json:"page"`
	EndPage   int     `json:"end_page"`
	Start     int     `json:"start"`
	End       int     `json:"end"`
	Column    int     `json:"column"`
	Number    *int    `json:"number"`
	Uncertain bool    `json:"uncertain"`
	Tokens    []Token `json:"-"`
}

// SpansPages reports whether the region continues across a page break.
func (r *Region) SpansPages() bool {
	return r.EndPage != r.Page
}

// Choice is one labelled answer option. Label is the canonical answer token
// (e.g. "3" or "C"); Glyph is the label as printed (e.g. "③").
type Choice struct {
	Label string `json:"label"`
	Glyph string `json:"glyph,omitempty"`
	Text  string `json:"text"`
}

// FigureRef points at an embedded figure mentioned by a problem stem.
type FigureRef struct {
	Page int    `json:"page"`
	Ref  string `json:"ref"`
}

// Problem is a normalized multiple-choice problem. Source is a lookup
// reference to the region it came from.
type Problem struct {
	ID       int        `json:"id"`
	Stem     string     `json:"stem"`
	Choices  []Choice   `json:"choices"`
	Figure   *FigureRef `json:"figure,omitempty"`
	Validity Validity   `json:"validity"`
	Source   *Region    `json:"-"`
}

// Labels returns the canonical labels of the problem's choices in order.
func (p *Problem) Labels() []string {
	labels := make([]string, len(p.Choices))
	for i, c := range p.Choices {
		labels[i] = c.Label
	}
	return labels
}

// AnswerResult is the outcome of resolving one problem. It references the
// problem by id and never mutates it.
type AnswerResult struct {
	ProblemID   int              `json:"problem_id"`
	Label       *string          `json:"answer_label"`
	Status      ResolutionStatus `json:"status"`
	Attempts    int              `json:"attempts"`
	Validity    Validity         `json:"validity"`
	RawResponse string           `json:"raw_response,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// DocumentError is a failure recorded at document level. Page is nil when the
// error is not tied to one page.
type DocumentError struct {
	Page    *int       `json:"page,omitempty"`
	Stage   ErrorStage `json:"stage"`
	Message string     `json:"message"`
}

// ToolLogEntry is one audit record of an adapter invocation.
type ToolLogEntry struct {
	Tool    string                 `json:"tool"`
	Page    *int                   `json:"page,omitempty"`
	Success bool                   `json:"success"`
	Error   string                 `json:"error,omitempty"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
}

// Report is the externally persisted artifact of a run. Problems and Results
// are ordered by problem id.
type Report struct {
	RunID      uuid.UUID       `json:"run_id"`
	Document   string          `json:"document"`
	PDFType    PDFType         `json:"pdf_type"`
	PageCount  int             `json:"page_count"`
	Problems   []Problem       `json:"problems"`
	Results    []AnswerResult  `json:"results"`
	Errors     []DocumentError `json:"errors"`
	ToolLogs   []ToolLogEntry  `json:"tool_logs,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// StatusCounts tallies results by status.
func (r *Report) StatusCounts() map[ResolutionStatus]int {
	counts := make(map[ResolutionStatus]int, len(AllResolutionStatuses))
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Run is a queued or finished solve of one uploaded document.
type Run struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Document      string          `db:"document" json:"document"`
	InputBucket   string          `db:"input_bucket" json:"-"`
	InputKey      string          `db:"input_key" json:"-"`
	Status        RunStatus       `db:"status" json:"status"`
	Attempts      int             `db:"attempts" json:"attempts"`
	Error         string          `db:"error" json:"error,omitempty"`
	PDFType       PDFType         `db:"pdf_type" json:"pdf_type,omitempty"`
	ProblemCount  int             `db:"problem_count" json:"problem_count"`
	ResolvedCount int             `db:"resolved_count" json:"resolved_count"`
	Report        json.RawMessage `db:"report" json:"report,omitempty"`
	ReportKey     string          `db:"report_key" json:"report_key,omitempty"`
	StartedAt     *time.Time      `db:"started_at" json:"started_at"`
	FinishedAt    *time.Time      `db:"finished_at" json:"finished_at"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}
