package domain

// Validity classifies a normalized problem and decides whether it may be
// sent to a reasoning backend.
type Validity string

const (
	ValidityWellFormed Validity = "well-formed"
	ValidityAmbiguous  Validity = "ambiguous"
	ValidityMalformed  Validity = "malformed"
)

// Valid reports whether v is one of the known validity values.
func (v Validity) Valid() bool {
	switch v {
	case ValidityWellFormed, ValidityAmbiguous, ValidityMalformed:
		return true
	}
	return false
}

func (v Validity) String() string { return string(v) }

// Resolvable reports whether a problem with this validity is sent to a backend.
func (v Validity) Resolvable() bool {
	return v == ValidityWellFormed || v == ValidityAmbiguous
}

// ResolutionStatus is the outcome of resolving one problem.
type ResolutionStatus string

const (
	StatusResolved         ResolutionStatus = "resolved"
	StatusBackendFailed    ResolutionStatus = "backend-failed"
	StatusInvalidFormat    ResolutionStatus = "invalid-format"
	StatusSkippedMalformed ResolutionStatus = "skipped-malformed-input"
	StatusCancelled        ResolutionStatus = "cancelled"
)

// AllResolutionStatuses lists every status in report order.
var AllResolutionStatuses = []ResolutionStatus{
	StatusResolved,
	StatusBackendFailed,
	StatusInvalidFormat,
	StatusSkippedMalformed,
	StatusCancelled,
}

// Valid reports whether s is one of the known resolution statuses.
func (s ResolutionStatus) Valid() bool {
	switch s {
	case StatusResolved, StatusBackendFailed, StatusInvalidFormat, StatusSkippedMalformed, StatusCancelled:
		return true
	}
	return false
}

func (s ResolutionStatus) String() string { return string(s) }

// PDFType describes how much of a document carries a digital text layer.
type PDFType string

const (
	PDFTypeDigital PDFType = "digital"
	PDFTypeScanned PDFType = "scanned"
	PDFTypeMixed   PDFType = "mixed"
	PDFTypeUnknown PDFType = "unknown"
)

func (t PDFType) String() string { return string(t) }

// Valid reports whether t is one of the known PDF types.
func (t PDFType) Valid() bool {
	switch t {
	case PDFTypeDigital, PDFTypeScanned, PDFTypeMixed, PDFTypeUnknown:
		return true
	}
	return false
}

// TextSource records where a page's tokens came from.
type TextSource string

const (
	TextSourceOCR       TextSource = "ocr"
	TextSourceTextLayer TextSource = "text_layer"
)

// ErrorStage names the pipeline stage a document-level error came from.
type ErrorStage string

const (
	StageRasterize ErrorStage = "rasterize"
	StageOCR       ErrorStage = "ocr"
	StageTextLayer ErrorStage = "text_layer"
	StageSegment   ErrorStage = "segment"
	StagePersist   ErrorStage = "persist"
)

func (s ErrorStage) String() string { return string(s) }

// RunStatus represents the lifecycle of a queued solve run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

func (s RunStatus) String() string { return string(s) }

// Valid reports whether s is one of the known run statuses.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusQueued, RunStatusProcessing, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

// ExportFormat is a report serialization offered for download.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

// ExportContentTypes maps ExportFormat to its MIME content type.
var ExportContentTypes = map[ExportFormat]string{
	ExportJSON: "application/json",
	ExportCSV:  "text/csv; charset=utf-8",
	ExportXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ParseExportFormat validates a user-supplied export format.
func ParseExportFormat(s string) (ExportFormat, error) {
	f := ExportFormat(s)
	if _, ok := ExportContentTypes[f]; !ok {
		return "", ErrInvalidExportFormat
	}
	return f, nil
}
