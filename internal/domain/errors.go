package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrUploadFailed        = errors.New("file upload to storage failed")
	ErrRunNotFound         = errors.New("run not found")
	ErrRunNotCompleted     = errors.New("run has not completed yet")
	ErrInvalidExportFormat = errors.New("invalid export format")

	ErrAdapterInit         = errors.New("adapter initialization failed")
	ErrCorruptPage         = errors.New("corrupt page")
	ErrUnsupportedEncoding = errors.New("unsupported page encoding")
	ErrPageOutOfRange      = errors.New("page index out of range")
	ErrEmptyOCR            = errors.New("ocr returned no text")
	ErrLowConfidence       = errors.New("ocr confidence below threshold")
	ErrNoTextLayer         = errors.New("document has no readable text layer")
)

// IngestionError is a page-level failure during rasterization or OCR. The
// page is skipped and the run continues.
type IngestionError struct {
	Page  int
	Stage ErrorStage
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("page %d %s: %v", e.Page+1, e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
