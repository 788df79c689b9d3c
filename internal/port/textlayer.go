package port

import (
	"context"

	"examsolver/internal/domain"
)

// PageText is the embedded text of one page, converted to raster
// coordinates at the requested DPI.
type PageText struct {
	PageIndex int
	Width     float64
	Height    float64
	Tokens    []domain.Token
}

// TextLayer reads the digital text layer of a PDF.
type TextLayer interface {
	Extract(ctx context.Context, path string, dpi int) ([]PageText, error)
}
