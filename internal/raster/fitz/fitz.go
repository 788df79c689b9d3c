// Package fitz rasterizes PDF pages through MuPDF.
package fitz

import (
	"context"
	"errors"
	"fmt"
	"image"

	gofitz "github.com/gen2brain/go-fitz"

	"examsolver/internal/domain"
	"examsolver/internal/port"
)

// Opener opens documents for rendering. It holds no state; every opened
// document owns its own MuPDF context.
type Opener struct{}

// NewOpener creates a MuPDF-backed rasterizer opener.
func NewOpener() *Opener {
	return &Opener{}
}

// Open opens the document at path.
func (o *Opener) Open(ctx context.Context, path string) (port.Rasterizer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := gofitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("fitz.Open %s: %w", path, classify(err))
	}
	return &document{doc: doc, pages: doc.NumPage()}, nil
}

type document struct {
	doc   *gofitz.Document
	pages int
}

func (d *document) PageCount() int {
	return d.pages
}

// Render draws page pageIndex (0-based) at dpi. go-fitz serializes access to
// the underlying document, so concurrent calls are safe but not parallel.
func (d *document) Render(ctx context.Context, pageIndex, dpi int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pageIndex < 0 || pageIndex >= d.pages {
		return nil, fmt.Errorf("fitz.Render page %d of %d: %w", pageIndex, d.pages, domain.ErrPageOutOfRange)
	}
	img, err := d.doc.ImageDPI(pageIndex, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("fitz.Render page %d: %w", pageIndex, classify(err))
	}
	return img, nil
}

func (d *document) Close() error {
	return d.doc.Close()
}

func classify(err error) error {
	switch {
	case errors.Is(err, gofitz.ErrPageMissing):
		return fmt.Errorf("%w: %v", domain.ErrPageOutOfRange, err)
	case errors.Is(err, gofitz.ErrLoadPage), errors.Is(err, gofitz.ErrRunPageContents),
		errors.Is(err, gofitz.ErrOpenDocument), errors.Is(err, gofitz.ErrOpenMemory):
		return fmt.Errorf("%w: %v", domain.ErrCorruptPage, err)
	case errors.Is(err, gofitz.ErrNeedsPassword):
		return fmt.Errorf("%w: %v", domain.ErrUnsupportedEncoding, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrCorruptPage, err)
	}
}
