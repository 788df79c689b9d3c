package port

import (
	"context"
	"image"
)

// Rasterizer renders the pages of one open document.
type Rasterizer interface {
	PageCount() int
	Render(ctx context.Context, pageIndex int, dpi int) (image.Image, error)
	Close() error
}

// RasterOpener opens a document for rasterization.
type RasterOpener interface {
	Open(ctx context.Context, path string) (Rasterizer, error)
}
