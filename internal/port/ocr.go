package port

import (
	"context"
	"image"

	"examsolver/internal/domain"
)

// OCRInput carries one rendered page for recognition.
type OCRInput struct {
	PageIndex int
	Image     image.Image
	DPI       int
	Languages []string
}

// OCREngine recognizes word-level tokens on a page image. Tokens are
// returned in the engine's reading order.
type OCREngine interface {
	Name() string
	Recognize(ctx context.Context, input OCRInput) ([]domain.Token, error)
}
