// Package tesseract recognizes page text through the Tesseract engine.
// Tesseract and the language data for the configured languages must be
// installed on the host.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"examsolver/internal/config"
	"examsolver/internal/domain"
	"examsolver/internal/port"
)

// Engine implements port.OCREngine with gosseract. A fresh client is created
// for each page so pages can be recognized concurrently.
type Engine struct {
	languages     []string
	maxEdge       int
	clientFactory func() *gosseract.Client
}

// NewEngine creates a Tesseract-backed OCR engine.
func NewEngine(cfg *config.OCRConfig) *Engine {
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"kor", "eng"}
	}
	return &Engine{
		languages:     langs,
		maxEdge:       cfg.MaxEdgePx,
		clientFactory: gosseract.NewClient,
	}
}

func (e *Engine) Name() string { return "tesseract" }

// Check runs the engine once on a blank image so that a missing binary or
// language pack is reported before any page work starts.
func (e *Engine) Check() error {
	blank := image.NewGray(image.Rect(0, 0, 32, 32))
	draw.Draw(blank, blank.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	data, err := encodeTIFF(blank)
	if err != nil {
		return fmt.Errorf("%w: tesseract: %v", domain.ErrAdapterInit, err)
	}

	c := e.clientFactory()
	defer c.Close()
	if err := c.SetLanguage(e.languages...); err != nil {
		return fmt.Errorf("%w: tesseract languages %v: %v", domain.ErrAdapterInit, e.languages, err)
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return fmt.Errorf("%w: tesseract: %v", domain.ErrAdapterInit, err)
	}
	if _, err := c.Text(); err != nil {
		return fmt.Errorf("%w: tesseract: %v", domain.ErrAdapterInit, err)
	}
	return nil
}

// Recognize returns word tokens in Tesseract's reading order. Coordinates are
// in the input image's pixel space even when the image was downscaled.
func (e *Engine) Recognize(ctx context.Context, in port.OCRInput) ([]domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.Image == nil {
		return nil, fmt.Errorf("tesseract.Recognize page %d: nil image", in.PageIndex)
	}

	img, scale := downscale(in.Image, e.maxEdge)
	data, err := encodeTIFF(img)
	if err != nil {
		return nil, fmt.Errorf("tesseract.Recognize page %d: %w", in.PageIndex, err)
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	langs := in.Languages
	if len(langs) == 0 {
		langs = e.languages
	}
	if err := c.SetLanguage(langs...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if in.DPI > 0 {
		dpi := int(float64(in.DPI) * scale)
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(dpi)); err != nil {
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("tesseract.Recognize page %d: %w", in.PageIndex, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := make([]domain.Token, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		tokens = append(tokens, domain.Token{
			Text: text,
			Box: domain.BBox{
				X: float64(b.Box.Min.X) / scale,
				Y: float64(b.Box.Min.Y) / scale,
				W: float64(b.Box.Dx()) / scale,
				H: float64(b.Box.Dy()) / scale,
			},
			Baseline:   float64(b.Box.Max.Y) / scale,
			Confidence: clamp01(b.Confidence / 100.0),
			Order:      len(tokens),
			Page:       in.PageIndex,
		})
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("tesseract.Recognize page %d: %w", in.PageIndex, domain.ErrEmptyOCR)
	}
	return tokens, nil
}

// downscale shrinks img so its longest edge is at most maxEdge. It returns the
// applied scale factor (1 when untouched).
func downscale(img image.Image, maxEdge int) (image.Image, float64) {
	bounds := img.Bounds()
	longest := bounds.Dx()
	if bounds.Dy() > longest {
		longest = bounds.Dy()
	}
	if maxEdge <= 0 || longest <= maxEdge {
		return img, 1
	}
	scale := float64(maxEdge) / float64(longest)
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(bounds.Dx())*scale), int(float64(bounds.Dy())*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst, scale
}

func encodeTIFF(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return nil, fmt.Errorf("encode tiff: %w", err)
	}
	return buf.Bytes(), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
