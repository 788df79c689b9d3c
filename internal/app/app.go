// Package app assembles the pipeline and its adapters from configuration.
package app

import (
	"fmt"
	"log"

	"examsolver/internal/backend"
	_ "examsolver/internal/backend/claude"
	_ "examsolver/internal/backend/gemini"
	_ "examsolver/internal/backend/openai"
	"examsolver/internal/config"
	"examsolver/internal/email/noop"
	"examsolver/internal/email/ses"
	"examsolver/internal/ocr/tesseract"
	"examsolver/internal/pipeline"
	"examsolver/internal/port"
	"examsolver/internal/raster/fitz"
	"examsolver/internal/textlayer"
)

// NewPipeline builds a pipeline with the MuPDF rasterizer, Tesseract OCR, the
// embedded text layer reader and the configured reasoning backend chain.
func NewPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	reasoning, err := backend.Build(&cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("building reasoning backend: %w", err)
	}

	return pipeline.New(pipeline.Deps{
		Opener:    fitz.NewOpener(),
		OCR:       tesseract.NewEngine(&cfg.OCR),
		TextLayer: textlayer.NewExtractor(),
		Backend:   reasoning,
	}, cfg)
}

// NewEmailSender returns the configured run summary sender.
func NewEmailSender(cfg *config.EmailConfig) (port.EmailSender, error) {
	switch cfg.Provider {
	case "", "noop":
		return noop.NewNoopSender(), nil
	case "ses":
		sender, err := ses.NewSESSender(cfg.Region, cfg.FromAddress, cfg.FromName)
		if err != nil {
			return nil, fmt.Errorf("initializing SES sender: %w", err)
		}
		log.Printf("app.NewEmailSender: using SES (from=%s)", cfg.FromAddress)
		return sender, nil
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}
}
