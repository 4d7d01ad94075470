package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/pipeline"
	"github.com/squirll/receiptd/pkg/config"
)

// ExtractionInput carries the raw material for one extraction: either a set
// of receipt photos or the HTML body of a forwarded email receipt.
type ExtractionInput struct {
	Images      [][]byte
	ContentType string
	HTML        string
}

// Extractor converts receipt images or HTML into a normalized record. The
// two backends are interchangeable; callers pick one through configuration,
// never through type switches.
type Extractor interface {
	Extract(ctx context.Context, input ExtractionInput) (*pipeline.NormalizedReceipt, error)
	Name() string
}

// NewExtractor builds the backend selected by EXTRACTION_BACKEND. Document
// intelligence only accepts images, so with the azure backend the
// vision-language model still serves email HTML.
func NewExtractor(cfg *config.Config, logger *zap.Logger) (Extractor, error) {
	switch cfg.Extraction.Backend {
	case "gemini":
		return NewGeminiExtractor(&cfg.Gemini, cfg.Extraction.Timeout, logger)
	case "azure":
		azure, err := NewAzureExtractor(&cfg.Azure, logger)
		if err != nil {
			return nil, err
		}
		gemini, err := NewGeminiExtractor(&cfg.Gemini, cfg.Extraction.Timeout, logger)
		if err != nil {
			return nil, err
		}
		return &inputRouter{images: azure, html: gemini}, nil
	default:
		return nil, fmt.Errorf("unknown extraction backend %q", cfg.Extraction.Backend)
	}
}

// inputRouter splits extraction by input shape: photo uploads go to the
// image backend, email HTML to the HTML-capable one.
type inputRouter struct {
	images Extractor
	html   Extractor
}

func (r *inputRouter) Extract(ctx context.Context, input ExtractionInput) (*pipeline.NormalizedReceipt, error) {
	if len(input.Images) == 0 && input.HTML != "" {
		return r.html.Extract(ctx, input)
	}
	return r.images.Extract(ctx, input)
}

func (r *inputRouter) Name() string { return r.images.Name() }
