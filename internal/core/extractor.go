package core

import (
	"context"

	"github.com/niki-health/CarePilot/internal/models"
)

// EmbeddingProvider turns a batch of texts into one fixed-length vector per
// text, in order, using a single provider call per invocation.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// LabExtractor is the primary extraction path. Both methods return the raw,
// untrusted extraction payload that the Normalizer turns into a LabReport.
type LabExtractor interface {
	// ExtractFromText structures lab results out of OCR'd text.
	ExtractFromText(ctx context.Context, text string) (*models.RawExtraction, error)
	// ExtractFromImage runs a vision call over a single page image (or, as a
	// last resort, the raw document bytes with their original MIME type).
	ExtractFromImage(ctx context.Context, data []byte, mimeType string) (*models.RawExtraction, error)
}

// TextExtractor pulls the text layer out of a document, when it has one.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}

// Rasterizer renders the first page of a PDF to a PNG for the vision call.
type Rasterizer interface {
	FirstPagePNG(ctx context.Context, pdf []byte) ([]byte, error)
}
