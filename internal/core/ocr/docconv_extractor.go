package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/niki-health/CarePilot/internal/core"
)

// DocconvExtractor pulls the text layer out of PDFs (and other text-bearing
// formats) using sajari/docconv. Scanned documents typically come back
// empty; the pipeline then falls through to the vision path.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv %s: %w", contentType, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Body), nil
}

var _ core.TextExtractor = (*DocconvExtractor)(nil)
