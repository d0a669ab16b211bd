package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/niki-health/CarePilot/internal/core"
)

// PdftoppmRasterizer renders the first PDF page to PNG by shelling out to
// poppler's pdftoppm. Only one representative page is needed: the vision
// extraction runs on a single image per document.
type PdftoppmRasterizer struct {
	binary string
	dpi    int
}

func NewPdftoppmRasterizer(binary string) *PdftoppmRasterizer {
	if binary == "" {
		binary = "pdftoppm"
	}
	return &PdftoppmRasterizer{binary: binary, dpi: 150}
}

func (r *PdftoppmRasterizer) FirstPagePNG(ctx context.Context, pdf []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "carepilot-raster-*")
	if err != nil {
		return nil, fmt.Errorf("raster tmpdir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "page.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("raster spool: %w", err)
	}

	outPrefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, r.binary,
		"-png", "-singlefile",
		"-f", "1", "-l", "1",
		"-r", fmt.Sprint(r.dpi),
		in, outPrefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %v: %s", err, stderr.String())
	}

	png, err := os.ReadFile(outPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rasterized page: %w", err)
	}
	return png, nil
}

var _ core.Rasterizer = (*PdftoppmRasterizer)(nil)
