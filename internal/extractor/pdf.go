package extractor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
)

// Pdftoppm renders PDF pages with poppler's pdftoppm binary.
type Pdftoppm struct {
	// Bin is the pdftoppm executable; defaults to "pdftoppm" on PATH.
	Bin string
	// DPI defaults to 150.
	DPI int
}

var _ PageRasterizer = (*Pdftoppm)(nil)

func (p *Pdftoppm) Pages(ctx context.Context, pdf []byte) ([][]byte, error) {
	bin := p.Bin
	if bin == "" {
		bin = "pdftoppm"
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 150
	}

	dir, err := os.MkdirTemp("", "splitthat-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "receipt.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, "-png", "-r", strconv.Itoa(dpi), in, filepath.Join(dir, "page"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, out)
	}

	// pdftoppm zero-pads page numbers to a common width, so lexical order is page order.
	files, err := filepath.Glob(filepath.Join(dir, "page*.png"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	pages := make([][]byte, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read rendered page: %w", err)
		}
		pages = append(pages, data)
	}
	return pages, nil
}
