package split

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

const defaultRenderDPI = 150

// Renderer renders single PDF pages to PNG with pdftoppm
// (poppler-utils). pdftoppm renders the page correctly, unlike
// extracting embedded image objects whose internal numbering may not
// match page order.
type Renderer struct {
	dpi int
}

// NewRenderer creates a page renderer at the given DPI.
func NewRenderer(dpi int) *Renderer {
	if dpi <= 0 {
		dpi = defaultRenderDPI
	}
	return &Renderer{dpi: dpi}
}

// RenderPage renders one page of a PDF to PNG. pageNumber is
// zero-based. The signature matches providers.PageRenderer.
func (r *Renderer) RenderPage(ctx context.Context, doc []byte, pageNumber int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "pagelens-render-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(pdfPath, doc, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write temp PDF: %w", err)
	}

	// Output prefix for pdftoppm
	outputPrefix := filepath.Join(tmpDir, "page")

	// -png: output PNG format
	// -f N / -l N: first and last page to render (1-indexed)
	// -r N: resolution in DPI
	// -singlefile: no page number suffix on the output file
	pageStr := fmt.Sprintf("%d", pageNumber+1)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", r.dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	// pdftoppm with -singlefile creates: <prefix>.png
	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	return data, nil
}
