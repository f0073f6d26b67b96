package pdf

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

// FitzRenderer implements PDF rendering using go-fitz (requires CGo and MuPDF)
type FitzRenderer struct {
	opts RenderOptions
}

// NewFitzRenderer creates a new Fitz-based PDF renderer
func NewFitzRenderer(opts RenderOptions) (*FitzRenderer, error) {
	return &FitzRenderer{opts: opts}, nil
}

// Render converts all pages of a PDF to JPEG rasters. Each page gets its own
// pixmap, so nothing is shared between pages.
func (r *FitzRenderer) Render(ctx context.Context, data []byte, progress redaction.ProgressFunc) ([]redaction.PageRaster, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	pages := make([]redaction.PageRaster, 0, numPages)
	dpi := float64(r.opts.DPI())

	for pageNum := 0; pageNum < numPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progress(pageNum+1, numPages)

		img, err := doc.ImageDPI(pageNum, dpi)
		if err != nil {
			return nil, fmt.Errorf("unable to render page %d: %w", pageNum+1, err)
		}

		page, err := encodePage(pageNum+1, img, r.opts.quality())
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}

	return pages, nil
}

// Close cleans up resources (no-op for Fitz renderer as doc is closed per-render)
func (r *FitzRenderer) Close() error {
	return nil
}
