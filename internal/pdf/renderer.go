package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

const (
	// RendererPDFium renders with PDFium compiled to WebAssembly (pure Go, no CGo)
	RendererPDFium = "pdfium"
	// RendererFitz renders with MuPDF through go-fitz (requires CGo)
	RendererFitz = "fitz"

	// DefaultJPEGQuality is used for page rasters and the exported pages
	DefaultJPEGQuality = 90

	nativeDPI = 72.0
)

// Renderer defines the interface for PDF to image conversion
type Renderer interface {
	// Render converts all pages of a PDF to encoded rasters, in page order,
	// calling progress before each page
	Render(ctx context.Context, data []byte, progress redaction.ProgressFunc) ([]redaction.PageRaster, error)

	// Close cleans up any resources used by the renderer
	Close() error
}

// NewRenderer creates the renderer named by kind
func NewRenderer(kind string, opts RenderOptions) (Renderer, error) {
	switch kind {
	case RendererPDFium, "":
		return NewPDFiumRenderer(opts)
	case RendererFitz:
		return NewFitzRenderer(opts)
	default:
		return nil, fmt.Errorf("unsupported renderer: %s", kind)
	}
}

// Loader validates a document and rasterizes it. It implements redaction.Rasterizer.
type Loader struct {
	validator *Validator
	renderer  Renderer
	logger    *logrus.Entry
}

// NewLoader combines a validator and renderer
func NewLoader(validator *Validator, renderer Renderer, logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Loader{
		validator: validator,
		renderer:  renderer,
		logger:    logger.WithField("component", "loader"),
	}
}

// Rasterize validates data and renders every page.
// No partial page list is returned on failure.
func (l *Loader) Rasterize(ctx context.Context, data []byte, progress redaction.ProgressFunc) (*redaction.LoadedDocument, error) {
	info, err := l.validator.Inspect("document", data)
	if err != nil {
		return nil, redaction.NewError(redaction.KindLoad, "validate", err)
	}
	l.logger.WithFields(logrus.Fields{"pages": info.Pages, "text_layer": info.TextLayer}).Debug("Document validated")

	if progress == nil {
		progress = func(int, int) {}
	}
	pages, err := l.renderer.Render(ctx, data, progress)
	if err != nil {
		return nil, redaction.NewError(redaction.KindLoad, "render", err)
	}
	if len(pages) == 0 {
		return nil, redaction.NewError(redaction.KindLoad, "render", fmt.Errorf("renderer produced no pages"))
	}

	return &redaction.LoadedDocument{Pages: pages, TextLayer: info.TextLayer}, nil
}

// Close releases the renderer
func (l *Loader) Close() error {
	return l.renderer.Close()
}

// encodePage turns a rendered page into an immutable PageRaster
func encodePage(pageNumber int, img image.Image, quality int) (redaction.PageRaster, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return redaction.PageRaster{}, fmt.Errorf("page %d rendered to an empty image", pageNumber)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return redaction.PageRaster{}, fmt.Errorf("unable to encode page %d: %w", pageNumber, err)
	}

	return redaction.PageRaster{
		PageNumber:  pageNumber,
		ImageData:   buf.Bytes(),
		PixelWidth:  bounds.Dx(),
		PixelHeight: bounds.Dy(),
	}, nil
}
