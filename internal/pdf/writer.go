package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

// Writer burns stamps into page rasters and assembles them into an image-only PDF.
// It implements redaction.DocumentWriter.
type Writer struct {
	jpegQuality int
}

// NewWriter creates a PDF writer that re-encodes pages at the given JPEG quality
func NewWriter(jpegQuality int) *Writer {
	return &Writer{jpegQuality: RenderOptions{JPEGQuality: jpegQuality}.quality()}
}

// Write renders every page in order, one PDF page per raster, sized to the
// raster's pixel dimensions. Output is written only after every page succeeded.
func (w *Writer) Write(ctx context.Context, out io.Writer, pages []redaction.PageLayout) error {
	if len(pages) == 0 {
		return fmt.Errorf("nothing to write: no pages")
	}

	var doc []byte
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		img, err := imaging.Decode(bytes.NewReader(page.Image))
		if err != nil {
			return fmt.Errorf("unable to decode page %d: %w", page.PageNumber, err)
		}
		stamped := BurnStamps(img, page)

		var encoded bytes.Buffer
		if err := imaging.Encode(&encoded, stamped, imaging.JPEG, imaging.JPEGQuality(w.jpegQuality)); err != nil {
			return fmt.Errorf("unable to encode page %d: %w", page.PageNumber, err)
		}

		doc, err = appendImagePage(doc, &encoded, page)
		if err != nil {
			return fmt.Errorf("unable to add page %d: %w", page.PageNumber, err)
		}
	}

	_, err := out.Write(doc)
	return err
}

// appendImagePage adds one full-bleed image page to doc, creating the document when doc is nil
func appendImagePage(doc []byte, img io.Reader, page redaction.PageLayout) ([]byte, error) {
	imp := pdfcpu.DefaultImportConfig()
	imp.PageDim = &types.Dim{Width: float64(page.Width), Height: float64(page.Height)}
	imp.UserDim = true
	imp.Pos = types.Full
	imp.InpUnit = types.POINTS

	var rs io.ReadSeeker
	if doc != nil {
		rs = bytes.NewReader(doc)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var next bytes.Buffer
	if err := api.ImportImages(rs, &next, []io.Reader{img}, imp, conf); err != nil {
		return nil, err
	}
	return next.Bytes(), nil
}

// BurnStamps paints every stamp of the layout fully opaque black onto a copy of img.
// Rectangles are widened to whole pixels so no partially covered pixel survives.
func BurnStamps(img image.Image, page redaction.PageLayout) *image.NRGBA {
	dst := imaging.Clone(img)
	bounds := dst.Bounds()

	// Stamps are computed against the layout size; rescale if the raster differs.
	sx, sy := 1.0, 1.0
	if page.Width > 0 && page.Height > 0 {
		sx = float64(bounds.Dx()) / float64(page.Width)
		sy = float64(bounds.Dy()) / float64(page.Height)
	}

	for _, s := range page.Stamps {
		r := image.Rect(
			bounds.Min.X+int(math.Floor(s.Rect.X*sx)),
			bounds.Min.Y+int(math.Floor(s.Rect.Y*sy)),
			bounds.Min.X+int(math.Ceil((s.Rect.X+s.Rect.W)*sx)),
			bounds.Min.Y+int(math.Ceil((s.Rect.Y+s.Rect.H)*sy)),
		).Intersect(bounds)
		if r.Empty() {
			continue
		}
		patch := imaging.New(r.Dx(), r.Dy(), color.Black)
		dst = imaging.Paste(dst, patch, r.Min)
	}
	return dst
}
