package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

// generatePDFContent builds a PDF with accurate xref offsets. When text is
// non-empty every page draws it with Helvetica.
func generatePDFContent(pages int, text string) []byte {
	var objects []string
	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}

	objects = append(objects,
		"<<\n/Type /Catalog\n/Pages 2 0 R\n>>",
		fmt.Sprintf("<<\n/Type /Pages\n/Kids [%s]\n/Count %d\n>>", kids, pages),
		"<<\n/Type /Font\n/Subtype /Type1\n/BaseFont /Helvetica\n>>",
	)

	stream := ""
	if text != "" {
		stream = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	}
	for i := 0; i < pages; i++ {
		objects = append(objects,
			fmt.Sprintf("<<\n/Type /Page\n/Parent 2 0 R\n/MediaBox [0 0 612 792]\n/Resources << /Font << /F1 3 0 R >> >>\n/Contents %d 0 R\n>>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	pdf := "%PDF-1.4\n"
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = len(pdf)
		pdf += fmt.Sprintf("%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := len(pdf)
	pdf += fmt.Sprintf("xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		pdf += fmt.Sprintf("%010d 00000 n \n", off)
	}
	pdf += fmt.Sprintf("trailer\n<<\n/Size %d\n/Root 1 0 R\n>>\nstartxref\n%d\n%%%%EOF", len(objects)+1, xrefStart)

	return []byte(pdf)
}

// writeTestFile writes data into dir and returns its path
func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// whitePage returns a page layout backed by a white JPEG raster
func whitePage(t *testing.T, number, width, height int, stamps ...redaction.Stamp) redaction.PageLayout {
	t.Helper()
	img := imaging.New(width, height, color.White)
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)))
	return redaction.PageLayout{
		PageNumber: number,
		Width:      width,
		Height:     height,
		Landscape:  width > height,
		Image:      buf.Bytes(),
		Stamps:     stamps,
	}
}

// isBlack tolerates JPEG noise
func isBlack(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 < 16 && g>>8 < 16 && b>>8 < 16
}

// isWhite tolerates JPEG noise
func isWhite(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > 239 && g>>8 > 239 && b>>8 > 239
}

// fakeRenderer returns canned rasters
type fakeRenderer struct {
	pages  []redaction.PageRaster
	err    error
	closed bool
}

func (f *fakeRenderer) Render(_ context.Context, _ []byte, progress redaction.ProgressFunc) ([]redaction.PageRaster, error) {
	for i := range f.pages {
		progress(i+1, len(f.pages))
	}
	return f.pages, f.err
}

func (f *fakeRenderer) Close() error {
	f.closed = true
	return nil
}
