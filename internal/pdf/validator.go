package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// textProbePages bounds how many pages are checked for a text layer
const textProbePages = 3

// Validator handles PDF validation before rasterization
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidatePath checks a file on disk before it is read
func (v *Validator) ValidatePath(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}

	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}

	return v.checkSize(filePath, fileInfo.Size())
}

// Inspect validates in-memory PDF bytes and probes page count and text layer
func (v *Validator) Inspect(name string, data []byte) (*DocumentInfo, error) {
	if err := v.checkSize(name, int64(len(data))); err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return nil, fmt.Errorf("invalid PDF file: missing %%PDF header")
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid PDF file: %w", err)
	}

	pages := r.NumPage()
	if pages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	return &DocumentInfo{
		Name:      name,
		Size:      int64(len(data)),
		Pages:     pages,
		TextLayer: hasTextLayer(r, pages),
	}, nil
}

func (v *Validator) checkSize(name string, size int64) error {
	if size == 0 {
		return fmt.Errorf("file is empty: %s", name)
	}

	if size > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", size, v.maxFileSize)
	}
	return nil
}

// hasTextLayer reports whether any of the first pages carry extractable text.
// The text is never used: redaction works on rasters only, so the output drops it.
func hasTextLayer(r *pdf.Reader, pages int) (found bool) {
	defer func() {
		// Malformed content streams make the reader panic; treat as no text.
		if recover() != nil {
			found = false
		}
	}()

	for i := 1; i <= pages && i <= textProbePages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err == nil && strings.TrimSpace(text) != "" {
			return true
		}
	}
	return false
}
