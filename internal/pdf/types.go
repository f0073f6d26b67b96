package pdf

import "github.com/a3tai/mcp-pdf-redactor/internal/redaction"

// DocumentInfo describes a source PDF after validation
type DocumentInfo struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Pages     int    `json:"pages"`
	TextLayer bool   `json:"text_layer"`
}

// RenderOptions control how pages are rasterized
type RenderOptions struct {
	Scale       float64 // multiple of the native 72 DPI page size
	JPEGQuality int
}

// DPI returns the render resolution for the configured scale
func (o RenderOptions) DPI() int {
	scale := o.Scale
	if scale <= 0 {
		scale = redaction.DefaultScale
	}
	return int(scale*nativeDPI + 0.5)
}

func (o RenderOptions) quality() int {
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		return DefaultJPEGQuality
	}
	return o.JPEGQuality
}

// Request Types

// LoadDocumentRequest represents a request to load a PDF for redaction
type LoadDocumentRequest struct {
	Path string `json:"path"`
}

// ExportDocumentRequest represents a request to write the redacted PDF
type ExportDocumentRequest struct {
	Output string `json:"output"`
}

// Response Types

// LoadDocumentResult represents the result of loading a PDF
type LoadDocumentResult struct {
	Path      string `json:"path"`
	Pages     int    `json:"pages"`
	Size      int64  `json:"size"`
	TextLayer bool   `json:"text_layer"`
}

// ExportDocumentResult represents the result of exporting a redacted PDF
type ExportDocumentResult struct {
	Path   string `json:"path"`
	Pages  int    `json:"pages"`
	Stamps int    `json:"stamps"`
	Size   int64  `json:"size"`
}
