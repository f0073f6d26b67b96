package mcp

import (
	"fmt"
	"strings"

	"github.com/a3tai/mcp-pdf-redactor/internal/pdf"
	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

func formatLoadResult(result pdf.LoadDocumentResult) string {
	text := fmt.Sprintf("Loaded document: %s\n", result.Path)
	text += fmt.Sprintf("Pages: %d\n", result.Pages)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	text += fmt.Sprintf("Text layer: %t\n", result.TextLayer)

	if !result.TextLayer {
		text += "\nINFO: No selectable text found. The document looks scanned; detection works on the page images either way.\n"
	}
	text += "\nNext: redact_run to detect personal data.\n"
	return text
}

func formatDocumentList(result *pdf.ListDocumentsResult) string {
	if len(result.Files) == 0 {
		text := fmt.Sprintf("No PDF files found in directory: %s", result.Directory)
		if result.Query != "" {
			text += fmt.Sprintf(" (searched for: %s)", result.Query)
		}
		return text
	}

	text := fmt.Sprintf("Found %d PDF file(s) in directory: %s\n", len(result.Files), result.Directory)
	if result.Query != "" {
		text += fmt.Sprintf("Search query: %s\n", result.Query)
	}
	text += "\n"
	for i, file := range result.Files {
		text += fmt.Sprintf("%d. %s (%d bytes, modified %s)\n", i+1, file.Path, file.Size, file.ModifiedTime)
	}
	if result.Truncated {
		text += "\n... more files not shown; narrow the query.\n"
	}
	return text
}

func formatStatus(st redaction.Status, counts map[redaction.Category]int) string {
	text := fmt.Sprintf("State: %s\n", st.State)
	if st.Text != "" {
		text += fmt.Sprintf("Status: %s\n", st.Text)
	}
	if st.Source != "" {
		text += fmt.Sprintf("Document: %s (%d pages, text layer: %t)\n", st.Source, st.Pages, st.TextLayer)
	} else {
		text += "Document: none loaded\n"
	}
	text += fmt.Sprintf("Marks: %d\n", st.Marks)
	text += formatCounts(counts)
	if st.LastRun != nil {
		text += "\nLast run: " + formatRunResult(st.LastRun)
	}
	if st.Error != "" {
		text += fmt.Sprintf("\nLast error: %s\n", st.Error)
		if hint := errorHint(st.ErrorKind); hint != "" {
			text += hint + "\n"
		}
	}
	return text
}

func formatCounts(counts map[redaction.Category]int) string {
	text := ""
	for _, c := range redaction.AllCategories {
		if n := counts[c]; n > 0 {
			text += fmt.Sprintf("  %s: %d\n", c, n)
		}
	}
	return text
}

func formatSettings(settings redaction.Settings) string {
	enabled := make([]string, len(settings.Categories))
	for i, c := range settings.Categories {
		enabled[i] = string(c)
	}

	text := "Detection settings\n"
	if len(enabled) == 0 {
		text += "Categories: none\n"
	} else {
		text += fmt.Sprintf("Categories: %s\n", strings.Join(enabled, ", "))
	}
	text += fmt.Sprintf("Available: %s\n", strings.Join(categoryNames(), ", "))
	if len(settings.CustomKeywords) == 0 {
		text += "Custom keywords: none\n"
	} else {
		text += fmt.Sprintf("Custom keywords: %s\n", strings.Join(settings.CustomKeywords, ", "))
	}
	return text
}

func formatRunResult(res *redaction.RunResult) string {
	text := fmt.Sprintf("Analysis complete: %d page(s), %d mark(s)\n", res.Pages, res.Marks)
	text += formatCounts(res.ByCategory)
	if len(res.MalformedPages) > 0 {
		pages := make([]string, len(res.MalformedPages))
		for i, p := range res.MalformedPages {
			pages[i] = fmt.Sprintf("%d", p)
		}
		text += fmt.Sprintf("\nWARNING: unreadable detector reply on page(s) %s; treated as no findings.\n",
			strings.Join(pages, ", "))
	}
	return text
}

func formatMarks(views []redaction.MarkView) string {
	if len(views) == 0 {
		return "No marks."
	}

	text := fmt.Sprintf("%d mark(s)\n", len(views))
	for i, v := range views {
		text += fmt.Sprintf("\n%d. %s [%s] page %d\n", i+1, v.ID, v.Category, v.PageNumber)
		if v.SourceText != "" {
			text += fmt.Sprintf("   Text: %s\n", v.SourceText)
		}
		text += fmt.Sprintf("   Box: ymin=%.0f xmin=%.0f ymax=%.0f xmax=%.0f\n",
			v.Box.YMin, v.Box.XMin, v.Box.YMax, v.Box.XMax)
		text += fmt.Sprintf("   Overlay: top=%.1f%% left=%.1f%% width=%.1f%% height=%.1f%%\n",
			v.Overlay.TopPct, v.Overlay.LeftPct, v.Overlay.WidthPct, v.Overlay.HeightPct)
		text += fmt.Sprintf("   Pixels: x=%.0f y=%.0f w=%.0f h=%.0f\n", v.Rect.X, v.Rect.Y, v.Rect.W, v.Rect.H)
	}
	return text
}

func formatExportResult(result pdf.ExportDocumentResult) string {
	text := fmt.Sprintf("Redacted document written: %s\n", result.Path)
	text += fmt.Sprintf("Pages: %d\n", result.Pages)
	text += fmt.Sprintf("Redaction boxes: %d\n", result.Stamps)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	if result.Stamps == 0 {
		text += "\nWARNING: no marks were applied; the output is an unredacted image-only copy.\n"
	}
	return text
}
