package descriptions

import "sort"

// Tool descriptions with practical examples and the order tools are usually called in

const (
	// Document
	RedactLoadDocumentDescription = `Load a PDF from the working directory and render every page for PII detection.

**When to use:** First step of every redaction. Replaces any previously loaded document and drops its marks.

**Why it's useful:** Validates the file (extension, size, PDF structure), renders each page to an image and reports whether the source has a selectable text layer.

**Examples:**
• Start a redaction: "Load contracts/umowa-najmu.pdf"
• Scanned forms: "Load scans/wniosek.pdf and tell me how many pages it has"

**Common workflows:**
1. Standard: redact_load_document → redact_run → redact_list_marks → redact_export
2. Review first: redact_load_document → redact_get_settings → adjust categories → redact_run

**Best practices:** Paths are resolved inside the configured directory. The exported file never keeps the original text layer.`

	RedactListDocumentsDescription = `List the PDF files in the working directory that can be loaded for redaction.

**When to use:** Before redact_load_document, when the exact file name is not known.

**Examples:**
• "Which contracts can I anonymize?" → query="umowa"
• "Show all PDFs" → no query

**Best practices:** Paths in the result are relative to the working directory and can be passed to redact_load_document unchanged. Files over the size limit are not listed.`

	RedactStatusDescription = `Report what the redaction session is doing right now.

**When to use:** Poll during long runs, or check why the last operation failed.

**Why it's useful:** Returns the session phase (idle, loading, detecting, exporting, failed), the current page, a human readable status line, the last error, mark counts per category and the summary of the last completed run.

**Examples:**
• Progress: "How far is the analysis?"
• Diagnostics: "Why did the last run fail?"

**Best practices:** A "Done!" or "Downloaded!" message disappears after a few seconds; the phase stays accurate.`

	// Settings
	RedactGetSettingsDescription = `Show which PII categories and custom keywords the next run will look for.

**When to use:** Before a run, to confirm what will be detected.

**Why it's useful:** Lists enabled categories (default NAME, SURNAME, NATIONAL_ID, EMAIL), all available categories and the custom keyword list.

**Best practices:** Settings are read once when a run starts; changes during a run apply to the next one.`

	RedactToggleCategoryDescription = `Enable or disable one PII category for future runs.

**When to use:** To widen detection (e.g. PHONE, ADDRESS) or to skip categories that should stay visible.

**Examples:**
• "Also redact phone numbers" → toggle PHONE
• "Keep e-mail addresses" → toggle EMAIL

**Best practices:** Accepted categories: NAME, SURNAME, NATIONAL_ID (PESEL), EMAIL, PHONE, ADDRESS, OTHER.`

	RedactAddKeywordDescription = `Add a custom keyword the detector should look for in addition to the enabled categories.

**When to use:** Company names, case numbers or any term the categories do not cover.

**Examples:**
• "Also hide the name of the clinic" → add keyword "Przychodnia Zdrowie"
• "Redact every case number" → add keyword "sygn. akt"

**Best practices:** Keywords are trimmed; blank keywords are ignored. Duplicates are kept as entered.`

	RedactRemoveKeywordDescription = `Remove a custom keyword. Every occurrence of the keyword is removed.`

	// Detection
	RedactRunDescription = `Analyze every loaded page with the vision model and replace the current marks with the findings.

**When to use:** After loading a document, and again after changing categories or keywords.

**Why it's useful:** The run starts in the background and this tool returns immediately; redact_status shows the page being analyzed and, once finished, the result. One detection call per page, committed in page order. The run is all-or-nothing: if it fails (missing API key, rate limit) the previous marks stay exactly as they were. A page whose reply cannot be parsed counts as having no findings and is reported in malformed_pages.

**Common workflows:**
1. redact_run → redact_status until idle → redact_list_marks → remove false positives → redact_export
2. Rate limited: wait → redact_run again (no reconfiguration needed)

**Best practices:** Poll redact_status instead of calling redact_run again (a second call while running is rejected); use redact_abort to stop it.`

	RedactAbortDescription = `Stop a detection run in progress. Marks found by the aborted run are discarded; earlier marks stay.`

	// Marks
	RedactListMarksDescription = `List redaction marks with their geometry.

**When to use:** Review what will be blacked out before exporting.

**Why it's useful:** Each mark has an id, category, page, the normalized 0-1000 box, the overlay in percent of the page and the rectangle in page pixels. The detected text is hidden unless reveal is true.

**Examples:**
• "Show all marks on page 2" → page=2
• "Which e-mails were found?" → categories=["EMAIL"], reveal=true

**Best practices:** Use reveal only when the conversation may contain the personal data.`

	RedactRemoveMarkDescription = `Remove one redaction mark by id, e.g. a false positive. Removing an id that is already gone is harmless and reported as such.`

	RedactClearMarksDescription = `Remove every redaction mark. Requires confirm=true because it cannot be undone (only a new run recreates marks).`

	// Export
	RedactExportDescription = `Write the redacted PDF to the working directory.

**When to use:** After reviewing the marks.

**Why it's useful:** Each page image gets opaque black boxes burned in at the mark positions and the pages are assembled into an image-only PDF, so no hidden text survives under the boxes. The default name is <source>_anonimizowany.pdf.

**Examples:**
• "Export the redacted file" → default name
• "Save it as out/umowa-public.pdf" → output="out/umowa-public.pdf"

**Best practices:** Exporting with zero marks is allowed and produces an unredacted image-only copy. A failed export keeps all marks; just retry.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"redact_load_document":   RedactLoadDocumentDescription,
	"redact_list_documents":  RedactListDocumentsDescription,
	"redact_status":          RedactStatusDescription,
	"redact_get_settings":    RedactGetSettingsDescription,
	"redact_toggle_category": RedactToggleCategoryDescription,
	"redact_add_keyword":     RedactAddKeywordDescription,
	"redact_remove_keyword":  RedactRemoveKeywordDescription,
	"redact_run":             RedactRunDescription,
	"redact_abort":           RedactAbortDescription,
	"redact_list_marks":      RedactListMarksDescription,
	"redact_remove_mark":     RedactRemoveMarkDescription,
	"redact_clear_marks":     RedactClearMarksDescription,
	"redact_export":          RedactExportDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns all tool names in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
