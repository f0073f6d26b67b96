package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-pdf-redactor/internal/pdf"
	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

// toolError renders a failure, telling the caller when a plain retry is enough
func toolError(err error) *mcp.CallToolResult {
	msg := err.Error()
	if hint := errorHint(redaction.KindOf(err)); hint != "" {
		msg += "\n\n" + hint
	}
	return mcp.NewToolResultError(msg)
}

func errorHint(kind redaction.ErrorKind) string {
	switch kind {
	case redaction.KindRateLimit:
		return "The detection service is rate limited. Wait a moment and call redact_run again."
	case redaction.KindDetectionConfig:
		return "The detection service is not configured. Set an API key for the configured provider and restart."
	case redaction.KindBusy:
		return "Another operation is running. Check redact_status and try again."
	case redaction.KindExport:
		return "All marks were kept. Call redact_export again."
	default:
		return ""
	}
}

func (s *Server) handleLoadDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resolved, data, err := s.pdfService.ReadDocument(pdf.LoadDocumentRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pages, err := s.session.Load(ctx, resolved, data)
	if err != nil {
		return toolError(err), nil
	}

	result := pdf.LoadDocumentResult{
		Path:      resolved,
		Pages:     pages,
		Size:      int64(len(data)),
		TextLayer: s.session.Status().TextLayer,
	}
	return mcp.NewToolResultText(formatLoadResult(result)), nil
}

func (s *Server) handleListDocuments(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.pdfService.ListDocuments(pdf.ListDocumentsRequest{Query: request.GetString("query", "")})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatDocumentList(result)), nil
}

func (s *Server) handleStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.session.Status()
	return mcp.NewToolResultText(formatStatus(st, redaction.CategoryCounts(s.session.Marks(0, nil)))), nil
}

func (s *Server) handleGetSettings(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatSettings(s.session.Settings().Snapshot())), nil
}

func (s *Server) handleToggleCategory(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	label, err := request.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cat, ok := redaction.ParseCategory(label)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown category %q, expected one of: %s",
			label, strings.Join(categoryNames(), ", "))), nil
	}

	state := "disabled"
	if s.session.Settings().Toggle(cat) {
		state = "enabled"
	}
	text := fmt.Sprintf("Category %s %s for the next run.\n\n", cat, state)
	text += formatSettings(s.session.Settings().Snapshot())
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleAddKeyword(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keyword, err := request.RequireString("keyword")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.session.Settings().AddKeyword(keyword) {
		return mcp.NewToolResultError("keyword cannot be blank"), nil
	}
	text := fmt.Sprintf("Added keyword %q.\n\n", strings.TrimSpace(keyword))
	text += formatSettings(s.session.Settings().Snapshot())
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleRemoveKeyword(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keyword, err := request.RequireString("keyword")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	removed := s.session.Settings().RemoveKeyword(keyword)
	if removed == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Keyword %q was not in the list.", strings.TrimSpace(keyword))), nil
	}
	text := fmt.Sprintf("Removed keyword %q (%d occurrence(s)).\n\n", strings.TrimSpace(keyword), removed)
	text += formatSettings(s.session.Settings().Snapshot())
	return mcp.NewToolResultText(text), nil
}

// handleRun starts the run in the background so the transport stays free for
// redact_status and redact_abort while pages are analyzed
func (s *Server) handleRun(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	err := s.session.Start(ctx)
	if errors.Is(err, redaction.ErrNoDocument) {
		return mcp.NewToolResultError(redaction.ErrNoDocument.Error() + "; call redact_load_document first"), nil
	}
	if err != nil {
		return toolError(err), nil
	}
	pages := len(s.session.Pages())
	return mcp.NewToolResultText(fmt.Sprintf("Analysis started on %d page(s).\n\n"+
		"Call redact_status for progress and the result, or redact_abort to stop.", pages)), nil
}

func (s *Server) handleAbort(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.session.Abort() {
		return mcp.NewToolResultText("No detection run in progress."), nil
	}
	return mcp.NewToolResultText("Detection run aborted. Previous marks are unchanged."), nil
}

func (s *Server) handleListMarks(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page := request.GetInt("page", 0)
	if page < 0 {
		return mcp.NewToolResultError("page must be a positive number"), nil
	}

	filter := map[redaction.Category]bool{}
	if raw, ok := request.GetArguments()["categories"].([]interface{}); ok {
		for _, v := range raw {
			label, ok := v.(string)
			if !ok {
				return mcp.NewToolResultError("categories must be a list of strings"), nil
			}
			cat, known := redaction.ParseCategory(label)
			if !known {
				return mcp.NewToolResultError(fmt.Sprintf("unknown category %q", label)), nil
			}
			filter[cat] = true
		}
	}

	views := s.session.MarkViews(page, filter, request.GetBool("reveal", false))
	return mcp.NewToolResultText(formatMarks(views)), nil
}

func (s *Server) handleRemoveMark(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	verb := "Removed"
	if !s.session.RemoveMark(id) {
		verb = "Already removed:"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s mark %s. %d mark(s) remain.", verb, id, s.session.Status().Marks)), nil
}

func (s *Server) handleClearMarks(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !request.GetBool("confirm", false) {
		return mcp.NewToolResultError("confirm must be true to remove every mark"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed %d mark(s).", s.session.ClearMarks())), nil
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := pdf.ExportDocumentRequest{Output: strings.TrimSpace(request.GetString("output", ""))}

	var path string
	res, err := s.session.ExportWith(ctx, func(res *redaction.ExportResult) error {
		name := req.Output
		if name == "" {
			name = res.Filename
		}
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			name += ".pdf"
		}

		var werr error
		path, werr = s.pdfService.WriteOutput(name, res.Data)
		if werr != nil {
			s.logger.WithError(werr).WithField("output", name).Error("Failed to write redacted document")
		}
		return werr
	})
	if err != nil {
		return toolError(err), nil
	}

	return mcp.NewToolResultText(formatExportResult(pdf.ExportDocumentResult{
		Path:   path,
		Pages:  res.Pages,
		Stamps: res.Stamps,
		Size:   int64(len(res.Data)),
	})), nil
}
