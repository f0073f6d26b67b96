package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/mcp-pdf-redactor/internal/config"
	"github.com/a3tai/mcp-pdf-redactor/internal/descriptions"
	"github.com/a3tai/mcp-pdf-redactor/internal/pdf"
	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

// MCPEndpoint is where the streamable HTTP transport is mounted in server mode
const MCPEndpoint = "/mcp"

// WebServer hosts the MCP endpoint next to the REST API in server mode
type WebServer interface {
	Mount(path string, h http.Handler)
	Serve(ctx context.Context, addr string) error
}

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	session    *redaction.Session
	mcpServer  *server.MCPServer
	logger     *logrus.Entry

	stdin  io.Reader
	stdout io.Writer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service, session *redaction.Session, logger *logrus.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		session:    session,
		mcpServer:  mcpServer,
		logger:     logger.WithField("component", "mcp"),
		stdin:      os.Stdin,
		stdout:     os.Stdout,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	// Document
	s.mcpServer.AddTool(mcp.NewTool(
		"redact_load_document",
		mcp.WithDescription(descriptions.RedactLoadDocumentDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF, relative to the configured directory or absolute inside it"),
		),
	), s.handleLoadDocument)

	s.mcpServer.AddTool(mcp.NewTool(
		"redact_list_documents",
		mcp.WithDescription(descriptions.RedactListDocumentsDescription),
		mcp.WithString("query",
			mcp.Description("Optional fuzzy filter on the file name"),
		),
	), s.handleListDocuments)

	s.mcpServer.AddTool(mcp.NewTool(
		"redact_status",
		mcp.WithDescription(descriptions.RedactStatusDescription),
	), s.handleStatus)

	// Settings
	s.mcpServer.AddTool(mcp.NewTool(
		"redact_get_settings",
		mcp.WithDescription(descriptions.RedactGetSettingsDescription),
	), s.handleGetSettings)

	s.mcpServer.AddTool(mcp.NewTool(
		"redact_toggle_category",
		mcp.WithDescription(descriptions.RedactToggleCategoryDescription),
		mcp.WithString("category",
			mcp.Required(),
			mcp.Description("PII category to enable or disable"),
			mcp.Enum(categoryNames()...),
		),
	), s.handleToggleCategory)

	s.mcpServer.AddTool(mcp.NewTool(
		"redact_add_keyword",
		mcp.WithDescription(descriptions.RedactAddKeywordDescription),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Keyword to look for"),
		),
	), s.handleAddKeyword)

	s.mcpServer.AddTool(mcp.NewTool(
		"redact_remove_keyword",
		mcp.WithDescription(descriptions.RedactRemoveKeywordDescription),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Keyword to remove"),
		),
	), s.handleRemoveKeyword)

	// Detection
	s.mcpServer.AddTool(mcp.NewTool(
		"redact_run",
		mcp.WithDescription(descriptions.RedactRunDescription),
	), s.handleRun)

	s.mcpServer.AddTool(mcp.NewTool(
		"redact_abort",
		mcp.WithDescription(descriptions.RedactAbortDescription),
	), s.handleAbort)

	// Marks
	s.mcpServer.AddTool(mcp.NewTool(
		"redact_list_marks",
		mcp.WithDescription(descriptions.RedactListMarksDescription),
		mcp.WithNumber("page",
			mcp.Description("Only list marks on this page (1-based); all pages if omitted"),
		),
		mcp.WithArray("categories",
			mcp.Description("Only list marks of these categories"),
			mcp.Items(map[string]interface{}{"type": "string"}),
		),
		mcp.WithBoolean("reveal",
			mcp.Description("Include the detected text instead of a placeholder"),
		),
	), s.handleListMarks)

	s.mcpServer.AddTool(mcp.NewTool(
		"redact_remove_mark",
		mcp.WithDescription(descriptions.RedactRemoveMarkDescription),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Mark id as returned by redact_list_marks"),
		),
	), s.handleRemoveMark)

	s.mcpServer.AddTool(mcp.NewTool(
		"redact_clear_marks",
		mcp.WithDescription(descriptions.RedactClearMarksDescription),
		mcp.WithBoolean("confirm",
			mcp.Required(),
			mcp.Description("Must be true"),
		),
	), s.handleClearMarks)

	// Export
	s.mcpServer.AddTool(mcp.NewTool(
		"redact_export",
		mcp.WithDescription(descriptions.RedactExportDescription),
		mcp.WithString("output",
			mcp.Description("Output path inside the configured directory (default: <source>_anonimizowany.pdf)"),
		),
	), s.handleExport)
}

func categoryNames() []string {
	names := make([]string, len(redaction.AllCategories))
	for i, c := range redaction.AllCategories {
		names[i] = string(c)
	}
	return names
}

// Run starts the MCP server in the configured mode. In server mode the
// streamable HTTP transport is mounted on web, which then owns the listener.
func (s *Server) Run(ctx context.Context, web WebServer) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx, web)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves JSON-RPC over stdin/stdout until ctx is cancelled or stdin closes
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.WithField("directory", s.config.PDFDirectory).Debug("Starting MCP server in stdio mode")

	errWriter := s.logger.WriterLevel(logrus.ErrorLevel)
	defer errWriter.Close()

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(log.New(errWriter, "", 0))

	err := stdio.Listen(ctx, s.stdin, s.stdout)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return fmt.Errorf("failed to serve stdio: %w", err)
}

// runServerMode mounts the streamable HTTP transport and serves until ctx is cancelled
func (s *Server) runServerMode(ctx context.Context, web WebServer) error {
	if web == nil {
		return fmt.Errorf("server mode requires an HTTP server")
	}

	web.Mount(MCPEndpoint, server.NewStreamableHTTPServer(s.mcpServer))
	s.logger.WithFields(logrus.Fields{
		"address":  s.config.Address(),
		"endpoint": MCPEndpoint,
	}).Info("Starting MCP server in HTTP mode")

	return web.Serve(ctx, s.config.Address())
}
