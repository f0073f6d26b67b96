package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/a3tai/mcp-pdf-redactor/internal/config"
	"github.com/a3tai/mcp-pdf-redactor/internal/detection"
	"github.com/a3tai/mcp-pdf-redactor/internal/httpapi"
	"github.com/a3tai/mcp-pdf-redactor/internal/mcp"
	"github.com/a3tai/mcp-pdf-redactor/internal/pdf"
	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

var (
	// Set with -ldflags at release time
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// app holds the wired components of one process
type app struct {
	loader *pdf.Loader
	server *mcp.Server
	web    *httpapi.API
}

// setupLogging creates the process logger. In stdio mode stdout carries the
// MCP protocol, so logs always go to stderr.
func setupLogging(cfg *config.Config) *logrus.Logger {
	var out io.Writer = os.Stdout
	if cfg.IsStdioMode() {
		out = os.Stderr
	}
	return cfg.NewLogger(out)
}

// newApp wires renderer, detector, writer and both surfaces around one session
func newApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*app, error) {
	renderer, err := pdf.NewRenderer(cfg.Renderer, pdf.RenderOptions{
		Scale:       cfg.Scale,
		JPEGQuality: cfg.JPEGQuality,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	pdfService, err := pdf.NewService(cfg.MaxFileSize, cfg.PDFDirectory)
	if err != nil {
		renderer.Close()
		return nil, fmt.Errorf("failed to create PDF service: %w", err)
	}
	loader := pdf.NewLoader(pdfService.Validator(), renderer, logger)

	detector, err := detection.New(ctx, detection.Config{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
	}, logger)
	if err != nil {
		loader.Close()
		return nil, fmt.Errorf("failed to create detection client: %w", err)
	}

	session := redaction.NewSession(loader, detector, pdf.NewWriter(cfg.JPEGQuality), redaction.Options{
		Concurrency:      cfg.Concurrency,
		StatusClearDelay: cfg.StatusClearDelay,
		OutputSuffix:     cfg.OutputSuffix,
		Logger:           logger,
	})

	server, err := mcp.NewServer(cfg, pdfService, session, logger)
	if err != nil {
		loader.Close()
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}

	a := &app{loader: loader, server: server}
	if cfg.IsServerMode() {
		a.web = httpapi.New(session, cfg.MaxFileSize, logger)
	}
	return a, nil
}

// run serves until the context is cancelled or the transport ends
func (a *app) run(ctx context.Context) error {
	defer a.loader.Close()

	// A nil *httpapi.API must not become a non-nil interface
	var web mcp.WebServer
	if a.web != nil {
		web = a.web
	}
	return a.server.Run(ctx, web)
}

func main() {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion(os.Stdout)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	logger := setupLogging(cfg)
	logger.WithField("config", cfg.String()).Debug("Starting with configuration")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to start")
	}

	if err := a.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("Server error")
		stop()
		os.Exit(1)
	}

	logger.Info("Server stopped successfully")
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP PDF Redactor\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
