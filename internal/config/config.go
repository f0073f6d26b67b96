package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ModeStdio  = "stdio"
	ModeServer = "server"

	RendererPDFium = "pdfium"
	RendererFitz   = "fitz"

	DefaultPort             = 8080
	DefaultHost             = "127.0.0.1"
	DefaultLogLevel         = "info"
	DefaultMaxFileSize      = 100 * 1024 * 1024 // 100MB
	DefaultRenderer         = RendererPDFium
	DefaultScale            = 1.5
	DefaultJPEGQuality      = 90
	DefaultProvider         = "googleai"
	DefaultConcurrency      = 1
	MaxConcurrency          = 3
	DefaultStatusClearDelay = 3 * time.Second
	DefaultOutputSuffix     = "_anonimizowany"

	DefaultDirPerm = 0o750

	envPrefix = "PDF_REDACT"
)

// providerKeyEnv lists the conventional credential variables per provider,
// consulted when no explicit key is configured
var providerKeyEnv = map[string][]string{
	"googleai":  {"GOOGLE_API_KEY", "GEMINI_API_KEY", "API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"mistral":   {"MISTRAL_API_KEY"},
	"ollama":    {},
}

// Config holds all configuration for the PDF redaction server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Working directory for source and exported documents
	PDFDirectory string

	// Rendering configuration
	Renderer    string
	Scale       float64
	JPEGQuality int

	// Detection configuration
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Concurrency int

	// Session configuration
	StatusClearDelay time.Duration
	OutputSuffix     string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
}

// DefaultConfig returns a stdio configuration rooted at the working directory
func DefaultConfig() *Config {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}

	return &Config{
		Mode:             ModeStdio,
		Host:             DefaultHost,
		Port:             DefaultPort,
		PDFDirectory:     dir,
		Renderer:         DefaultRenderer,
		Scale:            DefaultScale,
		JPEGQuality:      DefaultJPEGQuality,
		Provider:         DefaultProvider,
		Concurrency:      DefaultConcurrency,
		StatusClearDelay: DefaultStatusClearDelay,
		OutputSuffix:     DefaultOutputSuffix,
		Version:          "1.0.0",
		ServerName:       "mcp-pdf-redactor",
		LogLevel:         DefaultLogLevel,
		MaxFileSize:      DefaultMaxFileSize,
	}
}

// LoadFromFlags resolves the configuration from flags, PDF_REDACT_* variables
// and an optional .env file, in that order of precedence
func LoadFromFlags() (*Config, error) {
	// Variables already set in the process win over .env
	_ = godotenv.Load(".env")

	cfg := DefaultConfig()
	registerFlags(pflag.CommandLine, cfg)
	pflag.Usage = printUsage

	if versionRequested(os.Args[1:]) {
		return nil, ErrVersionRequested
	}
	pflag.Parse()

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	cfg.apply(viper.GetViper())

	if abs, err := filepath.Abs(cfg.PDFDirectory); err == nil && cfg.PDFDirectory != "" {
		cfg.PDFDirectory = abs
	}
	if cfg.APIKey == "" {
		cfg.APIKey = lookupProviderKey(cfg.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ErrVersionRequested is returned by LoadFromFlags when --version is on the command line
var ErrVersionRequested = errors.New("version requested")

// registerFlags declares every setting on flags with cfg's values as defaults.
// Flag names double as viper keys and, upper-cased, as environment suffixes.
func registerFlags(flags *pflag.FlagSet, cfg *Config) {
	// Server
	flags.String("mode", cfg.Mode, "Transport: 'stdio' for an MCP client, 'server' for HTTP (REST + MCP at /mcp)")
	flags.String("host", cfg.Host, "Listen address in server mode")
	flags.Int("port", cfg.Port, "Listen port in server mode")
	flags.String("dir", cfg.PDFDirectory, "Working directory for source and redacted PDF files")
	flags.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.Int64("maxfilesize", cfg.MaxFileSize, "Largest accepted PDF in bytes")

	// Rendering
	flags.String("renderer", cfg.Renderer, "Page renderer: 'pdfium' (WebAssembly) or 'fitz' (MuPDF, requires cgo)")
	flags.Float64("scale", cfg.Scale, "Page render scale relative to 72 DPI")
	flags.Int("jpegquality", cfg.JPEGQuality, "JPEG quality for page rasters (1-100)")

	// Detection
	flags.String("provider", cfg.Provider, "Detection provider: googleai, openai, anthropic, ollama, mistral")
	flags.String("model", cfg.Model, "Vision model name (provider default when empty)")
	flags.String("apikey", cfg.APIKey, "API key for the detection provider")
	flags.String("baseurl", cfg.BaseURL, "Custom endpoint for openai-compatible or ollama providers")
	flags.Int("concurrency", cfg.Concurrency, "Parallel detection calls per run (1-3)")

	// Session
	flags.Duration("statusdelay", cfg.StatusClearDelay, "How long completion messages stay in the status")
	flags.String("suffix", cfg.OutputSuffix, "Suffix appended to the source name of exported files")
}

func (c *Config) apply(v *viper.Viper) {
	c.Mode = v.GetString("mode")
	c.Host = v.GetString("host")
	c.Port = v.GetInt("port")
	c.PDFDirectory = v.GetString("dir")
	c.LogLevel = v.GetString("loglevel")
	c.MaxFileSize = v.GetInt64("maxfilesize")
	c.Renderer = v.GetString("renderer")
	c.Scale = v.GetFloat64("scale")
	c.JPEGQuality = v.GetInt("jpegquality")
	c.Provider = v.GetString("provider")
	c.Model = v.GetString("model")
	c.APIKey = v.GetString("apikey")
	c.BaseURL = v.GetString("baseurl")
	c.Concurrency = v.GetInt("concurrency")
	c.StatusClearDelay = v.GetDuration("statusdelay")
	c.OutputSuffix = v.GetString("suffix")
}

func printUsage() {
	w := os.Stderr
	fmt.Fprintf(w, "Usage: %s [options]\n\n", os.Args[0])
	fmt.Fprintln(w, "Finds personal data on PDF pages with a vision model and writes image-only redacted copies.")
	fmt.Fprintln(w)
	pflag.PrintDefaults()
	fmt.Fprintln(w, "\nEvery option can also be set as PDF_REDACT_<OPTION>, in the environment or in .env.")
	fmt.Fprintln(w, "Without --apikey the provider's usual variable is used (GOOGLE_API_KEY, OPENAI_API_KEY, ...).")
	fmt.Fprintln(w, "\nExamples:")
	fmt.Fprintf(w, "  %s --dir=~/scans\n", os.Args[0])
	fmt.Fprintf(w, "  %s --mode=server --provider=openai\n", os.Args[0])
	fmt.Fprintf(w, "  %s --provider=ollama --model=llava\n", os.Args[0])
}

func versionRequested(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-v", "-version", "--version":
			return true
		}
	}
	return false
}

func lookupProviderKey(provider string) string {
	for _, name := range providerKeyEnv[provider] {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate rejects settings the server cannot start with and creates the
// working directory when it is missing
func (c *Config) Validate() error {
	switch {
	case c.Mode != ModeStdio && c.Mode != ModeServer:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeStdio, ModeServer, c.Mode)
	case c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535):
		return fmt.Errorf("port must be in 1-65535, got %d", c.Port)
	case c.PDFDirectory == "":
		return errors.New("working directory cannot be empty")
	case c.MaxFileSize <= 0:
		return errors.New("maximum file size must be positive")
	case !slices.Contains(logLevels, c.LogLevel):
		return fmt.Errorf("invalid log level %q (one of: %s)", c.LogLevel, strings.Join(logLevels, ", "))
	case c.Renderer != RendererPDFium && c.Renderer != RendererFitz:
		return fmt.Errorf("invalid renderer %q (one of: %s, %s)", c.Renderer, RendererPDFium, RendererFitz)
	case c.Scale <= 0 || c.Scale > 4:
		return fmt.Errorf("scale must be in (0, 4], got %g", c.Scale)
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		return fmt.Errorf("jpeg quality must be in 1-100, got %d", c.JPEGQuality)
	case providerKeyEnv[c.Provider] == nil:
		return fmt.Errorf("invalid provider %q (one of: googleai, openai, anthropic, ollama, mistral)", c.Provider)
	case c.Concurrency < 1 || c.Concurrency > MaxConcurrency:
		return fmt.Errorf("concurrency must be in 1-%d, got %d", MaxConcurrency, c.Concurrency)
	case c.StatusClearDelay < 0:
		return errors.New("status delay cannot be negative")
	}

	info, err := os.Stat(c.PDFDirectory)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create working directory %s: %w", c.PDFDirectory, err)
		}
	case err != nil:
		return fmt.Errorf("cannot access working directory %s: %w", c.PDFDirectory, err)
	case !info.IsDir():
		return fmt.Errorf("working directory %s is not a directory", c.PDFDirectory)
	}
	return nil
}

// NewLogger builds the process logger. In stdio mode stdout carries the MCP
// protocol, so logs always go to out (stderr in production).
func (c *Config) NewLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableColors:   c.IsStdioMode(),
	})

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// HasAPIKey reports whether detection can authenticate without further setup
func (c *Config) HasAPIKey() bool {
	return c.APIKey != "" || c.Provider == "ollama"
}

// Address is the host:port listen address for server mode
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug reports whether debug logging is on
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. The API key is never printed.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"Renderer: %s, Scale: %g, Provider: %s, Model: %s, APIKey: %t, Concurrency: %d}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize,
		c.Renderer, c.Scale, c.Provider, c.Model, c.APIKey != "", c.Concurrency)
}

// IsServerMode reports whether REST and MCP are served over HTTP
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode reports whether MCP runs over stdin/stdout
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
