package pdf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/a3tai/mcp-pdf-redactor/internal/pdf/security"
)

// outputFilePerm is applied to exported documents
const outputFilePerm = 0o644

// Service handles file access for the redaction surfaces, confined to one directory
type Service struct {
	maxFileSize   int64
	validator     *Validator
	pathValidator *security.PathValidator
}

// NewService creates a new PDF file service
func NewService(maxFileSize int64, configuredDirectory string) (*Service, error) {
	pathValidator, err := security.NewPathValidator(configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	return &Service{
		maxFileSize:   maxFileSize,
		validator:     NewValidator(maxFileSize),
		pathValidator: pathValidator,
	}, nil
}

// ReadDocument validates the request path and returns the resolved path and file bytes
func (s *Service) ReadDocument(req LoadDocumentRequest) (string, []byte, error) {
	path, err := s.pathValidator.Resolve(req.Path)
	if err != nil {
		return "", nil, fmt.Errorf("security validation failed: %w", err)
	}
	if err := s.validator.ValidatePath(path); err != nil {
		return "", nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("cannot read file: %w", err)
	}
	return path, data, nil
}

// WriteOutput stores data under name inside the configured directory.
// The file appears under its final name only once fully written.
func (s *Service) WriteOutput(name string, data []byte) (string, error) {
	path, err := s.pathValidator.Resolve(name)
	if err != nil {
		return "", fmt.Errorf("security validation failed: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".redact-*.pdf")
	if err != nil {
		return "", fmt.Errorf("cannot create output file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("cannot write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("cannot write output file: %w", err)
	}
	if err := os.Chmod(tmpName, outputFilePerm); err != nil {
		return "", fmt.Errorf("cannot set output permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("cannot move output file into place: %w", err)
	}
	return path, nil
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}

// GetConfiguredDirectory returns the directory all paths are confined to
func (s *Service) GetConfiguredDirectory() string {
	return s.pathValidator.GetConfiguredDirectory()
}

// Validator returns the shared PDF validator
func (s *Service) Validator() *Validator {
	return s.validator
}
