package pdf

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// maxListedDocuments bounds one listing of the working directory
const maxListedDocuments = 200

// ListDocumentsRequest filters the PDFs offered for loading
type ListDocumentsRequest struct {
	Query string `json:"query"`
}

// DocumentFile is one candidate source PDF in the working directory
type DocumentFile struct {
	Path         string `json:"path"` // relative to the configured directory
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// ListDocumentsResult represents the PDFs found in the working directory
type ListDocumentsResult struct {
	Directory string         `json:"directory"`
	Query     string         `json:"query,omitempty"`
	Files     []DocumentFile `json:"files"`
	Truncated bool           `json:"truncated"`
}

// ListDocuments walks the configured directory for loadable PDFs.
// Hidden directories are skipped, and so are files over the size limit.
func (s *Service) ListDocuments(req ListDocumentsRequest) (*ListDocumentsResult, error) {
	root := s.GetConfiguredDirectory()
	query := strings.ToLower(strings.TrimSpace(req.Query))
	result := &ListDocumentsResult{Directory: root, Query: req.Query}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".pdf") {
			return nil
		}
		if query != "" && !matchesQuery(d.Name(), query) {
			return nil
		}
		if !s.pathValidator.IsPathWithinDirectory(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr // vanished between readdir and stat
		}
		if info.Size() == 0 || info.Size() > s.maxFileSize {
			return nil
		}

		if len(result.Files) >= maxListedDocuments {
			result.Truncated = true
			return filepath.SkipAll
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		result.Files = append(result.Files, DocumentFile{
			Path:         rel,
			Name:         d.Name(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory: %w", err)
	}

	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Path < result.Files[j].Path })
	return result, nil
}

// matchesQuery reports whether every word of query appears in some word of the file name
func matchesQuery(filename, query string) bool {
	name := strings.ToLower(filename)
	if strings.Contains(name, query) {
		return true
	}

	words := splitWords(strings.TrimSuffix(name, ".pdf"))
	for _, q := range splitWords(query) {
		found := false
		for _, w := range words {
			if strings.Contains(w, q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// splitWords splits on the separators commonly found in file names
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch r {
		case ' ', '_', '-', '.', '(', ')', '[', ']':
			return true
		}
		return false
	})
}
