package redaction

import (
	"strings"
	"sync"
)

// DefaultCategories are enabled when a session starts
var DefaultCategories = []Category{CategoryName, CategorySurname, CategoryNationalID, CategoryEmail}

// Settings is a point-in-time copy of what a run should look for
type Settings struct {
	Categories     []Category `json:"categories"`
	CustomKeywords []string   `json:"custom_keywords"`
}

// SettingsStore holds the mutable detection settings of a session.
// Keywords keep insertion order and duplicates are allowed.
type SettingsStore struct {
	mu         sync.RWMutex
	categories map[Category]bool
	keywords   []string
}

// NewSettingsStore creates settings with the default categories enabled
func NewSettingsStore() *SettingsStore {
	s := &SettingsStore{categories: make(map[Category]bool)}
	for _, c := range DefaultCategories {
		s.categories[c] = true
	}
	return s
}

// Toggle flips membership of a category and returns whether it is now enabled
func (s *SettingsStore) Toggle(c Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.categories[c] {
		delete(s.categories, c)
		return false
	}
	s.categories[c] = true
	return true
}

// SetCategories replaces the enabled set
func (s *SettingsStore) SetCategories(cats []Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories = make(map[Category]bool, len(cats))
	for _, c := range cats {
		s.categories[c] = true
	}
}

// AddKeyword appends a trimmed keyword. Blank input is ignored.
func (s *SettingsStore) AddKeyword(keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return false
	}

	s.mu.Lock()
	s.keywords = append(s.keywords, keyword)
	s.mu.Unlock()
	return true
}

// RemoveKeyword drops every occurrence of keyword and returns how many were removed
func (s *SettingsStore) RemoveKeyword(keyword string) int {
	keyword = strings.TrimSpace(keyword)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.keywords[:0:0]
	for _, k := range s.keywords {
		if k != keyword {
			kept = append(kept, k)
		}
	}
	removed := len(s.keywords) - len(kept)
	s.keywords = kept
	return removed
}

// SetKeywords replaces the keyword list
func (s *SettingsStore) SetKeywords(keywords []string) {
	next := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			next = append(next, k)
		}
	}

	s.mu.Lock()
	s.keywords = next
	s.mu.Unlock()
}

// Snapshot returns a copy that a run can read without holding the lock
func (s *SettingsStore) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keywords := make([]string, len(s.keywords))
	copy(keywords, s.keywords)
	return Settings{
		Categories:     SortedCategories(s.categories),
		CustomKeywords: keywords,
	}
}
