package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_ListDocuments(t *testing.T) {
	dir := t.TempDir()
	service, err := NewService(4096, dir)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "umowy"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".cache"), 0o755))

	files := map[string][]byte{
		"wniosek.pdf":                   make([]byte, 100),
		"umowy/umowa-najmu_2024.PDF":    make([]byte, 200),
		"umowy/umowa_anonimizowany.pdf": make([]byte, 300),
		"notes.txt":                     []byte("not a pdf"),
		"empty.pdf":                     {},
		"huge.pdf":                      make([]byte, 8192),
		".cache/hidden.pdf":             make([]byte, 100),
	}
	for name, content := range files {
		writeTestFile(t, dir, name, content)
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name: "all loadable files",
			want: []string{"umowy/umowa-najmu_2024.PDF", "umowy/umowa_anonimizowany.pdf", "wniosek.pdf"},
		},
		{name: "substring", query: "wniosek", want: []string{"wniosek.pdf"}},
		{name: "words in any order", query: "2024 najmu", want: []string{"umowy/umowa-najmu_2024.PDF"}},
		{name: "case insensitive", query: "ANONIM", want: []string{"umowy/umowa_anonimizowany.pdf"}},
		{name: "no match", query: "faktura", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.ListDocuments(ListDocumentsRequest{Query: tt.query})
			require.NoError(t, err)
			assert.Equal(t, service.GetConfiguredDirectory(), result.Directory)
			assert.False(t, result.Truncated)

			var got []string
			for _, f := range result.Files {
				got = append(got, filepath.ToSlash(f.Path))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_ListDocumentsSkipsEscapingSymlinks(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	writeTestFile(t, outside, "secret.pdf", make([]byte, 100))

	if err := os.Symlink(filepath.Join(outside, "secret.pdf"), filepath.Join(dir, "link.pdf")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	service, err := NewService(4096, dir)
	require.NoError(t, err)

	result, err := service.ListDocuments(ListDocumentsRequest{})
	require.NoError(t, err)
	assert.Empty(t, result.Files)
}

func TestMatchesQuery(t *testing.T) {
	assert.True(t, matchesQuery("Umowa_Najmu.pdf", "umowa"))
	assert.True(t, matchesQuery("umowa-najmu-2024.pdf", "najmu umowa"))
	assert.False(t, matchesQuery("umowa-najmu.pdf", "umowa sprzedazy"))
	assert.Equal(t, []string{"a", "b", "c"}, splitWords("A_b-(c)"))
}
