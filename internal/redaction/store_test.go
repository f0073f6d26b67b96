package redaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detectionsFor(cats ...Category) []Detection {
	out := make([]Detection, 0, len(cats))
	for i, c := range cats {
		off := float64(i * 100)
		out = append(out, Detection{
			Text:     string(c),
			Category: c,
			Box:      NormalizedBox{YMin: off, XMin: off, YMax: off + 50, XMax: off + 50},
		})
	}
	return out
}

func TestStore_AddBatchPreservesOrder(t *testing.T) {
	s := NewStore()
	first := s.AddBatch(1, detectionsFor(CategoryName, CategoryEmail))
	second := s.AddBatch(2, detectionsFor(CategoryPhone))

	require.Len(t, first, 2)
	require.Len(t, second, 1)

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, []int{1, 1, 2}, []int{all[0].PageNumber, all[1].PageNumber, all[2].PageNumber})
	assert.Equal(t, CategoryName, all[0].Category)
	assert.Equal(t, CategoryEmail, all[1].Category)
	assert.Equal(t, CategoryPhone, all[2].Category)
	assert.Equal(t, "NAME", all[0].SourceText)
}

func TestStore_IDsUniqueAcrossBatches(t *testing.T) {
	s := NewStore()
	seen := make(map[string]bool)
	for round := 0; round < 20; round++ {
		for _, m := range s.AddBatch(1, detectionsFor(CategoryName, CategoryName, CategoryName)) {
			assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
			seen[m.ID] = true
		}
	}
	// uncommitted marks draw from the same sequence
	for _, m := range s.NewMarks(1, detectionsFor(CategoryName)) {
		assert.False(t, seen[m.ID])
	}
}

func TestStore_RemoveEveryMarkEmptiesPage(t *testing.T) {
	s := NewStore()
	batch := s.AddBatch(3, detectionsFor(CategoryName, CategorySurname, CategoryAddress))
	s.AddBatch(4, detectionsFor(CategoryEmail))

	for _, m := range batch {
		assert.True(t, s.Remove(m.ID))
	}
	assert.Empty(t, s.FilterByPage(3))
	assert.Len(t, s.FilterByPage(4), 1)
}

func TestStore_RemoveMissingIsNoop(t *testing.T) {
	s := NewStore()
	batch := s.AddBatch(1, detectionsFor(CategoryName))

	assert.True(t, s.Remove(batch[0].ID))
	assert.False(t, s.Remove(batch[0].ID))
	assert.False(t, s.Remove("does-not-exist"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_RemoveDoesNotAliasSnapshots(t *testing.T) {
	s := NewStore()
	s.AddBatch(1, detectionsFor(CategoryName, CategoryEmail, CategoryPhone))
	before := s.All()

	s.Remove(before[0].ID)

	assert.Equal(t, CategoryName, before[0].Category)
	assert.Equal(t, CategoryEmail, before[1].Category)
	assert.Len(t, s.All(), 2)
}

func TestStore_RemoveAll(t *testing.T) {
	s := NewStore()
	s.AddBatch(1, detectionsFor(CategoryName, CategoryEmail))
	s.AddBatch(2, detectionsFor(CategoryPhone))

	assert.Equal(t, 3, s.RemoveAll())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.RemoveAll())
}

func TestStore_FilterByPageKeepsInsertionOrder(t *testing.T) {
	s := NewStore()
	s.AddBatch(1, detectionsFor(CategoryName))
	s.AddBatch(2, detectionsFor(CategoryEmail))
	s.AddBatch(1, detectionsFor(CategoryPhone, CategoryAddress))

	got := s.FilterByPage(1)
	require.Len(t, got, 3)
	assert.Equal(t, []Category{CategoryName, CategoryPhone, CategoryAddress},
		[]Category{got[0].Category, got[1].Category, got[2].Category})
}

func TestStore_Visible(t *testing.T) {
	s := NewStore()
	s.AddBatch(1, detectionsFor(CategoryName, CategoryEmail, CategoryName, CategoryOther))

	assert.Len(t, s.Visible(nil), 4)

	names := s.Visible(map[Category]bool{CategoryName: true})
	require.Len(t, names, 2)
	for _, m := range names {
		assert.Equal(t, CategoryName, m.Category)
	}

	assert.Len(t, s.Visible(map[Category]bool{CategoryEmail: true, CategoryOther: true}), 2)
}

func TestStore_Replace(t *testing.T) {
	s := NewStore()
	s.AddBatch(1, detectionsFor(CategoryName))
	next := s.NewMarks(2, detectionsFor(CategoryEmail, CategoryPhone))

	s.Replace(next)
	next[0].Category = CategoryOther

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, 2, all[0].PageNumber)
	assert.Equal(t, CategoryEmail, all[0].Category)
}
