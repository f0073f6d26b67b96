package redaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstruct_StampsOnlyOwnPage(t *testing.T) {
	pages := []PageRaster{
		{PageNumber: 1, PixelWidth: 800, PixelHeight: 600},
		{PageNumber: 2, PixelWidth: 600, PixelHeight: 800},
	}
	marks := []Mark{{ID: "a", PageNumber: 1, Box: NormalizedBox{YMin: 100, XMin: 200, YMax: 300, XMax: 400}}}

	layouts, err := Reconstruct(pages, marks)
	require.NoError(t, err)
	require.Len(t, layouts, 2)

	require.Len(t, layouts[0].Stamps, 1)
	assert.Equal(t, Stamp{MarkID: "a", Rect: Rect{X: 160, Y: 60, W: 160, H: 120}}, layouts[0].Stamps[0])
	assert.True(t, layouts[0].Landscape)

	assert.Empty(t, layouts[1].Stamps)
	assert.False(t, layouts[1].Landscape)
	assert.Equal(t, 600, layouts[1].Width)
	assert.Equal(t, 800, layouts[1].Height)
}

func TestReconstruct_OrdersPagesAndKeepsPaintOrder(t *testing.T) {
	pages := []PageRaster{
		{PageNumber: 2, PixelWidth: 100, PixelHeight: 100},
		{PageNumber: 1, PixelWidth: 100, PixelHeight: 100},
	}
	marks := []Mark{
		{ID: "under", PageNumber: 1, Box: NormalizedBox{YMin: 0, XMin: 0, YMax: 500, XMax: 500}},
		{ID: "over", PageNumber: 1, Box: NormalizedBox{YMin: 250, XMin: 250, YMax: 750, XMax: 750}},
	}

	layouts, err := Reconstruct(pages, marks)
	require.NoError(t, err)
	assert.Equal(t, 1, layouts[0].PageNumber)
	assert.Equal(t, 2, layouts[1].PageNumber)
	require.Len(t, layouts[0].Stamps, 2)
	assert.Equal(t, "under", layouts[0].Stamps[0].MarkID)
	assert.Equal(t, "over", layouts[0].Stamps[1].MarkID)
}

func TestReconstruct_SkipsZeroAreaMarks(t *testing.T) {
	pages := []PageRaster{{PageNumber: 1, PixelWidth: 100, PixelHeight: 100}}
	marks := []Mark{
		{ID: "inverted", PageNumber: 1, Box: NormalizedBox{YMin: 500, XMin: 0, YMax: 100, XMax: 100}},
		{ID: "degenerate", PageNumber: 1},
	}

	layouts, err := Reconstruct(pages, marks)
	require.NoError(t, err)
	assert.Empty(t, layouts[0].Stamps)
}

func TestReconstruct_Errors(t *testing.T) {
	_, err := Reconstruct(nil, nil)
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = Reconstruct([]PageRaster{{PageNumber: 1, PixelWidth: 0, PixelHeight: 10}}, nil)
	assert.ErrorContains(t, err, "unsupported page size")

	_, err = Reconstruct([]PageRaster{
		{PageNumber: 1, PixelWidth: 10, PixelHeight: 10},
		{PageNumber: 3, PixelWidth: 10, PixelHeight: 10},
	}, nil)
	assert.ErrorContains(t, err, "page sequence broken")
}
