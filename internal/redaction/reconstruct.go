package redaction

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// Stamp is one opaque rectangle to burn into a page
type Stamp struct {
	MarkID string `json:"mark_id"`
	Rect   Rect   `json:"rect"`
}

// PageLayout describes one output page: the source raster at full size plus its stamps in paint order
type PageLayout struct {
	PageNumber int     `json:"page_number"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Landscape  bool    `json:"landscape"`
	Image      []byte  `json:"-"`
	Stamps     []Stamp `json:"stamps"`
}

// DocumentWriter serializes laid out pages into an output document
type DocumentWriter interface {
	Write(ctx context.Context, w io.Writer, pages []PageLayout) error
}

// Reconstruct builds the output layout for every page in ascending page order.
// Marks are stamped in the order given, so later marks paint over earlier ones.
// Marks whose geometry collapses to zero area are skipped.
func Reconstruct(pages []PageRaster, marks []Mark) ([]PageLayout, error) {
	if len(pages) == 0 {
		return nil, ErrNoDocument
	}

	ordered := make([]PageRaster, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].PageNumber < ordered[j].PageNumber })

	byPage := make(map[int][]Mark, len(ordered))
	for _, m := range marks {
		byPage[m.PageNumber] = append(byPage[m.PageNumber], m)
	}

	layouts := make([]PageLayout, 0, len(ordered))
	for i, p := range ordered {
		if p.PageNumber != i+1 {
			return nil, fmt.Errorf("page sequence broken: expected page %d, found %d", i+1, p.PageNumber)
		}
		if p.PixelWidth <= 0 || p.PixelHeight <= 0 {
			return nil, fmt.Errorf("unsupported page size %dx%d on page %d", p.PixelWidth, p.PixelHeight, p.PageNumber)
		}

		layout := PageLayout{
			PageNumber: p.PageNumber,
			Width:      p.PixelWidth,
			Height:     p.PixelHeight,
			Landscape:  p.IsLandscape(),
			Image:      p.ImageData,
		}
		for _, m := range byPage[p.PageNumber] {
			r := ToOutput(m.Box, p.PixelWidth, p.PixelHeight)
			if r.Empty() {
				continue
			}
			layout.Stamps = append(layout.Stamps, Stamp{MarkID: m.ID, Rect: r})
		}
		layouts = append(layouts, layout)
	}
	return layouts, nil
}
