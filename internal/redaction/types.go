package redaction

import (
	"sort"
	"strings"
)

// Category is a PII classification used both to filter detection requests and to label results
type Category string

const (
	CategoryName       Category = "NAME"
	CategorySurname    Category = "SURNAME"
	CategoryNationalID Category = "NATIONAL_ID"
	CategoryEmail      Category = "EMAIL"
	CategoryPhone      Category = "PHONE"
	CategoryAddress    Category = "ADDRESS"
	CategoryOther      Category = "OTHER"
)

// AllCategories lists every known category in display order
var AllCategories = []Category{
	CategoryName,
	CategorySurname,
	CategoryNationalID,
	CategoryEmail,
	CategoryPhone,
	CategoryAddress,
	CategoryOther,
}

// categoryAliases maps labels detectors commonly return onto the known set.
var categoryAliases = map[string]Category{
	"PESEL":          CategoryNationalID,
	"NATIONALID":     CategoryNationalID,
	"ID":             CategoryNationalID,
	"SSN":            CategoryNationalID,
	"FIRST_NAME":     CategoryName,
	"FIRSTNAME":      CategoryName,
	"PERSON":         CategoryName,
	"LAST_NAME":      CategorySurname,
	"LASTNAME":       CategorySurname,
	"FAMILY_NAME":    CategorySurname,
	"E_MAIL":         CategoryEmail,
	"MAIL":           CategoryEmail,
	"PHONE_NUMBER":   CategoryPhone,
	"TELEPHONE":      CategoryPhone,
	"PHONENUMBER":    CategoryPhone,
	"STREET":         CategoryAddress,
	"LOCATION":       CategoryAddress,
	"POSTAL_ADDRESS": CategoryAddress,
}

// ParseCategory coerces a free-text label into a known category.
// The second return value is false when the label was not recognized and
// the result fell back to CategoryOther.
func ParseCategory(label string) (Category, bool) {
	key := strings.ToUpper(strings.TrimSpace(label))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	for _, c := range AllCategories {
		if string(c) == key {
			return c, true
		}
	}
	if c, ok := categoryAliases[key]; ok {
		return c, true
	}
	return CategoryOther, false
}

// IsValid reports whether c is one of the known categories
func (c Category) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// NormalizedBox is a detection location in the detector's 0-1000 coordinate space
type NormalizedBox struct {
	YMin float64 `json:"ymin"`
	XMin float64 `json:"xmin"`
	YMax float64 `json:"ymax"`
	XMax float64 `json:"xmax"`
}

// BoxFromSlice builds a box from the detector's [ymin, xmin, ymax, xmax] order.
// Anything other than four values yields a zero-area box.
func BoxFromSlice(v []float64) NormalizedBox {
	if len(v) != 4 {
		return NormalizedBox{}
	}
	return NormalizedBox{YMin: v[0], XMin: v[1], YMax: v[2], XMax: v[3]}
}

// PageRaster is one rendered page of the loaded document
type PageRaster struct {
	PageNumber  int    `json:"page_number"`
	ImageData   []byte `json:"-"`
	PixelWidth  int    `json:"pixel_width"`
	PixelHeight int    `json:"pixel_height"`
}

// IsLandscape reports whether the page is wider than it is tall
func (p PageRaster) IsLandscape() bool {
	return p.PixelWidth > p.PixelHeight
}

// Detection is one raw finding returned by a detector, already decoded at the boundary
type Detection struct {
	Text     string        `json:"text"`
	Category Category      `json:"category"`
	Box      NormalizedBox `json:"box"`
}

// Mark is an addressable redaction region on one page
type Mark struct {
	ID         string        `json:"id"`
	Category   Category      `json:"category"`
	SourceText string        `json:"source_text"`
	PageNumber int           `json:"page_number"`
	Box        NormalizedBox `json:"box"`
}

// Overlay returns the mark's percentage geometry for preview rendering
func (m Mark) Overlay() OverlayGeometry {
	return ToOverlay(m.Box)
}

// HiddenText replaces detected text in listings unless it is explicitly revealed
const HiddenText = "•••"

// MarkView is a mark with its geometry resolved against its page
type MarkView struct {
	Mark
	Overlay OverlayGeometry `json:"overlay"`
	Rect    Rect            `json:"rect"`
}

// View resolves the mark against its page raster. Detected text is masked
// unless reveal is set; empty text stays empty.
func (m Mark) View(page PageRaster, reveal bool) MarkView {
	v := MarkView{
		Mark:    m,
		Overlay: ToOverlay(m.Box),
		Rect:    ToOutput(m.Box, page.PixelWidth, page.PixelHeight),
	}
	if !reveal && v.SourceText != "" {
		v.SourceText = HiddenText
	}
	return v
}

// CategoryCounts tallies marks per category
func CategoryCounts(marks []Mark) map[Category]int {
	counts := make(map[Category]int)
	for _, m := range marks {
		counts[m.Category]++
	}
	return counts
}

// SortedCategories returns the set members in AllCategories order
func SortedCategories(set map[Category]bool) []Category {
	out := make([]Category, 0, len(set))
	for c, on := range set {
		if on {
			out = append(out, c)
		}
	}
	order := make(map[Category]int, len(AllCategories))
	for i, c := range AllCategories {
		order[c] = i
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}
