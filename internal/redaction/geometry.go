package redaction

import "math"

// NormalizedScale is the upper bound of the detector coordinate space
const NormalizedScale = 1000.0

// OverlayGeometry positions a mark over a responsively sized preview, in percent of the page
type OverlayGeometry struct {
	TopPct    float64 `json:"top_pct"`
	LeftPct   float64 `json:"left_pct"`
	HeightPct float64 `json:"height_pct"`
	WidthPct  float64 `json:"width_pct"`
}

// Rect is an axis-aligned rectangle in output pixel space, origin top-left
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Empty reports whether the rectangle covers no area
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Clamp returns a copy of b with every coordinate forced into [0, 1000].
// NaN values collapse to 0.
func (b NormalizedBox) Clamp() NormalizedBox {
	return NormalizedBox{
		YMin: clampUnit(b.YMin),
		XMin: clampUnit(b.XMin),
		YMax: clampUnit(b.YMax),
		XMax: clampUnit(b.XMax),
	}
}

// spans returns the clamped box and its non-negative height and width.
func (b NormalizedBox) spans() (NormalizedBox, float64, float64) {
	c := b.Clamp()
	return c, math.Max(0, c.YMax-c.YMin), math.Max(0, c.XMax-c.XMin)
}

// ToOverlay converts a box to percentage geometry
func ToOverlay(b NormalizedBox) OverlayGeometry {
	c, h, w := b.spans()
	return OverlayGeometry{
		TopPct:    c.YMin / 10,
		LeftPct:   c.XMin / 10,
		HeightPct: h / 10,
		WidthPct:  w / 10,
	}
}

// ToOutput converts a box to absolute pixel geometry for a page of the given size
func ToOutput(b NormalizedBox, pixelWidth, pixelHeight int) Rect {
	c, h, w := b.spans()
	pw, ph := float64(pixelWidth), float64(pixelHeight)
	return Rect{
		X: c.XMin / NormalizedScale * pw,
		Y: c.YMin / NormalizedScale * ph,
		W: w / NormalizedScale * pw,
		H: h / NormalizedScale * ph,
	}
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > NormalizedScale:
		return NormalizedScale
	default:
		return v
	}
}
