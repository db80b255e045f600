// Package highlight maps normalized source-location rectangles onto rendered
// PDF pages and tracks the set of active highlights for a render surface.
package highlight

import "github.com/evidia/srex/internal/model"

// MinHighlightPx is the smallest rendered dimension for a highlight.
// Point citations and zero-area rectangles still need a visible marker;
// the floor applies only to the rendered rect, never to the stored
// normalized coordinates.
const MinHighlightPx = 4.0

// PixelRect is a rectangle in rendered-page pixel coordinates.
type PixelRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Map projects a normalized source location onto a page rendered at the
// given pixel size. Out-of-range or inverted coordinates clamp to a
// degenerate zero-area rectangle rather than producing a negative draw
// region. The result is a pure function of the current render size and must
// be recomputed whenever scale changes; no pixel state survives a zoom.
func Map(loc model.SourceLocation, renderedWidth, renderedHeight float64) PixelRect {
	if !loc.Valid() {
		// Malformed coordinates collapse to a zero-area rect at the
		// clamped origin instead of a negative-size draw region.
		return PixelRect{
			Left: clamp01(loc.X0) * renderedWidth,
			Top:  clamp01(loc.Y0) * renderedHeight,
		}
	}

	r := PixelRect{
		Left:   loc.X0 * renderedWidth,
		Top:    loc.Y0 * renderedHeight,
		Width:  (loc.X1 - loc.X0) * renderedWidth,
		Height: (loc.Y1 - loc.Y0) * renderedHeight,
	}
	// Point citations still get a visible marker.
	if r.Width < MinHighlightPx {
		r.Width = MinHighlightPx
	}
	if r.Height < MinHighlightPx {
		r.Height = MinHighlightPx
	}
	return r
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
