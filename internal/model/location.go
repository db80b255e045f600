package model

// SourceLocation anchors a quote to a rectangle on a PDF page. Coordinates
// are normalized to page width/height in [0,1], origin top-left, so the same
// location renders correctly at any zoom level. Locations are created by the
// extraction producer and never edited afterwards.
type SourceLocation struct {
	Page int     `json:"page"`
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	Text string  `json:"text"`
}

// Valid reports whether the location is a well-formed normalized rectangle.
func (l SourceLocation) Valid() bool {
	if l.Page < 1 {
		return false
	}
	inRange := func(v float64) bool { return v >= 0 && v <= 1 }
	if !inRange(l.X0) || !inRange(l.Y0) || !inRange(l.X1) || !inRange(l.Y1) {
		return false
	}
	return l.X0 <= l.X1 && l.Y0 <= l.Y1
}

// decodeLocations converts a raw JSON array into SourceLocations, skipping
// entries that do not decode.
func decodeLocations(raw []any) []SourceLocation {
	var locs []SourceLocation
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		loc := SourceLocation{}
		if p, ok := toFloat(m["page"]); ok {
			loc.Page = int(p)
		}
		if v, ok := toFloat(m["x0"]); ok {
			loc.X0 = v
		}
		if v, ok := toFloat(m["y0"]); ok {
			loc.Y0 = v
		}
		if v, ok := toFloat(m["x1"]); ok {
			loc.X1 = v
		}
		if v, ok := toFloat(m["y1"]); ok {
			loc.Y1 = v
		}
		if s, ok := m["text"].(string); ok {
			loc.Text = s
		}
		locs = append(locs, loc)
	}
	return locs
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
