package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Confidence is the extraction producer's self-reported certainty for a field.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether c is one of the three defined confidence levels.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// MissingReason explains why a field has no extracted value.
type MissingReason string

const (
	MissingNotReported      MissingReason = "not_reported"
	MissingExplicitlyAbsent MissingReason = "explicitly_absent"
	MissingNotApplicable    MissingReason = "not_applicable"
	MissingUnclear          MissingReason = "unclear"
)

// Valid reports whether r is one of the four defined missing reasons.
func (r MissingReason) Valid() bool {
	switch r {
	case MissingNotReported, MissingExplicitlyAbsent, MissingNotApplicable, MissingUnclear:
		return true
	}
	return false
}

// ExtractedField is the atomic unit of an extraction: a value plus the
// producer's confidence, a reason when the value is absent, and the verbatim
// quotes and PDF locations supporting it. Exactly one of Value and
// MissingReason is set on a normalized field.
type ExtractedField struct {
	Value           any              `json:"value"`
	Confidence      *Confidence      `json:"confidence"`
	MissingReason   *MissingReason   `json:"missing_reason"`
	Quotes          []string         `json:"quotes"`
	SourceLocations []SourceLocation `json:"source_locations,omitempty"`
}

// metadataKeys are the field-internal keys stripped when formatting a nested
// object value for display.
var metadataKeys = map[string]bool{
	"confidence":       true,
	"missing_reason":   true,
	"quotes":           true,
	"source_locations": true,
}

// IsFieldShaped reports whether raw looks like a new-format field object:
// a JSON object carrying a "value" key. This is the single probe point for
// the legacy-vs-new duck check; everything else goes through AsField.
func IsFieldShaped(raw any) bool {
	m, ok := raw.(map[string]any)
	if !ok {
		return false
	}
	_, ok = m["value"]
	return ok
}

// AsField converts a raw stored entry into a normalized ExtractedField.
// New-format objects keep their metadata; legacy bare scalars become a field
// with the scalar as value and no confidence annotation. The returned field
// always satisfies the value/missing_reason exclusivity invariant.
func AsField(raw any) ExtractedField {
	f := ExtractedField{Quotes: []string{}}

	m, ok := raw.(map[string]any)
	if !ok || !IsFieldShaped(raw) {
		// Legacy format: the entry is the value itself.
		f.Value = raw
		return f
	}

	f.Value = m["value"]
	if c, ok := m["confidence"].(string); ok && Confidence(c).Valid() {
		conf := Confidence(c)
		f.Confidence = &conf
	}
	if q, ok := m["quotes"].([]any); ok {
		for _, item := range q {
			if s, ok := item.(string); ok {
				f.Quotes = append(f.Quotes, s)
			}
		}
	}
	if locs, ok := m["source_locations"].([]any); ok {
		f.SourceLocations = decodeLocations(locs)
	}

	if f.Value == nil {
		reason := MissingNotReported
		if r, ok := m["missing_reason"].(string); ok && MissingReason(r).Valid() {
			reason = MissingReason(r)
		}
		f.MissingReason = &reason
	}
	return f
}

// Missing reports whether the field has no extracted value.
func (f ExtractedField) Missing() bool {
	return f.Value == nil
}

// NeedsReview reports whether the field falls in the needs-review bucket:
// low confidence, or missing with an unclear reason.
func (f ExtractedField) NeedsReview() bool {
	if f.MissingReason != nil && *f.MissingReason == MissingUnclear {
		return true
	}
	return f.Confidence != nil && *f.Confidence == ConfidenceLow
}

// DisplayValue renders the field's value for human display.
func (f ExtractedField) DisplayValue() string {
	return FormatValue(f.Value)
}

// notReported is the display form of an absent value.
const notReported = "Not reported"

// FormatValue renders an extracted value as a display string. Strings pass
// through unchanged, so formatting an already-formatted value is idempotent.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return notReported
	case string:
		return val
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, FormatValue(item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(val, ", ")
	case map[string]any:
		return formatObject(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return notReported
		}
		return string(b)
	}
}

// formatObject strips internal metadata keys and serializes whatever remains.
// An object that is all metadata formats the same as an absent value.
func formatObject(m map[string]any) string {
	rest := make(map[string]any, len(m))
	for k, v := range m {
		if !metadataKeys[k] {
			rest[k] = v
		}
	}
	if len(rest) == 0 {
		return notReported
	}
	// Single remaining "value" key collapses to its formatted value.
	if len(rest) == 1 {
		if inner, ok := rest["value"]; ok {
			return FormatValue(inner)
		}
	}
	// json.Marshal emits map keys in sorted order, keeping output stable.
	b, err := json.Marshal(rest)
	if err != nil {
		return notReported
	}
	return string(b)
}
