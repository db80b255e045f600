// Package completeness computes the derived field-count summary for an
// extraction record. The computation is a pure function of the record and is
// re-run in full on every mutation; nothing is patched incrementally.
package completeness

import (
	"go.uber.org/zap"

	"github.com/evidia/srex/internal/model"
)

// skippedKeys are field-internal keys that are never countable entries.
var skippedKeys = map[string]bool{
	"source_locations": true,
	"quotes":           true,
}

// skippedSections are payload keys excluded from section tallies.
var skippedSections = map[string]bool{
	"error":         true,
	"raw_text":      true,
	"custom_fields": true,
}

// Compute produces the completeness summary for a record's ten fixed
// sections.
func Compute(rec *model.ExtractionRecord) *model.CompletenessSummary {
	data := make(map[string]any, len(model.SectionNames))
	sections := rec.Sections()
	for _, name := range model.SectionNames {
		data[name] = sections[name]
	}
	return ComputeData(data)
}

// ComputeData produces the completeness summary for a raw section map, as
// used at ingestion before the record is assembled.
func ComputeData(data map[string]any) *model.CompletenessSummary {
	summary := &model.CompletenessSummary{
		BySection: map[string]model.SectionStats{},
		MissingReasons: map[model.MissingReason]int{
			model.MissingNotReported:      0,
			model.MissingExplicitlyAbsent: 0,
			model.MissingNotApplicable:    0,
			model.MissingUnclear:          0,
		},
	}

	for _, name := range model.SectionNames {
		sectionVal, ok := data[name]
		if !ok {
			continue
		}
		tallySection(summary, name, sectionVal)
	}
	// Template-defined sections outside the fixed ten still count.
	for name, sectionVal := range data {
		if skippedSections[name] || isFixedSection(name) {
			continue
		}
		tallySection(summary, name, sectionVal)
	}

	return summary
}

func isFixedSection(name string) bool {
	for _, s := range model.SectionNames {
		if s == name {
			return true
		}
	}
	return false
}

func tallySection(summary *model.CompletenessSummary, name string, sectionVal any) {
	stats := model.SectionStats{}

	switch v := sectionVal.(type) {
	case nil:
		return
	case map[string]any:
		countFields(v, summary, &stats)
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				countFields(m, summary, &stats)
			}
		}
	default:
		// Malformed section shape: not countable, never fatal.
		zap.L().Debug("skipping malformed section", zap.String("section", name))
		return
	}

	if stats.Total > 0 {
		summary.BySection[name] = stats
	}
}

// countFields walks a section dict, tallying every field-shaped entry. An
// entry counts as extracted when its value is non-null; a null confidence is
// not tallied into any confidence bucket. A field missing with reason
// "unclear" also lands in the low-confidence bucket: that bucket carries
// needs-review semantics, not statistical confidence.
func countFields(d map[string]any, summary *model.CompletenessSummary, stats *model.SectionStats) {
	for key, val := range d {
		if skippedKeys[key] {
			continue
		}
		if !model.IsFieldShaped(val) {
			// Recurse into nested section dicts and outcome lists.
			switch nested := val.(type) {
			case map[string]any:
				countFields(nested, summary, stats)
			case []any:
				for _, item := range nested {
					if m, ok := item.(map[string]any); ok {
						countFields(m, summary, stats)
					}
				}
			}
			continue
		}

		field := model.AsField(val)
		summary.TotalFields++
		stats.Total++

		if !field.Missing() {
			summary.Extracted++
			stats.Extracted++
			if field.Confidence != nil {
				switch *field.Confidence {
				case model.ConfidenceHigh:
					summary.HighConfidence++
				case model.ConfidenceMedium:
					summary.MediumConfidence++
				case model.ConfidenceLow:
					summary.LowConfidence++
					stats.LowConfidence++
				}
			}
			continue
		}

		summary.Missing++
		stats.Missing++
		reason := model.MissingNotReported
		if field.MissingReason != nil {
			reason = *field.MissingReason
		}
		summary.MissingReasons[reason]++
		if reason == model.MissingUnclear {
			summary.LowConfidence++
			stats.LowConfidence++
		}
	}
}
