package completeness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidia/srex/internal/model"
)

func field(value any, confidence string) map[string]any {
	f := map[string]any{"value": value}
	if confidence != "" {
		f["confidence"] = confidence
	}
	return f
}

func missingField(reason string) map[string]any {
	return map[string]any{"value": nil, "missing_reason": reason}
}

func TestComputeData_MixedSections(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"study_design": map[string]any{
			"type":     field("RCT", "high"),
			"blinding": field("double-blind", "medium"),
			"quotes":   []any{"ignored"},
		},
		"population": map[string]any{
			"sample_size": field(240.0, "high"),
			"age_range":   missingField("not_reported"),
			"setting":     missingField("unclear"),
		},
		"outcomes": []any{
			map[string]any{
				"name":        field("mortality", "high"),
				"effect_size": field(0.82, "low"),
			},
		},
	}

	s := ComputeData(data)

	assert.Equal(t, 7, s.TotalFields)
	assert.Equal(t, 5, s.Extracted)
	assert.Equal(t, 2, s.Missing)
	assert.Equal(t, 3, s.HighConfidence)
	assert.Equal(t, 1, s.MediumConfidence)
	// One genuinely low-confidence field plus one unclear-missing field.
	assert.Equal(t, 2, s.LowConfidence)
	assert.Equal(t, 1, s.MissingReasons[model.MissingNotReported])
	assert.Equal(t, 1, s.MissingReasons[model.MissingUnclear])

	pop := s.BySection["population"]
	assert.Equal(t, model.SectionStats{Total: 3, Extracted: 1, Missing: 2, LowConfidence: 1}, pop)

	out := s.BySection["outcomes"]
	assert.Equal(t, model.SectionStats{Total: 2, Extracted: 2, LowConfidence: 1}, out)
}

func TestComputeData_TotalEqualsExtractedPlusMissing(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"intervention": map[string]any{
			"drug":     field("aspirin", "high"),
			"dose":     missingField("explicitly_absent"),
			"duration": missingField("unclear"),
			"route":    field("oral", ""),
		},
	}

	s := ComputeData(data)
	assert.Equal(t, s.TotalFields, s.Extracted+s.Missing)
	for name, sec := range s.BySection {
		assert.Equal(t, sec.Total, sec.Extracted+sec.Missing, name)
	}

	// Null confidence counts as extracted but lands in no bucket.
	assert.Equal(t, 2, s.Extracted)
	assert.Equal(t, 1, s.HighConfidence)
	assert.Equal(t, 0, s.MediumConfidence)
	// Only the unclear-missing field: bounded by extracted + unclear count.
	assert.Equal(t, 1, s.LowConfidence)
	unclear := s.MissingReasons[model.MissingUnclear]
	assert.LessOrEqual(t, s.HighConfidence+s.MediumConfidence+s.LowConfidence, s.Extracted+unclear)
}

func TestComputeData_AllMissingScenario(t *testing.T) {
	t.Parallel()

	// Ten sections, each with one not_reported field.
	data := map[string]any{}
	for _, name := range model.SectionNames {
		data[name] = map[string]any{"only": missingField("not_reported")}
	}

	s := ComputeData(data)
	assert.Equal(t, 10, s.TotalFields)
	assert.Equal(t, 0, s.Extracted)
	assert.Equal(t, 10, s.Missing)
	assert.Equal(t, 0, s.HighConfidence)
	assert.Equal(t, 0, s.MediumConfidence)
	assert.Equal(t, 0, s.LowConfidence)
	assert.Equal(t, 10, s.MissingReasons[model.MissingNotReported])
	assert.Len(t, s.BySection, 10)
}

func TestComputeData_MalformedShapesSkipped(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"funding":     "legacy bare string section",
		"limitations": 42.0,
		"conclusions": map[string]any{
			"summary":   field("effective", "medium"),
			"stray_num": 3.14, // legacy scalar entry, not countable
		},
	}

	s := ComputeData(data)
	assert.Equal(t, 1, s.TotalFields)
	assert.Equal(t, 1, s.Extracted)
	_, ok := s.BySection["funding"]
	assert.False(t, ok)
}

func TestCompute_FromRecord(t *testing.T) {
	t.Parallel()

	rec := &model.ExtractionRecord{
		Population: map[string]any{
			"sample_size": field(120.0, "high"),
		},
		Comparator: map[string]any{
			"description": missingField("not_applicable"),
		},
	}

	s := Compute(rec)
	require.NotNil(t, s)
	assert.Equal(t, 2, s.TotalFields)
	assert.Equal(t, 1, s.Extracted)
	assert.Equal(t, 1, s.Missing)
	assert.Equal(t, 1, s.MissingReasons[model.MissingNotApplicable])
}

func TestSectionStats_PercentComplete(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, model.SectionStats{}.PercentComplete())
	assert.InDelta(t, 50.0, model.SectionStats{Total: 4, Extracted: 2}.PercentComplete(), 1e-9)

	full := model.SectionStats{Total: 3, Extracted: 3, LowConfidence: 1}
	assert.InDelta(t, 100.0, full.PercentComplete(), 1e-9)
	assert.True(t, full.CompleteWithCaveats())
	assert.False(t, model.SectionStats{Total: 3, Extracted: 3}.CompleteWithCaveats())
}
