package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidia/srex/internal/model"
)

func field(v any) map[string]any {
	return map[string]any{"value": v, "confidence": "high"}
}

func findCheck(ws []model.ValidationWarning, name string) []model.ValidationWarning {
	var out []model.ValidationWarning
	for _, w := range ws {
		if w.CheckName == name {
			out = append(out, w)
		}
	}
	return out
}

func TestSampleSizeConsistency(t *testing.T) {
	data := map[string]any{
		"population": map[string]any{"sample_size": field(float64(200))},
		"outcomes": []any{
			map[string]any{
				"sample_size_intervention": field(float64(100)),
				"sample_size_control":      field(float64(98)),
			},
			map[string]any{
				"sample_size_intervention": field(float64(60)),
				"sample_size_control":      field(float64(60)),
			},
		},
	}

	ws := findCheck(Data(data), "sample_size_consistency")
	require.Len(t, ws, 1)
	assert.Equal(t, "outcomes.1.sample_size", ws[0].FieldPath)
	assert.Equal(t, "warning", ws[0].Severity)
	assert.Contains(t, ws[0].Message, "Intervention (60) + Control (60) = 120")
	assert.Contains(t, ws[0].Message, "total sample size is 200")
}

func TestSampleSizeConsistency_WithinTolerance(t *testing.T) {
	data := map[string]any{
		"population": map[string]any{"sample_size": field(float64(100))},
		"outcomes": []any{
			map[string]any{
				"sample_size_intervention": field(float64(51)),
				"sample_size_control":      field(float64(52)),
			},
		},
	}
	assert.Empty(t, findCheck(Data(data), "sample_size_consistency"))
}

func TestEventsVsSampleSize(t *testing.T) {
	data := map[string]any{
		"outcomes": []any{
			map[string]any{
				"events_intervention":      field(float64(55)),
				"sample_size_intervention": field(float64(50)),
				"events_control":           field(float64(-3)),
				"sample_size_control":      field(float64(50)),
			},
		},
	}

	ws := Data(data)
	exceed := findCheck(ws, "events_exceed_sample_size")
	require.Len(t, exceed, 1)
	assert.Equal(t, "outcomes.0.events_intervention", exceed[0].FieldPath)
	assert.Equal(t, "error", exceed[0].Severity)
	assert.Contains(t, exceed[0].Message, "Events in intervention (55) exceed sample size (50)")

	negative := findCheck(ws, "negative_events")
	require.Len(t, negative, 1)
	assert.Equal(t, "outcomes.0.events_control", negative[0].FieldPath)
}

func TestCIBoundsInverted(t *testing.T) {
	data := map[string]any{
		"outcomes": []any{
			map[string]any{
				"ci_lower": field(float64(1.8)),
				"ci_upper": field(float64(0.9)),
			},
		},
	}

	ws := findCheck(Data(data), "ci_bounds_inverted")
	require.Len(t, ws, 1)
	assert.Equal(t, "outcomes.0.ci_lower", ws[0].FieldPath)
	assert.Equal(t, "error", ws[0].Severity)
}

func TestCIPValueDisagreement_RatioMeasure(t *testing.T) {
	// CI crosses 1.0 for an OR but p claims significance.
	data := map[string]any{
		"outcomes": []any{
			map[string]any{
				"effect_measure": field("OR"),
				"ci_lower":       field(float64(0.8)),
				"ci_upper":       field(float64(1.4)),
				"p_value":        field("p<0.01"),
			},
		},
	}

	ws := findCheck(Data(data), "ci_pvalue_disagreement")
	require.Len(t, ws, 1)
	assert.Contains(t, ws[0].Message, "crosses null (1)")
	assert.Contains(t, ws[0].Message, "suggests significance")
}

func TestCIPValueDisagreement_DifferenceMeasure(t *testing.T) {
	// CI excludes 0 for a mean difference but p is non-significant.
	data := map[string]any{
		"outcomes": []any{
			map[string]any{
				"effect_measure": field("MD"),
				"ci_lower":       field(float64(0.5)),
				"ci_upper":       field(float64(2.1)),
				"p_value":        field(float64(0.2)),
			},
		},
	}

	ws := findCheck(Data(data), "ci_pvalue_disagreement")
	require.Len(t, ws, 1)
	assert.Contains(t, ws[0].Message, "does not cross null (0)")
	assert.Contains(t, ws[0].Message, "suggests non-significance")
}

func TestCIPValueAgreement_NoWarning(t *testing.T) {
	data := map[string]any{
		"outcomes": []any{
			map[string]any{
				"effect_measure": field("RR"),
				"ci_lower":       field(float64(1.2)),
				"ci_upper":       field(float64(2.4)),
				"p_value":        field(float64(0.01)),
			},
		},
	}
	assert.Empty(t, findCheck(Data(data), "ci_pvalue_disagreement"))
}

func TestEffectSizePlausibility(t *testing.T) {
	data := map[string]any{
		"outcomes": []any{
			map[string]any{
				"effect_measure": field("HR"),
				"effect_size":    field(float64(-0.4)),
			},
			map[string]any{
				"effect_measure": field("OR"),
				"effect_size":    field(float64(250)),
			},
			map[string]any{
				"effect_measure":      field("MD"),
				"effect_size":         field(float64(-3.2)), // fine for a difference
				"sample_size_control": field(float64(-10)),
			},
		},
	}

	ws := Data(data)

	invalid := findCheck(ws, "negative_ratio_measure")
	require.Len(t, invalid, 1)
	assert.Equal(t, "outcomes.0.effect_size", invalid[0].FieldPath)

	extreme := findCheck(ws, "extreme_effect_size")
	require.Len(t, extreme, 1)
	assert.Equal(t, "outcomes.1.effect_size", extreme[0].FieldPath)

	negN := findCheck(ws, "negative_sample_size")
	require.Len(t, negN, 1)
	assert.Equal(t, "outcomes.2.sample_size_control", negN[0].FieldPath)
}

func TestSingleOutcomeObjectWrapped(t *testing.T) {
	data := map[string]any{
		"outcomes": map[string]any{
			"ci_lower": field(float64(2.0)),
			"ci_upper": field(float64(1.0)),
		},
	}
	assert.Len(t, findCheck(Data(data), "ci_bounds_inverted"), 1)
}

func TestNonNumericValuesSkipped(t *testing.T) {
	data := map[string]any{
		"population": map[string]any{"sample_size": field("about two hundred")},
		"outcomes": []any{
			map[string]any{
				"sample_size_intervention": field(float64(50)),
				"sample_size_control":      field(nil),
				"p_value":                  field("unreported"),
			},
		},
	}
	assert.Empty(t, Data(data))
}

func TestLegacyScalarFields(t *testing.T) {
	data := map[string]any{
		"population": map[string]any{"sample_size": float64(100)},
		"outcomes": []any{
			map[string]any{
				"sample_size_intervention": float64(80),
				"sample_size_control":      float64(80),
			},
		},
	}

	ws := findCheck(Data(data), "sample_size_consistency")
	require.Len(t, ws, 1)
	assert.Contains(t, ws[0].Message, "discrepancy: 60%")
}

func TestRecord(t *testing.T) {
	rec := &model.ExtractionRecord{
		Population: map[string]any{"sample_size": field(float64(100))},
		Outcomes: []any{
			map[string]any{
				"sample_size_intervention": field(float64(80)),
				"sample_size_control":      field(float64(80)),
			},
		},
	}
	ws := Record(rec)
	require.Len(t, ws, 1)
	assert.Equal(t, "sample_size_consistency", ws[0].CheckName)
}
