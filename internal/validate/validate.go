// Package validate runs deterministic numerical cross-checks on extracted
// data to catch transcription errors and hallucinated numbers.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/evidia/srex/internal/model"
)

// ratioMeasures are effect measures whose null value is 1 and which must be
// positive. Difference measures (MD, SMD) have a null value of 0.
var ratioMeasures = map[string]bool{"OR": true, "RR": true, "HR": true}

// Record runs every check against an extraction record.
func Record(rec *model.ExtractionRecord) []model.ValidationWarning {
	data := make(map[string]any, len(model.SectionNames))
	for name, sec := range rec.Sections() {
		data[name] = sec
	}
	return Data(data)
}

// Data runs every check against decoded section data. Checks are read-only
// and never mutate the input; a field that cannot be read as a number is
// skipped, not flagged.
func Data(data map[string]any) []model.ValidationWarning {
	var warnings []model.ValidationWarning
	warnings = append(warnings, checkSampleSizeConsistency(data)...)
	warnings = append(warnings, checkEventsVsSampleSize(data)...)
	warnings = append(warnings, checkCIConsistency(data)...)
	warnings = append(warnings, checkEffectSizePlausibility(data)...)
	return warnings
}

// checkSampleSizeConsistency flags outcomes whose intervention + control
// arms differ from the population total by more than 5%.
func checkSampleSizeConsistency(data map[string]any) []model.ValidationWarning {
	var warnings []model.ValidationWarning

	pop, _ := data["population"].(map[string]any)
	totalN, ok := tryFloat(fieldValue(pop["sample_size"]))
	if !ok {
		return warnings
	}

	for i, outcome := range outcomeList(data) {
		nInt, okI := tryFloat(fieldValue(outcome["sample_size_intervention"]))
		nCtrl, okC := tryFloat(fieldValue(outcome["sample_size_control"]))
		if !okI || !okC || totalN <= 0 {
			continue
		}
		combined := nInt + nCtrl
		frac := abs(combined-totalN) / totalN
		if frac > 0.05 {
			warnings = append(warnings, model.ValidationWarning{
				FieldPath: fmt.Sprintf("outcomes.%d.sample_size", i),
				Severity:  "warning",
				CheckName: "sample_size_consistency",
				Message: fmt.Sprintf(
					"Intervention (%d) + Control (%d) = %d, but total sample size is %d (discrepancy: %.0f%%)",
					int(nInt), int(nCtrl), int(combined), int(totalN), frac*100),
			})
		}
	}
	return warnings
}

// checkEventsVsSampleSize flags event counts that exceed their arm's sample
// size or go negative.
func checkEventsVsSampleSize(data map[string]any) []model.ValidationWarning {
	var warnings []model.ValidationWarning

	arms := []struct {
		eventsKey string
		nKey      string
		group     string
	}{
		{"events_intervention", "sample_size_intervention", "intervention"},
		{"events_control", "sample_size_control", "control"},
	}

	for i, outcome := range outcomeList(data) {
		for _, arm := range arms {
			events, okE := tryFloat(fieldValue(outcome[arm.eventsKey]))
			if !okE {
				continue
			}
			if n, okN := tryFloat(fieldValue(outcome[arm.nKey])); okN && events > n {
				warnings = append(warnings, model.ValidationWarning{
					FieldPath: fmt.Sprintf("outcomes.%d.%s", i, arm.eventsKey),
					Severity:  "error",
					CheckName: "events_exceed_sample_size",
					Message: fmt.Sprintf("Events in %s (%d) exceed sample size (%d)",
						arm.group, int(events), int(n)),
				})
			}
			if events < 0 {
				warnings = append(warnings, model.ValidationWarning{
					FieldPath: fmt.Sprintf("outcomes.%d.%s", i, arm.eventsKey),
					Severity:  "error",
					CheckName: "negative_events",
					Message:   fmt.Sprintf("Negative event count (%g) in %s", events, arm.group),
				})
			}
		}
	}
	return warnings
}

// checkCIConsistency flags inverted confidence interval bounds and
// CI/p-value directional disagreement.
func checkCIConsistency(data map[string]any) []model.ValidationWarning {
	var warnings []model.ValidationWarning

	for i, outcome := range outcomeList(data) {
		lower, okL := tryFloat(fieldValue(outcome["ci_lower"]))
		upper, okU := tryFloat(fieldValue(outcome["ci_upper"]))

		if okL && okU && lower > upper {
			warnings = append(warnings, model.ValidationWarning{
				FieldPath: fmt.Sprintf("outcomes.%d.ci_lower", i),
				Severity:  "error",
				CheckName: "ci_bounds_inverted",
				Message: fmt.Sprintf("CI lower bound (%g) is greater than upper bound (%g)",
					lower, upper),
			})
		}

		pVal, okP := parsePValue(fieldValue(outcome["p_value"]))
		if !okL || !okU || !okP {
			continue
		}

		nullValue := 0.0
		if measure, _ := fieldValue(outcome["effect_measure"]).(string); ratioMeasures[measure] {
			nullValue = 1.0
		}
		crossesNull := lower <= nullValue && nullValue <= upper
		nonSignificant := pVal > 0.05

		switch {
		case crossesNull && !nonSignificant:
			warnings = append(warnings, model.ValidationWarning{
				FieldPath: fmt.Sprintf("outcomes.%d.p_value", i),
				Severity:  "warning",
				CheckName: "ci_pvalue_disagreement",
				Message: fmt.Sprintf("CI [%g, %g] crosses null (%g) but p-value (%g) suggests significance",
					lower, upper, nullValue, pVal),
			})
		case !crossesNull && nonSignificant:
			warnings = append(warnings, model.ValidationWarning{
				FieldPath: fmt.Sprintf("outcomes.%d.p_value", i),
				Severity:  "warning",
				CheckName: "ci_pvalue_disagreement",
				Message: fmt.Sprintf("CI [%g, %g] does not cross null (%g) but p-value (%g) suggests non-significance",
					lower, upper, nullValue, pVal),
			})
		}
	}
	return warnings
}

// checkEffectSizePlausibility flags non-positive ratio measures, extreme
// effect sizes, and negative sample sizes.
func checkEffectSizePlausibility(data map[string]any) []model.ValidationWarning {
	var warnings []model.ValidationWarning

	for i, outcome := range outcomeList(data) {
		effect, okE := tryFloat(fieldValue(outcome["effect_size"]))
		measure, okM := fieldValue(outcome["effect_measure"]).(string)

		if okE && okM && ratioMeasures[measure] {
			if effect <= 0 {
				warnings = append(warnings, model.ValidationWarning{
					FieldPath: fmt.Sprintf("outcomes.%d.effect_size", i),
					Severity:  "error",
					CheckName: "negative_ratio_measure",
					Message:   fmt.Sprintf("%s of %g is invalid (must be > 0)", measure, effect),
				})
			} else if effect > 100 {
				warnings = append(warnings, model.ValidationWarning{
					FieldPath: fmt.Sprintf("outcomes.%d.effect_size", i),
					Severity:  "warning",
					CheckName: "extreme_effect_size",
					Message:   fmt.Sprintf("%s of %g is extremely large, verify accuracy", measure, effect),
				})
			}
		}

		for _, key := range []string{"sample_size_intervention", "sample_size_control"} {
			if n, ok := tryFloat(fieldValue(outcome[key])); ok && n < 0 {
				warnings = append(warnings, model.ValidationWarning{
					FieldPath: fmt.Sprintf("outcomes.%d.%s", i, key),
					Severity:  "error",
					CheckName: "negative_sample_size",
					Message:   fmt.Sprintf("Negative sample size: %g", n),
				})
			}
		}
	}
	return warnings
}

// outcomeList returns the outcomes section as a slice of maps. A single
// outcome object is wrapped; anything else reads as empty.
func outcomeList(data map[string]any) []map[string]any {
	switch v := data["outcomes"].(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, o := range v {
			if m, ok := o.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{v}
	}
	return nil
}

// fieldValue unwraps a field-shaped entry to its inner value; legacy scalars
// pass through.
func fieldValue(raw any) any {
	if model.IsFieldShaped(raw) {
		return raw.(map[string]any)["value"]
	}
	return raw
}

func tryFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// parsePValue reads a p-value from a number or the reported string forms
// ("p<0.001", "P = 0.03").
func parsePValue(v any) (float64, bool) {
	if f, ok := tryFloat(v); ok {
		return f, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	for _, cut := range []string{"p", "=", "<", ">"} {
		s = strings.ReplaceAll(s, cut, "")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
