package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/evidia/srex/internal/model"
)

// marshalSections packs the ten fixed sections into one JSON object for the
// sections column.
func marshalSections(rec *model.ExtractionRecord) (string, error) {
	b, err := json.Marshal(rec.Sections())
	if err != nil {
		return "", eris.Wrap(err, "store: marshal sections")
	}
	return string(b), nil
}

// unmarshalSections restores the ten fixed sections from the sections column.
func unmarshalSections(rec *model.ExtractionRecord, data []byte) error {
	var sections map[string]any
	if err := json.Unmarshal(data, &sections); err != nil {
		return eris.Wrap(err, "store: unmarshal sections")
	}
	for _, name := range model.SectionNames {
		rec.SetSection(name, sections[name])
	}
	return nil
}

// gradeDomains packs the five downgrade domains for the domains column.
func gradeDomains(a *model.GradeAssessment) (string, error) {
	b, err := json.Marshal(a.Domains())
	if err != nil {
		return "", eris.Wrap(err, "store: marshal grade domains")
	}
	return string(b), nil
}

func applyGradeDomains(a *model.GradeAssessment, data []byte) error {
	var domains map[string]*model.GradeDomain
	if err := json.Unmarshal(data, &domains); err != nil {
		return eris.Wrap(err, "store: unmarshal grade domains")
	}
	for name, d := range domains {
		if slot := a.Domain(name); slot != nil {
			*slot = d
		}
	}
	return nil
}

// gradeFactors packs the three upgrade factors for the factors column.
func gradeFactors(a *model.GradeAssessment) (string, error) {
	b, err := json.Marshal(a.UpgradeFactors())
	if err != nil {
		return "", eris.Wrap(err, "store: marshal upgrade factors")
	}
	return string(b), nil
}

func applyGradeFactors(a *model.GradeAssessment, data []byte) error {
	var factors map[string]*model.UpgradeFactor
	if err := json.Unmarshal(data, &factors); err != nil {
		return eris.Wrap(err, "store: unmarshal upgrade factors")
	}
	for name, f := range factors {
		switch name {
		case "large_effect":
			a.LargeEffect = f
		case "dose_response":
			a.DoseResponse = f
		case "residual_confounding":
			a.ResidualConfounding = f
		}
	}
	return nil
}
