// Package export writes extraction records and GRADE assessments to an
// evidence workbook.
package export

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/evidia/srex/internal/model"
)

var titleCaser = cases.Title(language.English)

// certaintyLabels render overall certainty in the report style reviewers
// expect.
var certaintyLabels = map[model.Certainty]string{
	model.CertaintyHigh:     "HIGH",
	model.CertaintyModerate: "MODERATE",
	model.CertaintyLow:      "LOW",
	model.CertaintyVeryLow:  "VERY LOW",
}

// Study is one article's data for the workbook.
type Study struct {
	Title       string
	Record      *model.ExtractionRecord
	Assessments []model.GradeAssessment
}

// WriteWorkbook writes three sheets: a per-study summary, the full field
// listing, and the GRADE evidence profile.
func WriteWorkbook(path string, studies []Study) error {
	f := xlsx.NewFile()

	if err := addSummarySheet(f, studies); err != nil {
		return err
	}
	if err := addFieldsSheet(f, studies); err != nil {
		return err
	}
	if err := addGradeSheet(f, studies); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save workbook %s", path)
	}
	return nil
}

func addSummarySheet(f *xlsx.File, studies []Study) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	addRow(sheet, "Study", "Version", "Status", "Total Fields", "Extracted",
		"Missing", "Low Confidence", "Percent Complete", "Validation Warnings")

	for _, s := range studies {
		rec := s.Record
		if rec == nil {
			continue
		}
		sum := rec.CompletenessSummary
		if sum == nil {
			addRow(sheet, s.Title, fmt.Sprint(rec.Version), string(rec.Status),
				"", "", "", "", "", fmt.Sprint(len(rec.ValidationWarnings)))
			continue
		}
		pct := 0.0
		if sum.TotalFields > 0 {
			pct = float64(sum.Extracted) / float64(sum.TotalFields) * 100
		}
		addRow(sheet, s.Title, fmt.Sprint(rec.Version), string(rec.Status),
			fmt.Sprint(sum.TotalFields), fmt.Sprint(sum.Extracted),
			fmt.Sprint(sum.Missing), fmt.Sprint(sum.LowConfidence),
			fmt.Sprintf("%.0f%%", pct), fmt.Sprint(len(rec.ValidationWarnings)))
	}
	return nil
}

func addFieldsSheet(f *xlsx.File, studies []Study) error {
	sheet, err := f.AddSheet("Fields")
	if err != nil {
		return eris.Wrap(err, "export: add fields sheet")
	}

	addRow(sheet, "Study", "Section", "Field", "Value", "Confidence",
		"Missing Reason", "Review Status")

	for _, s := range studies {
		rec := s.Record
		if rec == nil {
			continue
		}
		for _, section := range model.SectionNames {
			writeSectionFields(sheet, s.Title, rec, section, rec.Sections()[section])
		}
	}
	return nil
}

func writeSectionFields(sheet *xlsx.Sheet, study string, rec *model.ExtractionRecord, section string, sec any) {
	switch v := sec.(type) {
	case map[string]any:
		writeFieldMap(sheet, study, rec, section, section, v)
	case []any:
		for i, item := range v {
			if m, ok := item.(map[string]any); ok {
				writeFieldMap(sheet, study, rec, section, fmt.Sprintf("%s.%d", section, i), m)
			}
		}
	}
}

func writeFieldMap(sheet *xlsx.Sheet, study string, rec *model.ExtractionRecord, section, prefix string, m map[string]any) {
	for name, raw := range m {
		if name == "source_locations" || name == "quotes" {
			continue
		}
		if !model.IsFieldShaped(raw) {
			continue
		}
		field := model.AsField(raw)
		path := prefix + "." + name

		conf := ""
		if field.Confidence != nil {
			conf = string(*field.Confidence)
		}
		reason := ""
		if field.MissingReason != nil {
			reason = string(*field.MissingReason)
		}
		addRow(sheet, study, label(section), label(name), field.DisplayValue(),
			conf, reason, string(rec.ReviewStatusFor(path).Status))
	}
}

func addGradeSheet(f *xlsx.File, studies []Study) error {
	sheet, err := f.AddSheet("GRADE")
	if err != nil {
		return eris.Wrap(err, "export: add grade sheet")
	}

	header := []string{"Study", "Outcome"}
	for _, name := range model.GradeDomainNames {
		header = append(header, label(name))
	}
	header = append(header, "Overall Certainty", "Overridden")
	addRow(sheet, header...)

	for _, s := range studies {
		for _, a := range s.Assessments {
			row := []string{s.Title, a.OutcomeName}
			domains := a.Domains()
			for _, name := range model.GradeDomainNames {
				row = append(row, ratingLabel(domains[name]))
			}
			row = append(row, certaintyLabel(a.OverallCertainty), yesNo(a.IsOverridden))
			addRow(sheet, row...)
		}
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().Value = v
	}
}

func ratingLabel(d *model.GradeDomain) string {
	if d == nil {
		return "N/A"
	}
	s := label(string(d.EffectiveRating()))
	if d.Overridden {
		s += " (overridden)"
	}
	return s
}

func certaintyLabel(c model.Certainty) string {
	if c == "" {
		return "N/A"
	}
	if l, ok := certaintyLabels[c]; ok {
		return l
	}
	return strings.ToUpper(string(c))
}

func label(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
