// Package model defines the extraction record, correction ledger, review
// status, and GRADE assessment data shapes shared across the service.
package model

import (
	"time"

	"github.com/google/uuid"
)

// ExtractionStatus tracks the lifecycle of an extraction record.
type ExtractionStatus string

const (
	ExtractionPending   ExtractionStatus = "pending"
	ExtractionCompleted ExtractionStatus = "completed"
	ExtractionFailed    ExtractionStatus = "failed"
)

// SectionNames lists the ten fixed sections of an extraction record, in
// display order.
var SectionNames = []string{
	"study_design",
	"population",
	"intervention",
	"comparator",
	"outcomes",
	"setting",
	"follow_up",
	"funding",
	"limitations",
	"conclusions",
}

// ExtractionRecord is one immutable extraction of an article. A correction
// or re-extraction produces a new record with the next version number for
// the article; past versions are never mutated.
//
// Section values hold decoded JSON: a map of field name to field object for
// most sections, or a list of per-outcome maps for outcomes. nil means the
// section was not applicable to the template used.
type ExtractionRecord struct {
	ID          uuid.UUID        `json:"id"`
	ArticleID   uuid.UUID        `json:"article_id"`
	TemplateID  *uuid.UUID       `json:"extraction_template_id,omitempty"`
	ExtractedBy *uuid.UUID       `json:"extracted_by,omitempty"`
	Version     int              `json:"version"`
	Status      ExtractionStatus `json:"status"`

	StudyDesign  any `json:"study_design"`
	Population   any `json:"population"`
	Intervention any `json:"intervention"`
	Comparator   any `json:"comparator"`
	Outcomes     any `json:"outcomes"`
	Setting      any `json:"setting"`
	FollowUp     any `json:"follow_up"`
	Funding      any `json:"funding"`
	Limitations  any `json:"limitations"`
	Conclusions  any `json:"conclusions"`

	CustomFields map[string]any `json:"custom_fields,omitempty"`

	CompletenessSummary *CompletenessSummary    `json:"completeness_summary,omitempty"`
	ValidationWarnings  []ValidationWarning     `json:"validation_warnings,omitempty"`
	FieldReviewStatus   map[string]ReviewStatus `json:"field_review_status,omitempty"`
	Synthesis           map[string]any          `json:"synthesis,omitempty"`

	ModelUsed        string `json:"model_used,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sections returns the ten fixed sections keyed by name, in SectionNames
// order when iterated through the name slice.
func (r *ExtractionRecord) Sections() map[string]any {
	return map[string]any{
		"study_design": r.StudyDesign,
		"population":   r.Population,
		"intervention": r.Intervention,
		"comparator":   r.Comparator,
		"outcomes":     r.Outcomes,
		"setting":      r.Setting,
		"follow_up":    r.FollowUp,
		"funding":      r.Funding,
		"limitations":  r.Limitations,
		"conclusions":  r.Conclusions,
	}
}

// SetSection assigns a named fixed section. Unknown names are ignored.
func (r *ExtractionRecord) SetSection(name string, v any) {
	switch name {
	case "study_design":
		r.StudyDesign = v
	case "population":
		r.Population = v
	case "intervention":
		r.Intervention = v
	case "comparator":
		r.Comparator = v
	case "outcomes":
		r.Outcomes = v
	case "setting":
		r.Setting = v
	case "follow_up":
		r.FollowUp = v
	case "funding":
		r.Funding = v
	case "limitations":
		r.Limitations = v
	case "conclusions":
		r.Conclusions = v
	}
}

// ReviewStatusFor returns the review status recorded for a field path. Paths
// absent from the map read as pending; the map stays sparse until a reviewer
// acts on a field.
func (r *ExtractionRecord) ReviewStatusFor(fieldPath string) ReviewStatus {
	if r.FieldReviewStatus != nil {
		if rs, ok := r.FieldReviewStatus[fieldPath]; ok {
			return rs
		}
	}
	return ReviewStatus{Status: ReviewPending}
}

// ValidationWarning is a deterministic consistency finding on a record,
// anchored to a dot-delimited path into the section/field tree.
type ValidationWarning struct {
	FieldPath string `json:"field_path"`
	Severity  string `json:"severity"` // "warning" or "error"
	CheckName string `json:"check_name"`
	Message   string `json:"message"`
}

// CompletenessSummary aggregates field counts for one extraction record.
// It is derived from the record and recomputed in full on every mutation.
type CompletenessSummary struct {
	TotalFields      int                      `json:"total_fields"`
	Extracted        int                      `json:"extracted"`
	Missing          int                      `json:"missing"`
	LowConfidence    int                      `json:"low_confidence"`
	MediumConfidence int                      `json:"medium_confidence"`
	HighConfidence   int                      `json:"high_confidence"`
	BySection        map[string]SectionStats  `json:"by_section"`
	MissingReasons   map[MissingReason]int    `json:"missing_reasons"`
}

// SectionStats mirrors the overall tallies scoped to one section.
type SectionStats struct {
	Total         int `json:"total"`
	Extracted     int `json:"extracted"`
	Missing       int `json:"missing"`
	LowConfidence int `json:"low_confidence"`
}

// PercentComplete returns extracted/total as a percentage, 0 for an empty
// section.
func (s SectionStats) PercentComplete() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Extracted) / float64(s.Total) * 100
}

// CompleteWithCaveats reports a section that is fully extracted but still
// carries low-confidence fields.
func (s SectionStats) CompleteWithCaveats() bool {
	return s.Total > 0 && s.Extracted == s.Total && s.LowConfidence > 0
}
