package model

import (
	"time"

	"github.com/google/uuid"
)

// DomainRating is the three-level GRADE rating for a downgrade domain.
type DomainRating string

const (
	RatingNoSerious   DomainRating = "no_serious"
	RatingSerious     DomainRating = "serious"
	RatingVerySerious DomainRating = "very_serious"
)

// Valid reports whether r is one of the three defined domain ratings.
func (r DomainRating) Valid() bool {
	switch r {
	case RatingNoSerious, RatingSerious, RatingVerySerious:
		return true
	}
	return false
}

// Certainty is the overall GRADE certainty-of-evidence rating.
type Certainty string

const (
	CertaintyHigh     Certainty = "high"
	CertaintyModerate Certainty = "moderate"
	CertaintyLow      Certainty = "low"
	CertaintyVeryLow  Certainty = "very_low"
)

// GradeDomainNames lists the five downgrade domains in assessment order.
var GradeDomainNames = []string{
	"risk_of_bias",
	"inconsistency",
	"indirectness",
	"imprecision",
	"publication_bias",
}

// UpgradeFactorNames lists the three upgrade factors in assessment order.
var UpgradeFactorNames = []string{
	"large_effect",
	"dose_response",
	"residual_confounding",
}

// GradeDomain is one downgrade domain's assessment. When a reviewer
// overrides the rating, the producer's original Rating and Rationale stay in
// place and the override is recorded alongside them, so the audit trail
// keeps both judgments.
type GradeDomain struct {
	Rating          DomainRating     `json:"rating"`
	Rationale       string           `json:"rationale,omitempty"`
	Quotes          []string         `json:"quotes,omitempty"`
	SourceLocations []SourceLocation `json:"source_locations,omitempty"`

	Overridden     bool         `json:"overridden,omitempty"`
	OverrideRating DomainRating `json:"override_rating,omitempty"`
	OverrideReason string       `json:"override_reason,omitempty"`
}

// EffectiveRating returns the override rating when the domain has been
// overridden, the producer's rating otherwise.
func (d *GradeDomain) EffectiveRating() DomainRating {
	if d == nil {
		return RatingNoSerious
	}
	if d.Overridden && d.OverrideRating.Valid() {
		return d.OverrideRating
	}
	return d.Rating
}

// UpgradeFactor is one of the three GRADE upgrade factors.
type UpgradeFactor struct {
	Applicable bool   `json:"applicable"`
	Rationale  string `json:"rationale,omitempty"`
}

// GradeAssessment is the per-outcome GRADE certainty assessment for an
// extraction: five downgrade domains, three upgrade factors, and an overall
// rating. Domains are nil when the producer did not assess them.
type GradeAssessment struct {
	ID           uuid.UUID `json:"id"`
	ExtractionID uuid.UUID `json:"extraction_id"`
	OutcomeName  string    `json:"outcome_name"`

	RiskOfBias      *GradeDomain `json:"risk_of_bias"`
	Inconsistency   *GradeDomain `json:"inconsistency"`
	Indirectness    *GradeDomain `json:"indirectness"`
	Imprecision     *GradeDomain `json:"imprecision"`
	PublicationBias *GradeDomain `json:"publication_bias"`

	LargeEffect         *UpgradeFactor `json:"large_effect"`
	DoseResponse        *UpgradeFactor `json:"dose_response"`
	ResidualConfounding *UpgradeFactor `json:"residual_confounding"`

	OverallCertainty Certainty `json:"overall_certainty,omitempty"`
	OverallRationale string    `json:"overall_rationale,omitempty"`

	IsOverridden   bool       `json:"is_overridden"`
	OverriddenBy   *uuid.UUID `json:"overridden_by,omitempty"`
	OverrideReason string     `json:"override_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Domain returns a pointer to the named downgrade domain slot, or nil for an
// unknown name. The pointer addresses the assessment's own field so callers
// can assign through it.
func (a *GradeAssessment) Domain(name string) **GradeDomain {
	switch name {
	case "risk_of_bias":
		return &a.RiskOfBias
	case "inconsistency":
		return &a.Inconsistency
	case "indirectness":
		return &a.Indirectness
	case "imprecision":
		return &a.Imprecision
	case "publication_bias":
		return &a.PublicationBias
	}
	return nil
}

// Domains returns the five downgrade domains keyed by name.
func (a *GradeAssessment) Domains() map[string]*GradeDomain {
	return map[string]*GradeDomain{
		"risk_of_bias":     a.RiskOfBias,
		"inconsistency":    a.Inconsistency,
		"indirectness":     a.Indirectness,
		"imprecision":      a.Imprecision,
		"publication_bias": a.PublicationBias,
	}
}

// UpgradeFactors returns the three upgrade factors keyed by name.
func (a *GradeAssessment) UpgradeFactors() map[string]*UpgradeFactor {
	return map[string]*UpgradeFactor{
		"large_effect":         a.LargeEffect,
		"dose_response":        a.DoseResponse,
		"residual_confounding": a.ResidualConfounding,
	}
}
