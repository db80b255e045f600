// Package grade manages GRADE certainty assessments: recording producer
// output, applying reviewer overrides, and the deterministic overall
// certainty calculator.
package grade

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/evidia/srex/internal/model"
	"github.com/evidia/srex/internal/store"
)

// certaintyByLevel maps the 1..4 internal scale to the GRADE rating.
var certaintyByLevel = map[int]model.Certainty{
	4: model.CertaintyHigh,
	3: model.CertaintyModerate,
	2: model.CertaintyLow,
	1: model.CertaintyVeryLow,
}

// rctKeywords mark a study design string as randomized for the starting
// certainty level.
var rctKeywords = []string{"rct", "randomized", "randomised", "random"}

// Service persists assessments and applies domain overrides.
type Service struct {
	store store.Store
}

// NewService creates a grade service. Returns nil if st is nil.
func NewService(st store.Store) *Service {
	if st == nil {
		return nil
	}
	return &Service{store: st}
}

// Record stores a producer-built assessment, assigning id and timestamps.
func (s *Service) Record(ctx context.Context, a *model.GradeAssessment) error {
	if a.ExtractionID == uuid.Nil {
		return eris.New("grade: extraction id is required")
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := s.store.CreateGradeAssessment(ctx, a); err != nil {
		return eris.Wrap(err, "grade: create assessment")
	}
	return nil
}

// Get loads one assessment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.GradeAssessment, error) {
	a, err := s.store.GetGradeAssessment(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "grade: get assessment")
	}
	return a, nil
}

// ForExtraction lists the assessments recorded for an extraction.
func (s *Service) ForExtraction(ctx context.Context, extractionID uuid.UUID) ([]model.GradeAssessment, error) {
	as, err := s.store.ListGradeAssessments(ctx, extractionID)
	if err != nil {
		return nil, eris.Wrap(err, "grade: list assessments")
	}
	return as, nil
}

// Override records a reviewer override on one downgrade domain. The
// producer's rating and rationale stay on the domain; the override is stored
// alongside and EffectiveRating resolves between them. Overall certainty is
// NOT recomputed here: callers that want the override reflected in the
// overall rating apply RecomputeOverall explicitly.
func (s *Service) Override(ctx context.Context, assessmentID uuid.UUID, domainName string, newRating model.DomainRating, reason string, reviewerID uuid.UUID) (*model.GradeAssessment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, eris.New("grade: override reason is required")
	}
	if !newRating.Valid() {
		return nil, eris.Errorf("grade: invalid domain rating %q", newRating)
	}

	a, err := s.store.GetGradeAssessment(ctx, assessmentID)
	if err != nil {
		return nil, eris.Wrap(err, "grade: get assessment")
	}

	slot := a.Domain(domainName)
	if slot == nil {
		return nil, eris.Errorf("grade: unknown domain %q", domainName)
	}
	if *slot == nil {
		// Producer never assessed this domain; the override stands alone.
		*slot = &model.GradeDomain{}
	}
	(*slot).Overridden = true
	(*slot).OverrideRating = newRating
	(*slot).OverrideReason = reason

	a.IsOverridden = true
	a.OverriddenBy = &reviewerID
	a.OverrideReason = reason
	a.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateGradeAssessment(ctx, a); err != nil {
		return nil, eris.Wrap(err, "grade: update assessment")
	}

	zap.L().Info("grade domain overridden",
		zap.String("assessment_id", assessmentID.String()),
		zap.String("domain", domainName),
		zap.String("new_rating", string(newRating)))
	return a, nil
}

// OverallCertainty computes the deterministic GRADE rating: randomized
// designs start at high (4), observational at low (2); each serious domain
// subtracts 1 and each very serious domain subtracts 2; each applicable
// upgrade factor adds 1; the level is clamped to 1..4. Overridden domains
// count at their effective rating.
func OverallCertainty(studyDesign string, domains map[string]*model.GradeDomain, factors map[string]*model.UpgradeFactor) model.Certainty {
	level := 2
	if isRandomized(studyDesign) {
		level = 4
	}

	for _, name := range model.GradeDomainNames {
		switch domains[name].EffectiveRating() {
		case model.RatingSerious:
			level--
		case model.RatingVerySerious:
			level -= 2
		}
	}

	for _, name := range model.UpgradeFactorNames {
		if f := factors[name]; f != nil && f.Applicable {
			level++
		}
	}

	if level < 1 {
		level = 1
	}
	if level > 4 {
		level = 4
	}
	return certaintyByLevel[level]
}

// RecomputeOverall recalculates the assessment's overall certainty and
// rationale from its current domains and factors. This is the explicit
// policy hook for callers that want overrides folded into the overall
// rating; nothing invokes it automatically.
func RecomputeOverall(a *model.GradeAssessment, studyDesign string) {
	a.OverallCertainty = OverallCertainty(studyDesign, a.Domains(), a.UpgradeFactors())
	a.OverallRationale = BuildOverallRationale(a.Domains(), a.UpgradeFactors(), a.OverallCertainty)
}

// BuildOverallRationale renders a reader-facing explanation of the overall
// rating: one clause per downgraded domain and per applicable upgrade
// factor, in assessment order.
func BuildOverallRationale(domains map[string]*model.GradeDomain, factors map[string]*model.UpgradeFactor, overall model.Certainty) string {
	var parts []string

	for _, name := range model.GradeDomainNames {
		d := domains[name]
		rating := d.EffectiveRating()
		if rating == model.RatingNoSerious {
			continue
		}
		why := ""
		if d != nil {
			why = d.Rationale
			if d.Overridden && d.OverrideReason != "" {
				why = d.OverrideReason
			}
		}
		parts = append(parts, fmt.Sprintf("Downgraded for %s (%s): %s",
			label(name), label(string(rating)), why))
	}

	for _, name := range model.UpgradeFactorNames {
		f := factors[name]
		if f == nil || !f.Applicable {
			continue
		}
		parts = append(parts, fmt.Sprintf("Upgraded for %s: %s", label(name), f.Rationale))
	}

	if len(parts) == 0 {
		parts = append(parts, "No serious concerns across any GRADE domain.")
	}
	return fmt.Sprintf("Overall certainty: %s. %s",
		strings.ToUpper(string(overall)), strings.Join(parts, " "))
}

func isRandomized(studyDesign string) bool {
	sd := strings.ToLower(studyDesign)
	for _, kw := range rctKeywords {
		if strings.Contains(sd, kw) {
			return true
		}
	}
	return false
}

func label(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
