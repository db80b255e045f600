// Package review advances per-field review status and reports reviewer
// progress over an extraction record.
package review

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/evidia/srex/internal/completeness"
	"github.com/evidia/srex/internal/model"
	"github.com/evidia/srex/internal/store"
)

// Progress summarizes review status across the countable fields of a record.
// Fields never touched by a reviewer read as pending.
type Progress struct {
	TotalFields int `json:"total_fields"`
	Pending     int `json:"pending"`
	NeedsReview int `json:"needs_review"`
	Verified    int `json:"verified"`
}

// PercentVerified returns verified/total as a percentage, 0 for an empty
// record.
func (p Progress) PercentVerified() float64 {
	if p.TotalFields == 0 {
		return 0
	}
	return float64(p.Verified) / float64(p.TotalFields) * 100
}

// Service applies review transitions through the store. Transitions happen
// only on an explicit reviewer action; nothing here fires on correction
// submission. Concurrent cycles on the same field path are last-write-wins
// at the store.
type Service struct {
	store store.Store
}

// NewService creates a review service. Returns nil if st is nil.
func NewService(st store.Store) *Service {
	if st == nil {
		return nil
	}
	return &Service{store: st}
}

// Cycle advances the field's review status one step in the pending →
// needs_review → verified → pending order, stamping the reviewer and time.
// The new status is returned.
func (s *Service) Cycle(ctx context.Context, extractionID uuid.UUID, fieldPath string, reviewerID uuid.UUID) (model.ReviewStatus, error) {
	if fieldPath == "" {
		return model.ReviewStatus{}, eris.New("review: field path is required")
	}

	rec, err := s.store.GetExtraction(ctx, extractionID)
	if err != nil {
		return model.ReviewStatus{}, eris.Wrap(err, "review: load extraction")
	}

	cur := rec.ReviewStatusFor(fieldPath)
	now := time.Now().UTC()
	next := model.ReviewStatus{
		Status:     cur.Status.Next(),
		ReviewedBy: &reviewerID,
		ReviewedAt: &now,
	}
	if err := s.store.SetReviewStatus(ctx, extractionID, fieldPath, next); err != nil {
		return model.ReviewStatus{}, eris.Wrap(err, "review: set review status")
	}

	zap.L().Debug("review status cycled",
		zap.String("extraction_id", extractionID.String()),
		zap.String("field_path", fieldPath),
		zap.String("from", string(cur.Status)),
		zap.String("to", string(next.Status)))
	return next, nil
}

// Set writes an explicit review status for a field path, bypassing the
// cycle. Used when a reviewer picks a state directly.
func (s *Service) Set(ctx context.Context, extractionID uuid.UUID, fieldPath string, state model.ReviewState, reviewerID uuid.UUID) (model.ReviewStatus, error) {
	if fieldPath == "" {
		return model.ReviewStatus{}, eris.New("review: field path is required")
	}
	if !state.Valid() {
		return model.ReviewStatus{}, eris.Errorf("review: unknown review state %q", state)
	}

	now := time.Now().UTC()
	rs := model.ReviewStatus{
		Status:     state,
		ReviewedBy: &reviewerID,
		ReviewedAt: &now,
	}
	if err := s.store.SetReviewStatus(ctx, extractionID, fieldPath, rs); err != nil {
		return model.ReviewStatus{}, eris.Wrap(err, "review: set review status")
	}
	return rs, nil
}

// ProgressFor counts review states across the record's countable fields.
// The field universe comes from the completeness walk so progress and
// completeness agree on what a field is.
func (s *Service) ProgressFor(ctx context.Context, extractionID uuid.UUID) (Progress, error) {
	rec, err := s.store.GetExtraction(ctx, extractionID)
	if err != nil {
		return Progress{}, eris.Wrap(err, "review: load extraction")
	}
	return ComputeProgress(rec), nil
}

// ComputeProgress derives progress from a record already in hand.
func ComputeProgress(rec *model.ExtractionRecord) Progress {
	summary := completeness.Compute(rec)
	p := Progress{TotalFields: summary.TotalFields}

	for _, rs := range rec.FieldReviewStatus {
		switch rs.Status {
		case model.ReviewVerified:
			p.Verified++
		case model.ReviewNeedsReview:
			p.NeedsReview++
		}
	}
	p.Pending = p.TotalFields - p.Verified - p.NeedsReview
	if p.Pending < 0 {
		// Status map can name paths outside the countable field walk
		// (list indices, custom fields); keep counts non-negative.
		p.Pending = 0
	}
	return p
}
