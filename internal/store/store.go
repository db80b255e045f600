// Package store persists extraction records, the correction ledger, per-field
// review status, and GRADE assessments behind a single interface with SQLite
// and Postgres implementations.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/evidia/srex/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// Store is the persistence interface for the extraction review workflow.
//
// Corrections are insert-only: no update or delete operation exists for the
// ledger. Review-status writes are last-write-wins per field path; two
// concurrent reviewers racing on the same path get no merge beyond that.
type Store interface {
	// Extraction records. Records are immutable per version; UpdateExtraction
	// rewrites the row for a record id and is reserved for derived data
	// (completeness, warnings, review status, synthesis) and correction
	// round-trips through the service layer.
	CreateExtraction(ctx context.Context, rec *model.ExtractionRecord) error
	GetExtraction(ctx context.Context, id uuid.UUID) (*model.ExtractionRecord, error)
	ListExtractions(ctx context.Context, articleID uuid.UUID) ([]model.ExtractionRecord, error)
	NextVersion(ctx context.Context, articleID uuid.UUID) (int, error)
	UpdateExtraction(ctx context.Context, rec *model.ExtractionRecord) error

	// Correction ledger (append-only).
	CreateCorrection(ctx context.Context, c *model.Correction) error
	ListCorrections(ctx context.Context, extractionID uuid.UUID) ([]model.Correction, error)
	ListFieldCorrections(ctx context.Context, extractionID uuid.UUID, fieldPath string) ([]model.Correction, error)
	MarkCorrectionApplied(ctx context.Context, id uuid.UUID) error

	// Per-field review status, stored on the extraction row.
	SetReviewStatus(ctx context.Context, extractionID uuid.UUID, fieldPath string, rs model.ReviewStatus) error

	// GRADE assessments.
	CreateGradeAssessment(ctx context.Context, a *model.GradeAssessment) error
	GetGradeAssessment(ctx context.Context, id uuid.UUID) (*model.GradeAssessment, error)
	ListGradeAssessments(ctx context.Context, extractionID uuid.UUID) ([]model.GradeAssessment, error)
	UpdateGradeAssessment(ctx context.Context, a *model.GradeAssessment) error

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
