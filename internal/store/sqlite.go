package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/evidia/srex/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS extractions (
	id                TEXT PRIMARY KEY,
	article_id        TEXT NOT NULL,
	template_id       TEXT,
	extracted_by      TEXT,
	version           INTEGER NOT NULL DEFAULT 1,
	status            TEXT NOT NULL DEFAULT 'pending',
	sections          TEXT NOT NULL,
	custom_fields     TEXT,
	completeness      TEXT,
	warnings          TEXT,
	review_status     TEXT,
	synthesis         TEXT,
	model_used        TEXT,
	prompt_tokens     INTEGER,
	completion_tokens INTEGER,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS corrections (
	id                  TEXT PRIMARY KEY,
	extraction_id       TEXT NOT NULL REFERENCES extractions(id) ON DELETE CASCADE,
	user_id             TEXT NOT NULL,
	field_path          TEXT NOT NULL,
	original_value      TEXT,
	corrected_value     TEXT,
	correction_type     TEXT,
	rationale           TEXT,
	applied_to_training INTEGER NOT NULL DEFAULT 0,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS grade_assessments (
	id                TEXT PRIMARY KEY,
	extraction_id     TEXT NOT NULL REFERENCES extractions(id) ON DELETE CASCADE,
	outcome_name      TEXT NOT NULL,
	domains           TEXT NOT NULL,
	upgrade_factors   TEXT NOT NULL,
	overall_certainty TEXT,
	overall_rationale TEXT,
	is_overridden     INTEGER NOT NULL DEFAULT 0,
	overridden_by     TEXT,
	override_reason   TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_extractions_article ON extractions(article_id, version);
CREATE INDEX IF NOT EXISTS idx_corrections_extraction ON corrections(extraction_id, created_at);
CREATE INDEX IF NOT EXISTS idx_corrections_field ON corrections(extraction_id, field_path);
CREATE INDEX IF NOT EXISTS idx_grade_extraction ON grade_assessments(extraction_id, outcome_name);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateExtraction(ctx context.Context, rec *model.ExtractionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = model.ExtractionPending
	}

	sections, err := marshalSections(rec)
	if err != nil {
		return err
	}
	cols, err := derivedColumns(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extractions (
			id, article_id, template_id, extracted_by, version, status,
			sections, custom_fields, completeness, warnings, review_status, synthesis,
			model_used, prompt_tokens, completion_tokens, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.ArticleID.String(), uuidNull(rec.TemplateID), uuidNull(rec.ExtractedBy),
		rec.Version, string(rec.Status),
		sections, cols.customFields, cols.completeness, cols.warnings, cols.reviewStatus, cols.synthesis,
		nullIfEmpty(rec.ModelUsed), rec.PromptTokens, rec.CompletionTokens, now, now,
	)
	return eris.Wrap(err, "sqlite: insert extraction")
}

func (s *SQLiteStore) GetExtraction(ctx context.Context, id uuid.UUID) (*model.ExtractionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+extractionColumns+` FROM extractions WHERE id = ?`, id.String())
	rec, err := scanExtraction(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) ListExtractions(ctx context.Context, articleID uuid.UUID) ([]model.ExtractionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE article_id = ? ORDER BY version DESC`,
		articleID.String(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list extractions")
	}
	defer rows.Close()

	var recs []model.ExtractionRecord
	for rows.Next() {
		rec, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list extractions iterate")
}

func (s *SQLiteStore) NextVersion(ctx context.Context, articleID uuid.UUID) (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM extractions WHERE article_id = ?`, articleID.String(),
	).Scan(&v)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: next version")
	}
	return int(v.Int64) + 1, nil
}

func (s *SQLiteStore) UpdateExtraction(ctx context.Context, rec *model.ExtractionRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	sections, err := marshalSections(rec)
	if err != nil {
		return err
	}
	cols, err := derivedColumns(rec)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE extractions SET
			status = ?, sections = ?, custom_fields = ?, completeness = ?,
			warnings = ?, review_status = ?, synthesis = ?, updated_at = ?
		WHERE id = ?`,
		string(rec.Status), sections, cols.customFields, cols.completeness,
		cols.warnings, cols.reviewStatus, cols.synthesis, rec.UpdatedAt, rec.ID.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update extraction %s", rec.ID)
	}
	return checkRowsAffected(res, "extraction", rec.ID.String())
}

func (s *SQLiteStore) CreateCorrection(ctx context.Context, c *model.Correction) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()

	orig, err := envelopeNull(c.OriginalValue)
	if err != nil {
		return err
	}
	corrected, err := envelopeNull(c.CorrectedValue)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO corrections (
			id, extraction_id, user_id, field_path, original_value, corrected_value,
			correction_type, rationale, applied_to_training, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.ExtractionID.String(), c.UserID.String(), c.FieldPath,
		orig, corrected, nullIfEmpty(string(c.CorrectionType)), nullIfEmpty(c.Rationale),
		c.AppliedToTraining, c.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert correction")
}

func (s *SQLiteStore) ListCorrections(ctx context.Context, extractionID uuid.UUID) ([]model.Correction, error) {
	return s.queryCorrections(ctx,
		`SELECT `+correctionColumns+` FROM corrections WHERE extraction_id = ? ORDER BY created_at ASC, id ASC`,
		extractionID.String(),
	)
}

func (s *SQLiteStore) ListFieldCorrections(ctx context.Context, extractionID uuid.UUID, fieldPath string) ([]model.Correction, error) {
	return s.queryCorrections(ctx,
		`SELECT `+correctionColumns+` FROM corrections WHERE extraction_id = ? AND field_path = ? ORDER BY created_at ASC, id ASC`,
		extractionID.String(), fieldPath,
	)
}

func (s *SQLiteStore) queryCorrections(ctx context.Context, query string, args ...any) ([]model.Correction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list corrections")
	}
	defer rows.Close()

	var out []model.Correction
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list corrections iterate")
}

func (s *SQLiteStore) MarkCorrectionApplied(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE corrections SET applied_to_training = 1 WHERE id = ?`, id.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark correction applied %s", id)
	}
	return checkRowsAffected(res, "correction", id.String())
}

// SetReviewStatus does a read-modify-write of the review-status map inside a
// transaction. Concurrent writers on the same extraction are last-write-wins
// at the field level.
func (s *SQLiteStore) SetReviewStatus(ctx context.Context, extractionID uuid.UUID, fieldPath string, rs model.ReviewStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin review status tx")
	}
	defer tx.Rollback()

	var raw sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT review_status FROM extractions WHERE id = ?`, extractionID.String(),
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrap(err, "sqlite: read review status")
	}

	status := map[string]model.ReviewStatus{}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &status); err != nil {
			return eris.Wrap(err, "sqlite: unmarshal review status")
		}
	}
	status[fieldPath] = rs

	b, err := json.Marshal(status)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal review status")
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE extractions SET review_status = ?, updated_at = ? WHERE id = ?`,
		string(b), time.Now().UTC(), extractionID.String(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: write review status")
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit review status")
}

func (s *SQLiteStore) CreateGradeAssessment(ctx context.Context, a *model.GradeAssessment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	domains, err := gradeDomains(a)
	if err != nil {
		return err
	}
	factors, err := gradeFactors(a)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO grade_assessments (
			id, extraction_id, outcome_name, domains, upgrade_factors,
			overall_certainty, overall_rationale, is_overridden, overridden_by, override_reason,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.ExtractionID.String(), a.OutcomeName, domains, factors,
		nullIfEmpty(string(a.OverallCertainty)), nullIfEmpty(a.OverallRationale),
		a.IsOverridden, uuidNull(a.OverriddenBy), nullIfEmpty(a.OverrideReason),
		now, now,
	)
	return eris.Wrap(err, "sqlite: insert grade assessment")
}

func (s *SQLiteStore) GetGradeAssessment(ctx context.Context, id uuid.UUID) (*model.GradeAssessment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+gradeColumns+` FROM grade_assessments WHERE id = ?`, id.String(),
	)
	a, err := scanGrade(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *SQLiteStore) ListGradeAssessments(ctx context.Context, extractionID uuid.UUID) ([]model.GradeAssessment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+gradeColumns+` FROM grade_assessments WHERE extraction_id = ? ORDER BY outcome_name ASC`,
		extractionID.String(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list grade assessments")
	}
	defer rows.Close()

	var out []model.GradeAssessment
	for rows.Next() {
		a, err := scanGrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list grade assessments iterate")
}

func (s *SQLiteStore) UpdateGradeAssessment(ctx context.Context, a *model.GradeAssessment) error {
	a.UpdatedAt = time.Now().UTC()

	domains, err := gradeDomains(a)
	if err != nil {
		return err
	}
	factors, err := gradeFactors(a)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE grade_assessments SET
			domains = ?, upgrade_factors = ?, overall_certainty = ?, overall_rationale = ?,
			is_overridden = ?, overridden_by = ?, override_reason = ?, updated_at = ?
		WHERE id = ?`,
		domains, factors, nullIfEmpty(string(a.OverallCertainty)), nullIfEmpty(a.OverallRationale),
		a.IsOverridden, uuidNull(a.OverriddenBy), nullIfEmpty(a.OverrideReason),
		a.UpdatedAt, a.ID.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update grade assessment %s", a.ID)
	}
	return checkRowsAffected(res, "grade assessment", a.ID.String())
}
