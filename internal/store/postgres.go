package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/evidia/srex/internal/db"
	"github.com/evidia/srex/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// hot paths of the review workflow.
var preparedStatements = map[string]string{
	"get_extraction":    `SELECT ` + extractionColumns + ` FROM extractions WHERE id = $1`,
	"insert_correction": `INSERT INTO corrections (id, extraction_id, user_id, field_path, original_value, corrected_value, correction_type, rationale, applied_to_training, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"list_corrections":  `SELECT ` + correctionColumns + ` FROM corrections WHERE extraction_id = $1 ORDER BY created_at ASC, id ASC`,
	"get_grade":         `SELECT ` + gradeColumns + ` FROM grade_assessments WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS extractions (
	id                UUID PRIMARY KEY,
	article_id        UUID NOT NULL,
	template_id       UUID,
	extracted_by      UUID,
	version           INTEGER NOT NULL DEFAULT 1,
	status            TEXT NOT NULL DEFAULT 'pending',
	sections          JSONB NOT NULL,
	custom_fields     JSONB,
	completeness      JSONB,
	warnings          JSONB,
	review_status     JSONB,
	synthesis         JSONB,
	model_used        TEXT,
	prompt_tokens     INTEGER,
	completion_tokens INTEGER,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS corrections (
	id                  UUID PRIMARY KEY,
	extraction_id       UUID NOT NULL REFERENCES extractions(id) ON DELETE CASCADE,
	user_id             UUID NOT NULL,
	field_path          TEXT NOT NULL,
	original_value      JSONB,
	corrected_value     JSONB,
	correction_type     TEXT,
	rationale           TEXT,
	applied_to_training BOOLEAN NOT NULL DEFAULT false,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS grade_assessments (
	id                UUID PRIMARY KEY,
	extraction_id     UUID NOT NULL REFERENCES extractions(id) ON DELETE CASCADE,
	outcome_name      TEXT NOT NULL,
	domains           JSONB NOT NULL,
	upgrade_factors   JSONB NOT NULL,
	overall_certainty TEXT,
	overall_rationale TEXT,
	is_overridden     BOOLEAN NOT NULL DEFAULT false,
	overridden_by     UUID,
	override_reason   TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_extractions_article ON extractions(article_id, version);
CREATE INDEX IF NOT EXISTS idx_corrections_extraction ON corrections(extraction_id, created_at);
CREATE INDEX IF NOT EXISTS idx_corrections_field ON corrections(extraction_id, field_path);
CREATE INDEX IF NOT EXISTS idx_grade_extraction ON grade_assessments(extraction_id, outcome_name);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateExtraction(ctx context.Context, rec *model.ExtractionRecord) error {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO extractions (
			id, article_id, template_id, extracted_by, version, status,
			sections, custom_fields, completeness, warnings, review_status, synthesis,
			model_used, prompt_tokens, completion_tokens, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		rec.ID.String(), rec.ArticleID.String(), uuidNull(rec.TemplateID), uuidNull(rec.ExtractedBy),
		rec.Version, string(rec.Status),
		sections, cols.customFields, cols.completeness, cols.warnings, cols.reviewStatus, cols.synthesis,
		nullIfEmpty(rec.ModelUsed), rec.PromptTokens, rec.CompletionTokens, now, now,
	)
	return eris.Wrap(err, "postgres: insert extraction")
}

func (s *PostgresStore) GetExtraction(ctx context.Context, id uuid.UUID) (*model.ExtractionRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+extractionColumns+` FROM extractions WHERE id = $1`, id.String())
	rec, err := scanExtraction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get extraction")
	}
	return rec, nil
}

func (s *PostgresStore) ListExtractions(ctx context.Context, articleID uuid.UUID) ([]model.ExtractionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE article_id = $1 ORDER BY version DESC`,
		articleID.String(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list extractions")
	}
	defer rows.Close()

	var recs []model.ExtractionRecord
	for rows.Next() {
		rec, err := scanExtraction(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan extraction")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list extractions iterate")
}

func (s *PostgresStore) NextVersion(ctx context.Context, articleID uuid.UUID) (int, error) {
	var v *int
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(version) FROM extractions WHERE article_id = $1`, articleID.String(),
	).Scan(&v)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: next version")
	}
	if v == nil {
		return 1, nil
	}
	return *v + 1, nil
}

func (s *PostgresStore) UpdateExtraction(ctx context.Context, rec *model.ExtractionRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	sections, err := marshalSections(rec)
	if err != nil {
		return err
	}
	cols, err := derivedColumns(rec)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE extractions SET
			status = $1, sections = $2, custom_fields = $3, completeness = $4,
			warnings = $5, review_status = $6, synthesis = $7, updated_at = $8
		WHERE id = $9`,
		string(rec.Status), sections, cols.customFields, cols.completeness,
		cols.warnings, cols.reviewStatus, cols.synthesis, rec.UpdatedAt, rec.ID.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update extraction %s", rec.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "extraction %s", rec.ID)
	}
	return nil
}

func (s *PostgresStore) CreateCorrection(ctx context.Context, c *model.Correction) error {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO corrections (
			id, extraction_id, user_id, field_path, original_value, corrected_value,
			correction_type, rationale, applied_to_training, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID.String(), c.ExtractionID.String(), c.UserID.String(), c.FieldPath,
		orig, corrected, nullIfEmpty(string(c.CorrectionType)), nullIfEmpty(c.Rationale),
		c.AppliedToTraining, c.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert correction")
}

func (s *PostgresStore) ListCorrections(ctx context.Context, extractionID uuid.UUID) ([]model.Correction, error) {
	return s.queryCorrections(ctx,
		`SELECT `+correctionColumns+` FROM corrections WHERE extraction_id = $1 ORDER BY created_at ASC, id ASC`,
		extractionID.String(),
	)
}

func (s *PostgresStore) ListFieldCorrections(ctx context.Context, extractionID uuid.UUID, fieldPath string) ([]model.Correction, error) {
	return s.queryCorrections(ctx,
		`SELECT `+correctionColumns+` FROM corrections WHERE extraction_id = $1 AND field_path = $2 ORDER BY created_at ASC, id ASC`,
		extractionID.String(), fieldPath,
	)
}

func (s *PostgresStore) queryCorrections(ctx context.Context, query string, args ...any) ([]model.Correction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list corrections")
	}
	defer rows.Close()

	var out []model.Correction
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan correction")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list corrections iterate")
}

func (s *PostgresStore) MarkCorrectionApplied(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE corrections SET applied_to_training = true WHERE id = $1`, id.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark correction applied %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "correction %s", id)
	}
	return nil
}

// SetReviewStatus updates one field path inside the review_status JSONB map.
// jsonb_set keeps the write to a single statement; concurrent writers on the
// same path are last-write-wins.
func (s *PostgresStore) SetReviewStatus(ctx context.Context, extractionID uuid.UUID, fieldPath string, rs model.ReviewStatus) error {
	entry, err := json.Marshal(rs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal review status")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE extractions
		 SET review_status = jsonb_set(COALESCE(review_status, '{}'::jsonb), ARRAY[$1], $2::jsonb),
		     updated_at = $3
		 WHERE id = $4`,
		fieldPath, string(entry), time.Now().UTC(), extractionID.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set review status %s", extractionID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "extraction %s", extractionID)
	}
	return nil
}

func (s *PostgresStore) CreateGradeAssessment(ctx context.Context, a *model.GradeAssessment) error {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO grade_assessments (
			id, extraction_id, outcome_name, domains, upgrade_factors,
			overall_certainty, overall_rationale, is_overridden, overridden_by, override_reason,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID.String(), a.ExtractionID.String(), a.OutcomeName, domains, factors,
		nullIfEmpty(string(a.OverallCertainty)), nullIfEmpty(a.OverallRationale),
		a.IsOverridden, uuidNull(a.OverriddenBy), nullIfEmpty(a.OverrideReason),
		now, now,
	)
	return eris.Wrap(err, "postgres: insert grade assessment")
}

func (s *PostgresStore) GetGradeAssessment(ctx context.Context, id uuid.UUID) (*model.GradeAssessment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+gradeColumns+` FROM grade_assessments WHERE id = $1`, id.String())
	a, err := scanGrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get grade assessment")
	}
	return a, nil
}

func (s *PostgresStore) ListGradeAssessments(ctx context.Context, extractionID uuid.UUID) ([]model.GradeAssessment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+gradeColumns+` FROM grade_assessments WHERE extraction_id = $1 ORDER BY outcome_name ASC`,
		extractionID.String(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list grade assessments")
	}
	defer rows.Close()

	var out []model.GradeAssessment
	for rows.Next() {
		a, err := scanGrade(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan grade assessment")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list grade assessments iterate")
}

func (s *PostgresStore) UpdateGradeAssessment(ctx context.Context, a *model.GradeAssessment) error {
	a.UpdatedAt = time.Now().UTC()

	domains, err := gradeDomains(a)
	if err != nil {
		return err
	}
	factors, err := gradeFactors(a)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE grade_assessments SET
			domains = $1, upgrade_factors = $2, overall_certainty = $3, overall_rationale = $4,
			is_overridden = $5, overridden_by = $6, override_reason = $7, updated_at = $8
		WHERE id = $9`,
		domains, factors, nullIfEmpty(string(a.OverallCertainty)), nullIfEmpty(a.OverallRationale),
		a.IsOverridden, uuidNull(a.OverriddenBy), nullIfEmpty(a.OverrideReason),
		a.UpdatedAt, a.ID.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update grade assessment %s", a.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "grade assessment %s", a.ID)
	}
	return nil
}
