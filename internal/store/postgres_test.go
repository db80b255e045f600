package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidia/srex/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var extractionCols = []string{
	"id", "article_id", "template_id", "extracted_by", "version", "status",
	"sections", "custom_fields", "completeness", "warnings", "review_status", "synthesis",
	"model_used", "prompt_tokens", "completion_tokens", "created_at", "updated_at",
}

func TestPostgresStore_GetExtraction(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	id := uuid.New()
	articleID := uuid.New()
	now := time.Now().UTC()

	sections := `{"population":{"sample_size":{"value":120,"confidence":"high","quotes":[]}}}`
	rows := pgxmock.NewRows(extractionCols).AddRow(
		id.String(), articleID.String(), sql.NullString{}, sql.NullString{}, 2, "completed",
		[]byte(sections),
		sql.NullString{}, sql.NullString{String: `{"total_fields":1,"extracted":1}`, Valid: true},
		sql.NullString{}, sql.NullString{String: `{"population.sample_size":{"status":"pending"}}`, Valid: true},
		sql.NullString{},
		sql.NullString{String: "claude-sonnet-4-5", Valid: true},
		sql.NullInt64{Int64: 900, Valid: true}, sql.NullInt64{Int64: 200, Valid: true},
		now, now,
	)

	mock.ExpectQuery(`SELECT .+ FROM extractions WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnRows(rows)

	rec, err := s.GetExtraction(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, articleID, rec.ArticleID)
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, model.ExtractionCompleted, rec.Status)
	assert.Equal(t, "claude-sonnet-4-5", rec.ModelUsed)
	assert.Equal(t, 900, rec.PromptTokens)
	require.NotNil(t, rec.CompletenessSummary)
	assert.Equal(t, 1, rec.CompletenessSummary.TotalFields)
	assert.Equal(t, model.ReviewPending, rec.FieldReviewStatus["population.sample_size"].Status)

	pop, ok := rec.Population.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, pop, "sample_size")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetExtraction_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM extractions WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetExtraction(context.Background(), id)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateExtraction(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	articleID := uuid.New()

	mock.ExpectExec(`INSERT INTO extractions`).
		WithArgs(
			pgxmock.AnyArg(), articleID.String(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			1, "completed",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), 500, 100, pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := &model.ExtractionRecord{
		ArticleID: articleID,
		Version:   1,
		Status:    model.ExtractionCompleted,
		Population: map[string]any{
			"sample_size": map[string]any{"value": float64(120), "confidence": "high"},
		},
		ModelUsed:        "claude-sonnet-4-5",
		PromptTokens:     500,
		CompletionTokens: 100,
	}
	require.NoError(t, s.CreateExtraction(context.Background(), rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_NextVersion(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	articleID := uuid.New()

	mock.ExpectQuery(`SELECT MAX\(version\) FROM extractions WHERE article_id = \$1`).
		WithArgs(articleID.String()).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(nil))

	v, err := s.NextVersion(context.Background(), articleID)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	three := 3
	mock.ExpectQuery(`SELECT MAX\(version\) FROM extractions WHERE article_id = \$1`).
		WithArgs(articleID.String()).
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(&three))

	v, err = s.NextVersion(context.Background(), articleID)
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateExtraction_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE extractions SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	rec := &model.ExtractionRecord{ID: uuid.New(), ArticleID: uuid.New()}
	err := s.UpdateExtraction(context.Background(), rec)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateCorrection(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	extractionID := uuid.New()
	userID := uuid.New()

	mock.ExpectExec(`INSERT INTO corrections`).
		WithArgs(
			pgxmock.AnyArg(), extractionID.String(), userID.String(), "population.sample_size",
			sql.NullString{String: `{"value":120}`, Valid: true},
			sql.NullString{String: `{"value":124}`, Valid: true},
			sql.NullString{String: "value_change", Valid: true},
			sql.NullString{String: "table 1", Valid: true},
			false, pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	c := &model.Correction{
		ExtractionID:   extractionID,
		UserID:         userID,
		FieldPath:      "population.sample_size",
		OriginalValue:  &model.ValueEnvelope{Value: 120},
		CorrectedValue: &model.ValueEnvelope{Value: 124},
		CorrectionType: model.CorrectionValueChange,
		Rationale:      "table 1",
	}
	require.NoError(t, s.CreateCorrection(context.Background(), c))
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.False(t, c.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCorrections(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	extractionID := uuid.New()
	userID := uuid.New()
	first := uuid.New()
	second := uuid.New()
	now := time.Now().UTC()

	cols := []string{
		"id", "extraction_id", "user_id", "field_path", "original_value",
		"corrected_value", "correction_type", "rationale", "applied_to_training", "created_at",
	}
	rows := pgxmock.NewRows(cols).
		AddRow(
			first.String(), extractionID.String(), userID.String(), "population.sample_size",
			sql.NullString{String: `{"value":120}`, Valid: true},
			sql.NullString{String: `{"value":124}`, Valid: true},
			sql.NullString{String: "value_change", Valid: true},
			sql.NullString{}, false, now.Add(-time.Minute),
		).
		AddRow(
			second.String(), extractionID.String(), userID.String(), "population.sample_size",
			sql.NullString{String: `{"value":124}`, Valid: true},
			sql.NullString{String: `{"value":null}`, Valid: true},
			sql.NullString{String: "value_change", Valid: true},
			sql.NullString{}, false, now,
		)

	mock.ExpectQuery(`SELECT .+ FROM corrections WHERE extraction_id = \$1 ORDER BY created_at ASC`).
		WithArgs(extractionID.String()).
		WillReturnRows(rows)

	out, err := s.ListCorrections(context.Background(), extractionID)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, first, out[0].ID)
	require.NotNil(t, out[0].CorrectedValue)
	assert.Equal(t, float64(124), out[0].CorrectedValue.Value)
	require.NotNil(t, out[1].CorrectedValue)
	assert.Nil(t, out[1].CorrectedValue.Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkCorrectionApplied_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE corrections SET applied_to_training = true WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkCorrectionApplied(context.Background(), id)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetReviewStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	extractionID := uuid.New()

	mock.ExpectExec(`UPDATE extractions\s+SET review_status = jsonb_set`).
		WithArgs("population.sample_size", `{"status":"verified"}`, pgxmock.AnyArg(), extractionID.String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SetReviewStatus(context.Background(), extractionID, "population.sample_size",
		model.ReviewStatus{Status: model.ReviewVerified})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetReviewStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	extractionID := uuid.New()

	mock.ExpectExec(`UPDATE extractions\s+SET review_status = jsonb_set`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetReviewStatus(context.Background(), extractionID, "x",
		model.ReviewStatus{Status: model.ReviewPending})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateGradeAssessment(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	extractionID := uuid.New()

	mock.ExpectExec(`INSERT INTO grade_assessments`).
		WithArgs(
			pgxmock.AnyArg(), extractionID.String(), "mortality", pgxmock.AnyArg(), pgxmock.AnyArg(),
			sql.NullString{String: "moderate", Valid: true}, pgxmock.AnyArg(),
			false, pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	a := &model.GradeAssessment{
		ExtractionID:     extractionID,
		OutcomeName:      "mortality",
		RiskOfBias:       &model.GradeDomain{Rating: model.RatingSerious},
		OverallCertainty: model.CertaintyModerate,
	}
	require.NoError(t, s.CreateGradeAssessment(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetGradeAssessment(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	id := uuid.New()
	extractionID := uuid.New()
	now := time.Now().UTC()

	cols := []string{
		"id", "extraction_id", "outcome_name", "domains", "upgrade_factors",
		"overall_certainty", "overall_rationale", "is_overridden", "overridden_by", "override_reason",
		"created_at", "updated_at",
	}
	domains := `{"risk_of_bias":{"rating":"serious","rationale":"no blinding"}}`
	factors := `{"large_effect":{"applicable":true}}`
	rows := pgxmock.NewRows(cols).AddRow(
		id.String(), extractionID.String(), "mortality", []byte(domains), []byte(factors),
		sql.NullString{String: "low", Valid: true}, sql.NullString{},
		false, sql.NullString{}, sql.NullString{},
		now, now,
	)

	mock.ExpectQuery(`SELECT .+ FROM grade_assessments WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnRows(rows)

	a, err := s.GetGradeAssessment(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "mortality", a.OutcomeName)
	require.NotNil(t, a.RiskOfBias)
	assert.Equal(t, model.RatingSerious, a.RiskOfBias.Rating)
	assert.Nil(t, a.Imprecision)
	require.NotNil(t, a.LargeEffect)
	assert.True(t, a.LargeEffect.Applicable)
	assert.Equal(t, model.CertaintyLow, a.OverallCertainty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetGradeAssessment_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM grade_assessments WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetGradeAssessment(context.Background(), id)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS extractions`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
