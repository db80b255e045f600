package store

import (
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/evidia/srex/internal/model"
)

const extractionColumns = `id, article_id, template_id, extracted_by, version, status,
	sections, custom_fields, completeness, warnings, review_status, synthesis,
	model_used, prompt_tokens, completion_tokens, created_at, updated_at`

const correctionColumns = `id, extraction_id, user_id, field_path, original_value,
	corrected_value, correction_type, rationale, applied_to_training, created_at`

const gradeColumns = `id, extraction_id, outcome_name, domains, upgrade_factors,
	overall_certainty, overall_rationale, is_overridden, overridden_by, override_reason,
	created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

// derived holds the JSON-serialized derived columns of an extraction row.
type derived struct {
	customFields sql.NullString
	completeness sql.NullString
	warnings     sql.NullString
	reviewStatus sql.NullString
	synthesis    sql.NullString
}

func derivedColumns(rec *model.ExtractionRecord) (derived, error) {
	var d derived
	var err error
	if len(rec.CustomFields) > 0 {
		if d.customFields, err = jsonNull(rec.CustomFields); err != nil {
			return d, err
		}
	}
	if rec.CompletenessSummary != nil {
		if d.completeness, err = jsonNull(rec.CompletenessSummary); err != nil {
			return d, err
		}
	}
	if len(rec.ValidationWarnings) > 0 {
		if d.warnings, err = jsonNull(rec.ValidationWarnings); err != nil {
			return d, err
		}
	}
	if len(rec.FieldReviewStatus) > 0 {
		if d.reviewStatus, err = jsonNull(rec.FieldReviewStatus); err != nil {
			return d, err
		}
	}
	if len(rec.Synthesis) > 0 {
		if d.synthesis, err = jsonNull(rec.Synthesis); err != nil {
			return d, err
		}
	}
	return d, nil
}

func jsonNull(v any) (sql.NullString, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, eris.Wrap(err, "store: marshal column")
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func envelopeNull(env *model.ValueEnvelope) (sql.NullString, error) {
	if env == nil {
		return sql.NullString{}, nil
	}
	return jsonNull(env)
}

func uuidNull(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseUUID(s string, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, eris.Wrapf(err, "store: parse %s id", what)
	}
	return id, nil
}

func parseUUIDNull(ns sql.NullString, what string) (*uuid.UUID, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	id, err := parseUUID(ns.String, what)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func scanExtraction(row scannable) (*model.ExtractionRecord, error) {
	var rec model.ExtractionRecord
	var id, articleID, status string
	var templateID, extractedBy, modelUsed sql.NullString
	var sections []byte
	var customFields, completeness, warnings, reviewStatus, synthesis sql.NullString
	var promptTokens, completionTokens sql.NullInt64

	err := row.Scan(
		&id, &articleID, &templateID, &extractedBy, &rec.Version, &status,
		&sections, &customFields, &completeness, &warnings, &reviewStatus, &synthesis,
		&modelUsed, &promptTokens, &completionTokens, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rec.ID, err = parseUUID(id, "extraction"); err != nil {
		return nil, err
	}
	if rec.ArticleID, err = parseUUID(articleID, "article"); err != nil {
		return nil, err
	}
	if rec.TemplateID, err = parseUUIDNull(templateID, "template"); err != nil {
		return nil, err
	}
	if rec.ExtractedBy, err = parseUUIDNull(extractedBy, "user"); err != nil {
		return nil, err
	}
	rec.Status = model.ExtractionStatus(status)
	rec.ModelUsed = modelUsed.String
	rec.PromptTokens = int(promptTokens.Int64)
	rec.CompletionTokens = int(completionTokens.Int64)

	if err := unmarshalSections(&rec, sections); err != nil {
		return nil, err
	}
	if customFields.Valid {
		if err := json.Unmarshal([]byte(customFields.String), &rec.CustomFields); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal custom fields")
		}
	}
	if completeness.Valid {
		rec.CompletenessSummary = &model.CompletenessSummary{}
		if err := json.Unmarshal([]byte(completeness.String), rec.CompletenessSummary); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal completeness")
		}
	}
	if warnings.Valid {
		if err := json.Unmarshal([]byte(warnings.String), &rec.ValidationWarnings); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal warnings")
		}
	}
	if reviewStatus.Valid {
		if err := json.Unmarshal([]byte(reviewStatus.String), &rec.FieldReviewStatus); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal review status")
		}
	}
	if synthesis.Valid {
		if err := json.Unmarshal([]byte(synthesis.String), &rec.Synthesis); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal synthesis")
		}
	}
	return &rec, nil
}

func scanCorrection(row scannable) (*model.Correction, error) {
	var c model.Correction
	var id, extractionID, userID string
	var original, corrected, ctype, rationale sql.NullString
	var applied bool

	err := row.Scan(
		&id, &extractionID, &userID, &c.FieldPath, &original,
		&corrected, &ctype, &rationale, &applied, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if c.ID, err = parseUUID(id, "correction"); err != nil {
		return nil, err
	}
	if c.ExtractionID, err = parseUUID(extractionID, "extraction"); err != nil {
		return nil, err
	}
	if c.UserID, err = parseUUID(userID, "user"); err != nil {
		return nil, err
	}
	c.CorrectionType = model.CorrectionType(ctype.String)
	c.Rationale = rationale.String
	c.AppliedToTraining = applied

	if original.Valid {
		c.OriginalValue = &model.ValueEnvelope{}
		if err := json.Unmarshal([]byte(original.String), c.OriginalValue); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal original value")
		}
	}
	if corrected.Valid {
		c.CorrectedValue = &model.ValueEnvelope{}
		if err := json.Unmarshal([]byte(corrected.String), c.CorrectedValue); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal corrected value")
		}
	}
	return &c, nil
}

func scanGrade(row scannable) (*model.GradeAssessment, error) {
	var a model.GradeAssessment
	var id, extractionID string
	var domains, factors []byte
	var certainty, rationale, overriddenBy, overrideReason sql.NullString

	err := row.Scan(
		&id, &extractionID, &a.OutcomeName, &domains, &factors,
		&certainty, &rationale, &a.IsOverridden, &overriddenBy, &overrideReason,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if a.ID, err = parseUUID(id, "grade assessment"); err != nil {
		return nil, err
	}
	if a.ExtractionID, err = parseUUID(extractionID, "extraction"); err != nil {
		return nil, err
	}
	a.OverallCertainty = model.Certainty(certainty.String)
	a.OverallRationale = rationale.String
	a.OverrideReason = overrideReason.String
	if a.OverriddenBy, err = parseUUIDNull(overriddenBy, "user"); err != nil {
		return nil, err
	}

	if err := applyGradeDomains(&a, domains); err != nil {
		return nil, err
	}
	if err := applyGradeFactors(&a, factors); err != nil {
		return nil, err
	}
	return &a, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
