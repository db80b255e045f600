package model

import (
	"time"

	"github.com/google/uuid"
)

// CorrectionType classifies what kind of edit a correction records.
type CorrectionType string

const (
	CorrectionValueChange      CorrectionType = "value_change"
	CorrectionMissingReason    CorrectionType = "missing_reason_change"
	CorrectionConfidenceChange CorrectionType = "confidence_change"
)

// ValueEnvelope wraps a corrected or original value so that a stored null
// value is distinguishable from a value that was never captured: a nil
// envelope means "not captured", an envelope with a nil Value means "no
// value".
type ValueEnvelope struct {
	Value any `json:"value"`
}

// Correction is one append-only ledger entry recording a human edit to an
// extracted field. The ledger is the audit trail, not the source of truth:
// the record's stored value remains authoritative for display, and a
// correction is expected to trigger a record update through the service
// layer.
type Correction struct {
	ID                uuid.UUID      `json:"id"`
	ExtractionID      uuid.UUID      `json:"extraction_id"`
	UserID            uuid.UUID      `json:"user_id"`
	FieldPath         string         `json:"field_path"`
	OriginalValue     *ValueEnvelope `json:"original_value"`
	CorrectedValue    *ValueEnvelope `json:"corrected_value"`
	CorrectionType    CorrectionType `json:"correction_type,omitempty"`
	Rationale         string         `json:"rationale,omitempty"`
	AppliedToTraining bool           `json:"applied_to_training"`
	CreatedAt         time.Time      `json:"created_at"`
}
