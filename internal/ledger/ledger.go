// Package ledger records human corrections to extracted fields as an
// append-only audit trail and applies them to the owning record.
package ledger

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/evidia/srex/internal/completeness"
	"github.com/evidia/srex/internal/model"
	"github.com/evidia/srex/internal/store"
)

// SubmitRequest carries one correction to record. CorrectedValue is
// mandatory; a nil envelope is a caller contract violation, distinct from an
// envelope wrapping a nil value (which records "the field has no value").
type SubmitRequest struct {
	ExtractionID   uuid.UUID
	UserID         uuid.UUID
	FieldPath      string
	OriginalValue  *model.ValueEnvelope
	CorrectedValue *model.ValueEnvelope
	CorrectionType model.CorrectionType
	Rationale      string
}

// Service writes and reads the correction ledger. Entries are insert-only:
// a resubmission for the same field path appends a new entry, it never
// rewrites history.
type Service struct {
	store store.Store
}

// NewService creates a ledger service. Returns nil if st is nil.
func NewService(st store.Store) *Service {
	if st == nil {
		return nil
	}
	return &Service{store: st}
}

// Submit validates the request, appends a ledger entry, then writes the
// corrected value back into the extraction record and refreshes its
// completeness summary. Submitting a correction does not change the field's
// review status; verification stays a separate reviewer action.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*model.Correction, error) {
	if req.CorrectedValue == nil {
		return nil, eris.New("ledger: corrected value envelope is required")
	}
	if req.FieldPath == "" {
		return nil, eris.New("ledger: field path is required")
	}
	if req.ExtractionID == uuid.Nil {
		return nil, eris.New("ledger: extraction id is required")
	}
	if req.CorrectionType != "" {
		switch req.CorrectionType {
		case model.CorrectionValueChange, model.CorrectionMissingReason, model.CorrectionConfidenceChange:
		default:
			return nil, eris.Errorf("ledger: unknown correction type %q", req.CorrectionType)
		}
	}

	rec, err := s.store.GetExtraction(ctx, req.ExtractionID)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: load extraction")
	}

	original := req.OriginalValue
	if original == nil {
		if cur, ok := lookupValue(rec, req.FieldPath); ok {
			original = &model.ValueEnvelope{Value: cur}
		}
	}

	c := &model.Correction{
		ID:             uuid.New(),
		ExtractionID:   req.ExtractionID,
		UserID:         req.UserID,
		FieldPath:      req.FieldPath,
		OriginalValue:  original,
		CorrectedValue: req.CorrectedValue,
		CorrectionType: req.CorrectionType,
		Rationale:      req.Rationale,
		CreatedAt:      time.Now().UTC(),
	}
	if c.CorrectionType == "" {
		c.CorrectionType = model.CorrectionValueChange
	}

	if err := s.store.CreateCorrection(ctx, c); err != nil {
		return nil, eris.Wrap(err, "ledger: append correction")
	}

	if applyValue(rec, req.FieldPath, req.CorrectedValue.Value) {
		rec.CompletenessSummary = completeness.Compute(rec)
		rec.UpdatedAt = c.CreatedAt
		if err := s.store.UpdateExtraction(ctx, rec); err != nil {
			return nil, eris.Wrap(err, "ledger: write corrected record")
		}
	} else {
		zap.L().Warn("correction path not present in record",
			zap.String("extraction_id", req.ExtractionID.String()),
			zap.String("field_path", req.FieldPath))
	}

	zap.L().Info("correction recorded",
		zap.String("extraction_id", req.ExtractionID.String()),
		zap.String("field_path", req.FieldPath),
		zap.String("type", string(c.CorrectionType)))
	return c, nil
}

// CorrectionsFor lists the ledger entries for one field path in creation
// order, oldest first, so a history view reads original-to-corrected
// chronologically.
func (s *Service) CorrectionsFor(ctx context.Context, extractionID uuid.UUID, fieldPath string) ([]model.Correction, error) {
	cs, err := s.store.ListFieldCorrections(ctx, extractionID, fieldPath)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list field corrections")
	}
	return cs, nil
}

// History lists every ledger entry for an extraction, oldest first.
func (s *Service) History(ctx context.Context, extractionID uuid.UUID) ([]model.Correction, error) {
	cs, err := s.store.ListCorrections(ctx, extractionID)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list corrections")
	}
	return cs, nil
}

// HasCorrectionHistory reports whether at least one ledger entry exists for
// the field path. The flag is display-only; completeness tallies ignore it.
func (s *Service) HasCorrectionHistory(ctx context.Context, extractionID uuid.UUID, fieldPath string) (bool, error) {
	cs, err := s.CorrectionsFor(ctx, extractionID, fieldPath)
	if err != nil {
		return false, err
	}
	return len(cs) > 0, nil
}

// FieldAt resolves a dot-delimited field path to its field envelope. Legacy
// scalar entries come back wrapped as a value-only field. Returns false when
// the path does not resolve.
func FieldAt(rec *model.ExtractionRecord, path string) (model.ExtractedField, bool) {
	parent, key, ok := resolveParent(rec, path)
	if !ok {
		return model.ExtractedField{}, false
	}
	entry, ok := childOf(parent, key)
	if !ok {
		return model.ExtractedField{}, false
	}
	return model.AsField(entry), true
}

// lookupValue resolves a dot-delimited field path against the record and
// returns the current stored value. For a field-shaped entry the inner value
// is returned; a legacy scalar is returned as-is.
func lookupValue(rec *model.ExtractionRecord, path string) (any, bool) {
	parent, key, ok := resolveParent(rec, path)
	if !ok {
		return nil, false
	}
	entry, ok := childOf(parent, key)
	if !ok {
		return nil, false
	}
	if model.IsFieldShaped(entry) {
		return entry.(map[string]any)["value"], true
	}
	return entry, true
}

// applyValue writes v into the record at the field path. A field-shaped
// entry keeps its metadata and gets its value replaced, with the
// value/missing_reason exclusivity restored; anything else is replaced
// wholesale. Returns false when the path does not resolve.
func applyValue(rec *model.ExtractionRecord, path string, v any) bool {
	parent, key, ok := resolveParent(rec, path)
	if !ok {
		return false
	}
	entry, ok := childOf(parent, key)
	if !ok {
		return false
	}

	if fm, isField := entry.(map[string]any); isField && model.IsFieldShaped(entry) {
		fm["value"] = v
		if v != nil {
			delete(fm, "missing_reason")
		} else if _, has := fm["missing_reason"]; !has {
			fm["missing_reason"] = string(model.MissingNotReported)
		}
		return true
	}
	return setChild(parent, key, v)
}

// resolveParent walks the path down to the container holding the final
// segment. The first segment names a fixed section or a custom field.
func resolveParent(rec *model.ExtractionRecord, path string) (parent any, key string, ok bool) {
	segs := strings.Split(path, ".")
	if len(segs) == 0 || segs[0] == "" {
		return nil, "", false
	}

	var cur any
	if sec, found := rec.Sections()[segs[0]]; found {
		cur = sec
	} else if cf, found := rec.CustomFields[segs[0]]; found {
		cur = cf
	} else {
		return nil, "", false
	}
	if len(segs) == 1 {
		// Path names a whole section; not a correctable field.
		return nil, "", false
	}

	for _, seg := range segs[1 : len(segs)-1] {
		next, found := childOf(cur, seg)
		if !found {
			return nil, "", false
		}
		cur = next
	}
	return cur, segs[len(segs)-1], true
}

func childOf(container any, key string) (any, bool) {
	switch c := container.(type) {
	case map[string]any:
		v, ok := c[key]
		return v, ok
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(c) {
			return nil, false
		}
		return c[i], true
	}
	return nil, false
}

func setChild(container any, key string, v any) bool {
	switch c := container.(type) {
	case map[string]any:
		c[key] = v
		return true
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(c) {
			return false
		}
		c[i] = v
		return true
	}
	return false
}
