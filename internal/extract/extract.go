// Package extract turns producer output into stored extraction records:
// response parsing, confidence normalization, an optional verification pass,
// and initial review-status seeding.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/evidia/srex/internal/completeness"
	"github.com/evidia/srex/internal/model"
	"github.com/evidia/srex/internal/store"
	"github.com/evidia/srex/internal/validate"
)

// verifyThreshold is the fraction of low-confidence plus missing fields
// above which a verification pass runs.
const verifyThreshold = 0.2

// Request identifies the article and template for an extraction call.
type Request struct {
	ArticleID      uuid.UUID
	PDFPath        string
	TemplateSchema map[string]any
}

// VerifyRequest asks the producer to re-examine weak fields from an initial
// extraction.
type VerifyRequest struct {
	Request
	InitialExtraction map[string]any
	FieldsToVerify    []string
}

// Response is one producer call's output: raw text that should contain a
// JSON document, possibly fenced.
type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Producer runs the external model that reads a study PDF and returns
// structured section data.
type Producer interface {
	Extract(ctx context.Context, req Request) (*Response, error)
	Verify(ctx context.Context, req VerifyRequest) (*Response, error)
}

// Service orchestrates the extraction pipeline and persists the result.
type Service struct {
	store    store.Store
	producer Producer
}

// NewService creates an extraction service. Returns nil if either
// dependency is nil.
func NewService(st store.Store, p Producer) *Service {
	if st == nil || p == nil {
		return nil
	}
	return &Service{store: st, producer: p}
}

// NewIngestService creates a service that can only Ingest pre-produced
// payloads; Run is unavailable without a producer. Returns nil if the store
// is nil.
func NewIngestService(st store.Store) *Service {
	if st == nil {
		return nil
	}
	return &Service{store: st}
}

// RunRequest carries one extraction job.
type RunRequest struct {
	ArticleID      uuid.UUID
	UserID         uuid.UUID
	TemplateID     *uuid.UUID
	PDFPath        string
	TemplateSchema map[string]any
}

// Run executes the pipeline: extract, normalize, aggregate, optionally
// verify weak fields, validate, seed review status, and store the record as
// the article's next version. Producer failures surface to the caller;
// there is no retry here.
func (s *Service) Run(ctx context.Context, req RunRequest) (*model.ExtractionRecord, error) {
	if req.ArticleID == uuid.Nil {
		return nil, eris.New("extract: article id is required")
	}

	resp, err := s.producer.Extract(ctx, Request{
		ArticleID:      req.ArticleID,
		PDFPath:        req.PDFPath,
		TemplateSchema: req.TemplateSchema,
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: producer extract")
	}

	data := ParseResponse(resp.Text)
	Normalize(data)
	summary := completeness.ComputeData(data)

	promptTokens := resp.PromptTokens
	completionTokens := resp.CompletionTokens

	if needsVerification(summary) {
		weak := FieldsNeedingVerification(data)
		if len(weak) > 0 {
			vresp, verr := s.producer.Verify(ctx, VerifyRequest{
				Request: Request{
					ArticleID:      req.ArticleID,
					PDFPath:        req.PDFPath,
					TemplateSchema: req.TemplateSchema,
				},
				InitialExtraction: data,
				FieldsToVerify:    weak,
			})
			if verr != nil {
				// The initial pass stands on its own; a failed
				// verification is logged, not fatal.
				zap.L().Warn("verification pass failed, using initial extraction",
					zap.String("article_id", req.ArticleID.String()),
					zap.Error(verr))
			} else {
				MergeVerification(data, ParseResponse(vresp.Text))
				Normalize(data)
				summary = completeness.ComputeData(data)
				promptTokens += vresp.PromptTokens
				completionTokens += vresp.CompletionTokens
			}
		}
	}

	return s.storeRecord(ctx, storeParams{
		ArticleID:        req.ArticleID,
		UserID:           req.UserID,
		TemplateID:       req.TemplateID,
		Data:             data,
		Summary:          summary,
		Model:            resp.Model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	})
}

// IngestRequest carries a pre-produced extraction payload, typically a JSON
// document exported from another tool or an earlier run.
type IngestRequest struct {
	ArticleID  uuid.UUID
	UserID     uuid.UUID
	TemplateID *uuid.UUID
	Payload    map[string]any
	Model      string
}

// Ingest runs the pipeline tail on an existing payload: normalize,
// aggregate, validate, seed review status, and store as the article's next
// version. No producer call and no verification pass.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*model.ExtractionRecord, error) {
	if req.ArticleID == uuid.Nil {
		return nil, eris.New("extract: article id is required")
	}
	if req.Payload == nil {
		return nil, eris.New("extract: payload is required")
	}

	Normalize(req.Payload)
	summary := completeness.ComputeData(req.Payload)

	return s.storeRecord(ctx, storeParams{
		ArticleID:  req.ArticleID,
		UserID:     req.UserID,
		TemplateID: req.TemplateID,
		Data:       req.Payload,
		Summary:    summary,
		Model:      req.Model,
	})
}

type storeParams struct {
	ArticleID        uuid.UUID
	UserID           uuid.UUID
	TemplateID       *uuid.UUID
	Data             map[string]any
	Summary          *model.CompletenessSummary
	Model            string
	PromptTokens     int
	CompletionTokens int
}

func (s *Service) storeRecord(ctx context.Context, p storeParams) (*model.ExtractionRecord, error) {
	warnings := validate.Data(p.Data)
	reviewStatus := InitialReviewStatus(p.Data)

	version, err := s.store.NextVersion(ctx, p.ArticleID)
	if err != nil {
		return nil, eris.Wrap(err, "extract: next version")
	}

	now := time.Now().UTC()
	rec := &model.ExtractionRecord{
		ID:                  uuid.New(),
		ArticleID:           p.ArticleID,
		TemplateID:          p.TemplateID,
		Version:             version,
		Status:              model.ExtractionCompleted,
		CompletenessSummary: p.Summary,
		ValidationWarnings:  warnings,
		FieldReviewStatus:   reviewStatus,
		ModelUsed:           p.Model,
		PromptTokens:        p.PromptTokens,
		CompletionTokens:    p.CompletionTokens,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if p.UserID != uuid.Nil {
		rec.ExtractedBy = &p.UserID
	}
	for _, name := range model.SectionNames {
		if sec, ok := p.Data[name]; ok {
			rec.SetSection(name, sec)
		}
	}
	if cf, ok := p.Data["custom_fields"].(map[string]any); ok {
		rec.CustomFields = cf
	}

	if err := s.store.CreateExtraction(ctx, rec); err != nil {
		return nil, eris.Wrap(err, "extract: store record")
	}

	zap.L().Info("extraction stored",
		zap.String("article_id", p.ArticleID.String()),
		zap.Int("version", version),
		zap.Int("total_fields", p.Summary.TotalFields),
		zap.Int("warnings", len(warnings)))
	return rec, nil
}

func needsVerification(summary *model.CompletenessSummary) bool {
	total := summary.TotalFields
	if total < 1 {
		total = 1
	}
	return float64(summary.LowConfidence+summary.Missing)/float64(total) > verifyThreshold
}

// ParseResponse decodes the JSON document in a producer response, stripping
// a surrounding markdown code fence when present. Unparseable text yields
// an error payload instead of failing, so the record still captures what
// the producer said.
func ParseResponse(text string) map[string]any {
	text = strings.TrimSpace(text)

	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+7:]
		if j := strings.Index(rest, "```"); j >= 0 {
			text = strings.TrimSpace(rest[:j])
		}
	} else if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			text = strings.TrimSpace(rest[:j])
		}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		zap.L().Error("failed to parse extraction response",
			zap.String("prefix", prefix(text, 200)),
			zap.Error(err))
		return map[string]any{"error": "Failed to parse response", "raw_text": text}
	}
	return data
}

// Normalize walks the section data and repairs field metadata in place:
// confidence restricted to the three-level enum (defaulting to low for a
// present value, cleared for a missing one), missing_reason forced onto the
// enum for null values and cleared for non-null ones, quotes defaulted to
// an empty list.
func Normalize(data map[string]any) {
	for _, value := range data {
		switch v := value.(type) {
		case map[string]any:
			if isField(v) {
				normalizeField(v)
				continue
			}
			for _, sub := range v {
				switch sv := sub.(type) {
				case map[string]any:
					if _, ok := sv["value"]; ok {
						normalizeField(sv)
					} else {
						Normalize(sv)
					}
				}
			}
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					Normalize(m)
				}
			}
		}
	}
}

// isField distinguishes a field object from a section object that happens
// to hold a sub-field named "value": a field carries confidence or quotes
// alongside.
func isField(m map[string]any) bool {
	if _, ok := m["value"]; !ok {
		return false
	}
	_, hasConf := m["confidence"]
	_, hasQuotes := m["quotes"]
	return hasConf || hasQuotes
}

func normalizeField(f map[string]any) {
	conf, _ := f["confidence"].(string)
	if !model.Confidence(conf).Valid() {
		if f["value"] != nil {
			f["confidence"] = string(model.ConfidenceLow)
		} else {
			f["confidence"] = nil
		}
	}

	if f["value"] == nil {
		reason, _ := f["missing_reason"].(string)
		if !model.MissingReason(reason).Valid() {
			f["missing_reason"] = string(model.MissingNotReported)
		}
	} else {
		f["missing_reason"] = nil
	}

	if _, ok := f["quotes"]; !ok {
		f["quotes"] = []any{}
	}
}

// FieldsNeedingVerification lists dot-delimited paths of fields extracted
// at low confidence or marked unclear.
func FieldsNeedingVerification(data map[string]any) []string {
	return collectWeakFields(data, "")
}

func collectWeakFields(data map[string]any, prefix string) []string {
	var fields []string
	for key, val := range data {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch v := val.(type) {
		case map[string]any:
			if _, ok := v["value"]; ok {
				conf, _ := v["confidence"].(string)
				reason, _ := v["missing_reason"].(string)
				if conf == string(model.ConfidenceLow) || reason == string(model.MissingUnclear) {
					fields = append(fields, path)
				}
			} else {
				fields = append(fields, collectWeakFields(v, path)...)
			}
		case []any:
			for i, item := range v {
				if m, ok := item.(map[string]any); ok {
					fields = append(fields, collectWeakFields(m, fmt.Sprintf("%s.%d", path, i))...)
				}
			}
		}
	}
	return fields
}

// MergeVerification folds a verification pass into the original data in
// place. A field is replaced only when the verification improved its
// confidence or filled a previously missing value; sections and outcome
// lists merge recursively, by index for lists. Keys absent from the
// original are ignored.
func MergeVerification(original, verification map[string]any) {
	confOrder := map[string]int{"high": 3, "medium": 2, "low": 1}

	for key, val := range verification {
		orig, ok := original[key]
		if !ok {
			continue
		}
		switch v := val.(type) {
		case map[string]any:
			om, isMap := orig.(map[string]any)
			if !isMap {
				continue
			}
			_, vHasValue := v["value"]
			_, oHasValue := om["value"]
			if vHasValue && oHasValue {
				vConf, _ := v["confidence"].(string)
				oConf, _ := om["confidence"].(string)
				improved := confOrder[vConf] > confOrder[oConf]
				filled := om["value"] == nil && v["value"] != nil
				if improved || filled {
					original[key] = v
				}
			} else {
				MergeVerification(om, v)
			}
		case []any:
			ol, isList := orig.([]any)
			if !isList {
				continue
			}
			for i, item := range v {
				if i >= len(ol) {
					break
				}
				vm, okV := item.(map[string]any)
				o, okO := ol[i].(map[string]any)
				if okV && okO {
					MergeVerification(o, vm)
				}
			}
		}
	}
}

// InitialReviewStatus seeds the per-field review map: low-confidence and
// unclear fields start at needs_review, everything else at pending.
func InitialReviewStatus(data map[string]any) map[string]model.ReviewStatus {
	status := make(map[string]model.ReviewStatus)
	walkReviewStatus(data, "", status)
	return status
}

func walkReviewStatus(data map[string]any, prefix string, status map[string]model.ReviewStatus) {
	for key, val := range data {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch v := val.(type) {
		case map[string]any:
			if _, ok := v["value"]; ok {
				conf, _ := v["confidence"].(string)
				reason, _ := v["missing_reason"].(string)
				st := model.ReviewPending
				if conf == string(model.ConfidenceLow) || reason == string(model.MissingUnclear) {
					st = model.ReviewNeedsReview
				}
				status[path] = model.ReviewStatus{Status: st}
			} else {
				walkReviewStatus(v, path, status)
			}
		case []any:
			for i, item := range v {
				if m, ok := item.(map[string]any); ok {
					walkReviewStatus(m, fmt.Sprintf("%s.%d", path, i), status)
				}
			}
		}
	}
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
