// Package storetest provides an in-memory Store for service tests.
package storetest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/evidia/srex/internal/model"
	"github.com/evidia/srex/internal/store"
)

// Memory implements store.Store with maps. Correction order is insertion
// order, matching the creation-order listing contract of the SQL stores.
type Memory struct {
	mu sync.Mutex

	extractions map[uuid.UUID]*model.ExtractionRecord
	corrections []*model.Correction
	grades      map[uuid.UUID]*model.GradeAssessment

	// Err, when set, is returned by every method. Lets tests exercise
	// error propagation without a second fake.
	Err error
}

// New returns an empty in-memory store.
func New() *Memory {
	return &Memory{
		extractions: make(map[uuid.UUID]*model.ExtractionRecord),
		grades:      make(map[uuid.UUID]*model.GradeAssessment),
	}
}

var _ store.Store = (*Memory)(nil)

func (m *Memory) CreateExtraction(_ context.Context, rec *model.ExtractionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	cp := *rec
	m.extractions[rec.ID] = &cp
	return nil
}

func (m *Memory) GetExtraction(_ context.Context, id uuid.UUID) (*model.ExtractionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	rec, ok := m.extractions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) ListExtractions(_ context.Context, articleID uuid.UUID) ([]model.ExtractionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []model.ExtractionRecord
	for _, rec := range m.extractions {
		if rec.ArticleID == articleID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (m *Memory) NextVersion(_ context.Context, articleID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	max := 0
	for _, rec := range m.extractions {
		if rec.ArticleID == articleID && rec.Version > max {
			max = rec.Version
		}
	}
	return max + 1, nil
}

func (m *Memory) UpdateExtraction(_ context.Context, rec *model.ExtractionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.extractions[rec.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *rec
	m.extractions[rec.ID] = &cp
	return nil
}

func (m *Memory) CreateCorrection(_ context.Context, c *model.Correction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	cp := *c
	m.corrections = append(m.corrections, &cp)
	return nil
}

func (m *Memory) ListCorrections(_ context.Context, extractionID uuid.UUID) ([]model.Correction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []model.Correction
	for _, c := range m.corrections {
		if c.ExtractionID == extractionID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *Memory) ListFieldCorrections(_ context.Context, extractionID uuid.UUID, fieldPath string) ([]model.Correction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []model.Correction
	for _, c := range m.corrections {
		if c.ExtractionID == extractionID && c.FieldPath == fieldPath {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *Memory) MarkCorrectionApplied(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, c := range m.corrections {
		if c.ID == id {
			c.AppliedToTraining = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *Memory) SetReviewStatus(_ context.Context, extractionID uuid.UUID, fieldPath string, rs model.ReviewStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	rec, ok := m.extractions[extractionID]
	if !ok {
		return store.ErrNotFound
	}
	if rec.FieldReviewStatus == nil {
		rec.FieldReviewStatus = make(map[string]model.ReviewStatus)
	}
	rec.FieldReviewStatus[fieldPath] = rs
	return nil
}

func (m *Memory) CreateGradeAssessment(_ context.Context, a *model.GradeAssessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	cp := *a
	m.grades[a.ID] = &cp
	return nil
}

func (m *Memory) GetGradeAssessment(_ context.Context, id uuid.UUID) (*model.GradeAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	a, ok := m.grades[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) ListGradeAssessments(_ context.Context, extractionID uuid.UUID) ([]model.GradeAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []model.GradeAssessment
	for _, a := range m.grades {
		if a.ExtractionID == extractionID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateGradeAssessment(_ context.Context, a *model.GradeAssessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.grades[a.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *a
	m.grades[a.ID] = &cp
	return nil
}

func (m *Memory) Migrate(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
