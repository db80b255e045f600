package review

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidia/srex/internal/model"
	"github.com/evidia/srex/internal/store/storetest"
)

func seedRecord(t *testing.T, mem *storetest.Memory) *model.ExtractionRecord {
	t.Helper()
	rec := &model.ExtractionRecord{
		ID:        uuid.New(),
		ArticleID: uuid.New(),
		Version:   1,
		Status:    model.ExtractionCompleted,
		Population: map[string]any{
			"sample_size": map[string]any{"value": float64(120), "confidence": "high"},
			"age_range":   map[string]any{"value": "40-65", "confidence": "medium"},
		},
		Funding: map[string]any{
			"source": map[string]any{"value": nil, "missing_reason": "not_reported"},
		},
	}
	require.NoError(t, mem.CreateExtraction(context.Background(), rec))
	return rec
}

func TestCycle_PendingToVerifiedAndBack(t *testing.T) {
	mem := storetest.New()
	rec := seedRecord(t, mem)
	svc := NewService(mem)
	ctx := context.Background()
	reviewer := uuid.New()

	want := []model.ReviewState{model.ReviewNeedsReview, model.ReviewVerified, model.ReviewPending}
	for _, w := range want {
		rs, err := svc.Cycle(ctx, rec.ID, "population.sample_size", reviewer)
		require.NoError(t, err)
		assert.Equal(t, w, rs.Status)
		require.NotNil(t, rs.ReviewedBy)
		assert.Equal(t, reviewer, *rs.ReviewedBy)
		assert.NotNil(t, rs.ReviewedAt)
	}

	got, err := mem.GetExtraction(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewPending, got.ReviewStatusFor("population.sample_size").Status)
}

func TestCycle_RequiresFieldPath(t *testing.T) {
	svc := NewService(storetest.New())
	_, err := svc.Cycle(context.Background(), uuid.New(), "", uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field path is required")
}

func TestCycle_UnknownExtraction(t *testing.T) {
	svc := NewService(storetest.New())
	_, err := svc.Cycle(context.Background(), uuid.New(), "population.sample_size", uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSet_Explicit(t *testing.T) {
	mem := storetest.New()
	rec := seedRecord(t, mem)
	svc := NewService(mem)
	ctx := context.Background()

	rs, err := svc.Set(ctx, rec.ID, "funding.source", model.ReviewVerified, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, model.ReviewVerified, rs.Status)

	got, err := mem.GetExtraction(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewVerified, got.ReviewStatusFor("funding.source").Status)
}

func TestSet_RejectsUnknownState(t *testing.T) {
	mem := storetest.New()
	rec := seedRecord(t, mem)
	svc := NewService(mem)

	_, err := svc.Set(context.Background(), rec.ID, "funding.source", model.ReviewState("done"), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown review state")
}

func TestProgress_SparseMapReadsPending(t *testing.T) {
	mem := storetest.New()
	rec := seedRecord(t, mem)
	svc := NewService(mem)
	ctx := context.Background()

	p, err := svc.ProgressFor(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.TotalFields)
	assert.Equal(t, 3, p.Pending)
	assert.Equal(t, 0, p.Verified)
	assert.Equal(t, float64(0), p.PercentVerified())
}

func TestProgress_CountsStates(t *testing.T) {
	mem := storetest.New()
	rec := seedRecord(t, mem)
	svc := NewService(mem)
	ctx := context.Background()
	reviewer := uuid.New()

	_, err := svc.Set(ctx, rec.ID, "population.sample_size", model.ReviewVerified, reviewer)
	require.NoError(t, err)
	_, err = svc.Set(ctx, rec.ID, "funding.source", model.ReviewNeedsReview, reviewer)
	require.NoError(t, err)

	p, err := svc.ProgressFor(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.TotalFields)
	assert.Equal(t, 1, p.Verified)
	assert.Equal(t, 1, p.NeedsReview)
	assert.Equal(t, 1, p.Pending)
	assert.InDelta(t, 33.33, p.PercentVerified(), 0.01)
}

func TestComputeProgress_StatusPathsOutsideWalk(t *testing.T) {
	rec := &model.ExtractionRecord{
		Population: map[string]any{
			"sample_size": map[string]any{"value": float64(10), "confidence": "high"},
		},
		FieldReviewStatus: map[string]model.ReviewStatus{
			"population.sample_size": {Status: model.ReviewVerified},
			"custom.extra_flag":      {Status: model.ReviewVerified},
		},
	}

	p := ComputeProgress(rec)
	assert.Equal(t, 1, p.TotalFields)
	assert.Equal(t, 2, p.Verified)
	assert.Equal(t, 0, p.Pending)
}
