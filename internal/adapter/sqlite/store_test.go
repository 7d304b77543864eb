package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "drought.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func assessmentAt(runID string, at time.Time, chuncheonPVI float64) domain.Assessment {
	return domain.Assessment{
		RunID:        runID,
		ComputedAt:   at,
		Weights:      domain.Weights{0.4, 0.3, 0.1, 0.1, 0.1},
		Entropy:      [domain.IndicatorCount]float64{0.5, 0.6, 0.9, 0.9, 0.9},
		PVIThreshold: 0.5,
		SIIThreshold: 0.3,
		Missing:      []domain.MissingIndicators{{Region: "양구", Sources: []string{domain.SourceSGI}}},
		Regions: []domain.RegionAssessment{
			{Region: "춘천", FullName: "춘천시", HasIndicators: true, PVIRaw: 0.3, PVI: chuncheonPVI,
				ArticleCount: 12, SII: 1, Category: domain.CategoryKnownDanger, Label: "알려진 위험",
				Lat: 37.88, Lon: 127.73, GeoSource: "forward", Confidence: 0.9},
			{Region: "양구", FullName: "양구군", Category: domain.CategorySafe, Label: "안전"},
		},
	}
}

func TestStore_LatestAssessment_Empty(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LatestAssessment(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveAndLoadLatest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2025, time.November, 1, 9, 0, 0, 0, time.UTC)

	older := assessmentAt("run-1", t0, 0.7)
	newer := assessmentAt("run-2", t0.Add(24*time.Hour), 0.8)
	require.NoError(t, s.SaveAssessment(ctx, newer))
	require.NoError(t, s.Load(ctx, older))
	assert.Equal(t, "sqlite", s.Name())

	got, err := s.LatestAssessment(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(newer, got); diff != "" {
		t.Errorf("latest mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SaveReplacesSameRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, time.November, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveAssessment(ctx, assessmentAt("run-1", at, 0.7)))
	require.NoError(t, s.SaveAssessment(ctx, assessmentAt("run-1", at, 0.9)))

	got, err := s.LatestAssessment(ctx)
	require.NoError(t, err)
	require.Len(t, got.Regions, 2)
	assert.Equal(t, 0.9, got.Regions[0].PVI)
}

func TestStore_RegionHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2025, time.November, 1, 9, 0, 0, 0, time.UTC)

	for i, pvi := range []float64{0.5, 0.6, 0.7} {
		runID := []string{"run-a", "run-b", "run-c"}[i]
		require.NoError(t, s.SaveAssessment(ctx, assessmentAt(runID, t0.Add(time.Duration(i)*time.Hour), pvi)))
	}

	hist, err := s.RegionHistory(ctx, "춘천", 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "run-c", hist[0].RunID)
	assert.Equal(t, 0.7, hist[0].PVI)
	assert.Equal(t, t0.Add(2*time.Hour), hist[0].ComputedAt)
	assert.Equal(t, "run-b", hist[1].RunID)

	none, err := s.RegionHistory(ctx, "없음", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
