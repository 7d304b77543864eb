package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleAssessment(t *testing.T) {
	fixed := time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	catalog := Catalog{
		Province: "강원특별자치도",
		Regions: []Region{
			{Name: "A", FullName: "A시"},
			{Name: "B", FullName: "B시"},
			{Name: "C", FullName: "C군"},
			{Name: "D", FullName: "D군"},
		},
	}
	index, err := ComputeIndex(scenarioRows())
	require.NoError(t, err)

	counts := []ArticleCount{
		{Region: "A", Count: 3},
		{Region: "B시", Count: 40},
		{Region: "C", Count: 0},
	}

	a, err := AssembleAssessment(catalog, index, counts, ThresholdPolicy{})
	require.NoError(t, err)

	_, err = uuid.Parse(a.RunID)
	require.NoError(t, err)
	assert.Equal(t, fixed, a.ComputedAt)
	assert.Equal(t, index.Weights, a.Weights)
	require.Len(t, a.Regions, 4)

	d, ok := a.Region("D")
	require.True(t, ok)
	assert.False(t, d.HasIndicators)
	assert.Equal(t, 0.0, d.PVI)
	assert.Equal(t, 0, d.ArticleCount)

	b, _ := a.Region("B")
	assert.Equal(t, 40, b.ArticleCount, "counts keyed by full name are normalized")
	assert.Equal(t, 1.0, b.SII)

	// PVI: A≈0.333, B=0, C=1, D=0 -> median ≈ 0.1667
	assert.InDelta(t, 0.3333333/2, a.PVIThreshold, 1e-6)

	c, _ := a.Region("C")
	assert.Equal(t, CategoryLatentRisk, c.Category)
	assert.Equal(t, "잠재적 위험", c.Label)
	assert.Equal(t, CategoryObservationNeeded, b.Category)

	aa, _ := a.Region("A")
	assert.Equal(t, CategoryKnownDanger, aa.Category)
	assert.Equal(t, CategorySafe, d.Category)

	counted := a.CategoryCounts()
	assert.Equal(t, 1, counted[CategoryLatentRisk])
	assert.Equal(t, 1, counted[CategorySafe])
}

func TestAssembleAssessment_FixedThresholds(t *testing.T) {
	catalog := Catalog{Regions: []Region{{Name: "A"}, {Name: "B"}, {Name: "C"}}}
	index, err := ComputeIndex(scenarioRows())
	require.NoError(t, err)

	pvi, sii := 0.9, 0.0
	a, err := AssembleAssessment(catalog, index, nil, ThresholdPolicy{PVI: &pvi, SII: &sii})
	require.NoError(t, err)

	assert.Equal(t, 0.9, a.PVIThreshold)
	assert.Equal(t, 0.0, a.SIIThreshold)
	c, _ := a.Region("C")
	assert.Equal(t, CategoryKnownDanger, c.Category, "SII 0 meets a 0 threshold")
	aa, _ := a.Region("A")
	assert.Equal(t, CategoryObservationNeeded, aa.Category)
}

func TestAssembleAssessment_InvalidThreshold(t *testing.T) {
	bad := 2.0
	_, err := AssembleAssessment(DefaultCatalog(), IndexResult{}, nil, ThresholdPolicy{PVI: &bad})
	var invalid *InvalidInputError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "threshold", invalid.Field)
}
