package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	"github.com/couchcryptid/drought-risk-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSources struct {
	inputs    domain.IndicatorInputs
	sgiErr    error
	supplyErr error
	from, to  string
	year      string
}

func (s *stubSources) CollectSGI(_ context.Context, _ domain.Catalog, from, to string) ([]domain.SGIObservation, error) {
	s.from, s.to = from, to
	return s.inputs.SGI, s.sgiErr
}

func (s *stubSources) WaterSupply(_ context.Context, year string) ([]domain.WaterSupplyStat, error) {
	s.year = year
	return s.inputs.WaterSupply, s.supplyErr
}

func (s *stubSources) Farmland(_ context.Context) ([]domain.FarmlandRatio, error) {
	return s.inputs.Farmland, nil
}

func (s *stubSources) RevenueWater(_ context.Context) ([]domain.RevenueWaterRate, error) {
	return s.inputs.RevenueWater, nil
}

func newTestCollector(s *stubSources) *pipeline.Collector {
	cfg := pipeline.CollectorConfig{Catalog: testCatalog(), SGIFrom: "20240501", SGITo: "20240930", KOSISYear: "2023"}
	return pipeline.NewCollector(cfg, s, s, s, s, discardLogger())
}

func TestCollector_Collect(t *testing.T) {
	s := &stubSources{inputs: testInputs()}

	got, err := newTestCollector(s).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, testInputs(), got)
	assert.Equal(t, "20240501", s.from)
	assert.Equal(t, "20240930", s.to)
	assert.Equal(t, "2023", s.year)
}

func TestCollector_SourceFailure(t *testing.T) {
	s := &stubSources{inputs: testInputs(), supplyErr: errors.New("kosis 500")}

	_, err := newTestCollector(s).Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collect water supply: kosis 500")
}
