package domain

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallCatalog() Catalog {
	return Catalog{
		Province: "강원특별자치도",
		Regions: []Region{
			{Name: "춘천", FullName: "춘천시"},
			{Name: "강릉", FullName: "강릉시"},
			{Name: "동해", FullName: "동해시"},
		},
		StationExcludes: []string{"포항동해"},
	}
}

func sampleInputs() IndicatorInputs {
	return IndicatorInputs{
		SGI: []SGIObservation{
			{StationCode: "1", StationName: "춘천신북", SGI: -1.0},
			{StationCode: "1", StationName: "춘천신북", SGI: -0.5},
			{StationCode: "2", StationName: "춘천동내", SGI: 0.0},
			{StationCode: "3", StationName: "강릉옥계", SGI: 0.6},
			{StationCode: "4", StationName: "동해삼화", SGI: 0.2},
			{StationCode: "9", StationName: "포항동해", SGI: -3.0},
			{StationCode: "5", StationName: "동해삼화", SGI: math.NaN()},
		},
		WaterSupply: []WaterSupplyStat{
			{Region: "춘천시", PerCapitaUse: 320, PenetrationPct: 98.5},
			{Region: "강릉시", PerCapitaUse: 350, PenetrationPct: 97},
			{Region: "동해시", PerCapitaUse: 300, PenetrationPct: 99},
			{Region: "춘천시", PerCapitaUse: 999, PenetrationPct: 1},
		},
		Farmland: []FarmlandRatio{
			{Region: "춘천시", RatioPct: 7.5},
			{Region: "강릉시", RatioPct: 9.1},
		},
		RevenueWater: []RevenueWaterRate{
			{Region: "강원특별자치도 춘천시", RatePct: 82},
			{Region: "강원특별자치도 강릉시", RatePct: 75},
			{Region: "강원특별자치도 동해시", RatePct: 70},
		},
	}
}

func TestMergeInputs(t *testing.T) {
	merged, missing := MergeInputs(smallCatalog(), sampleInputs())

	want := []RegionInputs{
		{Region: "춘천", SGI: -0.5, PerCapitaUse: 320, FarmlandPct: 7.5, PenetrationPct: 98.5, RevenueWaterPct: 82},
		{Region: "강릉", SGI: 0.6, PerCapitaUse: 350, FarmlandPct: 9.1, PenetrationPct: 97, RevenueWaterPct: 75},
	}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Fatalf("merged mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, missing, 1)
	assert.Equal(t, "동해", missing[0].Region)
	assert.Equal(t, []string{SourceFarmland}, missing[0].Sources)
}

func TestMergeInputs_AllSourcesMissing(t *testing.T) {
	merged, missing := MergeInputs(smallCatalog(), IndicatorInputs{})
	assert.Empty(t, merged)
	require.Len(t, missing, 3)
	assert.Equal(t, []string{SourceSGI, SourceWaterSupply, SourceFarmland, SourceRevenueWater}, missing[0].Sources)
}

func TestBuildIndicatorRows_Orientation(t *testing.T) {
	rows, _ := BuildIndicatorRows(smallCatalog(), sampleInputs())
	require.Len(t, rows, 2)

	chuncheon := rows[0]
	assert.Equal(t, "춘천", chuncheon.RegionID)
	assert.InDelta(t, 0.5, chuncheon.Exposure, 1e-12)
	assert.Equal(t, 320.0, chuncheon.Sensitivity1)
	assert.Equal(t, 7.5, chuncheon.Sensitivity2)
	assert.InDelta(t, 1.5, chuncheon.AdaptiveGap1, 1e-12)
	assert.InDelta(t, 18.0, chuncheon.AdaptiveGap2, 1e-12)
}

func TestStationsInCatalog(t *testing.T) {
	stations := []Station{
		{Code: "300", Name: "동해삼화"},
		{Code: "200", Name: "춘천동내"},
		{Code: "100", Name: "춘천신북"},
		{Code: "900", Name: "포항동해"},
		{Code: "500", Name: "청주오창"},
	}

	got := StationsInCatalog(smallCatalog(), stations)
	want := []Station{
		{Code: "100", Name: "춘천신북"},
		{Code: "200", Name: "춘천동내"},
		{Code: "300", Name: "동해삼화"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("stations mismatch (-want +got):\n%s", diff)
	}
}
