package csvfile

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

func encodeCP949(t *testing.T, s string) []byte {
	t.Helper()
	b, err := korean.EUCKR.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return b
}

func TestDecode(t *testing.T) {
	const text = "시군,농경지비율(%)\n춘천시,12.5\n"

	tests := []struct {
		name string
		raw  []byte
	}{
		{"plain utf8", []byte(text)},
		{"utf8 with bom", append(append([]byte{}, utf8BOM...), text...)},
		{"cp949", encodeCP949(t, text)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, text, string(got))
		})
	}
}

func TestReadFarmland_CP949(t *testing.T) {
	raw := encodeCP949(t, "시군,농경지비율(%),비고\n춘천시,12.5,\n강릉시,\"1,020.0\",x\n,3,\n양구군,-,\n")

	got, err := ReadFarmland(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.FarmlandRatio{Region: "춘천시", RatioPct: 12.5}, got[0])
	assert.Equal(t, domain.FarmlandRatio{Region: "강릉시", RatioPct: 1020}, got[1])
	assert.Equal(t, "양구군", got[2].Region)
	assert.True(t, math.IsNaN(got[2].RatioPct))
}

func TestReadRevenueWater(t *testing.T) {
	got, err := ReadRevenueWater(strings.NewReader("\ufeff구분,유수율\n 속초시 , 85.2\n"))
	require.NoError(t, err)
	assert.Equal(t, []domain.RevenueWaterRate{{Region: "속초시", RatePct: 85.2}}, got)
}

func TestReadWaterSupply(t *testing.T) {
	got, err := ReadWaterSupply(strings.NewReader("시군별,1일1인당급수량,보급률\n원주시,310,99.1\n"))
	require.NoError(t, err)
	assert.Equal(t, []domain.WaterSupplyStat{{Region: "원주시", PerCapitaUse: 310, PenetrationPct: 99.1}}, got)
}

func TestRead_Errors(t *testing.T) {
	_, err := ReadFarmland(strings.NewReader("지역,비율\n춘천,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing columns 시군, 농경지비율(%)")

	_, err = ReadRevenueWater(strings.NewReader("구분,유수율\n춘천,abc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "유수율")

	_, err = ReadRevenueWater(strings.NewReader(""))
	assert.Error(t, err)
}

func TestPVIInputs_WriteThenRead(t *testing.T) {
	inputs := []domain.RegionInputs{
		{Region: "춘천", SGI: -0.5, PerCapitaUse: 320.5, FarmlandPct: 12, PenetrationPct: 98.5, RevenueWaterPct: 85},
		{Region: "강릉", SGI: 1.25, PerCapitaUse: 290, FarmlandPct: 8.5, PenetrationPct: 97, RevenueWaterPct: 80.1},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePVIInputs(&buf, inputs))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))

	got, err := ReadPVIInputs(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(inputs, got); diff != "" {
		t.Errorf("inputs mismatch (-want +got):\n%s", diff)
	}
}

func TestReadPVIInputs_EmptyValue(t *testing.T) {
	_, err := ReadPVIInputs(strings.NewReader("도시,SGI,생활용수,농경지,보급률,유수율\n춘천,0.1,300,,98,85\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2 (춘천): column 농경지 is empty")
}

func TestReadNewsCounts(t *testing.T) {
	got, err := ReadNewsCounts(strings.NewReader("region,count\n춘천,4\n강릉,0\n"))
	require.NoError(t, err)
	assert.Equal(t, []domain.ArticleCount{{Region: "춘천", Count: 4}, {Region: "강릉", Count: 0}}, got)

	_, err = ReadNewsCounts(strings.NewReader("region,count\n춘천,many\n"))
	assert.Error(t, err)
}

func TestWritePVIResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePVIResult(&buf, []domain.RegionScore{
		{RegionID: "춘천", Raw: 0.25, Score: 0},
		{RegionID: "강릉", Raw: 0.75, Score: 1},
	}))
	assert.Equal(t, "\ufeff도시,PVI_Score,PVI_Final\n춘천,0.25,0\n강릉,0.75,1\n", buf.String())

	got, err := ReadPVIResult(&buf)
	require.NoError(t, err)
	assert.Equal(t, []domain.RegionScore{
		{RegionID: "춘천", Raw: 0.25, Score: 0},
		{RegionID: "강릉", Raw: 0.75, Score: 1},
	}, got)
}

func TestReadPVIResult_EmptyScore(t *testing.T) {
	_, err := ReadPVIResult(strings.NewReader("도시,PVI_Score,PVI_Final\n춘천,0.2,\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2 (춘천)")
}

func TestReadFile(t *testing.T) {
	_, err := ReadFile("", ReadFarmland)
	assert.ErrorIs(t, err, ErrNoPath)

	_, err = ReadFile(filepath.Join(t.TempDir(), "absent.csv"), ReadFarmland)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSink_Load(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink := NewSink(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, "csv", sink.Name())

	a := domain.Assessment{
		RunID:      "run-1",
		ComputedAt: time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC),
		Regions: []domain.RegionAssessment{
			{Region: "춘천", FullName: "춘천시", HasIndicators: true, PVIRaw: 0.4, PVI: 1, ArticleCount: 7, SII: 1,
				Category: domain.CategoryKnownDanger, Label: domain.CategoryKnownDanger.Label()},
			{Region: "양구", FullName: "양구군", ArticleCount: 0, Category: domain.CategorySafe, Label: domain.CategorySafe.Label()},
		},
	}
	require.NoError(t, sink.Load(context.Background(), a))

	pvi, err := os.ReadFile(filepath.Join(dir, PVIResultFile))
	require.NoError(t, err)
	assert.Equal(t, "\ufeff도시,PVI_Score,PVI_Final\n춘천,0.4,1\n", string(pvi))

	counts, err := ReadFile(filepath.Join(dir, NewsCountsFile), ReadNewsCounts)
	require.NoError(t, err)
	assert.Equal(t, []domain.ArticleCount{{Region: "춘천", Count: 7}, {Region: "양구", Count: 0}}, counts)

	joined, err := os.ReadFile(filepath.Join(dir, AssessmentFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(joined)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "춘천,춘천시,true,0.4,1,7,1,known_danger,"))
	assert.Contains(t, lines[1], "#FFA500")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temporary files left behind")
}
