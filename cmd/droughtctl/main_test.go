package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/couchcryptid/drought-risk-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pviInput = `도시,SGI,생활용수,농경지,보급률,유수율
춘천,-0.5,280,12.5,98.1,85.2
강릉,-1.8,330,9.0,96.4,72.0
양구,0.4,250,7.1,91.0,80.4
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readScores(t *testing.T, path string) []domain.RegionScore {
	t.Helper()
	scores, err := csvfile.ReadFile(path, csvfile.ReadPVIResult)
	require.NoError(t, err)
	return scores
}

func TestPVICommand(t *testing.T) {
	dir := t.TempDir()
	in := writeTemp(t, dir, "pvi_input_data.csv", pviInput)
	out := filepath.Join(dir, "pvi_result_final.csv")

	stdout, err := execute(t, "pvi", "--input", in, "--output", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 3 regions")
	assert.Contains(t, stdout, "exposure")

	scores := readScores(t, out)
	require.Len(t, scores, 3)
	assert.Equal(t, []string{"춘천", "강릉", "양구"}, []string{scores[0].RegionID, scores[1].RegionID, scores[2].RegionID})

	lo, hi := scores[0].Score, scores[0].Score
	for _, s := range scores {
		lo = min(lo, s.Score)
		hi = max(hi, s.Score)
	}
	assert.InDelta(t, 0, lo, 1e-12)
	assert.InDelta(t, 1, hi, 1e-12)
	// 강릉 is the driest, heaviest user with the leakiest network.
	assert.InDelta(t, 1, scores[1].Score, 1e-12)
}

func TestPVICommand_TooFewRegions(t *testing.T) {
	dir := t.TempDir()
	in := writeTemp(t, dir, "in.csv", "도시,SGI,생활용수,농경지,보급률,유수율\n춘천,-0.5,280,12.5,98.1,85.2\n")

	_, err := execute(t, "pvi", "--input", in, "--output", filepath.Join(dir, "out.csv"))
	require.Error(t, err)
	var invalid *domain.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
	assert.NoFileExists(t, filepath.Join(dir, "out.csv"))
}

func TestSIICommand(t *testing.T) {
	dir := t.TempDir()
	in := writeTemp(t, dir, "news.csv", "region,count\n춘천,0\n강릉,99\n양구,9\n")
	out := filepath.Join(dir, "sii.csv")

	_, err := execute(t, "sii", "--input", in, "--output", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff")), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "region,count,SII", lines[0])
	assert.Equal(t, "춘천,0,0", lines[1])
	assert.Equal(t, "강릉,99,1", lines[2])
	// log1p(9) is half of log1p(99).
	require.True(t, strings.HasPrefix(lines[3], "양구,9,"))
	sii, err := strconv.ParseFloat(strings.TrimPrefix(lines[3], "양구,9,"), 64)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, sii, 1e-12)
}

func TestClassifyCommand(t *testing.T) {
	dir := t.TempDir()
	catalog := writeTemp(t, dir, "regions.yaml", `province: 강원특별자치도
regions:
  - {name: 춘천, full_name: 춘천시}
  - {name: 강릉, full_name: 강릉시}
  - {name: 양구, full_name: 양구군}
  - {name: 고성, full_name: 고성군}
`)
	pvi := writeTemp(t, dir, "pvi.csv", "도시,PVI_Score,PVI_Final\n춘천,0.1,0\n강릉,0.9,1\n양구,0.6,0.7\n")
	news := writeTemp(t, dir, "news.csv", "region,count\n춘천시,99\n강릉,0\n")
	out := filepath.Join(dir, "assessment.csv")

	stdout, err := execute(t, "classify", "--regions", catalog, "--pvi", pvi, "--news", news,
		"--output", out, "--pvi-threshold", "0.5", "--sii-threshold", "0.5")
	require.NoError(t, err)
	assert.Contains(t, stdout, "thresholds: pvi=0.5000 sii=0.5000")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, "춘천,춘천시,true,0.1,0,99,1,observation_needed,")
	assert.Contains(t, body, "강릉,강릉시,true,0.9,1,0,0,latent_risk,")
	assert.Contains(t, body, "양구,양구군,true,0.6,0.7,0,0,latent_risk,")
	// 고성 has no PVI row and no articles.
	assert.Contains(t, body, "고성,고성군,false,0,0,0,0,safe,")
}

func TestClassifyCommand_InvalidThreshold(t *testing.T) {
	dir := t.TempDir()
	pvi := writeTemp(t, dir, "pvi.csv", "도시,PVI_Score,PVI_Final\n춘천,0.1,0\n강릉,0.9,1\n")

	_, err := execute(t, "classify", "--pvi", pvi, "--output", filepath.Join(dir, "a.csv"), "--pvi-threshold", "1.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside [0, 1]")
}

func TestNewsCommand_RejectsBadRange(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad from", []string{"--from", "20250501", "--to", "2025-05-02"}, "invalid --from"},
		{"bad to", []string{"--from", "2025-05-01", "--to", "May 2"}, "invalid --to"},
		{"reversed", []string{"--from", "2025-05-02", "--to", "2025-05-01"}, "before --from"},
		{"missing", []string{"--from", "2025-05-01"}, "required flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"news"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseRange(t *testing.T) {
	from, to, err := parseRange("2025-05-01", "2025-05-01")
	require.NoError(t, err)
	assert.True(t, from.Equal(to))
}
