package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/drought-risk-etl/internal/domain"
)

// Output file names.
const (
	PVIResultFile  = "pvi_result_final.csv"
	AssessmentFile = "region_assessment.csv"
	NewsCountsFile = "news_counts.csv"
	PVIInputFile   = "pvi_input_data.csv"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// WritePVIResult writes 도시, PVI_Score (weighted sum) and PVI_Final
// (rescaled score) per region.
func WritePVIResult(w io.Writer, scores []domain.RegionScore) error {
	rows := make([][]string, len(scores))
	for i, s := range scores {
		rows[i] = []string{s.RegionID, formatFloat(s.Raw), formatFloat(s.Score)}
	}
	return writeAll(w, []string{ColCity, ColPVIScore, ColPVIFinal}, rows)
}

// WritePVIInputs writes the merged indicator table in the layout
// ReadPVIInputs accepts.
func WritePVIInputs(w io.Writer, inputs []domain.RegionInputs) error {
	rows := make([][]string, len(inputs))
	for i, in := range inputs {
		rows[i] = []string{
			in.Region,
			formatFloat(in.SGI),
			formatFloat(in.PerCapitaUse),
			formatFloat(in.FarmlandPct),
			formatFloat(in.PenetrationPct),
			formatFloat(in.RevenueWaterPct),
		}
	}
	return writeAll(w, []string{ColCity, ColSGI, ColWaterUse, ColFarmland, ColPenetration, ColRevenueWater}, rows)
}

// WriteNewsCounts writes region, count.
func WriteNewsCounts(w io.Writer, counts []domain.ArticleCount) error {
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{c.Region, strconv.Itoa(c.Count)}
	}
	return writeAll(w, []string{"region", "count"}, rows)
}

// WriteSII writes region, count and SII score.
func WriteSII(w io.Writer, sii []domain.SocialInterest) error {
	rows := make([][]string, len(sii))
	for i, s := range sii {
		rows[i] = []string{s.Region, strconv.Itoa(s.Count), formatFloat(s.Score)}
	}
	return writeAll(w, []string{"region", "count", "SII"}, rows)
}

// WriteAssessment writes the full joined table, one row per catalog region.
func WriteAssessment(w io.Writer, a domain.Assessment) error {
	rows := make([][]string, len(a.Regions))
	for i, r := range a.Regions {
		rows[i] = []string{
			r.Region,
			r.FullName,
			strconv.FormatBool(r.HasIndicators),
			formatFloat(r.PVIRaw),
			formatFloat(r.PVI),
			strconv.Itoa(r.ArticleCount),
			formatFloat(r.SII),
			string(r.Category),
			r.Label,
			r.Category.Color(),
			formatFloat(r.Lat),
			formatFloat(r.Lon),
			r.GeoSource,
		}
	}
	return writeAll(w, []string{
		"region", "full_name", "has_indicators", "pvi_raw", "pvi", "article_count",
		"sii", "category", "label", "color", "lat", "lon", "geo_source",
	}, rows)
}

// WriteFile writes a table to path through a temporary file in the same
// directory, so readers never observe a partial file.
func WriteFile(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Sink writes every assessment to the output directory, replacing the
// previous run's files.
type Sink struct {
	dir    string
	logger *slog.Logger
}

// NewSink creates a CSV sink rooted at dir.
func NewSink(dir string, logger *slog.Logger) *Sink {
	return &Sink{dir: dir, logger: logger}
}

// Name identifies the sink in metrics and logs.
func (s *Sink) Name() string { return "csv" }

// Load writes the PVI result, the joined assessment and the news counts.
func (s *Sink) Load(ctx context.Context, a domain.Assessment) error {
	var scores []domain.RegionScore
	counts := make([]domain.ArticleCount, len(a.Regions))
	for i, r := range a.Regions {
		if r.HasIndicators {
			scores = append(scores, domain.RegionScore{RegionID: r.Region, Raw: r.PVIRaw, Score: r.PVI})
		}
		counts[i] = domain.ArticleCount{Region: r.Region, Count: r.ArticleCount}
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{PVIResultFile, func(w io.Writer) error { return WritePVIResult(w, scores) }},
		{AssessmentFile, func(w io.Writer) error { return WriteAssessment(w, a) }},
		{NewsCountsFile, func(w io.Writer) error { return WriteNewsCounts(w, counts) }},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := WriteFile(filepath.Join(s.dir, f.name), f.write); err != nil {
			return err
		}
	}
	s.logger.Info("assessment written", "dir", s.dir, "run_id", a.RunID)
	return nil
}
