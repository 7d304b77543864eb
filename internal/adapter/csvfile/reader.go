// Package csvfile reads the local indicator extracts and writes the
// assessment tables. Inputs may be UTF-8 (with or without a byte order
// mark) or CP949/EUC-KR, as exported by Korean spreadsheet tools. Outputs are
// always UTF-8 with a byte order mark so spreadsheets open them correctly.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	"golang.org/x/text/encoding/korean"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Column headers of the known extracts.
const (
	ColCity         = "도시"
	ColSGI          = "SGI"
	ColWaterUse     = "생활용수"
	ColFarmland     = "농경지"
	ColPenetration  = "보급률"
	ColRevenueWater = "유수율"
	ColPVIScore     = "PVI_Score"
	ColPVIFinal     = "PVI_Final"

	colFarmRegion    = "시군"
	colFarmRatio     = "농경지비율(%)"
	colRevenueRegion = "구분"
	colSupplyRegion  = "시군별"
	colSupplyPerCap  = "1일1인당급수량"
)

// Decode converts raw file content to UTF-8. A leading byte order mark is
// dropped; content that is not valid UTF-8 is decoded as CP949, which is a
// superset of EUC-KR.
func Decode(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return data[len(utf8BOM):], nil
	}
	if utf8.Valid(data) {
		return data, nil
	}
	out, err := korean.EUCKR.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode cp949: %w", err)
	}
	return out, nil
}

// table is a decoded CSV file with a header row.
type table struct {
	name   string
	header map[string]int
	rows   [][]string
}

func readTable(name string, r io.Reader) (*table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	data, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse %s: empty file", name)
	}

	t := &table{name: name, header: make(map[string]int, len(records[0])), rows: records[1:]}
	for i, h := range records[0] {
		t.header[strings.TrimSpace(h)] = i
	}
	return t, nil
}

func (t *table) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := t.header[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: missing columns %s", t.name, strings.Join(missing, ", "))
	}
	return nil
}

func (t *table) str(row []string, col string) string {
	i := t.header[col]
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// num parses a numeric cell. Thousands separators are ignored; blank and "-"
// cells are NaN so the merge treats them as absent.
func (t *table) num(row []string, col string) (float64, error) {
	s := strings.ReplaceAll(t.str(row, col), ",", "")
	if s == "" || s == "-" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: column %s: %w", t.name, col, err)
	}
	return v, nil
}

// ReadFarmland parses the farmland area extract (시군, 농경지비율(%)).
func ReadFarmland(r io.Reader) ([]domain.FarmlandRatio, error) {
	t, err := readTable("farmland", r)
	if err != nil {
		return nil, err
	}
	if err := t.require(colFarmRegion, colFarmRatio); err != nil {
		return nil, err
	}
	out := make([]domain.FarmlandRatio, 0, len(t.rows))
	for _, row := range t.rows {
		region := t.str(row, colFarmRegion)
		if region == "" {
			continue
		}
		v, err := t.num(row, colFarmRatio)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.FarmlandRatio{Region: region, RatioPct: v})
	}
	return out, nil
}

// ReadRevenueWater parses the revenue water extract (구분, 유수율).
func ReadRevenueWater(r io.Reader) ([]domain.RevenueWaterRate, error) {
	t, err := readTable("revenue water", r)
	if err != nil {
		return nil, err
	}
	if err := t.require(colRevenueRegion, ColRevenueWater); err != nil {
		return nil, err
	}
	out := make([]domain.RevenueWaterRate, 0, len(t.rows))
	for _, row := range t.rows {
		region := t.str(row, colRevenueRegion)
		if region == "" {
			continue
		}
		v, err := t.num(row, ColRevenueWater)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.RevenueWaterRate{Region: region, RatePct: v})
	}
	return out, nil
}

// ReadWaterSupply parses a water supply extract (시군별, 1일1인당급수량,
// 보급률), the offline form of the KOSIS statistics.
func ReadWaterSupply(r io.Reader) ([]domain.WaterSupplyStat, error) {
	t, err := readTable("water supply", r)
	if err != nil {
		return nil, err
	}
	if err := t.require(colSupplyRegion, colSupplyPerCap, ColPenetration); err != nil {
		return nil, err
	}
	out := make([]domain.WaterSupplyStat, 0, len(t.rows))
	for _, row := range t.rows {
		region := t.str(row, colSupplyRegion)
		if region == "" {
			continue
		}
		perCap, err := t.num(row, colSupplyPerCap)
		if err != nil {
			return nil, err
		}
		pen, err := t.num(row, ColPenetration)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.WaterSupplyStat{Region: region, PerCapitaUse: perCap, PenetrationPct: pen})
	}
	return out, nil
}

// ReadPVIInputs parses a merged indicator table
// (도시, SGI, 생활용수, 농경지, 보급률, 유수율). Every value must be present.
func ReadPVIInputs(r io.Reader) ([]domain.RegionInputs, error) {
	t, err := readTable("pvi input", r)
	if err != nil {
		return nil, err
	}
	if err := t.require(ColCity, ColSGI, ColWaterUse, ColFarmland, ColPenetration, ColRevenueWater); err != nil {
		return nil, err
	}

	out := make([]domain.RegionInputs, 0, len(t.rows))
	for n, row := range t.rows {
		in := domain.RegionInputs{Region: t.str(row, ColCity)}
		if in.Region == "" {
			continue
		}
		for col, dst := range map[string]*float64{
			ColSGI:          &in.SGI,
			ColWaterUse:     &in.PerCapitaUse,
			ColFarmland:     &in.FarmlandPct,
			ColPenetration:  &in.PenetrationPct,
			ColRevenueWater: &in.RevenueWaterPct,
		} {
			v, err := t.num(row, col)
			if err != nil {
				return nil, err
			}
			if math.IsNaN(v) {
				return nil, fmt.Errorf("pvi input: row %d (%s): column %s is empty", n+2, in.Region, col)
			}
			*dst = v
		}
		out = append(out, in)
	}
	return out, nil
}

// ReadNewsCounts parses a news count table (region, count).
func ReadNewsCounts(r io.Reader) ([]domain.ArticleCount, error) {
	t, err := readTable("news counts", r)
	if err != nil {
		return nil, err
	}
	if err := t.require("region", "count"); err != nil {
		return nil, err
	}
	out := make([]domain.ArticleCount, 0, len(t.rows))
	for _, row := range t.rows {
		region := t.str(row, "region")
		if region == "" {
			continue
		}
		n, err := strconv.Atoi(t.str(row, "count"))
		if err != nil {
			return nil, fmt.Errorf("news counts: %s: %w", region, err)
		}
		out = append(out, domain.ArticleCount{Region: region, Count: n})
	}
	return out, nil
}

// ReadPVIResult parses a table written by WritePVIResult
// (도시, PVI_Score, PVI_Final).
func ReadPVIResult(r io.Reader) ([]domain.RegionScore, error) {
	t, err := readTable("pvi result", r)
	if err != nil {
		return nil, err
	}
	if err := t.require(ColCity, ColPVIScore, ColPVIFinal); err != nil {
		return nil, err
	}
	out := make([]domain.RegionScore, 0, len(t.rows))
	for n, row := range t.rows {
		s := domain.RegionScore{RegionID: t.str(row, ColCity)}
		if s.RegionID == "" {
			continue
		}
		if s.Raw, err = t.num(row, ColPVIScore); err != nil {
			return nil, err
		}
		if s.Score, err = t.num(row, ColPVIFinal); err != nil {
			return nil, err
		}
		if math.IsNaN(s.Raw) || math.IsNaN(s.Score) {
			return nil, fmt.Errorf("pvi result: row %d (%s): score is empty", n+2, s.RegionID)
		}
		out = append(out, s)
	}
	return out, nil
}

// ErrNoPath is returned by ReadFile for an unset path.
var ErrNoPath = errors.New("csv path not set")

// ReadFile opens path and parses it with read.
func ReadFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	if path == "" {
		return nil, ErrNoPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return read(f)
}

// Extracts serves the local CSV extracts as indicator sources.
type Extracts struct {
	FarmlandPath     string
	RevenueWaterPath string
}

// Farmland reads the farmland extract.
func (e Extracts) Farmland(_ context.Context) ([]domain.FarmlandRatio, error) {
	return ReadFile(e.FarmlandPath, ReadFarmland)
}

// RevenueWater reads the revenue water extract.
func (e Extracts) RevenueWater(_ context.Context) ([]domain.RevenueWaterRate, error) {
	return ReadFile(e.RevenueWaterPath, ReadRevenueWater)
}
