// Command validate performs data integrity checks on the assessment outputs:
// the PVI result table, optionally recomputed from the merged indicator
// table, and the joined region assessment table. It verifies score bounds,
// region coverage, recomputation parity and quadrant consistency.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -pvi data/pvi_result_final.csv \
//	  -input data/pvi_input_data.csv \
//	  -assessment data/region_assessment.csv
package main

import (
	"bytes"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/drought-risk-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/drought-risk-etl/internal/config"
	"github.com/couchcryptid/drought-risk-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	pviPath        string
	inputPath      string
	assessmentPath string
	regionsPath    string
}

func main() {
	var opts options
	flag.StringVar(&opts.pviPath, "pvi", "", "path to pvi_result_final.csv")
	flag.StringVar(&opts.inputPath, "input", "", "path to pvi_input_data.csv; enables the recomputation check")
	flag.StringVar(&opts.assessmentPath, "assessment", "", "path to region_assessment.csv; enables the quadrant check")
	flag.StringVar(&opts.regionsPath, "regions", "", "YAML region catalog (default: the 18 Gangwon regions)")
	flag.Parse()

	if opts.pviPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, opts); code != 0 {
		os.Exit(code)
	}
}

func run(w io.Writer, opts options) int {
	fmt.Fprintln(w, "=== Drought Assessment Integrity Validation ===")
	fmt.Fprintln(w)

	catalog := domain.DefaultCatalog()
	if opts.regionsPath != "" {
		data, err := os.ReadFile(opts.regionsPath)
		if err == nil {
			catalog, err = config.ParseCatalog(data)
		}
		if err != nil {
			fmt.Fprintf(w, "FATAL: load region catalog: %v\n", err)
			return 1
		}
	}

	scores, err := csvfile.ReadFile(opts.pviPath, csvfile.ReadPVIResult)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load PVI result: %v\n", err)
		return 1
	}

	phases := []*phase{
		validatePVIBounds(scores),
		validateRegionCoverage(scores, catalog),
	}

	if opts.inputPath != "" {
		inputs, err := csvfile.ReadFile(opts.inputPath, csvfile.ReadPVIInputs)
		if err != nil {
			fmt.Fprintf(w, "FATAL: load PVI input: %v\n", err)
			return 1
		}
		phases = append(phases, validateRecomputation(inputs, scores))
	}

	var assessed []csvRow
	if opts.assessmentPath != "" {
		assessed, err = loadCSV(opts.assessmentPath)
		if err != nil {
			fmt.Fprintf(w, "FATAL: load assessment: %v\n", err)
			return 1
		}
		phases = append(phases, validateAssessment(assessed, scores, catalog))
	}

	// ── Report results ──
	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Records: %d PVI rows, %d assessment rows, %d catalog regions\n",
		len(scores), len(assessed), len(catalog.Regions))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

func loadCSV(path string) ([]csvRow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := csvfile.Decode(raw)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(data))
	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) < 2 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	header := all[0]
	var rows []csvRow
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[h] = strings.TrimSpace(row[j])
			}
		}
		rows = append(rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return rows, nil
}

// ── Phase 1: PVI bounds ──

// validatePVIBounds checks that final scores are finite, lie in [0, 1] and
// span exactly [0, 1], or are all 0 when every region scored the same.
func validatePVIBounds(scores []domain.RegionScore) *phase {
	p := &phase{name: "Phase 1: PVI Score Bounds"}
	if len(scores) < 2 {
		p.errorf("need at least 2 regions, got %d", len(scores))
		return p
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	rawLo, rawHi := math.Inf(1), math.Inf(-1)
	for _, s := range scores {
		if !finite(s.Score) || !finite(s.Raw) {
			p.errorf("%s: non-finite score (raw=%v final=%v)", s.RegionID, s.Raw, s.Score)
			continue
		}
		if s.Score < 0 || s.Score > 1 {
			p.errorf("%s: PVI_Final %v outside [0, 1]", s.RegionID, s.Score)
		}
		lo, hi = math.Min(lo, s.Score), math.Max(hi, s.Score)
		rawLo, rawHi = math.Min(rawLo, s.Raw), math.Max(rawHi, s.Raw)
	}

	if rawLo == rawHi {
		if hi != 0 || lo != 0 {
			p.errorf("all raw scores equal %v but final scores are not all 0", rawLo)
		}
		return p
	}
	if !floatEq(lo, 0) {
		p.errorf("minimum PVI_Final is %v, want 0", lo)
	}
	if !floatEq(hi, 1) {
		p.errorf("maximum PVI_Final is %v, want 1", hi)
	}

	// Rescaling is monotonic: a higher raw score never has a lower final score.
	for i := range scores {
		for j := range scores {
			if scores[i].Raw > scores[j].Raw && scores[i].Score < scores[j].Score-1e-9 {
				p.errorf("%s ranks above %s on PVI_Score but below on PVI_Final", scores[i].RegionID, scores[j].RegionID)
			}
		}
	}
	return p
}

// ── Phase 2: region coverage ──

func validateRegionCoverage(scores []domain.RegionScore, catalog domain.Catalog) *phase {
	p := &phase{name: "Phase 2: Region Coverage"}
	seen := make(map[string]bool, len(scores))
	for _, s := range scores {
		if seen[s.RegionID] {
			p.errorf("%s: listed twice", s.RegionID)
		}
		seen[s.RegionID] = true
		if !catalog.Contains(s.RegionID) {
			p.errorf("%s: not a catalog region", s.RegionID)
		}
	}
	return p
}

// ── Phase 3: recomputation parity ──

// validateRecomputation scores the merged inputs again and compares the
// result with the stored table row by row.
func validateRecomputation(inputs []domain.RegionInputs, scores []domain.RegionScore) *phase {
	p := &phase{name: "Phase 3: PVI Recomputation"}

	rows := make([]domain.RegionIndicatorRow, len(inputs))
	for i, in := range inputs {
		rows[i] = in.Orient()
	}
	result, err := domain.ComputeIndex(rows)
	if err != nil {
		p.errorf("recompute: %v", err)
		return p
	}

	if !floatEq(result.Weights.Sum(), 1) {
		p.errorf("weights sum to %v, want 1", result.Weights.Sum())
	}
	for i, wgt := range result.Weights {
		if wgt < 0 || wgt > 1 {
			p.errorf("%s weight %v outside [0, 1]", domain.Indicator(i), wgt)
		}
	}

	if len(result.Scores) != len(scores) {
		p.errorf("recomputed %d regions, table has %d", len(result.Scores), len(scores))
		return p
	}
	for i, want := range result.Scores {
		got := scores[i]
		if got.RegionID != want.RegionID {
			p.errorf("row %d: region %s, want %s", i+2, got.RegionID, want.RegionID)
			continue
		}
		if !floatEq(got.Raw, want.Raw) {
			p.errorf("%s: PVI_Score %v, recomputed %v", got.RegionID, got.Raw, want.Raw)
		}
		if !floatEq(got.Score, want.Score) {
			p.errorf("%s: PVI_Final %v, recomputed %v", got.RegionID, got.Score, want.Score)
		}
	}
	return p
}

// ── Phase 4: assessment consistency ──

// validateAssessment checks the joined table against the catalog and the
// PVI table: one row per catalog region in order, PVI carried over, SII in
// [0, 1] and label and color matching the category.
func validateAssessment(rows []csvRow, scores []domain.RegionScore, catalog domain.Catalog) *phase {
	p := &phase{name: "Phase 4: Assessment Consistency"}

	if len(rows) != len(catalog.Regions) {
		p.errorf("%d rows, want one per catalog region (%d)", len(rows), len(catalog.Regions))
	}

	pvi := make(map[string]float64, len(scores))
	for _, s := range scores {
		pvi[s.RegionID] = s.Score
	}
	known := make(map[domain.Category]bool, len(domain.Categories))
	for _, c := range domain.Categories {
		known[c] = true
	}

	for i, row := range rows {
		f := row.fields
		region := f["region"]
		if i < len(catalog.Regions) && region != catalog.Regions[i].Name {
			p.errorf("line %d: region %q, want %q in catalog order", row.lineNum, region, catalog.Regions[i].Name)
		}

		cat := domain.Category(f["category"])
		if !known[cat] {
			p.errorf("line %d (%s): unknown category %q", row.lineNum, region, cat)
			continue
		}
		if f["label"] != cat.Label() {
			p.errorf("line %d (%s): label %q, want %q", row.lineNum, region, f["label"], cat.Label())
		}
		if f["color"] != cat.Color() {
			p.errorf("line %d (%s): color %q, want %q", row.lineNum, region, f["color"], cat.Color())
		}

		sii, err := strconv.ParseFloat(f["sii"], 64)
		if err != nil || sii < 0 || sii > 1 {
			p.errorf("line %d (%s): sii %q not in [0, 1]", row.lineNum, region, f["sii"])
		}
		score, err := strconv.ParseFloat(f["pvi"], 64)
		if err != nil {
			p.errorf("line %d (%s): pvi %q: %v", row.lineNum, region, f["pvi"], err)
			continue
		}

		want, scored := pvi[region]
		if f["has_indicators"] != strconv.FormatBool(scored) {
			p.errorf("line %d (%s): has_indicators=%s but region is %sin the PVI table",
				row.lineNum, region, f["has_indicators"], map[bool]string{true: "", false: "not "}[scored])
		}
		if !floatEq(score, want) {
			p.errorf("line %d (%s): pvi %v, PVI table has %v", row.lineNum, region, score, want)
		}
	}
	return p
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
