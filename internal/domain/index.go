package domain

import (
	"math"
)

// IndicatorCount is the number of indicator columns that enter the PVI.
const IndicatorCount = 5

// epsilon keeps the min-max denominator and the entropy logarithm finite.
// It is added unconditionally so results stay continuous in the inputs.
const epsilon = 1e-9

// Indicator identifies one column of the indicator matrix.
type Indicator int

const (
	Exposure Indicator = iota
	SensitivityWaterUse
	SensitivityFarmland
	AdaptiveGapSupply
	AdaptiveGapRevenue
)

var indicatorNames = [IndicatorCount]string{
	"exposure",
	"sensitivity_1",
	"sensitivity_2",
	"adaptive_gap_1",
	"adaptive_gap_2",
}

// Indicators lists every indicator in column order.
var Indicators = [IndicatorCount]Indicator{
	Exposure, SensitivityWaterUse, SensitivityFarmland, AdaptiveGapSupply, AdaptiveGapRevenue,
}

func (i Indicator) String() string {
	if i < 0 || int(i) >= IndicatorCount {
		return "unknown"
	}
	return indicatorNames[i]
}

// RegionIndicatorRow holds the five oriented indicator values for one region.
// Larger values mean a more vulnerable region in every column.
type RegionIndicatorRow struct {
	RegionID     string  `json:"region_id"`
	Exposure     float64 `json:"exposure"`
	Sensitivity1 float64 `json:"sensitivity_1"`
	Sensitivity2 float64 `json:"sensitivity_2"`
	AdaptiveGap1 float64 `json:"adaptive_gap_1"`
	AdaptiveGap2 float64 `json:"adaptive_gap_2"`
}

// Values returns the indicator values in column order.
func (r RegionIndicatorRow) Values() [IndicatorCount]float64 {
	return [IndicatorCount]float64{r.Exposure, r.Sensitivity1, r.Sensitivity2, r.AdaptiveGap1, r.AdaptiveGap2}
}

// Weights holds one entropy-derived weight per indicator column.
type Weights [IndicatorCount]float64

// Sum returns the total weight, 1.0 for any computed weight vector.
func (w Weights) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

// ByName maps indicator names to weights, for serialization.
func (w Weights) ByName() map[string]float64 {
	out := make(map[string]float64, IndicatorCount)
	for i, v := range w {
		out[Indicator(i).String()] = v
	}
	return out
}

// RegionScore is the PVI outcome for one region.
type RegionScore struct {
	RegionID   string                  `json:"region_id"`
	Normalized [IndicatorCount]float64 `json:"normalized"`
	Raw        float64                 `json:"raw"`
	Score      float64                 `json:"score"`
}

// IndexResult is the output of ComputeIndex. Scores follow input row order.
type IndexResult struct {
	Weights Weights                 `json:"weights"`
	Entropy [IndicatorCount]float64 `json:"entropy"`
	Scores  []RegionScore           `json:"scores"`
}

// ComputeIndex computes the entropy-weighted composite index for rows.
//
// Each column is min-max normalized, turned into a probability distribution
// over regions, and weighted by its divergence (1 - entropy). The weighted
// sum per region is min-max rescaled to [0, 1]. When every region ends up
// with the same raw score, all scores are 0.
//
// Fails with *InvalidInputError for fewer than two rows, duplicate or empty
// region ids, or non-finite values, and with *DegenerateWeightError when no
// column carries any information. Nothing is computed on failure.
func ComputeIndex(rows []RegionIndicatorRow) (IndexResult, error) {
	if err := validateRows(rows); err != nil {
		return IndexResult{}, err
	}

	norm := normalizeColumns(rows)
	entropy := columnEntropy(norm)

	weights, err := entropyWeights(entropy)
	if err != nil {
		return IndexResult{}, err
	}

	raw := make([]float64, len(rows))
	for r := range norm {
		for c := range IndicatorCount {
			raw[r] += norm[r][c] * weights[c]
		}
	}
	final := minMaxRescale(raw)

	scores := make([]RegionScore, len(rows))
	for r, row := range rows {
		scores[r] = RegionScore{
			RegionID:   row.RegionID,
			Normalized: norm[r],
			Raw:        raw[r],
			Score:      final[r],
		}
	}

	return IndexResult{Weights: weights, Entropy: entropy, Scores: scores}, nil
}

func validateRows(rows []RegionIndicatorRow) error {
	if len(rows) == 0 {
		return &InvalidInputError{Reason: "no regions supplied"}
	}

	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if row.RegionID == "" {
			return &InvalidInputError{Field: "region_id", Reason: "missing region id"}
		}
		if _, dup := seen[row.RegionID]; dup {
			return &InvalidInputError{RegionID: row.RegionID, Field: "region_id", Reason: "duplicate region id"}
		}
		seen[row.RegionID] = struct{}{}

		for c, v := range row.Values() {
			if math.IsNaN(v) {
				return &InvalidInputError{RegionID: row.RegionID, Field: Indicator(c).String(), Reason: "value is missing (NaN)"}
			}
			if math.IsInf(v, 0) {
				return &InvalidInputError{RegionID: row.RegionID, Field: Indicator(c).String(), Reason: "value is not finite"}
			}
		}
	}

	if len(rows) < 2 {
		return &InvalidInputError{Reason: "entropy weighting needs at least 2 regions, got 1"}
	}
	return nil
}

// normalizeColumns min-max normalizes each column. A constant column maps to 0.
func normalizeColumns(rows []RegionIndicatorRow) [][IndicatorCount]float64 {
	var lo, hi [IndicatorCount]float64
	for c := range IndicatorCount {
		lo[c] = math.Inf(1)
		hi[c] = math.Inf(-1)
	}
	for _, row := range rows {
		for c, v := range row.Values() {
			lo[c] = math.Min(lo[c], v)
			hi[c] = math.Max(hi[c], v)
		}
	}

	norm := make([][IndicatorCount]float64, len(rows))
	for r, row := range rows {
		for c, v := range row.Values() {
			norm[r][c] = (v - lo[c]) / (hi[c] - lo[c] + epsilon)
		}
	}
	return norm
}

// columnEntropy returns the normalized Shannon entropy of each column, treating
// the column as a distribution over regions. An all-zero column has entropy 0.
func columnEntropy(norm [][IndicatorCount]float64) [IndicatorCount]float64 {
	k := 1 / math.Log(float64(len(norm)))

	var sums [IndicatorCount]float64
	for _, row := range norm {
		for c, v := range row {
			sums[c] += v
		}
	}

	var entropy [IndicatorCount]float64
	for c := range IndicatorCount {
		var acc float64
		for _, row := range norm {
			var p float64
			if sums[c] != 0 {
				p = row[c] / sums[c]
			}
			acc += p * math.Log(p+epsilon)
		}
		entropy[c] = -k * acc
	}
	return entropy
}

func entropyWeights(entropy [IndicatorCount]float64) (Weights, error) {
	var divergence [IndicatorCount]float64
	var total float64
	for c, e := range entropy {
		d := 1 - e
		// Rounding can push entropy a hair above 1.
		if d < 0 {
			d = 0
		}
		divergence[c] = d
		total += d
	}

	if total == 0 {
		return Weights{}, &DegenerateWeightError{Entropy: entropy}
	}

	var w Weights
	for c, d := range divergence {
		w[c] = d / total
	}
	return w, nil
}

// minMaxRescale maps values linearly onto [0, 1]. When all values are equal
// the result is all zeros.
func minMaxRescale(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return out
	}

	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}
