package domain

import "fmt"

// InvalidInputError reports indicator input that cannot enter a computation:
// a missing or non-finite value, a duplicate region, or too few regions.
type InvalidInputError struct {
	RegionID string // empty when the problem is not tied to one region
	Field    string
	Reason   string
}

func (e *InvalidInputError) Error() string {
	switch {
	case e.RegionID != "" && e.Field != "":
		return fmt.Sprintf("invalid input: region %q field %s: %s", e.RegionID, e.Field, e.Reason)
	case e.RegionID != "":
		return fmt.Sprintf("invalid input: region %q: %s", e.RegionID, e.Reason)
	default:
		return "invalid input: " + e.Reason
	}
}

// DegenerateWeightError reports that entropy weighting produced no usable
// weight distribution because every indicator column is maximally entropic.
type DegenerateWeightError struct {
	Entropy [IndicatorCount]float64
}

func (e *DegenerateWeightError) Error() string {
	return fmt.Sprintf("degenerate weights: total divergence is zero (entropy %v)", e.Entropy)
}
