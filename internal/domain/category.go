package domain

import (
	"fmt"
	"sort"
)

// Category is the risk quadrant a region falls into.
type Category string

const (
	// CategoryLatentRisk is high PVI with low SII: physically vulnerable but
	// overlooked, the most urgent blind spot.
	CategoryLatentRisk        Category = "latent_risk"
	CategoryKnownDanger       Category = "known_danger"
	CategoryObservationNeeded Category = "observation_needed"
	CategorySafe              Category = "safe"
)

// Categories lists the quadrants from most to least urgent.
var Categories = []Category{CategoryLatentRisk, CategoryKnownDanger, CategoryObservationNeeded, CategorySafe}

// Label returns the Korean dashboard label.
func (c Category) Label() string {
	switch c {
	case CategoryLatentRisk:
		return "잠재적 위험"
	case CategoryKnownDanger:
		return "알려진 위험"
	case CategoryObservationNeeded:
		return "관찰 필요"
	case CategorySafe:
		return "안전"
	default:
		return string(c)
	}
}

// Color returns the map fill color for the quadrant.
func (c Category) Color() string {
	switch c {
	case CategoryLatentRisk:
		return "#FF0000"
	case CategoryKnownDanger:
		return "#FFA500"
	case CategoryObservationNeeded:
		return "#FFFF00"
	case CategorySafe:
		return "#008000"
	default:
		return "#808080"
	}
}

// Classify places a region in its quadrant. A score at or above its
// threshold counts as high.
func Classify(pvi, sii, pviThreshold, siiThreshold float64) Category {
	pviHigh := pvi >= pviThreshold
	siiHigh := sii >= siiThreshold
	switch {
	case pviHigh && !siiHigh:
		return CategoryLatentRisk
	case pviHigh && siiHigh:
		return CategoryKnownDanger
	case siiHigh:
		return CategoryObservationNeeded
	default:
		return CategorySafe
	}
}

// ThresholdPolicy fixes the classification thresholds. A nil field means the
// median of the assessed population.
type ThresholdPolicy struct {
	PVI *float64
	SII *float64
}

// Validate rejects fixed thresholds outside [0, 1].
func (p ThresholdPolicy) Validate() error {
	for name, v := range map[string]*float64{"pvi": p.PVI, "sii": p.SII} {
		if v != nil && (*v < 0 || *v > 1 || !finite(*v)) {
			return fmt.Errorf("%s threshold %v outside [0, 1]", name, *v)
		}
	}
	return nil
}

func (p ThresholdPolicy) resolve(pvi, sii []float64) (float64, float64) {
	pviT := Median(pvi)
	if p.PVI != nil {
		pviT = *p.PVI
	}
	siiT := Median(sii)
	if p.SII != nil {
		siiT = *p.SII
	}
	return pviT, siiT
}

// Median returns the median of values, averaging the middle pair for even
// lengths. It returns 0 for no values.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
