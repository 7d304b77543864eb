package domain

import (
	"time"

	"github.com/google/uuid"
)

// RegionAssessment is the joined PVI/SII outcome for one catalog region.
type RegionAssessment struct {
	Region        string   `json:"region"`
	FullName      string   `json:"full_name"`
	HasIndicators bool     `json:"has_indicators"`
	PVIRaw        float64  `json:"pvi_raw"`
	PVI           float64  `json:"pvi"`
	ArticleCount  int      `json:"article_count"`
	SII           float64  `json:"sii"`
	Category      Category `json:"category"`
	Label         string   `json:"label"`

	// Label coordinates from geocoding enrichment.
	Lat        float64 `json:"lat,omitempty"`
	Lon        float64 `json:"lon,omitempty"`
	GeoSource  string  `json:"geo_source,omitempty"` // "forward", "original", "failed"
	Confidence float64 `json:"geo_confidence,omitempty"`
}

// Assessment is the result of one pipeline run.
type Assessment struct {
	RunID        string                  `json:"run_id"`
	ComputedAt   time.Time               `json:"computed_at"`
	Weights      Weights                 `json:"weights"`
	Entropy      [IndicatorCount]float64 `json:"entropy"`
	PVIThreshold float64                 `json:"pvi_threshold"`
	SIIThreshold float64                 `json:"sii_threshold"`
	Missing      []MissingIndicators     `json:"missing,omitempty"`
	Regions      []RegionAssessment      `json:"regions"`
}

// RegionSnapshot is one region's outcome in one past run.
type RegionSnapshot struct {
	RunID      string    `json:"run_id"`
	ComputedAt time.Time `json:"computed_at"`
	RegionAssessment
}

// Region returns the assessment for a short region name.
func (a Assessment) Region(name string) (RegionAssessment, bool) {
	for _, r := range a.Regions {
		if r.Region == name {
			return r, true
		}
	}
	return RegionAssessment{}, false
}

// CategoryCounts tallies regions per quadrant.
func (a Assessment) CategoryCounts() map[Category]int {
	out := make(map[Category]int, len(Categories))
	for _, r := range a.Regions {
		out[r.Category]++
	}
	return out
}

// AssembleAssessment left-joins the catalog with PVI scores and article
// counts, computes SII over the joined set and classifies every region.
// Regions without a PVI score or article count get 0 for it.
func AssembleAssessment(catalog Catalog, index IndexResult, counts []ArticleCount, policy ThresholdPolicy) (Assessment, error) {
	if err := policy.Validate(); err != nil {
		return Assessment{}, &InvalidInputError{Field: "threshold", Reason: err.Error()}
	}

	scores := make(map[string]RegionScore, len(index.Scores))
	for _, s := range index.Scores {
		scores[s.RegionID] = s
	}
	articles := make(map[string]int, len(counts))
	for _, c := range counts {
		articles[catalog.NormalizeRegionName(c.Region)] += c.Count
	}

	joined := make([]ArticleCount, len(catalog.Regions))
	for i, r := range catalog.Regions {
		joined[i] = ArticleCount{Region: r.Name, Count: articles[r.Name]}
	}
	sii, err := ComputeSII(joined)
	if err != nil {
		return Assessment{}, err
	}

	regions := make([]RegionAssessment, len(catalog.Regions))
	pviValues := make([]float64, len(catalog.Regions))
	siiValues := make([]float64, len(catalog.Regions))
	for i, r := range catalog.Regions {
		s, ok := scores[r.Name]
		regions[i] = RegionAssessment{
			Region:        r.Name,
			FullName:      r.FullName,
			HasIndicators: ok,
			PVIRaw:        s.Raw,
			PVI:           s.Score,
			ArticleCount:  sii[i].Count,
			SII:           sii[i].Score,
		}
		pviValues[i] = s.Score
		siiValues[i] = sii[i].Score
	}

	pviT, siiT := policy.resolve(pviValues, siiValues)
	for i := range regions {
		c := Classify(regions[i].PVI, regions[i].SII, pviT, siiT)
		regions[i].Category = c
		regions[i].Label = c.Label()
	}

	return Assessment{
		RunID:        uuid.NewString(),
		ComputedAt:   clock.Now().UTC(),
		Weights:      index.Weights,
		Entropy:      index.Entropy,
		PVIThreshold: pviT,
		SIIThreshold: siiT,
		Regions:      regions,
	}, nil
}
