package domain

import (
	"math"
	"sort"
)

// Station is a groundwater monitoring station from the K-water facility list.
type Station struct {
	Code string `json:"cd"`
	Name string `json:"cdnm"`
}

// SGIObservation is one daily Standardized Groundwater Index reading.
type SGIObservation struct {
	StationCode string  `json:"station_code"`
	StationName string  `json:"station_name"`
	ObservedOn  string  `json:"observed_on"`
	SGI         float64 `json:"sgi"`
}

// WaterSupplyStat is a KOSIS water supply row for one region.
type WaterSupplyStat struct {
	Region         string  `json:"region"`
	PerCapitaUse   float64 `json:"per_capita_use"`  // litres per person per day
	PenetrationPct float64 `json:"penetration_pct"` // supply penetration rate
}

// FarmlandRatio is the farmland share of a region's area, in %.
type FarmlandRatio struct {
	Region   string  `json:"region"`
	RatioPct float64 `json:"ratio_pct"`
}

// RevenueWaterRate is the billed share of produced water, in %.
type RevenueWaterRate struct {
	Region  string  `json:"region"`
	RatePct float64 `json:"rate_pct"`
}

// IndicatorInputs bundles the raw source records for one assessment.
type IndicatorInputs struct {
	SGI          []SGIObservation
	WaterSupply  []WaterSupplyStat
	Farmland     []FarmlandRatio
	RevenueWater []RevenueWaterRate
}

// Source names reported for incomplete regions.
const (
	SourceSGI          = "sgi"
	SourceWaterSupply  = "water_supply"
	SourceFarmland     = "farmland"
	SourceRevenueWater = "revenue_water"
)

// MissingIndicators names the sources a region was absent from.
type MissingIndicators struct {
	Region  string   `json:"region"`
	Sources []string `json:"sources"`
}

// RegionInputs is the merged, not yet oriented, source data for one region.
type RegionInputs struct {
	Region          string  `json:"region"`
	SGI             float64 `json:"sgi"`
	PerCapitaUse    float64 `json:"per_capita_use"`
	FarmlandPct     float64 `json:"farmland_pct"`
	PenetrationPct  float64 `json:"penetration_pct"`
	RevenueWaterPct float64 `json:"revenue_water_pct"`
}

// Orient converts merged source values into an indicator row where larger
// means more vulnerable.
func (in RegionInputs) Orient() RegionIndicatorRow {
	return RegionIndicatorRow{
		RegionID:     in.Region,
		Exposure:     -in.SGI,
		Sensitivity1: in.PerCapitaUse,
		Sensitivity2: in.FarmlandPct,
		AdaptiveGap1: 100 - in.PenetrationPct,
		AdaptiveGap2: 100 - in.RevenueWaterPct,
	}
}

// MergeInputs joins the sources on the normalized region name. SGI readings
// are averaged per region; for the other sources the first row per region
// wins. Only regions present in every source are returned, in catalog order.
// Non-finite values count as absent.
func MergeInputs(catalog Catalog, in IndicatorInputs) ([]RegionInputs, []MissingIndicators) {
	sgiSum := make(map[string]float64)
	sgiN := make(map[string]int)
	for _, obs := range in.SGI {
		region, ok := catalog.StationRegion(obs.StationName)
		if !ok || !finite(obs.SGI) {
			continue
		}
		sgiSum[region] += obs.SGI
		sgiN[region]++
	}

	supply := make(map[string]WaterSupplyStat)
	for _, s := range in.WaterSupply {
		key := catalog.NormalizeRegionName(s.Region)
		if _, seen := supply[key]; seen || !finite(s.PerCapitaUse) || !finite(s.PenetrationPct) {
			continue
		}
		supply[key] = s
	}

	farm := make(map[string]float64)
	for _, f := range in.Farmland {
		key := catalog.NormalizeRegionName(f.Region)
		if _, seen := farm[key]; seen || !finite(f.RatioPct) {
			continue
		}
		farm[key] = f.RatioPct
	}

	revenue := make(map[string]float64)
	for _, r := range in.RevenueWater {
		key := catalog.NormalizeRegionName(r.Region)
		if _, seen := revenue[key]; seen || !finite(r.RatePct) {
			continue
		}
		revenue[key] = r.RatePct
	}

	var merged []RegionInputs
	var missing []MissingIndicators
	for _, name := range catalog.Names() {
		var absent []string
		if sgiN[name] == 0 {
			absent = append(absent, SourceSGI)
		}
		s, okSupply := supply[name]
		if !okSupply {
			absent = append(absent, SourceWaterSupply)
		}
		f, okFarm := farm[name]
		if !okFarm {
			absent = append(absent, SourceFarmland)
		}
		rv, okRevenue := revenue[name]
		if !okRevenue {
			absent = append(absent, SourceRevenueWater)
		}
		if len(absent) > 0 {
			missing = append(missing, MissingIndicators{Region: name, Sources: absent})
			continue
		}

		merged = append(merged, RegionInputs{
			Region:          name,
			SGI:             sgiSum[name] / float64(sgiN[name]),
			PerCapitaUse:    s.PerCapitaUse,
			FarmlandPct:     f,
			PenetrationPct:  s.PenetrationPct,
			RevenueWaterPct: rv,
		})
	}
	return merged, missing
}

// BuildIndicatorRows merges the sources and orients the result for
// ComputeIndex.
func BuildIndicatorRows(catalog Catalog, in IndicatorInputs) ([]RegionIndicatorRow, []MissingIndicators) {
	merged, missing := MergeInputs(catalog, in)
	rows := make([]RegionIndicatorRow, len(merged))
	for i, m := range merged {
		rows[i] = m.Orient()
	}
	return rows, missing
}

// StationsInCatalog keeps the stations that map to a catalog region, sorted
// by region then station code.
func StationsInCatalog(catalog Catalog, stations []Station) []Station {
	type keyed struct {
		region string
		st     Station
	}
	var kept []keyed
	for _, st := range stations {
		region, ok := catalog.StationRegion(st.Name)
		if !ok {
			continue
		}
		kept = append(kept, keyed{region: region, st: st})
	}

	order := make(map[string]int, len(catalog.Regions))
	for i, r := range catalog.Regions {
		order[r.Name] = i
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].region != kept[j].region {
			return order[kept[i].region] < order[kept[j].region]
		}
		return kept[i].st.Code < kept[j].st.Code
	})

	out := make([]Station, len(kept))
	for i, k := range kept {
		out[i] = k.st
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
