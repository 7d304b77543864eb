// Package domain models drought-risk indicators for the 18 cities and counties
// of Gangwon State (강원특별자치도) and the indices computed from them.
//
// # Data Sources
//
// Indicator values come from four sources, joined on a normalized region name:
//
//	Groundwater:  K-water SGI (Standardized Groundwater Index) observations
//	              from data.go.kr, one series per monitoring station. Stations
//	              are averaged per region. Lower SGI means drier aquifers.
//	Water supply: KOSIS table DT_211002_G008. Litres supplied per person per
//	              day (item ...T6) and supply penetration rate in % (item ...T3).
//	Farmland:     share of the region's area used as farmland, in %.
//	Revenue water: share of produced water that is billed, in %. The rest is
//	              lost to leaks and unmetered use.
//
// # Indicator Orientation
//
// All five indicators are oriented so that a larger value means a more
// vulnerable region before they enter [ComputeIndex]:
//
//	Exposure       = -SGI
//	Sensitivity 1  = per-capita water use
//	Sensitivity 2  = farmland ratio
//	Adaptive gap 1 = 100 - supply penetration rate
//	Adaptive gap 2 = 100 - revenue-water rate
//
// # Region Names
//
// Sources disagree on naming: "강원특별자치도 춘천시", "춘천시", station names such
// as "춘천신북". [Catalog.NormalizeRegionName] reduces all of them to the short catalog
// name ("춘천"). Some station names outside the province contain a catalog
// name ("포항동해" contains "동해") and are dropped through an exclusion list.
//
// # Indices
//
// PVI (Physical Vulnerability Index) is an entropy-weighted sum of the
// min-max normalized indicators, rescaled to [0, 1]. See [ComputeIndex].
//
// SII (Social Interest Index) is log1p of the number of news articles that
// mention drought in the region, min-max rescaled to [0, 1]. See [ComputeSII].
//
// Each region is then placed in one of four quadrants by comparing PVI and
// SII against thresholds (by default the medians). See [Classify].
package domain
