package domain

import (
	"strings"
	"unicode/utf8"
)

// Region is one city or county in the catalog.
type Region struct {
	Name     string `yaml:"name" json:"name"`           // short name, e.g. "춘천"
	FullName string `yaml:"full_name" json:"full_name"` // e.g. "춘천시"
}

// Catalog is the ordered set of regions an assessment covers, plus station
// names that must never be attributed to any region.
type Catalog struct {
	Province        string   `yaml:"province"`
	Regions         []Region `yaml:"regions"`
	StationExcludes []string `yaml:"station_excludes"`
}

// DefaultCatalog returns the 18 cities and counties of Gangwon State.
func DefaultCatalog() Catalog {
	return Catalog{
		Province: "강원특별자치도",
		Regions: []Region{
			{Name: "춘천", FullName: "춘천시"},
			{Name: "원주", FullName: "원주시"},
			{Name: "강릉", FullName: "강릉시"},
			{Name: "동해", FullName: "동해시"},
			{Name: "태백", FullName: "태백시"},
			{Name: "속초", FullName: "속초시"},
			{Name: "삼척", FullName: "삼척시"},
			{Name: "홍천", FullName: "홍천군"},
			{Name: "횡성", FullName: "횡성군"},
			{Name: "영월", FullName: "영월군"},
			{Name: "평창", FullName: "평창군"},
			{Name: "정선", FullName: "정선군"},
			{Name: "철원", FullName: "철원군"},
			{Name: "화천", FullName: "화천군"},
			{Name: "양구", FullName: "양구군"},
			{Name: "인제", FullName: "인제군"},
			{Name: "고성", FullName: "고성군"},
			{Name: "양양", FullName: "양양군"},
		},
		// Stations outside the province whose names contain a catalog name.
		StationExcludes: []string{"포항동해", "고성우산", "고성거류"},
	}
}

// Names returns the short region names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c.Regions))
	for i, r := range c.Regions {
		names[i] = r.Name
	}
	return names
}

// Lookup returns the region with the given short name.
func (c Catalog) Lookup(name string) (Region, bool) {
	for _, r := range c.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// Contains reports whether name is a short region name in the catalog.
func (c Catalog) Contains(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// NormalizeRegionName reduces a source-specific place name to the short
// catalog name: "강원특별자치도 춘천시" -> "춘천", "춘천신북" -> "춘천".
// Names that match no catalog region lose a trailing 시/군 instead, the
// rule the map labels use, rather than being cut to their first two runes.
func (c Catalog) NormalizeRegionName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	for _, prefix := range provincePrefixes(c.Province) {
		name = strings.TrimSpace(strings.ReplaceAll(name, prefix, ""))
	}

	for _, r := range c.Regions {
		if strings.Contains(name, r.Name) {
			return r.Name
		}
	}

	if utf8.RuneCountInString(name) > 1 {
		if trimmed, ok := strings.CutSuffix(name, "시"); ok {
			return trimmed
		}
		if trimmed, ok := strings.CutSuffix(name, "군"); ok {
			return trimmed
		}
	}
	return name
}

// StationRegion maps a monitoring station name to its region. It returns
// false for excluded stations and stations outside the catalog.
func (c Catalog) StationRegion(stationName string) (string, bool) {
	stationName = strings.TrimSpace(stationName)
	for _, ex := range c.StationExcludes {
		if stationName == ex {
			return "", false
		}
	}
	region := c.NormalizeRegionName(stationName)
	if !c.Contains(region) {
		return "", false
	}
	return region, true
}

// provincePrefixes lists the province spellings stripped from names, longest
// first so "강원특별자치도" is not left as "특별자치도".
func provincePrefixes(province string) []string {
	prefixes := []string{"강원특별자치도", "강원도"}
	if province != "" && province != prefixes[0] && province != prefixes[1] {
		prefixes = append([]string{province}, prefixes...)
	}
	return prefixes
}
