package domain

import "math"

// Article is one news article collected for a region.
type Article struct {
	Region    string `json:"region"`
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	Date      string `json:"date,omitempty"`
	Text      string `json:"text"`
	SourceURL string `json:"source_url"`
	CrawledOn string `json:"date_crawled"` // YYYYMMDD of the search day
}

// ArticleCount is the number of drought articles found for a region.
type ArticleCount struct {
	Region string `json:"region"`
	Count  int    `json:"count"`
}

// SocialInterest is the SII outcome for one region.
type SocialInterest struct {
	Region   string  `json:"region"`
	Count    int     `json:"count"`
	LogCount float64 `json:"log_count"`
	Score    float64 `json:"score"`
}

// ComputeSII log-normalizes article counts: log1p(count) is min-max rescaled
// to [0, 1]. When every region has the same count all scores are 0.
// Output follows input order.
func ComputeSII(counts []ArticleCount) ([]SocialInterest, error) {
	logs := make([]float64, len(counts))
	for i, c := range counts {
		if c.Count < 0 {
			return nil, &InvalidInputError{RegionID: c.Region, Field: "count", Reason: "article count is negative"}
		}
		logs[i] = math.Log1p(float64(c.Count))
	}

	scores := minMaxRescale(logs)
	out := make([]SocialInterest, len(counts))
	for i, c := range counts {
		out[i] = SocialInterest{Region: c.Region, Count: c.Count, LogCount: logs[i], Score: scores[i]}
	}
	return out, nil
}

// CountArticles tallies articles per region, counting each source URL once
// per region. Regions without articles are reported with count 0.
func CountArticles(regions []string, articles []Article) []ArticleCount {
	seen := make(map[string]map[string]struct{}, len(regions))
	for _, r := range regions {
		seen[r] = make(map[string]struct{})
	}
	for _, a := range articles {
		urls, ok := seen[a.Region]
		if !ok {
			continue
		}
		urls[a.SourceURL] = struct{}{}
	}

	out := make([]ArticleCount, len(regions))
	for i, r := range regions {
		out[i] = ArticleCount{Region: r, Count: len(seen[r])}
	}
	return out
}
