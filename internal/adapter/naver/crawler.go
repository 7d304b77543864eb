// Package naver crawls Naver news search for drought articles about each
// region and counts them for the Social Interest Index.
package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	"github.com/couchcryptid/drought-risk-etl/internal/observability"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSearchURL = "https://s.search.naver.com/p/newssearch/3/api/tab/more"

	searchSource  = "naver_search"
	articleSource = "naver_article"
)

var contentHrefPattern = regexp.MustCompile(`"contentHref":"(.*?)"`)

var hrefUnescaper = strings.NewReplacer(`\/`, `/`, `\u0026`, `&`, `\u003d`, `=`, `&amp;`, `&`)

// BodyGetter fetches a raw response body.
type BodyGetter interface {
	GetBody(ctx context.Context, source, url string) ([]byte, error)
}

// Options tunes the crawl.
type Options struct {
	Keyword      string        // appended to the region name, e.g. "가뭄"
	Workers      int           // article fetches in flight per page
	PagePause    time.Duration // wait between result pages
	MinTextRunes int           // shorter article bodies are discarded
}

// Crawler searches news per region and day and extracts the linked articles.
type Crawler struct {
	fetcher   BodyGetter
	searchURL string
	opts      Options
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewCrawler creates a crawler against the production search endpoint.
func NewCrawler(fetcher BodyGetter, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Crawler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MinTextRunes <= 0 {
		opts.MinTextRunes = 50
	}
	if opts.Keyword == "" {
		opts.Keyword = "가뭄"
	}
	return &Crawler{
		fetcher:   fetcher,
		searchURL: DefaultSearchURL,
		opts:      opts,
		metrics:   metrics,
		logger:    logger,
	}
}

type searchPage struct {
	Collection []struct {
		Script string `json:"script"`
	} `json:"collection"`
	URL string `json:"url"`
}

// CountArticles crawls every region over [from, to] and returns the number
// of distinct articles per region, in region order.
func (c *Crawler) CountArticles(ctx context.Context, regions []string, from, to time.Time) ([]domain.ArticleCount, error) {
	var all []domain.Article
	for _, region := range regions {
		articles, err := c.CrawlRegion(ctx, region, from, to)
		if err != nil {
			return nil, err
		}
		all = append(all, articles...)
	}
	return domain.CountArticles(regions, all), nil
}

// CrawlRegion collects articles for "<region> <keyword>" one day at a time.
// A failing result page ends that day's crawl; only cancellation aborts the
// region. Articles are unique by URL across the whole range.
func (c *Crawler) CrawlRegion(ctx context.Context, region string, from, to time.Time) ([]domain.Article, error) {
	query := region + " " + c.opts.Keyword
	seen := make(map[string]struct{})
	var out []domain.Article

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		dayStr := day.Format("20060102")
		articles, err := c.crawlDay(ctx, query, dayStr, seen)
		if err != nil {
			return nil, err
		}
		for i := range articles {
			articles[i].Region = region
		}
		out = append(out, articles...)
	}

	c.logger.Info("news crawl finished", "region", region, "articles", len(out))
	return out, nil
}

func (c *Crawler) crawlDay(ctx context.Context, query, day string, seen map[string]struct{}) ([]domain.Article, error) {
	var out []domain.Article
	next := c.firstPageURL(query, day)

	for page := 1; next != ""; page++ {
		if page > 1 && !sleepWithContext(ctx, c.opts.PagePause) {
			return nil, ctx.Err()
		}

		body, err := c.fetcher.GetBody(ctx, searchSource, next)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("news search page failed", "query", query, "day", day, "page", page, "error", err)
			break
		}
		var res searchPage
		if err := json.Unmarshal(body, &res); err != nil {
			c.logger.Warn("news search page is not JSON", "query", query, "day", day, "page", page, "error", err)
			break
		}
		if len(res.Collection) == 0 {
			break
		}

		hrefs := ParseContentHrefs(res.Collection[0].Script)
		if len(hrefs) == 0 {
			break
		}
		if links := newLinks(hrefs, seen); len(links) > 0 {
			articles, err := c.fetchArticles(ctx, links, day)
			if err != nil {
				return nil, err
			}
			out = append(out, articles...)
		}
		if res.URL == next {
			break
		}
		next = res.URL
	}
	return out, nil
}

// fetchArticles extracts the given pages with a fixed-size worker pool.
// Pages that fail or are too short are dropped; results keep link order.
func (c *Crawler) fetchArticles(ctx context.Context, links []string, day string) ([]domain.Article, error) {
	results := make([]*domain.Article, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for i, link := range links {
		g.Go(func() error {
			results[i] = c.fetchArticle(gctx, link, day)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	out := make([]domain.Article, 0, len(links))
	for _, a := range results {
		if a != nil {
			out = append(out, *a)
		}
	}
	c.metrics.ArticlesCollected.Add(float64(len(out)))
	return out, nil
}

func (c *Crawler) fetchArticle(ctx context.Context, link, day string) *domain.Article {
	page, err := c.fetcher.GetBody(ctx, articleSource, link)
	if err != nil {
		c.logger.Debug("article fetch failed", "url", link, "error", err)
		return nil
	}
	ex, err := ExtractArticle(page)
	if err != nil {
		c.logger.Debug("article extraction failed", "url", link, "error", err)
		return nil
	}
	if utf8.RuneCountInString(ex.Text) < c.opts.MinTextRunes {
		return nil
	}
	return &domain.Article{
		Title:     ex.Title,
		Author:    ex.Author,
		Date:      ex.Date,
		Text:      ex.Text,
		SourceURL: link,
		CrawledOn: day,
	}
}

func (c *Crawler) firstPageURL(query, day string) string {
	q := url.Values{
		"query": {query},
		"sort":  {"0"},
		"nso":   {fmt.Sprintf("so:r,p:from%sto%s,a:all", day, day)},
		"ssc":   {"tab.news.all"},
		"start": {"1"},
	}
	return c.searchURL + "?" + q.Encode()
}

// ParseContentHrefs returns the article links embedded in a search result
// script, in order, without duplicates.
func ParseContentHrefs(script string) []string {
	matches := contentHrefPattern.FindAllStringSubmatch(script, -1)
	out := make([]string, 0, len(matches))
	dup := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		link := hrefUnescaper.Replace(m[1])
		if link == "" {
			continue
		}
		if _, ok := dup[link]; ok {
			continue
		}
		dup[link] = struct{}{}
		out = append(out, link)
	}
	return out
}

// newLinks filters out links already crawled and marks the rest as seen.
func newLinks(links []string, seen map[string]struct{}) []string {
	out := links[:0]
	for _, l := range links {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
