package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/couchcryptid/drought-risk-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/drought-risk-etl/internal/adapter/fetch"
	"github.com/couchcryptid/drought-risk-etl/internal/adapter/naver"
	"github.com/couchcryptid/drought-risk-etl/internal/config"
	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	"github.com/couchcryptid/drought-risk-etl/internal/observability"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func pviCmd() *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "pvi",
		Short: "Compute the Physical Vulnerability Index from merged indicators",
		Long: `Reads a merged indicator table (도시, SGI, 생활용수, 농경지, 보급률, 유수율),
orients every column so larger means more vulnerable, derives entropy
weights and writes 도시, PVI_Score, PVI_Final.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inputs, err := csvfile.ReadFile(input, csvfile.ReadPVIInputs)
			if err != nil {
				return err
			}
			rows := make([]domain.RegionIndicatorRow, len(inputs))
			for i, in := range inputs {
				rows[i] = in.Orient()
			}

			result, err := domain.ComputeIndex(rows)
			if err != nil {
				return fmt.Errorf("compute pvi: %w", err)
			}
			if err := csvfile.WriteFile(output, func(w io.Writer) error {
				return csvfile.WritePVIResult(w, result.Scores)
			}); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wrote %d regions to %s\n", len(result.Scores), output)
			for _, ind := range domain.Indicators {
				fmt.Fprintf(out, "  %-15s weight=%.4f entropy=%.4f\n", ind, result.Weights[ind], result.Entropy[ind])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", csvfile.PVIInputFile, "merged indicator CSV")
	cmd.Flags().StringVar(&output, "output", csvfile.PVIResultFile, "PVI result CSV")
	return cmd
}

func siiCmd() *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "sii",
		Short: "Compute the Social Interest Index from article counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			counts, err := csvfile.ReadFile(input, csvfile.ReadNewsCounts)
			if err != nil {
				return err
			}
			sii, err := domain.ComputeSII(counts)
			if err != nil {
				return fmt.Errorf("compute sii: %w", err)
			}
			if err := csvfile.WriteFile(output, func(w io.Writer) error {
				return csvfile.WriteSII(w, sii)
			}); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d regions to %s\n", len(sii), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", csvfile.NewsCountsFile, "news count CSV (region, count)")
	cmd.Flags().StringVar(&output, "output", "sii_result.csv", "SII result CSV")
	return cmd
}

func newsCmd(regionsFile *string) *cobra.Command {
	var (
		regions   []string
		from, to  string
		keyword   string
		workers   int
		output    string
		logLevel  string
		timeout   time.Duration
		maxTrials int
	)

	cmd := &cobra.Command{
		Use:   "news",
		Short: "Crawl drought article counts per region",
		Long: `Searches Naver news for "<region> <keyword>" one day at a time over
[from, to], extracts every linked article and writes the number of distinct
articles per region.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, err := parseRange(from, to)
			if err != nil {
				return err
			}
			if len(regions) == 0 {
				catalog, err := loadCatalog(*regionsFile)
				if err != nil {
					return err
				}
				regions = catalog.Names()
			}

			logger := observability.NewLogger(&config.Config{LogLevel: logLevel, LogFormat: "text"})
			metrics := observability.NewMetrics()
			fetcher := fetch.NewClient(fetch.Options{Timeout: timeout, MaxTrials: maxTrials, RetryDelay: 500 * time.Millisecond}, metrics, logger)
			crawler := naver.NewCrawler(fetcher, naver.Options{Keyword: keyword, Workers: workers}, metrics, logger)

			counts, err := crawler.CountArticles(cmd.Context(), regions, start, end)
			if err != nil {
				return fmt.Errorf("crawl news: %w", err)
			}
			if err := csvfile.WriteFile(output, func(w io.Writer) error {
				return csvfile.WriteNewsCounts(w, counts)
			}); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d regions to %s\n", len(counts), output)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&regions, "region", nil, "region to crawl, repeatable (default: every catalog region)")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&keyword, "keyword", "가뭄", "search keyword appended to the region name")
	cmd.Flags().IntVar(&workers, "workers", 6, "article fetches in flight")
	cmd.Flags().StringVar(&output, "output", csvfile.NewsCountsFile, "news count CSV")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")
	cmd.Flags().IntVar(&maxTrials, "max-trials", 3, "attempts per request")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func classifyCmd(regionsFile *string) *cobra.Command {
	var (
		pviPath, newsPath, output string
		pviThreshold, siiThreshold float64
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify regions into risk quadrants from PVI and article counts",
		Long: `Left-joins the region catalog with a PVI result and optional article
counts, computes SII and assigns every region to a quadrant. Thresholds
default to the median of each index.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := loadCatalog(*regionsFile)
			if err != nil {
				return err
			}
			scores, err := csvfile.ReadFile(pviPath, csvfile.ReadPVIResult)
			if err != nil {
				return err
			}
			var counts []domain.ArticleCount
			if newsPath != "" {
				if counts, err = csvfile.ReadFile(newsPath, csvfile.ReadNewsCounts); err != nil {
					return err
				}
			}

			var policy domain.ThresholdPolicy
			if cmd.Flags().Changed("pvi-threshold") {
				policy.PVI = &pviThreshold
			}
			if cmd.Flags().Changed("sii-threshold") {
				policy.SII = &siiThreshold
			}

			a, err := domain.AssembleAssessment(catalog, domain.IndexResult{Scores: scores}, counts, policy)
			if err != nil {
				return fmt.Errorf("classify: %w", err)
			}
			if err := csvfile.WriteFile(output, func(w io.Writer) error {
				return csvfile.WriteAssessment(w, a)
			}); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			printSummary(cmd.OutOrStdout(), a)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d regions to %s\n", len(a.Regions), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&pviPath, "pvi", csvfile.PVIResultFile, "PVI result CSV")
	cmd.Flags().StringVar(&newsPath, "news", "", "news count CSV (omit to count 0 articles everywhere)")
	cmd.Flags().StringVar(&output, "output", csvfile.AssessmentFile, "assessment CSV")
	cmd.Flags().Float64Var(&pviThreshold, "pvi-threshold", 0, "fixed PVI threshold in [0, 1] (default: median)")
	cmd.Flags().Float64Var(&siiThreshold, "sii-threshold", 0, "fixed SII threshold in [0, 1] (default: median)")
	return cmd
}

func printSummary(w io.Writer, a domain.Assessment) {
	fmt.Fprintf(w, "thresholds: pvi=%.4f sii=%.4f\n", a.PVIThreshold, a.SIIThreshold)

	byCategory := make(map[domain.Category][]string, len(domain.Categories))
	for _, r := range a.Regions {
		byCategory[r.Category] = append(byCategory[r.Category], r.Region)
	}
	for _, c := range domain.Categories {
		names := byCategory[c]
		sort.Strings(names)
		fmt.Fprintf(w, "  %-22s %2d %v\n", c.Label(), len(names), names)
	}
}

func parseRange(from, to string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --from %q: want YYYY-MM-DD", from)
	}
	end, err := time.Parse(dateLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --to %q: want YYYY-MM-DD", to)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return start, end, nil
}

func loadCatalog(path string) (domain.Catalog, error) {
	if path == "" {
		return domain.DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("read region catalog: %w", err)
	}
	return config.ParseCatalog(data)
}
