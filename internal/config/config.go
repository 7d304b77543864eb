package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RunInterval     time.Duration // 0 runs the pipeline once

	Catalog domain.Catalog

	// Groundwater (data.go.kr) source.
	DataGoKrServiceKey string
	SGIStartDate       string // YYYYMMDD
	SGIEndDate         string

	// KOSIS water supply source.
	KOSISAPIKey string
	KOSISYear   string

	// Local CSV extracts.
	FarmlandCSV     string
	RevenueWaterCSV string

	// News crawl.
	NewsEnabled bool
	NewsKeyword string
	NewsStart   time.Time
	NewsEnd     time.Time
	NewsWorkers int

	// Shared upstream HTTP policy.
	FetchTimeout    time.Duration
	FetchMaxTrials  int
	FetchRetryDelay time.Duration

	// Sinks. Empty values disable the sink.
	OutputDir    string
	SQLitePath   string
	KafkaBrokers []string
	KafkaTopic   string

	Thresholds domain.ThresholdPolicy

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	var err error
	cfg := &Config{
		HTTPAddr:           EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          EnvOrDefault("LOG_FORMAT", "json"),
		DataGoKrServiceKey: os.Getenv("DATA_GO_KR_SERVICE_KEY"),
		SGIStartDate:       EnvOrDefault("SGI_START_DATE", "20240501"),
		SGIEndDate:         EnvOrDefault("SGI_END_DATE", "20240930"),
		KOSISAPIKey:        os.Getenv("KOSIS_API_KEY"),
		KOSISYear:          EnvOrDefault("KOSIS_YEAR", "2023"),
		FarmlandCSV:        EnvOrDefault("FARMLAND_CSV", "data/farmland_ratio.csv"),
		RevenueWaterCSV:    EnvOrDefault("REVENUE_WATER_CSV", "data/revenue_water.csv"),
		NewsKeyword:        EnvOrDefault("NEWS_KEYWORD", "가뭄"),
		OutputDir:          envOrDefaultAllowEmpty("OUTPUT_DIR", "data"),
		SQLitePath:         os.Getenv("SQLITE_PATH"),
		KafkaBrokers:       ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:         EnvOrDefault("KAFKA_TOPIC", "drought-assessments"),
		MapboxToken:        os.Getenv("MAPBOX_TOKEN"),
	}

	if cfg.ShutdownTimeout, err = parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RunInterval, err = parseDuration("RUN_INTERVAL", "24h"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = parsePositiveDuration("FETCH_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.FetchRetryDelay, err = parseDuration("FETCH_RETRY_DELAY", "500ms"); err != nil {
		return nil, err
	}
	if cfg.FetchMaxTrials, err = parsePositiveInt("FETCH_MAX_TRIALS", 3); err != nil {
		return nil, err
	}
	if cfg.NewsWorkers, err = parsePositiveInt("NEWS_WORKERS", 6); err != nil {
		return nil, err
	}
	if cfg.NewsEnabled, err = parseBool("NEWS_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.NewsStart, err = parseDate("NEWS_START_DATE", "2025-05-01"); err != nil {
		return nil, err
	}
	if cfg.NewsEnd, err = parseDate("NEWS_END_DATE", "2025-10-31"); err != nil {
		return nil, err
	}
	if cfg.Thresholds.PVI, err = parseThreshold("PVI_THRESHOLD"); err != nil {
		return nil, err
	}
	if cfg.Thresholds.SII, err = parseThreshold("SII_THRESHOLD"); err != nil {
		return nil, err
	}
	if cfg.Catalog, err = loadCatalog(os.Getenv("REGIONS_FILE")); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv("STATION_EXCLUDES"); ok {
		cfg.Catalog.StationExcludes = splitList(v)
	}

	mapboxTimeout, err := time.ParseDuration(EnvOrDefault("MAPBOX_TIMEOUT", "5s"))
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}
	cfg.MapboxTimeout = mapboxTimeout
	cfg.MapboxCacheSize = parseMapboxCacheSize()
	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DataGoKrServiceKey == "" {
		return errors.New("DATA_GO_KR_SERVICE_KEY is required")
	}
	if c.KOSISAPIKey == "" {
		return errors.New("KOSIS_API_KEY is required")
	}
	if !validYYYYMMDD(c.SGIStartDate) {
		return fmt.Errorf("invalid SGI_START_DATE %q: want YYYYMMDD", c.SGIStartDate)
	}
	if !validYYYYMMDD(c.SGIEndDate) {
		return fmt.Errorf("invalid SGI_END_DATE %q: want YYYYMMDD", c.SGIEndDate)
	}
	if c.SGIEndDate < c.SGIStartDate {
		return errors.New("SGI_END_DATE is before SGI_START_DATE")
	}
	if c.NewsEnd.Before(c.NewsStart) {
		return errors.New("NEWS_END_DATE is before NEWS_START_DATE")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if len(c.Catalog.Regions) < 2 {
		return errors.New("region catalog needs at least two regions")
	}
	return nil
}

// EnvOrDefault returns the environment value for key, or fallback when unset or empty.
func EnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envOrDefaultAllowEmpty distinguishes an explicitly empty variable from an unset one.
func envOrDefaultAllowEmpty(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(s string) []string {
	return splitList(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(EnvOrDefault(key, fallback))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := parseDuration(key, fallback)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func parseDate(key, fallback string) (time.Time, error) {
	t, err := time.Parse(dateLayout, EnvOrDefault(key, fallback))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: want YYYY-MM-DD", key)
	}
	return t, nil
}

func parseThreshold(key string) (*float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 1 {
		return nil, fmt.Errorf("invalid %s: must be within [0, 1]", key)
	}
	return &v, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 100
}

func validYYYYMMDD(s string) bool {
	_, err := time.Parse("20060102", s)
	return err == nil
}

// loadCatalog reads a YAML region catalog, falling back to the built-in
// Gangwon catalog when path is empty. Fields omitted from the file keep
// their defaults.
func loadCatalog(path string) (domain.Catalog, error) {
	catalog := domain.DefaultCatalog()
	if path == "" {
		return catalog, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("read REGIONS_FILE: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML region catalog over the default catalog.
func ParseCatalog(data []byte) (domain.Catalog, error) {
	catalog := domain.DefaultCatalog()
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return domain.Catalog{}, fmt.Errorf("parse region catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(catalog.Regions))
	for i, r := range catalog.Regions {
		if strings.TrimSpace(r.Name) == "" {
			return domain.Catalog{}, fmt.Errorf("region catalog entry %d has no name", i)
		}
		if _, dup := seen[r.Name]; dup {
			return domain.Catalog{}, fmt.Errorf("region catalog lists %q twice", r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	return catalog, nil
}
