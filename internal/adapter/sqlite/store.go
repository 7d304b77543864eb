// Package sqlite keeps the history of drought assessments in a local SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no assessment has been stored yet.
var ErrNotFound = errors.New("no assessment stored")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	computed_at   TEXT NOT NULL,
	pvi_threshold REAL NOT NULL,
	sii_threshold REAL NOT NULL,
	weights_json  TEXT NOT NULL,
	entropy_json  TEXT NOT NULL,
	missing_json  TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_computed_at ON runs(computed_at);

CREATE TABLE IF NOT EXISTS region_scores (
	run_id         TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	region         TEXT NOT NULL,
	full_name      TEXT NOT NULL,
	has_indicators INTEGER NOT NULL,
	pvi_raw        REAL NOT NULL,
	pvi            REAL NOT NULL,
	article_count  INTEGER NOT NULL,
	sii            REAL NOT NULL,
	category       TEXT NOT NULL,
	label          TEXT NOT NULL,
	lat            REAL,
	lon            REAL,
	geo_source     TEXT,
	geo_confidence REAL,
	PRIMARY KEY (run_id, region)
);
CREATE INDEX IF NOT EXISTS idx_region_scores_region ON region_scores(region);
`

// Store persists assessments. It implements pipeline.Loader.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name identifies the sink in metrics and logs.
func (s *Store) Name() string { return "sqlite" }

// Load stores the assessment.
func (s *Store) Load(ctx context.Context, a domain.Assessment) error {
	return s.SaveAssessment(ctx, a)
}

// SaveAssessment writes the run and all of its regions in one transaction.
// Saving the same run id twice replaces the earlier copy.
func (s *Store) SaveAssessment(ctx context.Context, a domain.Assessment) error {
	weights, err := json.Marshal(a.Weights)
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	entropy, err := json.Marshal(a.Entropy)
	if err != nil {
		return fmt.Errorf("encode entropy: %w", err)
	}
	missing, err := json.Marshal(a.Missing)
	if err != nil {
		return fmt.Errorf("encode missing: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM region_scores WHERE run_id = ?`, a.RunID); err != nil {
		return fmt.Errorf("clear run %s: %w", a.RunID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (run_id, computed_at, pvi_threshold, sii_threshold, weights_json, entropy_json, missing_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.ComputedAt.UTC().Format(time.RFC3339Nano), a.PVIThreshold, a.SIIThreshold,
		string(weights), string(entropy), string(missing),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", a.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO region_scores (run_id, position, region, full_name, has_indicators, pvi_raw, pvi,
		 article_count, sii, category, label, lat, lon, geo_source, geo_confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare region insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range a.Regions {
		if _, err := stmt.ExecContext(ctx,
			a.RunID, i, r.Region, r.FullName, r.HasIndicators, r.PVIRaw, r.PVI,
			r.ArticleCount, r.SII, string(r.Category), r.Label, r.Lat, r.Lon, r.GeoSource, r.Confidence,
		); err != nil {
			return fmt.Errorf("insert region %s: %w", r.Region, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", a.RunID, err)
	}
	return nil
}

// LatestAssessment returns the most recently computed assessment, or
// ErrNotFound.
func (s *Store) LatestAssessment(ctx context.Context) (domain.Assessment, error) {
	var (
		a                         domain.Assessment
		computedAt                string
		weights, entropy, missing sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, computed_at, pvi_threshold, sii_threshold, weights_json, entropy_json, missing_json
		 FROM runs ORDER BY computed_at DESC, rowid DESC LIMIT 1`,
	).Scan(&a.RunID, &computedAt, &a.PVIThreshold, &a.SIIThreshold, &weights, &entropy, &missing)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Assessment{}, ErrNotFound
	}
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("query latest run: %w", err)
	}

	if a.ComputedAt, err = time.Parse(time.RFC3339Nano, computedAt); err != nil {
		return domain.Assessment{}, fmt.Errorf("parse computed_at: %w", err)
	}
	for _, col := range []struct {
		raw sql.NullString
		dst any
	}{{weights, &a.Weights}, {entropy, &a.Entropy}, {missing, &a.Missing}} {
		if !col.raw.Valid || col.raw.String == "" {
			continue
		}
		if err := json.Unmarshal([]byte(col.raw.String), col.dst); err != nil {
			return domain.Assessment{}, fmt.Errorf("decode run %s: %w", a.RunID, err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT region, full_name, has_indicators, pvi_raw, pvi, article_count, sii, category, label,
		        lat, lon, geo_source, geo_confidence
		 FROM region_scores WHERE run_id = ? ORDER BY position`, a.RunID)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("query regions: %w", err)
	}
	defer rows.Close()

	a.Regions = []domain.RegionAssessment{}
	for rows.Next() {
		r, err := scanRegion(rows)
		if err != nil {
			return domain.Assessment{}, err
		}
		a.Regions = append(a.Regions, r)
	}
	if err := rows.Err(); err != nil {
		return domain.Assessment{}, fmt.Errorf("read regions: %w", err)
	}
	return a, nil
}

// RegionHistory returns up to limit past outcomes for region, newest first.
func (s *Store) RegionHistory(ctx context.Context, region string, limit int) ([]domain.RegionSnapshot, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.run_id, r.computed_at, s.region, s.full_name, s.has_indicators, s.pvi_raw, s.pvi,
		        s.article_count, s.sii, s.category, s.label, s.lat, s.lon, s.geo_source, s.geo_confidence
		 FROM region_scores s JOIN runs r ON r.run_id = s.run_id
		 WHERE s.region = ?
		 ORDER BY r.computed_at DESC, r.rowid DESC
		 LIMIT ?`, region, limit)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", region, err)
	}
	defer rows.Close()

	var out []domain.RegionSnapshot
	for rows.Next() {
		var (
			snap       domain.RegionSnapshot
			computedAt string
		)
		r, err := scanRegion(rows, &snap.RunID, &computedAt)
		if err != nil {
			return nil, err
		}
		if snap.ComputedAt, err = time.Parse(time.RFC3339Nano, computedAt); err != nil {
			return nil, fmt.Errorf("parse computed_at: %w", err)
		}
		snap.RegionAssessment = r
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history for %s: %w", region, err)
	}
	return out, nil
}

// scanRegion scans a region_scores row; leading holds destinations for any
// columns selected before the region columns.
func scanRegion(rows *sql.Rows, leading ...any) (domain.RegionAssessment, error) {
	var (
		r         domain.RegionAssessment
		category  string
		lat, lon  sql.NullFloat64
		geoSource sql.NullString
		geoConf   sql.NullFloat64
	)
	dest := append(leading,
		&r.Region, &r.FullName, &r.HasIndicators, &r.PVIRaw, &r.PVI, &r.ArticleCount, &r.SII,
		&category, &r.Label, &lat, &lon, &geoSource, &geoConf,
	)
	if err := rows.Scan(dest...); err != nil {
		return r, fmt.Errorf("scan region: %w", err)
	}
	r.Category = domain.Category(category)
	r.Lat, r.Lon = lat.Float64, lon.Float64
	r.GeoSource = geoSource.String
	r.Confidence = geoConf.Float64
	return r, nil
}
