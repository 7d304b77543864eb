// Package pipeline runs the drought assessment: collect indicators, score
// PVI and SII, classify, enrich and publish to every configured sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	"github.com/couchcryptid/drought-risk-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// IndicatorSource gathers the raw inputs of one assessment.
type IndicatorSource interface {
	Collect(ctx context.Context) (domain.IndicatorInputs, error)
}

// NewsSource counts drought articles per region over a date range.
type NewsSource interface {
	CountArticles(ctx context.Context, regions []string, from, to time.Time) ([]domain.ArticleCount, error)
}

// Loader publishes a completed assessment.
type Loader interface {
	Name() string
	Load(ctx context.Context, a domain.Assessment) error
}

// Options configures a Pipeline.
type Options struct {
	Catalog    domain.Catalog
	Thresholds domain.ThresholdPolicy
	NewsFrom   time.Time
	NewsTo     time.Time
	Interval   time.Duration    // 0 runs once
	Clock      clockwork.Clock // nil uses the real clock
}

// Pipeline orchestrates the collect-compute-load cycle.
type Pipeline struct {
	opts       Options
	indicators IndicatorSource
	news       NewsSource
	geocoder   domain.Geocoder
	loaders    []Loader
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
	ready      atomic.Bool

	mu     sync.RWMutex
	latest *domain.Assessment
}

// New creates a Pipeline. news and geocoder may be nil to skip article
// counting (every region counts 0) and geocoding.
func New(opts Options, indicators IndicatorSource, news NewsSource, geocoder domain.Geocoder, loaders []Loader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		opts:       opts,
		indicators: indicators,
		news:       news,
		geocoder:   geocoder,
		loaders:    loaders,
		logger:     logger,
		metrics:    metrics,
		clock:      clock,
	}
}

// CheckReadiness returns nil once an assessment has been computed, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no assessment has completed yet")
	}
	return nil
}

// Latest returns the most recent assessment, if any run has completed.
func (p *Pipeline) Latest() (domain.Assessment, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return domain.Assessment{}, false
	}
	return *p.latest, true
}

// LoadError reports the sinks that rejected an otherwise complete
// assessment. Run retries only those sinks with the same assessment.
type LoadError struct {
	RunID  string
	Sinks  []string
	Err    error
	failed []Loader
}

func (e *LoadError) Error() string { return e.Err.Error() }

func (e *LoadError) Unwrap() error { return e.Err }

// Run executes RunOnce, then repeats it every Interval until the context is
// cancelled. A failed run is retried with exponential backoff. When only
// sinks failed, the retries redeliver the kept assessment to those sinks
// until they accept it or the next run is due. With a zero Interval it runs
// once and returns that run's error.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.opts.Interval, "regions", len(p.opts.Catalog.Regions))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s or the
	// run interval, whichever is shorter.
	const initialBackoff = 200 * time.Millisecond
	maxBackoff := 5 * time.Second
	if p.opts.Interval > 0 && p.opts.Interval < maxBackoff {
		maxBackoff = p.opts.Interval
	}
	backoff := initialBackoff

	var (
		pending  []Loader // sinks still owed the kept assessment
		assessed domain.Assessment
		nextRun  time.Time
	)

	for {
		var err error
		if len(pending) > 0 {
			pending, err = p.load(ctx, assessed, pending)
		} else {
			assessed, err = p.RunOnce(ctx)
			nextRun = p.clock.Now().Add(p.opts.Interval)
			var loadErr *LoadError
			if errors.As(err, &loadErr) {
				pending = loadErr.failed
			}
		}
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
		if p.opts.Interval == 0 {
			return err
		}

		wait := nextRun.Sub(p.clock.Now())
		switch {
		case err == nil:
			backoff = initialBackoff
		case len(pending) > 0 && wait <= backoff:
			// The next run publishes a fresh assessment to every sink.
			pending = nil
			backoff = initialBackoff
			p.logger.Warn("abandoning sink retry for next run", "run_id", assessed.RunID, "wait", wait)
		case len(pending) > 0:
			wait = backoff
			backoff = nextBackoff(backoff, maxBackoff)
			p.logger.Warn("retrying sinks", "run_id", assessed.RunID, "sinks", loaderNames(pending), "backoff", wait)
		default:
			wait = backoff
			backoff = nextBackoff(backoff, maxBackoff)
			p.logger.Warn("retrying run", "backoff", wait)
		}

		if !p.sleepWithContext(ctx, wait) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunOnce performs one complete assessment and publishes it. Sink failures
// do not stop the other sinks; they are joined into a *LoadError. The
// assessment is kept as Latest whenever it was computed, even if a sink
// failed.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.Assessment, error) {
	start := p.clock.Now()

	a, err := p.assess(ctx)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		p.logger.Error("assessment failed", "error", err)
		return domain.Assessment{}, err
	}

	p.mu.Lock()
	p.latest = &a
	p.mu.Unlock()
	p.ready.Store(true)
	p.recordOutcome(a)

	failed, err := p.load(ctx, a, p.loaders)
	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		return a, &LoadError{RunID: a.RunID, Sinks: loaderNames(failed), Err: err, failed: failed}
	}

	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.logger.Info("assessment completed",
		"run_id", a.RunID,
		"regions", len(a.Regions),
		"missing", len(a.Missing),
		"pvi_threshold", a.PVIThreshold,
		"sii_threshold", a.SIIThreshold,
		"duration", p.clock.Since(start),
	)
	return a, nil
}

func (p *Pipeline) assess(ctx context.Context) (domain.Assessment, error) {
	inputs, err := p.indicators.Collect(ctx)
	if err != nil {
		return domain.Assessment{}, err
	}

	rows, missing := domain.BuildIndicatorRows(p.opts.Catalog, inputs)
	for _, m := range missing {
		p.logger.Warn("region missing indicator data", "region", m.Region, "sources", m.Sources)
	}

	index, err := domain.ComputeIndex(rows)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("compute index: %w", err)
	}

	var counts []domain.ArticleCount
	if p.news != nil {
		counts, err = p.news.CountArticles(ctx, p.opts.Catalog.Names(), p.opts.NewsFrom, p.opts.NewsTo)
		if err != nil {
			return domain.Assessment{}, fmt.Errorf("count articles: %w", err)
		}
	}

	a, err := domain.AssembleAssessment(p.opts.Catalog, index, counts, p.opts.Thresholds)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("assemble assessment: %w", err)
	}
	a.Missing = missing

	return domain.EnrichWithGeocoding(ctx, a, p.opts.Catalog.Province, p.geocoder, p.logger), nil
}

// load hands the assessment to every given sink, even after one fails, and
// returns the sinks that rejected it.
func (p *Pipeline) load(ctx context.Context, a domain.Assessment, loaders []Loader) ([]Loader, error) {
	var (
		failed []Loader
		errs   []error
	)
	for _, l := range loaders {
		if err := l.Load(ctx, a); err != nil {
			p.metrics.SinkErrors.WithLabelValues(l.Name()).Inc()
			p.logger.Error("sink failed", "sink", l.Name(), "run_id", a.RunID, "error", err)
			failed = append(failed, l)
			errs = append(errs, fmt.Errorf("sink %s: %w", l.Name(), err))
			continue
		}
		p.metrics.AssessmentsPublished.WithLabelValues(l.Name()).Inc()
	}
	return failed, errors.Join(errs...)
}

func loaderNames(loaders []Loader) []string {
	names := make([]string, len(loaders))
	for i, l := range loaders {
		names[i] = l.Name()
	}
	return names
}

func (p *Pipeline) recordOutcome(a domain.Assessment) {
	scored := 0
	for _, r := range a.Regions {
		if r.HasIndicators {
			scored++
		}
	}
	p.metrics.RegionsScored.Set(float64(scored))
	p.metrics.RegionsMissing.Set(float64(len(a.Missing)))
	for i, w := range a.Weights {
		p.metrics.IndicatorWeight.WithLabelValues(domain.Indicator(i).String()).Set(w)
	}
	counts := a.CategoryCounts()
	for _, c := range domain.Categories {
		p.metrics.CategoryRegions.WithLabelValues(string(c)).Set(float64(counts[c]))
	}
}

func (p *Pipeline) sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
