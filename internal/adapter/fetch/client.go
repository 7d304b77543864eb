// Package fetch is the shared HTTP GET used by every upstream source: a
// request timeout, a bounded number of trials with a fixed pause between
// them, and per-source Prometheus accounting.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/couchcryptid/drought-risk-etl/internal/observability"
)

const maxBodyBytes = 32 << 20

// Options configures the retry policy.
type Options struct {
	Timeout    time.Duration
	MaxTrials  int
	RetryDelay time.Duration
	UserAgent  string
}

// Client performs GET requests with retry-with-sleep.
type Client struct {
	httpClient *http.Client
	maxTrials  int
	retryDelay time.Duration
	userAgent  string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// StatusError is a non-2xx upstream response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether another trial may succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// NewClient creates a fetch client. A MaxTrials below 1 means a single trial.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	trials := opts.MaxTrials
	if trials < 1 {
		trials = 1
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (compatible; drought-risk-etl/1.0)"
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		maxTrials:  trials,
		retryDelay: opts.RetryDelay,
		userAgent:  ua,
		metrics:    metrics,
		logger:     logger,
	}
}

// GetBody fetches url and returns the response body. source labels metrics
// and logs ("sgi", "kosis", "naver", ...).
func (c *Client) GetBody(ctx context.Context, source, rawURL string) ([]byte, error) {
	var lastErr error
	for trial := 1; trial <= c.maxTrials; trial++ {
		body, err := c.get(ctx, source, rawURL)
		if err == nil {
			c.metrics.SourceRequests.WithLabelValues(source, "success").Inc()
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			break
		}
		if trial == c.maxTrials {
			break
		}

		c.metrics.SourceRequests.WithLabelValues(source, "retry").Inc()
		c.logger.Warn("upstream request failed, retrying",
			"source", source,
			"trial", trial,
			"max_trials", c.maxTrials,
			"error", err,
		)
		if !sleepWithContext(ctx, c.retryDelay) {
			return nil, ctx.Err()
		}
	}

	c.metrics.SourceRequests.WithLabelValues(source, "error").Inc()
	return nil, fmt.Errorf("%s request failed: %w", source, lastErr)
}

// GetJSON fetches url and decodes the JSON body into dst.
func (c *Client) GetJSON(ctx context.Context, source, rawURL string, dst any) error {
	body, err := c.GetBody(ctx, source, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode %s response: %w", source, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, source, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", RedactError(err))
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.SourceDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, RedactError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: RedactURL(rawURL), StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

// credentialParams are query parameters that carry API keys. Matching is
// case-insensitive: data.go.kr accepts both serviceKey and ServiceKey.
var credentialParams = map[string]bool{
	"servicekey":   true,
	"apikey":       true,
	"access_token": true,
	"token":        true,
}

// RedactURL masks credential query parameters and user-info passwords so
// the URL can appear in errors and logs.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable url>"
	}
	q := u.Query()
	masked := false
	for name := range q {
		if credentialParams[strings.ToLower(name)] {
			q.Set(name, "REDACTED")
			masked = true
		}
	}
	if masked {
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}

// RedactError masks the URL carried by a *url.Error, which net/http returns
// for transport failures and embeds verbatim in its message.
func RedactError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return &url.Error{Op: ue.Op, URL: RedactURL(ue.URL), Err: ue.Err}
	}
	return err
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
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
