//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/drought-risk-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/drought-risk-etl/internal/adapter/kafka"
	"github.com/couchcryptid/drought-risk-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/drought-risk-etl/internal/config"
	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	"github.com/couchcryptid/drought-risk-etl/internal/observability"
	"github.com/couchcryptid/drought-risk-etl/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-drought-assessments"

// publishedMessage holds a deserialized message read from the topic.
type publishedMessage struct {
	Value   kafka.RegionMessage
	Key     string
	Headers map[string]string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("drought-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 3, ReplicationFactor: 1}))
}

// readPublished reads n messages from the topic and deserializes them.
func readPublished(ctx context.Context, t *testing.T, broker string, n int) []publishedMessage {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out := make([]publishedMessage, 0, n)
	for len(out) < n {
		msg, err := consumer.ReadMessage(readCtx)
		require.NoError(t, err, "read from topic")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		var value kafka.RegionMessage
		require.NoError(t, json.Unmarshal(msg.Value, &value), "unmarshal message")
		out = append(out, publishedMessage{Value: value, Key: string(msg.Key), Headers: headers})
	}
	return out
}

func testCatalog() domain.Catalog {
	c := domain.DefaultCatalog()
	c.Regions = []domain.Region{
		{Name: "춘천", FullName: "춘천시"},
		{Name: "강릉", FullName: "강릉시"},
		{Name: "속초", FullName: "속초시"},
		{Name: "양구", FullName: "양구군"},
	}
	return c
}

// staticIndicators serves one fixed set of source records.
type staticIndicators struct{}

func (staticIndicators) Collect(context.Context) (domain.IndicatorInputs, error) {
	return domain.IndicatorInputs{
		SGI: []domain.SGIObservation{
			{StationName: "춘천신북", SGI: -1.0},
			{StationName: "강릉", SGI: 0.5},
			{StationName: "속초", SGI: 0.2},
			{StationName: "양구", SGI: 0.1},
		},
		WaterSupply: []domain.WaterSupplyStat{
			{Region: "춘천시", PerCapitaUse: 300, PenetrationPct: 98},
			{Region: "강릉시", PerCapitaUse: 350, PenetrationPct: 97},
			{Region: "속초시", PerCapitaUse: 280, PenetrationPct: 99},
			{Region: "양구군", PerCapitaUse: 250, PenetrationPct: 90},
		},
		Farmland: []domain.FarmlandRatio{
			{Region: "춘천시", RatioPct: 10},
			{Region: "강릉시", RatioPct: 15},
			{Region: "속초시", RatioPct: 5},
		},
		RevenueWater: []domain.RevenueWaterRate{
			{Region: "춘천시", RatePct: 85},
			{Region: "강릉시", RatePct: 80},
			{Region: "속초시", RatePct: 90},
			{Region: "양구군", RatePct: 70},
		},
	}, nil
}

// staticNews reports fixed article counts.
type staticNews map[string]int

func (n staticNews) CountArticles(_ context.Context, regions []string, _, _ time.Time) ([]domain.ArticleCount, error) {
	out := make([]domain.ArticleCount, len(regions))
	for i, r := range regions {
		out[i] = domain.ArticleCount{Region: r, Count: n[r]}
	}
	return out, nil
}

// TestKafkaWriter verifies that kafka.Writer publishes one keyed message per
// region with the expected headers and payload.
func TestKafkaWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	a := domain.Assessment{
		RunID:        "run-integration",
		ComputedAt:   time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC),
		Weights:      domain.Weights{0.2, 0.2, 0.2, 0.2, 0.2},
		PVIThreshold: 0.5,
		SIIThreshold: 0.5,
		Regions: []domain.RegionAssessment{
			{Region: "춘천", FullName: "춘천시", HasIndicators: true, PVI: 1, SII: 0,
				Category: domain.CategoryLatentRisk, Label: domain.CategoryLatentRisk.Label()},
			{Region: "강릉", FullName: "강릉시", HasIndicators: true, PVI: 0, SII: 1, ArticleCount: 12,
				Category: domain.CategoryObservationNeeded, Label: domain.CategoryObservationNeeded.Label()},
		},
	}
	require.NoError(t, writer.Load(ctx, a))

	got := readPublished(ctx, t, broker, len(a.Regions))
	byKey := make(map[string]publishedMessage, len(got))
	for _, m := range got {
		byKey[m.Key] = m
	}

	require.Contains(t, byKey, "강릉")
	m := byKey["강릉"]
	assert.Equal(t, "observation_needed", m.Headers["category"])
	assert.Equal(t, "2025-11-03T09:00:00Z", m.Headers["computed_at"])
	assert.Equal(t, "run-integration", m.Value.RunID)
	assert.Equal(t, 12, m.Value.Region.ArticleCount)
	assert.InDelta(t, 0.2, m.Value.Weights["exposure"], 1e-12)
	assert.Contains(t, byKey, "춘천")
}

// TestPipelineEndToEnd runs one assessment through every sink: CSV files,
// the SQLite store and Kafka. All three must describe the same run.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	dir := t.TempDir()
	store, err := sqlite.Open(ctx, filepath.Join(dir, "drought.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	catalog := testCatalog()
	p := pipeline.New(pipeline.Options{Catalog: catalog},
		staticIndicators{}, staticNews{"강릉": 30, "춘천": 2}, nil,
		[]pipeline.Loader{csvfile.NewSink(dir, discardLogger()), store, writer},
		discardLogger(), observability.NewMetricsForTesting())

	a, err := p.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, a.Regions, len(catalog.Regions))
	require.Len(t, a.Missing, 1)
	assert.Equal(t, "양구", a.Missing[0].Region)

	// Kafka: one message per catalog region, all from this run.
	published := readPublished(ctx, t, broker, len(catalog.Regions))
	keys := make([]string, 0, len(published))
	for _, m := range published {
		assert.Equal(t, a.RunID, m.Value.RunID)
		want, ok := a.Region(m.Key)
		require.True(t, ok, "unexpected key %s", m.Key)
		assert.Equal(t, string(want.Category), m.Headers["category"])
		keys = append(keys, m.Key)
	}
	assert.ElementsMatch(t, catalog.Names(), keys)

	// SQLite: the stored run matches what was computed.
	stored, err := store.LatestAssessment(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(a.Regions, stored.Regions); diff != "" {
		t.Errorf("stored regions mismatch (-computed +stored):\n%s", diff)
	}

	// CSV: the PVI table lists only regions with indicator data.
	scores, err := csvfile.ReadFile(filepath.Join(dir, csvfile.PVIResultFile), csvfile.ReadPVIResult)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	for _, s := range scores {
		r, ok := a.Region(s.RegionID)
		require.True(t, ok)
		assert.InDelta(t, r.PVI, s.Score, 1e-12)
	}
}
