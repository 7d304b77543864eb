// Package kafka publishes drought assessments to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/drought-risk-etl/internal/config"
	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces one message per region to a Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in metrics and logs.
func (w *Writer) Name() string { return "kafka" }

// Load publishes every region of the assessment in a single WriteMessages
// call. Keys are region names so a region's history stays on one partition.
func (w *Writer) Load(ctx context.Context, a domain.Assessment) error {
	if len(a.Regions) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(a.Regions))
	for i := range a.Regions {
		msg, err := serializeToMessage(a, a.Regions[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish assessment %s: %w", a.RunID, err)
	}
	w.logger.Debug("assessment published", "run_id", a.RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// RegionMessage is the value of one published message.
type RegionMessage struct {
	RunID        string                  `json:"run_id"`
	ComputedAt   time.Time               `json:"computed_at"`
	PVIThreshold float64                 `json:"pvi_threshold"`
	SIIThreshold float64                 `json:"sii_threshold"`
	Weights      map[string]float64      `json:"weights"`
	Region       domain.RegionAssessment `json:"region"`
}

// serializeToMessage marshals one region's outcome into a Kafka message.
func serializeToMessage(a domain.Assessment, r domain.RegionAssessment) (kafkago.Message, error) {
	data, err := json.Marshal(RegionMessage{
		RunID:        a.RunID,
		ComputedAt:   a.ComputedAt,
		PVIThreshold: a.PVIThreshold,
		SIIThreshold: a.SIIThreshold,
		Weights:      a.Weights.ByName(),
		Region:       r,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize region %s: %w", r.Region, err)
	}
	return kafkago.Message{
		Key:   []byte(r.Region),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "category", Value: []byte(r.Category)},
			{Key: "computed_at", Value: []byte(a.ComputedAt.Format(time.RFC3339))},
		},
	}, nil
}
