package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sightings-map/internal/config"
	"github.com/couchcryptid/sightings-map/internal/session"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// SnapshotWriter publishes view snapshots to a Kafka topic.
// It implements session.SnapshotPublisher.
type SnapshotWriter struct {
	writer messageWriter
	logger *slog.Logger
}

// NewSnapshotWriter creates a Kafka producer for the configured snapshot topic.
func NewSnapshotWriter(cfg *config.Config, logger *slog.Logger) *SnapshotWriter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSnapshotTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &SnapshotWriter{writer: w, logger: logger}
}

// Publish writes one snapshot, keyed by session ID so a session's snapshots
// stay ordered on one partition.
func (w *SnapshotWriter) Publish(ctx context.Context, s session.Snapshot) error {
	msg, err := serializeToMessage(s)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	w.logger.Debug("snapshot published", "fingerprint", s.Fingerprint, "regions", len(s.Regions))
	return nil
}

func (w *SnapshotWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Snapshot into a Kafka message.
func serializeToMessage(s session.Snapshot) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(s.SessionID),
		Value: data,
		Time:  s.ComputedAt,
		Headers: []kafkago.Header{
			{Key: "trigger", Value: []byte(s.Trigger)},
			{Key: "fingerprint", Value: []byte(s.Fingerprint)},
			{Key: "computed_at", Value: []byte(s.ComputedAt.Format(time.RFC3339))},
		},
	}, nil
}
