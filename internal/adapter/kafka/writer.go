package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// publishBatch caps the number of messages per WriteMessages call.
const publishBatch = 500

// Writer publishes exported crash records to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the given topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    publishBatch,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes every record as JSON, keyed by record id so that a
// re-published run lands on the same partitions. It returns the number of
// records written.
func (w *Writer) Publish(ctx context.Context, records []domain.CrashRecord, exportedAt time.Time) (int, error) {
	sent := 0
	for start := 0; start < len(records); start += publishBatch {
		end := min(start+publishBatch, len(records))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(records[i], exportedAt)
			if err != nil {
				return sent, err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return sent, fmt.Errorf("write messages: %w", err)
		}
		sent += len(msgs)
	}
	w.logger.Info("records published", "topic", w.writer.Topic, "records", sent)
	return sent, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a CrashRecord into a Kafka message.
func serializeToMessage(rec domain.CrashRecord, exportedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize crash record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.RecordID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "incident_id", Value: []byte(rec.IncidentID)},
			{Key: "severity", Value: []byte(rec.Severity)},
			{Key: "exported_at", Value: []byte(exportedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
