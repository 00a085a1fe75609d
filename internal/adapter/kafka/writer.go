// Package kafka announces completed dataset refreshes to downstream
// consumers. The topic is optional; readers that do not consume it fall
// back to polling the status record.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/weatherforhumans/thermal-etl/internal/config"
	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

// Writer produces refresh events to a Kafka topic.
// It implements pipeline.RefreshNotifier.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured refresh topic.
func NewWriter(cfg config.KafkaConfig, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// NotifyRefreshed publishes one refresh event keyed by source version, so
// compacted topics keep the latest event per model run.
func (w *Writer) NotifyRefreshed(ctx context.Context, event domain.RefreshEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish refresh event: %w", err)
	}
	w.logger.Info("refresh event published", "source_version", event.SourceVersion)
	return nil
}

func serializeToMessage(event domain.RefreshEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize refresh event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.SourceVersion),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "completed_at", Value: []byte(event.CompletedAt.Format(time.RFC3339))},
		},
	}, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}
