package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ghdsi/case-slicer/internal/artifact"
	"github.com/ghdsi/case-slicer/internal/config"
)

// Writer publishes daily slices to a Kafka topic, one message per date.
// It implements pipeline.SlicePublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured slice topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSliceTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishSlices serializes and publishes the slices of one run in a single
// WriteMessages call. Messages are keyed by date so a re-run lands on the
// same partition as the slice it replaces.
func (w *Writer) PublishSlices(ctx context.Context, runID string, slices []artifact.DailySlice) error {
	if len(slices) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(slices))
	for i := range slices {
		msg, err := serializeToMessage(runID, slices[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d slices: %w", len(msgs), err)
	}
	w.logger.Info("daily slices published", "topic", w.writer.Topic, "count", len(msgs), "run_id", runID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a DailySlice into a Kafka message.
func serializeToMessage(runID string, slice artifact.DailySlice) (kafkago.Message, error) {
	data, err := json.Marshal(slice)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize slice %s: %w", slice.Date, err)
	}
	return kafkago.Message{
		Key:   []byte(slice.Date),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "features", Value: []byte(strconv.Itoa(len(slice.Features)))},
		},
	}, nil
}
