package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/quakes-near-me/internal/config"
	"github.com/couchcryptid/quakes-near-me/internal/domain"
	"github.com/couchcryptid/quakes-near-me/internal/store"
	kafkago "github.com/segmentio/kafka-go"
)

// Header keys set on every published feature.
const (
	HeaderSequence  = "sequence"
	HeaderFetchedAt = "fetched_at"
)

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes accepted snapshots to a Kafka topic, one message per feature.
// It implements pipeline.SnapshotPublisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishSnapshot writes every feature in snap in a single WriteMessages call.
// Messages are keyed by feature ID so updates to one event land on the same
// partition.
func (w *Writer) PublishSnapshot(ctx context.Context, snap store.Snapshot) error {
	features := snap.Collection.Features
	if len(features) == 0 {
		return nil
	}
	headers := snapshotHeaders(snap)
	msgs := make([]kafkago.Message, len(features))
	for i := range features {
		msg, err := serializeToMessage(features[i], headers)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write snapshot %d: %w", snap.Sequence, err)
	}
	w.logger.Debug("snapshot published", "sequence", snap.Sequence, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func snapshotHeaders(snap store.Snapshot) []kafkago.Header {
	return []kafkago.Header{
		{Key: HeaderSequence, Value: []byte(strconv.FormatUint(snap.Sequence, 10))},
		{Key: HeaderFetchedAt, Value: []byte(snap.Collection.FetchedAt.UTC().Format(time.RFC3339))},
	}
}

// serializeToMessage marshals a Feature into a Kafka message.
func serializeToMessage(f domain.Feature, headers []kafkago.Header) (kafkago.Message, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize feature %s: %w", f.ID, err)
	}
	return kafkago.Message{
		Key:     []byte(f.ID),
		Value:   data,
		Headers: headers,
	}, nil
}
