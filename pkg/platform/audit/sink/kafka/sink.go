// Package kafka publishes audit events to a broker topic for external
// observers (indexers, compliance pipelines). The registry never consumes
// this topic itself.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "medledger/pkg/platform/audit"
)

// Sink produces one record per audit event, keyed by record address so all
// events for a record land on one partition in emission order.
type Sink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New builds a Sink over an existing franz-go client. The caller owns the
// client lifecycle.
func New(client *kgo.Client, topic string, logger *slog.Logger) *Sink {
	return &Sink{client: client, topic: topic, logger: logger}
}

// Dial connects a new client to the given brokers.
func Dial(brokers []string, topic string, logger *slog.Logger) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return New(client, topic, logger), nil
}

// Publish is best effort: the audit store append already succeeded, so a
// broker failure is logged, not propagated.
func (s *Sink) Publish(ctx context.Context, event audit.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to marshal audit event", "event_id", event.ID, "error", err)
		return
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Address),
		Value: payload,
	}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Error("failed to publish audit event", "event_id", event.ID, "error", err)
		}
	})
}

// Close flushes buffered produces, then releases the client. Without the
// flush, records still in the producer buffer are dropped on shutdown.
func (s *Sink) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Flush(ctx); err != nil {
		s.logger.Error("failed to flush audit events before close", "error", err)
	}
	s.client.Close()
}
