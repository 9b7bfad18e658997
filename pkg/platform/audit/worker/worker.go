// Package worker decouples audit sink delivery from the request path. The
// Publisher appends to its store synchronously; slow sinks (brokers) hang
// off a buffered channel drained here.
package worker

import (
	"context"
	"log/slog"

	audit "medledger/pkg/platform/audit"
)

// Queue is an audit.Sink backed by a channel. Publish never blocks the
// request path: when the buffer is full the event is dropped and counted
// against the log, never against the operation.
type Queue struct {
	ch     chan audit.Event
	logger *slog.Logger
}

func NewQueue(size int, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{ch: make(chan audit.Event, size), logger: logger}
}

func (q *Queue) Publish(ctx context.Context, event audit.Event) {
	select {
	case q.ch <- event:
	default:
		q.logger.WarnContext(ctx, "audit queue full, dropping sink delivery", "event_id", event.ID)
	}
}

// Worker drains a queue and forwards each event to the configured sinks.
type Worker struct {
	queue *Queue
	sinks []audit.Sink
}

func NewWorker(queue *Queue, sinks ...audit.Sink) *Worker {
	return &Worker{queue: queue, sinks: sinks}
}

// Run blocks until ctx is cancelled, forwarding queued events as they come.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.queue.ch:
			for _, sink := range w.sinks {
				sink.Publish(ctx, event)
			}
		}
	}
}
