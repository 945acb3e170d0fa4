// Package workers implements the four long-running roles of the
// annotation pipeline: dispatcher, archiver, restorer and thawer, plus
// the completion notifier driven by the runner binary. Each worker is
// a poll loop over one channel; correctness under redelivery and
// concurrent instances rests on the store's conditional updates, never
// on locks.
package workers

import (
	"context"
	"time"

	"github.com/seqworks/annotation-pipeline/internal/queue"
	"github.com/seqworks/annotation-pipeline/pkg/metrics"
	"go.uber.org/zap"
)

// Handler processes one delivery. A nil return acks the message; a
// terminal error acks and drops it; any other error leaves it on the
// channel for redelivery after the visibility window.
type Handler interface {
	Handle(ctx context.Context, msg *queue.Message) error
}

type HandlerFunc func(ctx context.Context, msg *queue.Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *queue.Message) error {
	return f(ctx, msg)
}

// Worker drives a Handler from a channel until the context is
// cancelled.
type Worker struct {
	name    string
	queue   queue.Queue
	handler Handler
	wait    time.Duration
	log     *zap.SugaredLogger
}

func New(name string, q queue.Queue, h Handler, wait time.Duration) *Worker {
	return &Worker{
		name:    name,
		queue:   q,
		handler: h,
		wait:    wait,
		log:     zap.S().Named(name),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started")
	defer w.log.Info("worker stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := w.queue.Receive(ctx, w.wait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Errorw("receive failed", "error", err)
			continue
		}
		if msg == nil {
			continue
		}

		w.process(ctx, msg)
	}
}

func (w *Worker) process(ctx context.Context, msg *queue.Message) {
	err := w.handler.Handle(ctx, msg)
	switch {
	case err == nil:
		metrics.IncreaseMessagesProcessed(w.name, metrics.OutcomeHandled)
		w.ack(ctx, msg)
	case IsTerminal(err):
		// retrying cannot succeed; drop the message
		metrics.IncreaseMessagesProcessed(w.name, metrics.OutcomeTerminal)
		w.log.Warnw("dropping message", "message_id", msg.ID, "error", err)
		w.ack(ctx, msg)
	default:
		// leave unacked; the channel redelivers after the visibility
		// window and dead-letters after too many attempts
		metrics.IncreaseMessagesProcessed(w.name, metrics.OutcomeRetryable)
		w.log.Errorw("processing failed, leaving for redelivery",
			"message_id", msg.ID, "receive_count", msg.ReceiveCount, "error", err)
	}
}

func (w *Worker) ack(ctx context.Context, msg *queue.Message) {
	if err := w.queue.Ack(ctx, msg); err != nil {
		// the message will come back; handlers are idempotent
		w.log.Errorw("ack failed", "message_id", msg.ID, "error", err)
	}
}
