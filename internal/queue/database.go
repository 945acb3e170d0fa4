package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lthibault/jitterbug/v2"
	"github.com/pkg/errors"
	"github.com/seqworks/annotation-pipeline/internal/store"
)

const dbPollInterval = 500 * time.Millisecond

// DatabaseQueue serves a channel out of the queue_messages table. The
// store claim is atomic, so any number of worker instances may receive
// from the same channel concurrently.
type DatabaseQueue struct {
	queues     store.Queue
	name       string
	visibility time.Duration
	maxReceive int
}

var _ Queue = (*DatabaseQueue)(nil)

func NewDatabaseQueue(queues store.Queue, name string, visibility time.Duration, maxReceive int) *DatabaseQueue {
	return &DatabaseQueue{
		queues:     queues,
		name:       name,
		visibility: visibility,
		maxReceive: maxReceive,
	}
}

func (q *DatabaseQueue) Send(ctx context.Context, body []byte) error {
	return q.queues.Enqueue(ctx, q.name, body)
}

// Receive polls the table on a jittered interval until a message shows
// up or the wait elapses. Jitter keeps a fleet of workers from hitting
// the table in lockstep.
func (q *DatabaseQueue) Receive(ctx context.Context, wait time.Duration) (*Message, error) {
	deadline := time.Now().Add(wait)
	ticker := jitterbug.New(dbPollInterval, &jitterbug.Norm{Stdev: 50 * time.Millisecond})
	defer ticker.Stop()

	for {
		msg, err := q.queues.Dequeue(ctx, q.name, q.visibility, q.maxReceive)
		if err != nil {
			return nil, errors.Wrapf(err, "receiving from %s", q.name)
		}
		if msg != nil {
			return &Message{
				ID:           msg.ID.String(),
				Receipt:      msg.ID.String(),
				Body:         msg.Body,
				ReceiveCount: msg.ReceiveCount,
			}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		// never sleep past the caller's wait; the timer forces one final
		// poll at the deadline
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		case <-time.After(remaining):
		}
	}
}

func (q *DatabaseQueue) Ack(ctx context.Context, msg *Message) error {
	id, err := uuid.Parse(msg.Receipt)
	if err != nil {
		return errors.Wrapf(err, "acking message on %s", q.name)
	}
	return q.queues.Delete(ctx, id)
}
