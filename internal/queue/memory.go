package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const memoryPollInterval = 5 * time.Millisecond

type memoryMessage struct {
	id           string
	body         []byte
	visibleAt    time.Time
	receiveCount int
}

// MemoryQueue is an in-process channel with the same redelivery
// semantics as the durable backends. It backs the worker tests and
// local single-process runs.
type MemoryQueue struct {
	mu         sync.Mutex
	messages   []*memoryMessage
	visibility time.Duration
}

var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue(visibility time.Duration) *MemoryQueue {
	return &MemoryQueue{visibility: visibility}
}

func (q *MemoryQueue) Send(_ context.Context, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.messages = append(q.messages, &memoryMessage{
		id:        uuid.NewString(),
		body:      append([]byte(nil), body...),
		visibleAt: time.Now(),
	})
	return nil
}

func (q *MemoryQueue) Receive(ctx context.Context, wait time.Duration) (*Message, error) {
	deadline := time.Now().Add(wait)
	for {
		if msg := q.claim(); msg != nil {
			return msg, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(memoryPollInterval):
		}
	}
}

func (q *MemoryQueue) claim() *Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for _, m := range q.messages {
		if m.visibleAt.After(now) {
			continue
		}
		m.receiveCount++
		m.visibleAt = now.Add(q.visibility)
		return &Message{
			ID:           m.id,
			Receipt:      m.id,
			Body:         append([]byte(nil), m.body...),
			ReceiveCount: m.receiveCount,
		}
	}
	return nil
}

func (q *MemoryQueue) Ack(_ context.Context, msg *Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, m := range q.messages {
		if m.id == msg.Receipt {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return nil
		}
	}
	return nil
}

// MakeVisible cancels the remaining visibility window of every
// in-flight message, forcing immediate redelivery. Tests use it to
// replay a message without waiting out the timeout.
func (q *MemoryQueue) MakeVisible() {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for _, m := range q.messages {
		m.visibleAt = now
	}
}

// Len reports the number of messages still on the channel, in flight
// or deliverable.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}
