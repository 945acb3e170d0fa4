// Package queue abstracts the message channels connecting the pipeline
// workers. All implementations provide at-least-once delivery: a
// received message stays invisible for a visibility window and is
// redelivered unless acked first, so handlers must be idempotent.
package queue

import (
	"context"
	"time"
)

// Message is one delivery of a channel message. Receipt identifies this
// particular delivery to the backend for acking.
type Message struct {
	ID           string
	Receipt      string
	Body         []byte
	ReceiveCount int
}

// Queue is a single named channel.
type Queue interface {
	// Send publishes a message on the channel.
	Send(ctx context.Context, body []byte) error

	// Receive long-polls for the next message, waiting up to wait.
	// It returns (nil, nil) when no message arrived in time.
	Receive(ctx context.Context, wait time.Duration) (*Message, error)

	// Ack deletes a received message so it is not delivered again.
	Ack(ctx context.Context, msg *Message) error
}
