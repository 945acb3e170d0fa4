package model

import (
	"time"

	"github.com/google/uuid"
)

// QueueMessage is one undelivered (or in-flight) message of a logical
// channel backed by the database. A message is in flight while
// visible_at lies in the future; acking deletes the row.
type QueueMessage struct {
	ID           uuid.UUID `gorm:"primaryKey;column:id;type:uuid"`
	Queue        string    `gorm:"column:queue;index:idx_queue_messages_queue;not null"`
	Body         []byte    `gorm:"column:body;not null"`
	VisibleAt    time.Time `gorm:"column:visible_at;index:idx_queue_messages_visible_at;not null"`
	ReceiveCount int       `gorm:"column:receive_count;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (QueueMessage) TableName() string {
	return "queue_messages"
}
