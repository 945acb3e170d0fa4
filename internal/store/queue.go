package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/seqworks/annotation-pipeline/internal/store/model"
	"github.com/seqworks/annotation-pipeline/pkg/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeadLetterSuffix is appended to a channel name when a message has
// exhausted its deliveries and is parked for inspection.
const DeadLetterSuffix = ".dlq"

// Queue holds the database-backed message channels. Delivery is
// at-least-once: Dequeue makes a message invisible for the caller's
// visibility window and it becomes deliverable again unless Delete is
// called first. Receive counts are tracked so poisoned messages can be
// diverted to a dead-letter channel instead of looping forever.
type Queue interface {
	Enqueue(ctx context.Context, queue string, body []byte) error
	Dequeue(ctx context.Context, queue string, visibility time.Duration, maxReceive int) (*model.QueueMessage, error)
	Delete(ctx context.Context, id uuid.UUID) error
	InitialMigration(ctx context.Context) error
}

type QueueStore struct {
	db *gorm.DB
}

// Make sure we conform to Queue interface
var _ Queue = (*QueueStore)(nil)

func NewQueueStore(db *gorm.DB) Queue {
	return &QueueStore{db: db}
}

func (s *QueueStore) InitialMigration(ctx context.Context) error {
	return s.getDB(ctx).AutoMigrate(&model.QueueMessage{})
}

func (s *QueueStore) Enqueue(ctx context.Context, queue string, body []byte) error {
	msg := model.QueueMessage{
		ID:        uuid.New(),
		Queue:     queue,
		Body:      body,
		VisibleAt: time.Now(),
	}
	if err := s.getDB(ctx).WithContext(ctx).Create(&msg).Error; err != nil {
		return fmt.Errorf("enqueueing message on %s: %w", queue, err)
	}
	return nil
}

// Dequeue claims the oldest visible message of the channel, or returns
// nil when the channel is empty. The claim is a single transaction:
// exhausted messages are diverted to the dead-letter channel, then the
// winner's visibility is pushed out and its receive count incremented.
func (s *QueueStore) Dequeue(ctx context.Context, queue string, visibility time.Duration, maxReceive int) (*model.QueueMessage, error) {
	var claimed *model.QueueMessage

	err := s.getDB(ctx).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		if maxReceive > 0 {
			result := tx.Model(&model.QueueMessage{}).
				Where("queue = ? AND visible_at <= ? AND receive_count >= ?", queue, now, maxReceive).
				Update("queue", queue+DeadLetterSuffix)
			if result.Error != nil {
				return fmt.Errorf("diverting dead letters: %w", result.Error)
			}
			if result.RowsAffected > 0 {
				metrics.IncreaseMessagesDeadLettered(queue, int(result.RowsAffected))
			}
		}

		sel := tx.Where("queue = ? AND visible_at <= ?", queue, now).
			Order("created_at ASC")
		if tx.Dialector.Name() == "postgres" {
			sel = sel.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var msg model.QueueMessage
		if err := sel.First(&msg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("claiming message: %w", err)
		}

		msg.ReceiveCount++
		msg.VisibleAt = now.Add(visibility)
		if err := tx.Model(&model.QueueMessage{}).
			Where("id = ?", msg.ID).
			Updates(map[string]interface{}{
				"receive_count": msg.ReceiveCount,
				"visible_at":    msg.VisibleAt,
			}).Error; err != nil {
			return fmt.Errorf("claiming message: %w", err)
		}

		claimed = &msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *QueueStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.getDB(ctx).WithContext(ctx).Delete(&model.QueueMessage{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("deleting message %s: %w", id, result.Error)
	}
	return nil
}

func (s *QueueStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
