package store

import (
	"context"

	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Job() Job
	User() User
	Queue() Queue
	InitialMigration(ctx context.Context) error
	Close() error
}

type DataStore struct {
	db    *gorm.DB
	job   Job
	user  User
	queue Queue
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:    db,
		job:   NewJobStore(db),
		user:  NewUserStore(db),
		queue: NewQueueStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) User() User {
	return s.user
}

func (s *DataStore) Queue() Queue {
	return s.queue
}

// InitialMigration auto-migrates every entity. Production deployments
// run the goose migrations instead; this path serves tests and the
// sqlite dialect.
func (s *DataStore) InitialMigration(ctx context.Context) error {
	if err := s.job.InitialMigration(ctx); err != nil {
		return err
	}
	if err := s.user.InitialMigration(ctx); err != nil {
		return err
	}
	return s.queue.InitialMigration(ctx)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
