package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/seqworks/annotation-pipeline/internal/store/model"
	"gorm.io/gorm"
)

// User reads the accounts table. The pipeline only ever looks profiles
// up; account management belongs to the web layer.
type User interface {
	Get(ctx context.Context, userID string) (*model.User, error)
	Create(ctx context.Context, user model.User) (*model.User, error)
	InitialMigration(ctx context.Context) error
}

type UserStore struct {
	db *gorm.DB
}

// Make sure we conform to User interface
var _ User = (*UserStore)(nil)

func NewUserStore(db *gorm.DB) User {
	return &UserStore{db: db}
}

func (s *UserStore) InitialMigration(ctx context.Context) error {
	return s.getDB(ctx).AutoMigrate(&model.User{})
}

func (s *UserStore) Get(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	result := s.getDB(ctx).WithContext(ctx).First(&user, "id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying user: %w", result.Error)
	}
	return &user, nil
}

func (s *UserStore) Create(ctx context.Context, user model.User) (*model.User, error) {
	if err := s.getDB(ctx).WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &user, nil
}

func (s *UserStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
