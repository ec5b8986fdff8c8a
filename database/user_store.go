package database

import (
	"context"

	"dm-service/model"

	"gorm.io/gorm"
)

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *UserStore) Get(ctx context.Context, id uint) (*model.User, error) {
	user := new(model.User)
	if err := s.db.WithContext(ctx).First(user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

func (s *UserStore) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// Others lists every user except id.
func (s *UserStore) Others(ctx context.Context, id uint) ([]model.User, error) {
	users := []model.User{}
	err := s.db.WithContext(ctx).Where("id <> ?", id).Order("id asc").Find(&users).Error
	return users, err
}
