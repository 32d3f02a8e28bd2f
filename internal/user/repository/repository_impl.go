package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/textlane/textlane/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() userdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *userdomain.User) error {
	return db.WithContext(ctx).Create(user).Error
}

func (r *repo) FindByAuthID(ctx context.Context, db *gorm.DB, authID string) (*userdomain.User, error) {
	var user userdomain.User
	err := db.WithContext(ctx).First(&user, "auth_id = ?", authID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*userdomain.User, error) {
	var user userdomain.User
	err := db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
