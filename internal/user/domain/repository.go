package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByAuthID(ctx context.Context, db *gorm.DB, authID string) (*User, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
}
