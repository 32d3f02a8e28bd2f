package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Create registers a user for an external identity. Calling it again
	// for the same auth id returns the existing record unchanged.
	Create(ctx context.Context, req CreateRequest) (*User, error)
	GetByAuthID(ctx context.Context, authID string) (*User, error)
	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
}

type CreateRequest struct {
	AuthID    string
	FullName  string
	Email     string
	AvatarURL string
}

var (
	ErrInvalidAuthID = errors.New("invalid_auth_id")
	ErrNotFound      = errors.New("user_not_found")
)
