package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/textlane/textlane/internal/clock"
	userdomain "github.com/textlane/textlane/internal/user/domain"
	"github.com/textlane/textlane/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  userdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  userdomain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) userdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("user.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req userdomain.CreateRequest) (*userdomain.User, error) {
	authID := strings.TrimSpace(req.AuthID)
	if authID == "" {
		return nil, userdomain.ErrInvalidAuthID
	}

	now := s.clock.Now()
	user := &userdomain.User{
		ID:        s.genID.Generate(),
		AuthID:    authID,
		FullName:  strings.TrimSpace(req.FullName),
		Email:     strings.TrimSpace(req.Email),
		AvatarURL: strings.TrimSpace(req.AvatarURL),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.repo.Insert(ctx, s.db, user)
	if err == nil {
		return user, nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return nil, err
	}

	// A concurrent or earlier provisioning call won the insert.
	existing, err := s.repo.FindByAuthID(ctx, s.db, authID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, userdomain.ErrNotFound
	}
	return existing, nil
}

func (s *Service) GetByAuthID(ctx context.Context, authID string) (*userdomain.User, error) {
	trimmed := strings.TrimSpace(authID)
	if trimmed == "" {
		return nil, userdomain.ErrInvalidAuthID
	}

	user, err := s.repo.FindByAuthID(ctx, s.db, trimmed)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*userdomain.User, error) {
	if id == 0 {
		return nil, userdomain.ErrNotFound
	}

	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}
	return user, nil
}
