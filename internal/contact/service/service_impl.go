package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/textlane/textlane/internal/clock"
	contactdomain "github.com/textlane/textlane/internal/contact/domain"
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
	Repo  contactdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  contactdomain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) contactdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("contact.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) GetOrCreate(ctx context.Context, rawPhone string) (*contactdomain.Contact, error) {
	phone, err := contactdomain.NormalizePhoneNumber(rawPhone)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindContactByPhone(ctx, s.db, phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	contact := &contactdomain.Contact{
		ID:          s.genID.Generate(),
		PhoneNumber: phone,
		CreatedAt:   s.clock.Now(),
	}
	err = s.repo.InsertContact(ctx, s.db, contact)
	if err == nil {
		return contact, nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return nil, err
	}

	// A concurrent caller inserted the same number first; the unique phone
	// index turns the race into a re-read.
	existing, err = s.repo.FindContactByPhone(ctx, s.db, phone)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return existing, nil
}

func (s *Service) Upsert(ctx context.Context, orgID snowflake.ID, req contactdomain.UpsertRequest) (snowflake.ID, error) {
	if orgID == 0 {
		return 0, contactdomain.ErrInvalidOrganization
	}

	contact, err := s.GetOrCreate(ctx, req.PhoneNumber)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	link := &contactdomain.OrganizationContact{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		ContactID:  contact.ID,
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Email:      strings.TrimSpace(req.Email),
		Subscribed: req.Subscribed,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.UpsertOrganizationContact(ctx, s.db, link); err != nil {
		return 0, err
	}
	return contact.ID, nil
}

func (s *Service) Search(ctx context.Context, orgID snowflake.ID, req contactdomain.SearchRequest) ([]contactdomain.View, error) {
	if orgID == 0 {
		return nil, contactdomain.ErrInvalidOrganization
	}
	return s.repo.Search(ctx, s.db, orgID, strings.TrimSpace(req.Query), req.SubscribedOnly)
}
