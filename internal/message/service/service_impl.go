package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/textlane/textlane/internal/clock"
	contactdomain "github.com/textlane/textlane/internal/contact/domain"
	messagedomain "github.com/textlane/textlane/internal/message/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultListLimit = 50

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  messagedomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  messagedomain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) messagedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("message.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Record(ctx context.Context, orgID snowflake.ID, req messagedomain.RecordRequest) (*messagedomain.Message, error) {
	if orgID == 0 {
		return nil, messagedomain.ErrInvalidOrganization
	}
	recipient, err := contactdomain.NormalizePhoneNumber(req.Recipient)
	if err != nil {
		return nil, messagedomain.ErrInvalidRecipient
	}
	if strings.TrimSpace(req.Body) == "" {
		return nil, messagedomain.ErrEmptyBody
	}
	if !messagedomain.ValidService(req.Service) {
		return nil, messagedomain.ErrInvalidService
	}

	now := s.clock.Now()
	msg := &messagedomain.Message{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		SenderUserID: req.SenderUserID,
		MessageID:    "msg_" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Recipient:    recipient,
		Body:         req.Body,
		Service:      req.Service,
		Status:       messagedomain.StatusPending,
		SMSFallback:  req.SMSFallback,
		SentAt:       now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, msg); err != nil {
		return nil, err
	}

	s.log.Info("message recorded",
		zap.String("org_id", orgID.String()),
		zap.String("message_id", msg.MessageID),
		zap.String("service", msg.Service),
	)
	return msg, nil
}

func (s *Service) UpdateStatus(ctx context.Context, messageID, status string) error {
	if !messagedomain.ValidStatus(status) {
		return messagedomain.ErrInvalidStatus
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg, err := s.repo.FindByMessageID(ctx, tx, messageID)
		if err != nil {
			return err
		}
		if msg == nil {
			return messagedomain.ErrNotFound
		}
		if !messagedomain.CanTransition(msg.Status, status) {
			return messagedomain.ErrInvalidTransition
		}

		updated, err := s.repo.SetStatusIf(ctx, tx, messageID, msg.Status, status, now)
		if err != nil {
			return err
		}
		if updated == 0 {
			// Another writer advanced the row between the read and the
			// conditional update.
			return messagedomain.ErrInvalidTransition
		}
		return nil
	})
}

func (s *Service) Get(ctx context.Context, orgID snowflake.ID, messageID string) (*messagedomain.Message, error) {
	if orgID == 0 {
		return nil, messagedomain.ErrInvalidOrganization
	}

	msg, err := s.repo.FindByOrgAndMessageID(ctx, s.db, orgID, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, messagedomain.ErrNotFound
	}
	return msg, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req messagedomain.ListRequest) ([]messagedomain.Message, error) {
	if orgID == 0 {
		return nil, messagedomain.ErrInvalidOrganization
	}

	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = defaultListLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByOrg(ctx, s.db, orgID, limit, offset)
}
