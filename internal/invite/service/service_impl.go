package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/textlane/textlane/internal/clock"
	invitedomain "github.com/textlane/textlane/internal/invite/domain"
	orgdomain "github.com/textlane/textlane/internal/organization/domain"
	userdomain "github.com/textlane/textlane/internal/user/domain"
	"github.com/textlane/textlane/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     invitedomain.Repository
	OrgRepo  orgdomain.Repository
	UserRepo userdomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     invitedomain.Repository
	orgRepo  orgdomain.Repository
	userRepo userdomain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
}

func New(p Params) invitedomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invite.service"),
		repo:     p.Repo,
		orgRepo:  p.OrgRepo,
		userRepo: p.UserRepo,
		genID:    p.GenID,
		clock:    p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req invitedomain.CreateRequest) (*invitedomain.Details, error) {
	if req.OrgID == 0 {
		return nil, orgdomain.ErrInvalidOrganization
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if !orgdomain.ValidRole(req.Role) {
		return nil, invitedomain.ErrInvalidRole
	}

	org, err := s.orgRepo.GetOrganization(ctx, s.db, req.OrgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, orgdomain.ErrNotFound
	}
	inviter, err := s.userRepo.FindByID(ctx, s.db, req.InvitedBy)
	if err != nil {
		return nil, err
	}
	if inviter == nil {
		return nil, orgdomain.ErrInvalidUser
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	invite := &invitedomain.OrganizationInvite{
		ID:        s.genID.Generate(),
		OrgID:     req.OrgID,
		Email:     email,
		Role:      req.Role,
		Token:     token,
		InvitedBy: req.InvitedBy,
		ExpiresAt: now.Add(invitedomain.TTL),
		CreatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Clear expired rows so the (org, email) unique constraint only
		// guards genuinely pending invites.
		if err := s.repo.DeleteExpired(ctx, tx, req.OrgID, email, now); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, invite)
	})
	if db.IsDuplicateKeyErr(err) {
		return nil, invitedomain.ErrDuplicateInvite
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("invite created",
		zap.String("org_id", req.OrgID.String()),
		zap.String("role", req.Role),
	)

	return &invitedomain.Details{
		ID:               invite.ID.String(),
		OrgID:            org.ID.String(),
		OrganizationName: org.Name,
		Email:            email,
		Role:             req.Role,
		Token:            token,
		InviterName:      inviter.FullName,
		InviterEmail:     inviter.Email,
		ExpiresAt:        invite.ExpiresAt,
		CreatedAt:        invite.CreatedAt,
	}, nil
}

func (s *Service) Accept(ctx context.Context, token string, userID snowflake.ID) error {
	if strings.TrimSpace(token) == "" {
		return invitedomain.ErrInvalidOrExpired
	}
	if userID == 0 {
		return orgdomain.ErrInvalidUser
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invite, err := s.repo.FindByToken(ctx, tx, token)
		if err != nil {
			return err
		}
		if invite == nil || !invite.ExpiresAt.After(now) {
			return invitedomain.ErrInvalidOrExpired
		}

		// The conditional delete is the single-use guard: of two racing
		// acceptances only one removes the row, the other sees zero rows
		// and fails here.
		consumed, err := s.repo.ConsumeByToken(ctx, tx, token, now)
		if err != nil {
			return err
		}
		if consumed == 0 {
			return invitedomain.ErrInvalidOrExpired
		}

		member := &orgdomain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     invite.OrgID,
			UserID:    userID,
			Role:      invite.Role,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.orgRepo.AddMember(ctx, tx, member); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return orgdomain.ErrAlreadyMember
			}
			return err
		}
		return nil
	})
}

func (s *Service) Revoke(ctx context.Context, orgID, inviteID snowflake.ID) error {
	if orgID == 0 {
		return orgdomain.ErrInvalidOrganization
	}

	deleted, err := s.repo.DeleteByID(ctx, s.db, orgID, inviteID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return invitedomain.ErrNotFound
	}
	return nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID) ([]invitedomain.Details, error) {
	if orgID == 0 {
		return nil, orgdomain.ErrInvalidOrganization
	}

	invites, err := s.repo.ListByOrg(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}

	details := make([]invitedomain.Details, 0, len(invites))
	for _, invite := range invites {
		details = append(details, invitedomain.Details{
			ID:        invite.ID.String(),
			OrgID:     invite.OrgID.String(),
			Email:     invite.Email,
			Role:      invite.Role,
			ExpiresAt: invite.ExpiresAt,
			CreatedAt: invite.CreatedAt,
		})
	}
	return details, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", invitedomain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invitedomain.ErrInvalidEmail
	}
	return email, nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
