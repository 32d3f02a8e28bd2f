package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/textlane/textlane/internal/clock"
	orgdomain "github.com/textlane/textlane/internal/organization/domain"
	"github.com/textlane/textlane/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  orgdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  orgdomain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) orgdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("organization.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, userID snowflake.ID, req orgdomain.CreateRequest) (*orgdomain.Response, error) {
	if userID == 0 {
		return nil, orgdomain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, orgdomain.ErrInvalidName
	}

	now := s.clock.Now()
	org := &orgdomain.Organization{
		ID:               s.genID.Generate(),
		Name:             name,
		Slug:             slug.Make(name),
		SubscriptionTier: orgdomain.TierFree,
		Metadata:         datatypes.JSONMap{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreateOrganization(ctx, tx, org); err != nil {
			return err
		}

		member := &orgdomain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     org.ID,
			UserID:    userID,
			Role:      orgdomain.RoleOwner,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.repo.AddMember(ctx, tx, member)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("org_id", org.ID.String()),
		zap.String("owner_user_id", userID.String()),
	)

	return toResponse(org), nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*orgdomain.Response, error) {
	if id == 0 {
		return nil, orgdomain.ErrInvalidOrganization
	}

	org, err := s.repo.GetOrganization(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, orgdomain.ErrNotFound
	}
	return toResponse(org), nil
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID) ([]orgdomain.ListItem, error) {
	if userID == 0 {
		return nil, orgdomain.ErrInvalidUser
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]orgdomain.ListItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, orgdomain.ListItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}
	return resp, nil
}

func (s *Service) Members(ctx context.Context, orgID snowflake.ID) ([]orgdomain.MemberView, error) {
	if orgID == 0 {
		return nil, orgdomain.ErrInvalidOrganization
	}

	rows, err := s.repo.ListMembers(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}

	views := make([]orgdomain.MemberView, 0, len(rows))
	for _, row := range rows {
		views = append(views, orgdomain.MemberView{
			UserID:    row.UserID.String(),
			Role:      row.Role,
			FullName:  row.FullName,
			Email:     row.Email,
			AvatarURL: row.AvatarURL,
			JoinedAt:  row.CreatedAt,
		})
	}
	return views, nil
}

func (s *Service) TransferOwnership(ctx context.Context, orgID, fromUserID, toUserID snowflake.ID) error {
	if orgID == 0 {
		return orgdomain.ErrInvalidOrganization
	}
	if fromUserID == 0 || toUserID == 0 || fromUserID == toUserID {
		return orgdomain.ErrInvalidUser
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}

		// Demote conditionally on the caller still holding the owner role;
		// a racing transfer makes this a zero-row update and the whole
		// transaction rolls back.
		demoted, err := s.repo.SetRoleIf(ctx, tx, orgID, fromUserID, orgdomain.RoleOwner, orgdomain.RoleAdministrator, now)
		if err != nil {
			return err
		}
		if demoted == 0 {
			return orgdomain.ErrNotOwner
		}

		target, err := s.repo.FindMember(ctx, tx, orgID, toUserID)
		if err != nil {
			return err
		}
		if target == nil {
			return orgdomain.ErrNotMember
		}

		promoted, err := s.repo.SetRoleIf(ctx, tx, orgID, toUserID, target.Role, orgdomain.RoleOwner, now)
		if err != nil {
			return err
		}
		if promoted == 0 {
			return orgdomain.ErrNotMember
		}
		return nil
	})
}

func (s *Service) Leave(ctx context.Context, orgID, userID snowflake.ID) error {
	if orgID == 0 {
		return orgdomain.ErrInvalidOrganization
	}
	if userID == 0 {
		return orgdomain.ErrInvalidUser
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, int64(orgID)); err != nil {
			return err
		}

		deleted, err := s.repo.DeleteMemberUnlessLastOwner(ctx, tx, orgID, userID)
		if err != nil {
			return err
		}
		if deleted > 0 {
			return nil
		}

		// Nothing deleted: distinguish a missing membership from the
		// last-owner guard inside the same transaction.
		member, err := s.repo.FindMember(ctx, tx, orgID, userID)
		if err != nil {
			return err
		}
		if member == nil {
			return orgdomain.ErrNotMember
		}
		return orgdomain.ErrLastOwner
	})
}

func (s *Service) SetSubscriptionTier(ctx context.Context, orgID snowflake.ID, tier string) error {
	if orgID == 0 {
		return orgdomain.ErrInvalidOrganization
	}
	if !orgdomain.ValidTier(tier) {
		return orgdomain.ErrInvalidTier
	}

	updated, err := s.repo.UpdateSubscriptionTier(ctx, s.db, orgID, tier, s.clock.Now())
	if err != nil {
		return err
	}
	if updated == 0 {
		return orgdomain.ErrNotFound
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, orgID, actorUserID snowflake.ID) error {
	if orgID == 0 {
		return orgdomain.ErrInvalidOrganization
	}
	if actorUserID == 0 {
		return orgdomain.ErrInvalidUser
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := s.repo.FindMember(ctx, tx, orgID, actorUserID)
		if err != nil {
			return err
		}
		if member == nil {
			return orgdomain.ErrNotMember
		}
		if member.Role != orgdomain.RoleOwner {
			return orgdomain.ErrNotOwner
		}
		return s.repo.DeleteOrganizationCascade(ctx, tx, orgID)
	})
	if err != nil {
		return err
	}

	s.log.Info("organization deleted",
		zap.String("org_id", orgID.String()),
		zap.String("actor_user_id", actorUserID.String()),
	)
	return nil
}

func toResponse(org *orgdomain.Organization) *orgdomain.Response {
	return &orgdomain.Response{
		ID:               org.ID.String(),
		Name:             org.Name,
		Slug:             org.Slug,
		SubscriptionTier: org.SubscriptionTier,
		CreatedAt:        org.CreatedAt,
		UpdatedAt:        org.UpdatedAt,
	}
}
