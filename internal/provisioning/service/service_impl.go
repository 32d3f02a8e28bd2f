package service

import (
	"context"

	orgdomain "github.com/textlane/textlane/internal/organization/domain"
	provisioningdomain "github.com/textlane/textlane/internal/provisioning/domain"
	userdomain "github.com/textlane/textlane/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	UserSvc userdomain.Service
	OrgSvc  orgdomain.Service
}

type Service struct {
	log     *zap.Logger
	userSvc userdomain.Service
	orgSvc  orgdomain.Service
}

func New(p Params) provisioningdomain.Service {
	return &Service{
		log:     p.Log.Named("provisioning.service"),
		userSvc: p.UserSvc,
		orgSvc:  p.OrgSvc,
	}
}

func (s *Service) HandleIdentityCreated(ctx context.Context, req provisioningdomain.IdentityCreatedEvent) (*provisioningdomain.Provisioned, error) {
	user, err := s.userSvc.Create(ctx, userdomain.CreateRequest{
		AuthID:    req.AuthID,
		FullName:  req.FullName,
		Email:     req.Email,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return nil, err
	}

	// A replayed event finds the user already holding an organization and
	// leaves everything as-is.
	orgs, err := s.orgSvc.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(orgs) > 0 {
		return &provisioningdomain.Provisioned{
			UserID: user.ID.String(),
			OrgID:  orgs[0].ID,
		}, nil
	}

	org, err := s.orgSvc.Create(ctx, user.ID, orgdomain.CreateRequest{
		Name: provisioningdomain.DefaultOrganizationName,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("identity provisioned",
		zap.String("user_id", user.ID.String()),
		zap.String("org_id", org.ID),
	)
	return &provisioningdomain.Provisioned{
		UserID: user.ID.String(),
		OrgID:  org.ID,
	}, nil
}
