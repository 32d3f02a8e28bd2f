// Package authorization maps organization roles and API key permissions to
// allowed operations. Enforcement runs through casbin with one policy
// domain per organization.
package authorization

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	apikeydomain "github.com/textlane/textlane/internal/apikey/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrganization = "organization"
	ObjectMember       = "member"
	ObjectInvite       = "invite"
	ObjectContact      = "contact"
	ObjectMessage      = "message"
	ObjectAPIKey       = "api_key"
)

const (
	ActionOrganizationView     = "organization.view"
	ActionOrganizationUpdate   = "organization.update"
	ActionOrganizationTransfer = "organization.transfer"
	ActionOrganizationDelete   = "organization.delete"

	ActionMemberView = "member.view"

	ActionInviteView   = "invite.view"
	ActionInviteCreate = "invite.create"
	ActionInviteRevoke = "invite.revoke"

	ActionContactView   = "contact.view"
	ActionContactUpsert = "contact.upsert"

	ActionMessageView = "message.view"
	ActionMessageSend = "message.send"

	ActionAPIKeyView   = "api_key.view"
	ActionAPIKeyCreate = "api_key.create"
	ActionAPIKeyRevoke = "api_key.revoke"
)

var (
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrForbidden           = errors.New("forbidden")
)

type Service interface {
	// Authorize checks whether actor ("user:<id>" or "api_key:<id>:<perm>")
	// may perform action on object within orgID's policy domain.
	Authorize(ctx context.Context, actor, orgID, object, action string) error
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor, orgID, object, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, err := s.resolveActor(ctx, actor, orgID)
	if err != nil {
		return err
	}

	domain := fmt.Sprintf("org:%s", orgID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", subject),
			zap.String("org_id", orgID),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor, orgID string) (string, string, error) {
	if strings.HasPrefix(actor, "api_key:") {
		rest := strings.TrimPrefix(actor, "api_key:")
		keyIDRaw, permission, ok := strings.Cut(rest, ":")
		if !ok {
			return "", "", ErrInvalidActor
		}
		keyID, err := snowflake.ParseString(keyIDRaw)
		if err != nil || keyID == 0 {
			return "", "", ErrInvalidActor
		}
		switch permission {
		case apikeydomain.PermissionAll:
			return actor, "role:service", nil
		case apikeydomain.PermissionSendOnly:
			return actor, "role:sender", nil
		default:
			return "", "", ErrInvalidActor
		}
	}
	if strings.HasPrefix(actor, "user:") {
		userIDRaw := strings.TrimPrefix(actor, "user:")
		userID, err := snowflake.ParseString(userIDRaw)
		if err != nil || userID == 0 {
			return "", "", ErrInvalidActor
		}
		parsedOrgID, err := snowflake.ParseString(orgID)
		if err != nil || parsedOrgID == 0 {
			return "", "", ErrInvalidOrganization
		}
		role, err := s.roleForUser(ctx, parsedOrgID, userID)
		if err != nil {
			return "", "", err
		}
		return actor, "role:" + strings.ToLower(role), nil
	}
	return "", "", ErrInvalidActor
}

func (s *ServiceImpl) roleForUser(ctx context.Context, orgID, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM organization_members
		 WHERE org_id = ? AND user_id = ?
		 LIMIT 1`,
		orgID,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

func (s *ServiceImpl) ensureGrouping(subject, roleName, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Developer permissions
		{"role:developer", ObjectOrganization, ActionOrganizationView},
		{"role:developer", ObjectMember, ActionMemberView},
		{"role:developer", ObjectContact, ActionContactView},
		{"role:developer", ObjectContact, ActionContactUpsert},
		{"role:developer", ObjectMessage, ActionMessageView},
		{"role:developer", ObjectMessage, ActionMessageSend},
		{"role:developer", ObjectAPIKey, ActionAPIKeyView},

		// Administrator permissions
		{"role:administrator", ObjectOrganization, ActionOrganizationView},
		{"role:administrator", ObjectOrganization, ActionOrganizationUpdate},
		{"role:administrator", ObjectMember, ActionMemberView},
		{"role:administrator", ObjectInvite, ActionInviteView},
		{"role:administrator", ObjectInvite, ActionInviteCreate},
		{"role:administrator", ObjectInvite, ActionInviteRevoke},
		{"role:administrator", ObjectContact, ActionContactView},
		{"role:administrator", ObjectContact, ActionContactUpsert},
		{"role:administrator", ObjectMessage, ActionMessageView},
		{"role:administrator", ObjectMessage, ActionMessageSend},
		{"role:administrator", ObjectAPIKey, ActionAPIKeyView},
		{"role:administrator", ObjectAPIKey, ActionAPIKeyCreate},
		{"role:administrator", ObjectAPIKey, ActionAPIKeyRevoke},

		// Owner permissions
		{"role:owner", ObjectOrganization, ActionOrganizationView},
		{"role:owner", ObjectOrganization, ActionOrganizationUpdate},
		{"role:owner", ObjectOrganization, ActionOrganizationTransfer},
		{"role:owner", ObjectOrganization, ActionOrganizationDelete},
		{"role:owner", ObjectMember, ActionMemberView},
		{"role:owner", ObjectInvite, ActionInviteView},
		{"role:owner", ObjectInvite, ActionInviteCreate},
		{"role:owner", ObjectInvite, ActionInviteRevoke},
		{"role:owner", ObjectContact, ActionContactView},
		{"role:owner", ObjectContact, ActionContactUpsert},
		{"role:owner", ObjectMessage, ActionMessageView},
		{"role:owner", ObjectMessage, ActionMessageSend},
		{"role:owner", ObjectAPIKey, ActionAPIKeyView},
		{"role:owner", ObjectAPIKey, ActionAPIKeyCreate},
		{"role:owner", ObjectAPIKey, ActionAPIKeyRevoke},

		// Full-access API keys
		{"role:service", ObjectOrganization, ActionOrganizationView},
		{"role:service", ObjectMember, ActionMemberView},
		{"role:service", ObjectContact, ActionContactView},
		{"role:service", ObjectContact, ActionContactUpsert},
		{"role:service", ObjectMessage, ActionMessageView},
		{"role:service", ObjectMessage, ActionMessageSend},

		// send_only API keys
		{"role:sender", ObjectMessage, ActionMessageSend},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}

// Module wires the enforcer and service.
var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)
